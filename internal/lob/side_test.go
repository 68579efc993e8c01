package lob

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSideBook(side Side) *sideBook {
	return newSideBook(side, rand.New(rand.NewSource(3)))
}

func TestSideBook_BestBidIsMax(t *testing.T) {
	s := newTestSideBook(Bid)
	s.getOrCreate(100).Quantity = 1
	s.getOrCreate(105).Quantity = 1
	s.getOrCreate(90).Quantity = 1
	assert.Equal(t, Price(105), s.best().Price)
}

func TestSideBook_BestAskIsMin(t *testing.T) {
	s := newTestSideBook(Ask)
	s.getOrCreate(100).Quantity = 1
	s.getOrCreate(105).Quantity = 1
	s.getOrCreate(90).Quantity = 1
	assert.Equal(t, Price(90), s.best().Price)
}

func TestSideBook_DropIfEmptyRemovesFromBothIndices(t *testing.T) {
	s := newTestSideBook(Bid)
	l := s.getOrCreate(100)
	assert.Equal(t, 1, s.tree.size())

	l.Quantity = 0 // empty() checks the FIFO, not Quantity directly
	s.dropIfEmpty(l)
	// queue still has no orders so empty() is true regardless of Quantity
	_, ok := s.levelAt(100)
	assert.False(t, ok)
	assert.Equal(t, 0, s.tree.size())
}

func TestSideBook_CumulativeQuantity(t *testing.T) {
	s := newTestSideBook(Bid)
	s.getOrCreate(100).Quantity = 10
	s.getOrCreate(99).Quantity = 20
	s.getOrCreate(98).Quantity = 30

	assert.Equal(t, Qty(10), s.cumulativeQuantity(1))
	assert.Equal(t, Qty(30), s.cumulativeQuantity(2))
	assert.Equal(t, Qty(60), s.cumulativeQuantity(3))
	assert.Equal(t, Qty(60), s.cumulativeQuantity(10))
	assert.Equal(t, Qty(0), s.cumulativeQuantity(0))
}

func TestSideBook_TopkPricesAndSizes(t *testing.T) {
	s := newTestSideBook(Ask)
	s.getOrCreate(100).Quantity = 1
	s.getOrCreate(99).Quantity = 2
	s.getOrCreate(101).Quantity = 3

	prices := s.topkPrices(2)
	require.Len(t, prices, 2)
	assert.Equal(t, Price(99), prices[0])
	assert.Equal(t, Price(100), prices[1])

	sizes := s.topkSizes(2)
	require.Len(t, sizes, 2)
	assert.Equal(t, Qty(2), sizes[0])
	assert.Equal(t, Qty(1), sizes[1])
}

func TestSideBook_CumulativeQuantityDoesNotMutateTree(t *testing.T) {
	s := newTestSideBook(Bid)
	s.getOrCreate(100).Quantity = 10
	s.getOrCreate(99).Quantity = 20
	s.getOrCreate(98).Quantity = 30

	before := s.tree.size()
	_ = s.cumulativeQuantity(2)
	_ = s.cumulativeQuantity(1)
	after := s.tree.size()
	assert.Equal(t, before, after)
	assert.Equal(t, Price(100), s.best().Price)
}
