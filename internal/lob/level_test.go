package lob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_InsertFrontShrink(t *testing.T) {
	l := newLevel(Bid, 100)
	o1 := &Order{ID: 1, Price: 100, Remaining: 5}
	o2 := &Order{ID: 2, Price: 100, Remaining: 3}
	l.insert(o1)
	l.insert(o2)

	assert.Equal(t, Qty(8), l.Quantity)
	assert.Same(t, o1, l.front())

	l.shrink(o1, 5)
	assert.Equal(t, Qty(3), l.Quantity)
	assert.Same(t, o2, l.front(), "exhausted head order must be compacted out")
	assert.Equal(t, Qty(0), o1.Remaining)

	l.shrink(o2, 1)
	assert.Equal(t, Qty(2), l.Quantity)
	assert.Equal(t, Qty(2), o2.Remaining)
	assert.False(t, l.empty())
}

func TestLevel_EmptyAfterFullShrink(t *testing.T) {
	l := newLevel(Ask, 50)
	o := &Order{ID: 1, Price: 50, Remaining: 10}
	l.insert(o)
	l.shrink(o, 10)
	assert.True(t, l.empty())
	assert.Equal(t, Qty(0), l.Quantity)
}

func TestOrderQueue_FIFOOrder(t *testing.T) {
	q := newOrderQueue()
	assert.True(t, q.empty())

	o1 := &Order{ID: 1}
	o2 := &Order{ID: 2}
	o3 := &Order{ID: 3}
	h1 := q.pushBack(o1)
	q.pushBack(o2)
	q.pushBack(o3)

	require.Equal(t, 3, q.len())
	assert.Same(t, o1, q.front())

	q.remove(h1)
	assert.Equal(t, 2, q.len())
	assert.Same(t, o2, q.front())

	popped := q.popFront()
	assert.Same(t, o2, popped)
	assert.Same(t, o3, q.front())
}

func TestOrderQueue_CompactFront(t *testing.T) {
	q := newOrderQueue()
	o1 := &Order{ID: 1, Remaining: 0}
	o2 := &Order{ID: 2, Remaining: 0}
	o3 := &Order{ID: 3, Remaining: 5}
	q.pushBack(o1)
	q.pushBack(o2)
	q.pushBack(o3)

	q.compactFront()
	assert.Equal(t, 1, q.len())
	assert.Same(t, o3, q.front())
}
