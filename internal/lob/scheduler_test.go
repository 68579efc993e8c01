package lob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource is a simple in-memory lob.QuoteSource over a pre-sorted
// slice, used by scheduler tests.
type sliceSource struct {
	quotes []Quote
	pos    int
}

func (s *sliceSource) Peek() (Quote, bool) {
	if s.pos >= len(s.quotes) {
		return Quote{}, false
	}
	return s.quotes[s.pos], true
}

func (s *sliceSource) Next() (Quote, bool) {
	q, ok := s.Peek()
	if ok {
		s.pos++
	}
	return q, ok
}

func TestRun_DrivesPhasesAndCallAuction(t *testing.T) {
	b := NewBook(Config{Seed: 1})
	b.SetSchedule(Schedule{Periods: []Period{
		{Status: CallAuction, Start: 0, End: 10},
		{Status: ContinuousTrading, Start: 10, End: 20},
	}})

	source := &sliceSource{quotes: []Quote{
		limit(1, Bid, 100, 10, 1),
		limit(2, Bid, 99, 20, 2),
		limit(3, Ask, 98, 15, 3),
		limit(4, Ask, 99, 10, 4),
		limit(5, Bid, 50, 1, 15),
	}}

	var starts, ends []TradingStatus
	hooks := Hooks{
		OnPeriodStart: func(p Period) { starts = append(starts, p.Status) },
		OnPeriodEnd:   func(p Period) { ends = append(ends, p.Status) },
	}

	require.NoError(t, b.Run(source, hooks))

	assert.Equal(t, []TradingStatus{CallAuction, ContinuousTrading}, starts)
	assert.Equal(t, []TradingStatus{CallAuction, ContinuousTrading}, ends)

	// the call auction should have settled 25 units @ ref 99 by the
	// time the first period ends, exactly as the equilibrium scenario.
	var total Qty
	for _, tx := range b.Transactions() {
		assert.Equal(t, Price(99), tx.Price)
		total += tx.Qty
	}
	assert.Equal(t, Qty(25), total)

	// the trailing order (ts=15) was drained into the continuous period
	// and rests unmatched.
	assert.Equal(t, ContinuousTrading, b.Status())
	_, ok := b.orders[5]
	assert.True(t, ok)
}

func TestEffectiveSchedule_SplicesSnapshotGapWithoutMutatingStored(t *testing.T) {
	b := NewBook(Config{Seed: 1, SnapshotGap: 100})
	stored := Schedule{Periods: []Period{
		{Status: ContinuousTrading, Start: 0, End: 250},
	}}
	b.SetSchedule(stored)

	eff := b.effectiveSchedule()
	require.Len(t, eff, 6)
	assert.Equal(t, Period{Status: ContinuousTrading, Start: 0, End: 100}, eff[0])
	assert.Equal(t, Period{Status: Snapshot, Start: 100, End: 100}, eff[1])
	assert.Equal(t, Period{Status: ContinuousTrading, Start: 100, End: 200}, eff[2])
	assert.Equal(t, Period{Status: Snapshot, Start: 200, End: 200}, eff[3])
	assert.Equal(t, Period{Status: ContinuousTrading, Start: 200, End: 250}, eff[4])
	assert.Equal(t, Period{Status: Snapshot, Start: 250, End: 250}, eff[5])

	// calling it again must reproduce the same splice, proving the
	// stored schedule was never mutated (spec.md §9 Open Question 5).
	eff2 := b.effectiveSchedule()
	assert.Equal(t, eff, eff2)
	assert.Len(t, b.schedule.Periods, 1)
}

func TestEffectiveSchedule_AppendsSnapshotAfterCallAuction(t *testing.T) {
	b := NewBook(Config{Seed: 1, SnapshotGap: 100})
	b.SetSchedule(Schedule{Periods: []Period{
		{Status: CallAuction, Start: 0, End: 10},
		{Status: Closed, Start: 10, End: 20},
	}})

	eff := b.effectiveSchedule()
	require.Len(t, eff, 3)
	assert.Equal(t, Period{Status: CallAuction, Start: 0, End: 10}, eff[0])
	assert.Equal(t, Period{Status: Snapshot, Start: 10, End: 10}, eff[1])
	assert.Equal(t, Period{Status: Closed, Start: 10, End: 20}, eff[2])
}

func TestEffectiveSchedule_NoSnapshotGapLeavesScheduleAsIs(t *testing.T) {
	b := NewBook(Config{Seed: 1})
	periods := []Period{
		{Status: CallAuction, Start: 0, End: 10},
		{Status: ContinuousTrading, Start: 10, End: 100},
	}
	b.SetSchedule(Schedule{Periods: periods})

	eff := b.effectiveSchedule()
	assert.Equal(t, periods, eff)
}

func TestUntil_DrainsOnlyUpToBound(t *testing.T) {
	b := NewBook(Config{Seed: 1})
	b.SetStatus(ContinuousTrading)
	source := &sliceSource{quotes: []Quote{
		limit(1, Bid, 100, 1, 1),
		limit(2, Bid, 100, 1, 5),
		limit(3, Bid, 100, 1, 10),
	}}
	require.NoError(t, b.Until(source, 5))
	_, ok := b.orders[1]
	assert.True(t, ok)
	_, ok = b.orders[2]
	assert.True(t, ok)
	_, ok = b.orders[3]
	assert.False(t, ok, "quote timestamped after the bound must not be drained yet")
}
