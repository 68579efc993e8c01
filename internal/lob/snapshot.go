package lob

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Tick is a market-data snapshot emitted at a Snapshot phase boundary:
// OHLCV-amount plus the top-k bid/ask price levels.
type Tick struct {
	Timestamp Timestamp
	Open      float64 // math.NaN() if no trade occurred in the interval
	High      float64
	Low       float64
	Close     float64 // retains the last trade price across empty intervals
	Volume    Qty
	Amount    float64
	// VWAP is the volume-weighted average trade price over the interval,
	// NaN if no trade occurred. It supplements spec.md's OHLCV contract
	// (SPEC_FULL.md §3).
	VWAP float64

	BidPrices []float64
	AskPrices []float64
	BidSizes  []float64
	AskSizes  []float64
}

// tickAccumulator tracks the running OHLCV-amount state between snapshot
// boundaries, per spec.md §4.8.
type tickAccumulator struct {
	open, high, low, close float64
	haveTrade               bool
	volume                  Qty
	amount                  float64
	prices                  []float64
	qtys                    []float64
}

func newTickAccumulator() tickAccumulator {
	return tickAccumulator{open: math.NaN(), high: math.NaN(), low: math.NaN(), close: math.NaN()}
}

// observe updates the accumulator with one executed trade, per the rules
// of spec.md §4.8.
func (a *tickAccumulator) observe(price float64, qty Qty) {
	if !a.haveTrade {
		a.open = price
		a.haveTrade = true
	}
	if math.IsNaN(a.high) || price > a.high {
		a.high = price
	}
	if math.IsNaN(a.low) || price < a.low {
		a.low = price
	}
	a.close = price
	a.volume += qty
	a.amount += price * float64(qty)
	a.prices = append(a.prices, price)
	a.qtys = append(a.qtys, float64(qty))
}

// vwap returns the volume-weighted average trade price for the interval,
// NaN if no trade occurred.
func (a *tickAccumulator) vwap() float64 {
	if len(a.prices) == 0 {
		return math.NaN()
	}
	return stat.Mean(a.prices, a.qtys)
}

// resetAfterSnapshot clears open/high/low/volume/amount but retains close
// (last-trade semantics), per spec.md §4.8.
func (a *tickAccumulator) resetAfterSnapshot() {
	last := a.close
	*a = newTickAccumulator()
	a.close = last
}

// emitTick builds and appends a Tick from the current accumulator state
// plus the book's current top-k depth, then resets the accumulator.
func (b *Book) emitTick(ts Timestamp) Tick {
	k := b.cfg.TopK
	tk := Tick{
		Timestamp: ts,
		Open:      b.accum.open,
		High:      b.accum.high,
		Low:       b.accum.low,
		Close:     b.accum.close,
		Volume:    b.accum.volume,
		Amount:    b.accum.amount,
		VWAP:      b.accum.vwap(),
		BidPrices: padFloat(pricesToFloat(b.bid.topkPrices(k), b), k, math.NaN()),
		AskPrices: padFloat(pricesToFloat(b.ask.topkPrices(k), b), k, math.NaN()),
		BidSizes:  padFloat(qtysToFloat(b.bid.topkSizes(k)), k, 0),
		AskSizes:  padFloat(qtysToFloat(b.ask.topkSizes(k)), k, 0),
	}
	b.ticks = append(b.ticks, tk)
	b.accum.resetAfterSnapshot()
	if b.metrics != nil {
		b.metrics.observeTick(tk)
	}
	b.cache.SetDefault("last_tick", tk)
	return tk
}

func pricesToFloat(ps []Price, b *Book) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = b.RealPrice(p)
	}
	return out
}

func qtysToFloat(qs []Qty) []float64 {
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = float64(q)
	}
	return out
}

// padFloat extends values to exactly n entries using fill, per spec.md's
// "pad" query option.
func padFloat(values []float64, n int, fill float64) []float64 {
	for len(values) < n {
		values = append(values, fill)
	}
	return values
}

// LastTick returns the most recently emitted tick, held in the book's
// cache under a single key with no expiry: each emitTick replaces it and
// Clear empties it. Top-k queries are not cached.
func (b *Book) LastTick() (Tick, bool) {
	v, ok := b.cache.Get("last_tick")
	if !ok {
		return Tick{}, false
	}
	return v.(Tick), true
}
