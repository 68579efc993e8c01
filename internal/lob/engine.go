package lob

import (
	"go.uber.org/zap"

	lerrors "github.com/abdoElHodaky/lobengine/pkg/errors"
)

// Write submits a single quote to the book. See spec.md §4.4 for the
// per-variant contract; FillOrder is rejected here because it is an
// internal settlement type the engine emits to itself.
func (b *Book) Write(q Quote) error {
	switch q.Type {
	case LimitOrder:
		return b.writeLimit(q, true)
	case MarketOrder:
		return b.writeMarket(q)
	case BestPriceOrder:
		return b.writeBestPrice(q)
	case CancelOrder:
		return b.writeCancel(q)
	case FillOrder:
		return b.rejectInvalidInput("FillOrder is an internal settlement type; callers must not submit it")
	default:
		return b.rejectInvalidInput("unknown quote type")
	}
}

func (b *Book) writeLimit(q Quote, triggerMatch bool) error {
	if q.Qty <= 0 {
		return b.rejectInvalidInput("LimitOrder quantity must be > 0")
	}
	if q.Price <= 0 {
		return b.rejectInvalidInput("LimitOrder price must be > 0")
	}
	if _, exists := b.orders[q.ID]; exists {
		return b.rejectInvalidInput("duplicate order id")
	}
	b.observeStart(q.Timestamp)

	side := b.sideBookFor(q.Side)
	level := side.getOrCreate(q.Price)
	order := &Order{
		ID:            q.ID,
		Price:         q.Price,
		Remaining:     q.Qty,
		Timestamp:     q.Timestamp,
		correlationID: b.newCorrelationID(),
	}
	level.insert(order)
	b.orders[q.ID] = order
	b.observeLevelMetrics()

	if triggerMatch && b.status == ContinuousTrading {
		return b.match(nil, nil)
	}
	return nil
}

func (b *Book) writeMarket(q Quote) error {
	if b.status != ContinuousTrading {
		return b.rejectInvalidStatus("MarketOrder is only valid during ContinuousTrading")
	}
	if q.Qty <= 0 {
		return b.rejectInvalidInput("MarketOrder quantity must be > 0")
	}
	opp := b.sideBookFor(q.Side.Opposite())
	if opp.empty() {
		return nil // contractual no-op: nothing to sweep against
	}
	best := opp.best()
	take := q.Qty
	if best.Quantity < take {
		take = best.Quantity
	}
	if err := b.writeLimit(Quote{
		ID:        q.ID,
		Price:     best.Price,
		Qty:       take,
		Timestamp: q.Timestamp,
		Side:      q.Side,
		Type:      LimitOrder,
	}, true); err != nil {
		return err
	}
	if q.Qty > take {
		return b.writeMarket(Quote{
			ID:        q.ID,
			Qty:       q.Qty - take,
			Timestamp: q.Timestamp,
			Side:      q.Side,
			Type:      MarketOrder,
		})
	}
	return nil
}

func (b *Book) writeBestPrice(q Quote) error {
	if b.status != ContinuousTrading {
		return b.rejectInvalidStatus("BestPriceOrder is only valid during ContinuousTrading")
	}
	if q.Qty <= 0 {
		return b.rejectInvalidInput("BestPriceOrder quantity must be > 0")
	}
	own := b.sideBookFor(q.Side)
	if own.empty() {
		return nil // contractual no-op: no own-side best to peg to
	}
	price := own.best().Price
	return b.writeLimit(Quote{
		ID:        q.ID,
		Price:     price,
		Qty:       q.Qty,
		Timestamp: q.Timestamp,
		Side:      q.Side,
		Type:      LimitOrder,
	}, true)
}

func (b *Book) writeCancel(q Quote) error {
	order, ok := b.orders[q.ID]
	if !ok {
		return b.rejectInvalidInput("unknown order id")
	}
	if q.Qty <= 0 {
		return b.rejectInvalidInput("Cancel/Fill quantity must be > 0")
	}
	if q.Qty > order.Remaining {
		return b.rejectInvalidInput("Cancel/Fill quantity exceeds order's remaining quantity")
	}
	b.shrinkOrder(order, q.Qty)
	return nil
}

// shrinkOrder applies the shared structural effect of CancelOrder and the
// internal FillOrder settlement: decrement remaining quantity, compact
// the FIFO, drop the order from the id map once exhausted, and drop the
// level from both side-book indices once it carries no quantity.
func (b *Book) shrinkOrder(order *Order, qty Qty) {
	level := order.level
	level.shrink(order, qty)
	if order.Remaining == 0 {
		delete(b.orders, order.ID)
	}
	side := b.sideBookFor(level.Side)
	side.dropIfEmpty(level)
	b.observeLevelMetrics()
}

func (b *Book) observeLevelMetrics() {
	if b.metrics == nil {
		return
	}
	b.metrics.observeLevelCounts(b.bid.tree.size(), b.ask.tree.size())
}

func minQty(a, b Qty) Qty {
	if a < b {
		return a
	}
	return b
}

// Trade emits a Transaction between askID and bidID for qty and applies
// the two settlement fills. If price is nil, the maker's limit price is
// used: the maker is the order with the smaller id (spec.md §9 Open
// Question 1 — this assumes ids are assigned monotonically in arrival
// order). If ts is nil, max(ask.ts, bid.ts) is used.
func (b *Book) Trade(askID, bidID OrderID, qty Qty, price *Price, ts *Timestamp) error {
	askOrder, ok := b.orders[askID]
	if !ok {
		lerrors.Invariant("trade referenced unknown ask order %d", askID)
	}
	bidOrder, ok := b.orders[bidID]
	if !ok {
		lerrors.Invariant("trade referenced unknown bid order %d", bidID)
	}
	if qty <= 0 {
		lerrors.Invariant("trade quantity must be > 0, got %d", qty)
	}

	execPrice := Price(0)
	if price != nil {
		execPrice = *price
	} else if askID < bidID {
		execPrice = askOrder.Price
	} else {
		execPrice = bidOrder.Price
	}

	execTS := Timestamp(0)
	if ts != nil {
		execTS = *ts
	} else {
		execTS = askOrder.Timestamp
		if bidOrder.Timestamp > execTS {
			execTS = bidOrder.Timestamp
		}
	}

	realPrice := b.RealPrice(execPrice)
	tx := Transaction{
		BidID:     bidID,
		AskID:     askID,
		Price:     execPrice,
		RealPrice: realPrice,
		Qty:       qty,
		Timestamp: execTS,
	}
	b.transactions = append(b.transactions, tx)
	b.accum.observe(realPrice, qty)

	b.shrinkOrder(askOrder, qty)
	b.shrinkOrder(bidOrder, qty)

	if b.metrics != nil {
		b.metrics.observeTrade(tx)
	}
	b.logger.Debug("trade",
		zap.Uint64("ask_id", uint64(askID)),
		zap.Uint64("bid_id", uint64(bidID)),
		zap.Float64("price", realPrice),
		zap.Int64("qty", int64(qty)),
	)
	return nil
}

// match runs the continuous cross-and-match loop of spec.md §4.5: while
// both sides are non-empty and the best ask does not exceed the best
// bid, trade the FIFO heads of the crossing levels. refPrice, if
// non-nil, overrides the per-trade maker-price inference (used by the
// call-auction settlement so every execution lands at one reference
// price).
func (b *Book) match(refPrice *Price, ts *Timestamp) error {
	for {
		if b.ask.empty() || b.bid.empty() {
			return nil
		}
		askLevel := b.ask.best()
		bidLevel := b.bid.best()
		if askLevel.Price > bidLevel.Price {
			return nil
		}
		askOrder := askLevel.front()
		bidOrder := bidLevel.front()
		qty := minQty(askOrder.Remaining, bidOrder.Remaining)
		if err := b.Trade(askOrder.ID, bidOrder.ID, qty, refPrice, ts); err != nil {
			return err
		}
	}
}

// Match exposes the continuous cross-and-match loop with default (maker)
// pricing and timestamping.
func (b *Book) Match() error {
	return b.match(nil, nil)
}

// MatchCallAuction runs the call-auction equilibrium pricer of spec.md
// §4.6: walk both books inward from their extremes, advancing the
// less-accumulated side, until the cumulative curves would cross; then
// execute every resulting cross at the single reference price. On a
// one-sided book the walk never runs and ref stays 0, so nothing
// happens; on a disjoint book the walk still sets ref, but the match at
// ref finds no crossing levels, so no trade executes.
func (b *Book) MatchCallAuction(ts *Timestamp) error {
	ref := Price(0)
	askCum, bidCum := Qty(0), Qty(0)
	a := b.ask.ascendingNode()
	bid := b.bid.descendingNode()

	for a != nil && bid != nil && (a.level.Price <= ref || ref <= bid.level.Price) {
		if askCum < bidCum {
			askCum += a.level.Quantity
			ref = a.level.Price
			a = next(a)
		} else {
			bidCum += bid.level.Quantity
			ref = bid.level.Price
			bid = prev(bid)
		}
	}
	if ref == 0 {
		return nil
	}
	b.logger.Info("call auction equilibrium", zap.Int64("ref_price", int64(ref)))
	return b.match(&ref, ts)
}

// --- query methods ---

// TopKBidPrices returns up to k best-to-worst bid prices (as scaled
// integers), optionally padded to exactly k with a zero sentinel.
func (b *Book) TopKBidPrices(k int, pad bool) []Price {
	return topkPricesScaled(b.bid, k, pad)
}

// TopKAskPrices mirrors TopKBidPrices for the ask side.
func (b *Book) TopKAskPrices(k int, pad bool) []Price {
	return topkPricesScaled(b.ask, k, pad)
}

func topkPricesScaled(s *sideBook, k int, pad bool) []Price {
	out := s.topkPrices(k)
	if pad {
		for len(out) < k {
			out = append(out, 0)
		}
	}
	return out
}

// TopKBidSizes returns up to k best-to-worst bid sizes, optionally
// padded to exactly k with a zero sentinel.
func (b *Book) TopKBidSizes(k int, pad bool) []Qty {
	return topkSizesScaled(b.bid, k, pad)
}

// TopKAskSizes mirrors TopKBidSizes for the ask side.
func (b *Book) TopKAskSizes(k int, pad bool) []Qty {
	return topkSizesScaled(b.ask, k, pad)
}

func topkSizesScaled(s *sideBook, k int, pad bool) []Qty {
	out := s.topkSizes(k)
	if pad {
		for len(out) < k {
			out = append(out, 0)
		}
	}
	return out
}

// KthBidPrice returns the k'th best (1-indexed) resting bid price, and
// false if k is out of [1, size] range.
func (b *Book) KthBidPrice(k int) (Price, bool) {
	n := b.bid.kthNode(k)
	if n == nil {
		return 0, false
	}
	return n.level.Price, true
}

// KthAskPrice mirrors KthBidPrice for the ask side.
func (b *Book) KthAskPrice(k int) (Price, bool) {
	n := b.ask.kthNode(k)
	if n == nil {
		return 0, false
	}
	return n.level.Price, true
}

// KthBidVolume returns the k'th best (1-indexed) bid level's aggregate
// quantity, and false if k is out of range.
func (b *Book) KthBidVolume(k int) (Qty, bool) {
	n := b.bid.kthNode(k)
	if n == nil {
		return 0, false
	}
	return n.level.Quantity, true
}

// KthAskVolume mirrors KthBidVolume for the ask side.
func (b *Book) KthAskVolume(k int) (Qty, bool) {
	n := b.ask.kthNode(k)
	if n == nil {
		return 0, false
	}
	return n.level.Quantity, true
}

// CumulativeBidQuantity sums resting quantity across the best n bid
// levels (SPEC_FULL.md §4 supplement).
func (b *Book) CumulativeBidQuantity(n int) Qty {
	return b.bid.cumulativeQuantity(n)
}

// CumulativeAskQuantity mirrors CumulativeBidQuantity for the ask side.
func (b *Book) CumulativeAskQuantity(n int) Qty {
	return b.ask.cumulativeQuantity(n)
}
