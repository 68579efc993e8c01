package lob

import "go.uber.org/zap"

// QuoteSource feeds a Book.Run loop in timestamp order. Peek must return
// the same quote as the following Next call without consuming it, so the
// scheduler can decide whether a pending quote belongs to the current
// period before committing to write it.
type QuoteSource interface {
	Peek() (Quote, bool)
	Next() (Quote, bool)
}

// Hooks are optional callbacks Run invokes around each phase transition,
// per spec.md §5's on_period_start/on_period_end contract.
type Hooks struct {
	OnPeriodStart func(Period)
	OnPeriodEnd   func(Period)
}

// Run drives the book across its installed Schedule (SetSchedule), one
// Period at a time: set the phase (logging the transition), drain every
// quote timestamped at or before the period's end, settle a CallAuction
// period's equilibrium price at its boundary, emit a Tick at a Snapshot
// period's boundary, then advance. If Config.SnapshotGap is set,
// ContinuousTrading periods are locally spliced with interleaved
// Snapshot boundaries before the run starts; the stored Schedule itself
// is never mutated (spec.md §9 Open Question 5). A period that ends
// within the first day after the epoch is read as a time of day (as in
// the config presets) and shifted onto the UTC day of the source's
// first quote.
func (b *Book) Run(source QuoteSource, hooks Hooks) error {
	const nsPerDay = Timestamp(24 * 60 * 60 * 1e9)
	if q, ok := source.Peek(); ok {
		b.observeStart(q.Timestamp)
	}
	for _, p := range b.effectiveSchedule() {
		if p.End <= nsPerDay {
			p.Start += b.startOfDay
			p.End += b.startOfDay
		}
		b.SetStatus(p.Status)
		b.logger.Info("trading phase", zap.String("status", p.Status.String()))
		if hooks.OnPeriodStart != nil {
			hooks.OnPeriodStart(p)
		}
		if err := b.until(source, p.End); err != nil {
			return err
		}
		switch p.Status {
		case CallAuction:
			end := p.End
			if err := b.MatchCallAuction(&end); err != nil {
				return err
			}
		case Snapshot:
			b.emitTick(p.End)
		}
		if hooks.OnPeriodEnd != nil {
			hooks.OnPeriodEnd(p)
		}
	}
	return nil
}

// Until drains source of every quote timestamped at or before ts,
// writing each into the book in arrival order, without otherwise
// advancing the schedule. Exposed directly so callers can drive
// progress incrementally against a wall-clock bound (spec.md §5).
func (b *Book) Until(source QuoteSource, ts Timestamp) error {
	return b.until(source, ts)
}

func (b *Book) until(source QuoteSource, ts Timestamp) error {
	for {
		q, ok := source.Peek()
		if !ok || q.Timestamp > ts {
			return nil
		}
		q, _ = source.Next()
		if err := b.Write(q); err != nil {
			return err
		}
	}
}

// effectiveSchedule returns the Periods Run should drive, splicing
// SnapshotGap-sized Snapshot boundaries into every ContinuousTrading
// period and appending a terminal Snapshot after every CallAuction
// period, per spec.md §4.7. The stored Schedule is read, never
// written: the splice lives only in the slice returned here.
func (b *Book) effectiveSchedule() []Period {
	out := make([]Period, 0, len(b.schedule.Periods))
	for _, p := range b.schedule.Periods {
		if b.cfg.SnapshotGap <= 0 {
			out = append(out, p)
			continue
		}
		if p.Status == CallAuction {
			out = append(out, p)
			out = append(out, Period{Status: Snapshot, Start: p.End, End: p.End})
			continue
		}
		if p.Status != ContinuousTrading {
			out = append(out, p)
			continue
		}
		cursor := p.Start
		gap := Timestamp(b.cfg.SnapshotGap)
		for cursor < p.End {
			next := cursor + gap
			if next > p.End {
				next = p.End
			}
			out = append(out, Period{Status: ContinuousTrading, Start: cursor, End: next})
			out = append(out, Period{Status: Snapshot, Start: next, End: next})
			cursor = next
		}
	}
	return out
}
