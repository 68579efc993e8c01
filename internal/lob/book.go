package lob

import (
	"math"
	"math/rand"

	gocache "github.com/patrickmn/go-cache"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	lerrors "github.com/abdoElHodaky/lobengine/pkg/errors"
)

// Config holds the options spec.md §6 recognizes for a Book.
type Config struct {
	// DecimalPlaces sets scale = 10^n for price quantization. Default 2.
	DecimalPlaces int
	// SnapshotGap, if > 0, auto-splices periodic snapshots into every
	// continuous-trading schedule interval (nanoseconds).
	SnapshotGap int64
	// TopK is the depth of bid/ask arrays in Tick records. Default 5.
	TopK int
	// Seed deterministically seeds the treap's priority source so replays
	// are reproducible. Two books constructed with the same seed and fed
	// the same quote stream produce byte-identical transaction and tick
	// streams.
	Seed int64
	// Logger receives phase transitions, rejected quotes, and call-auction
	// results. Defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics, if non-nil, is updated on every trade/tick. Optional.
	Metrics *Metrics
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.DecimalPlaces == 0 {
		out.DecimalPlaces = 2
	}
	if out.TopK == 0 {
		out.TopK = 5
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return &out
}

// Book is the price-time-priority matching engine for a single
// instrument. It is not thread-safe: a single owning goroutine must drive
// Write/Match*/Run to completion, one call at a time.
type Book struct {
	cfg   Config
	scale int64

	bid *sideBook
	ask *sideBook

	orders map[OrderID]*Order

	status     TradingStatus
	schedule   Schedule
	startOfDay Timestamp
	startSet   bool

	transactions []Transaction
	ticks        []Tick
	accum        tickAccumulator

	rng    *rand.Rand
	logger *zap.Logger
	metrics *Metrics
	cache  *gocache.Cache
}

// NewBook constructs a fresh Book from cfg.
func NewBook(cfg Config) *Book {
	cfg = *cfg.withDefaults()
	b := &Book{}
	b.init(cfg)
	return b
}

func (b *Book) init(cfg Config) {
	b.cfg = cfg
	b.scale = pow10(cfg.DecimalPlaces)
	b.rng = rand.New(rand.NewSource(cfg.Seed))
	b.bid = newSideBook(Bid, b.rng)
	b.ask = newSideBook(Ask, b.rng)
	b.orders = make(map[OrderID]*Order)
	b.status = Closed
	b.transactions = nil
	b.ticks = nil
	b.accum = newTickAccumulator()
	b.logger = cfg.Logger
	b.metrics = cfg.Metrics
	b.cache = gocache.New(0, 0)
	b.startSet = false
}

// Clear drops all state to a fresh-book state: both side books, the order
// index, OHLCV accumulators, the transaction log, and the tick log. This
// resolves spec.md §9 Open Question 2 in favor of a total reset.
func (b *Book) Clear() {
	b.init(b.cfg)
}

func pow10(n int) int64 {
	out := int64(1)
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}

// ScalePrice converts a human decimal price into the book's scaled
// integer representation, rounding half-away-from-zero (spec.md §9
// design note on the CSV loader's historical downward bias).
func (b *Book) ScalePrice(p float64) Price {
	scaled := p * float64(b.scale)
	if scaled >= 0 {
		return Price(math.Floor(scaled + 0.5))
	}
	return Price(math.Ceil(scaled - 0.5))
}

// RealPrice converts a scaled integer price back to a human float, for
// presentation only.
func (b *Book) RealPrice(p Price) float64 {
	return float64(p) / float64(b.scale)
}

func (b *Book) sideBookFor(s Side) *sideBook {
	if s == Bid {
		return b.bid
	}
	return b.ask
}

// newCorrelationID stamps a time-sortable id onto an accepted quote, for
// log correlation only; it has no bearing on matching semantics.
func (b *Book) newCorrelationID() string {
	return ksuid.New().String()
}

// observeStart derives start-of-day from the first quote's timestamp,
// floored to the day boundary, per spec.md §6.
func (b *Book) observeStart(ts Timestamp) {
	if b.startSet {
		return
	}
	const nsPerDay = int64(24 * 60 * 60 * 1e9)
	b.startOfDay = Timestamp((int64(ts) / nsPerDay) * nsPerDay)
	b.startSet = true
}

// Status returns the book's current trading phase.
func (b *Book) Status() TradingStatus { return b.status }

// SetStatus sets the book's current trading phase directly (used by
// tests and by the scheduler).
func (b *Book) SetStatus(status TradingStatus) {
	b.status = status
}

// SetSchedule installs the phase schedule Run will drive.
func (b *Book) SetSchedule(schedule Schedule) {
	b.schedule = schedule
}

// Transactions returns the append-only transaction log.
func (b *Book) Transactions() []Transaction {
	return b.transactions
}

// Ticks returns the emitted tick log.
func (b *Book) Ticks() []Tick {
	return b.ticks
}

func (b *Book) rejectInvalidInput(msg string) error {
	b.logger.Warn("rejected quote", zap.String("reason", msg))
	b.metrics.observeRejected(string(lerrors.InvalidInput))
	return lerrors.New(lerrors.InvalidInput, msg)
}

func (b *Book) rejectInvalidStatus(msg string) error {
	b.logger.Warn("rejected quote", zap.String("reason", msg))
	b.metrics.observeRejected(string(lerrors.InvalidStatus))
	return lerrors.New(lerrors.InvalidStatus, msg)
}
