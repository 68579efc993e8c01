// Package feed supplies external collaborators for the engine: a CSV
// replay source implementing lob.QuoteSource, and a pooled dispatcher
// that fans out Transaction/Tick records to sinks. Neither is part of
// the matching core; both exist purely to drive and observe it.
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	validator "github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/gzip"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/abdoElHodaky/lobengine/internal/lob"
)

// Row is one parsed and validated CSV record, before conversion to a
// lob.Quote. Column order and the side/type encodings follow spec.md
// §6's external CSV format exactly: timestamp, uid, price, quantity,
// side, type.
type Row struct {
	Timestamp int64  `validate:"gte=0"`
	ID        uint64 `validate:"-"`
	Price     string `validate:"omitempty"`
	Qty       int64  `validate:"gt=0"`
	Side      int    `validate:"oneof=0 1"`
	Type      int    `validate:"oneof=0 1 2 3 4"`
}

var validate = validator.New()

// ParsePrice scales a decimal-text price using book's configured
// scale. Surrounding whitespace is trimmed, the text is parsed with
// shopspring/decimal, and the value is converted to float64 and rounded
// by Book.ScalePrice. Commas (thousands separators or decimal commas)
// are not accepted.
func ParsePrice(s string, book *lob.Book) (lob.Price, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("feed: invalid price %q: %w", s, err)
	}
	f, _ := d.Float64()
	return book.ScalePrice(f), nil
}

// side/type values follow the Side=0/1 and QuoteType=0..4 enumerations
// of spec.md §6, which happen to already match lob.Side/lob.QuoteType's
// iota ordering (Bid=0/Ask=1, LimitOrder=0..FillOrder=4).
func (r Row) toQuote(book *lob.Book) (lob.Quote, error) {
	q := lob.Quote{
		ID:        lob.OrderID(r.ID),
		Qty:       lob.Qty(r.Qty),
		Timestamp: lob.Timestamp(r.Timestamp),
		Side:      lob.Side(r.Side),
		Type:      lob.QuoteType(r.Type),
	}
	if r.Price != "" {
		price, err := ParsePrice(r.Price, book)
		if err != nil {
			return lob.Quote{}, err
		}
		q.Price = price
	}
	return q, nil
}

// CSVSource replays quotes from a CSV file (optionally gzip-compressed,
// by ".gz" extension) in file order, implementing lob.QuoteSource. It
// is the external-collaborator counterpart to spec.md §6's CSV format:
// the engine never reads files itself.
type CSVSource struct {
	book      *lob.Book
	reader    *csv.Reader
	closer    io.Closer
	hasher    hash.Hash
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	sessionID uuid.UUID
	logger    *zap.Logger

	pending   *lob.Quote
	exhausted bool
}

// Option configures a CSVSource at construction time.
type Option func(*CSVSource)

// WithRateLimiter paces Next/Peek reads against r, for wall-clock-paced
// replay instead of as-fast-as-possible.
func WithRateLimiter(r *rate.Limiter) Option {
	return func(s *CSVSource) { s.limiter = r }
}

// WithLogger attaches a logger for read/parse failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *CSVSource) { s.logger = l }
}

// NewCSVSource opens path (transparently gzip-decompressing a ".gz"
// suffix) and prepares it for replay against book. The header row, if
// present, is consumed and discarded.
func NewCSVSource(path string, book *lob.Book, opts ...Option) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", path, err)
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("feed: init hasher: %w", err)
	}
	var r io.Reader = io.TeeReader(f, hasher)

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("feed: gzip header %s: %w", path, err)
		}
		r = gz
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := &CSVSource{
		book:      book,
		reader:    cr,
		closer:    f,
		hasher:    hasher,
		sessionID: uuid.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "feed.csv",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("feed circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	if err := s.consumeOptionalHeader(); err != nil {
		f.Close()
		return nil, err
	}
	s.logger.Info("feed replay session opened",
		zap.String("path", path), zap.String("session_id", s.sessionID.String()))
	return s, nil
}

// consumeOptionalHeader reads the file's first record and decides
// whether it is a header or data, per spec.md §6's "header line
// optional": if the record parses and validates as a Row it is kept
// as the first pending quote; otherwise it is discarded as a header.
func (s *CSVSource) consumeOptionalHeader() error {
	record, err := s.reader.Read()
	if err == io.EOF {
		s.exhausted = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("feed: read first record: %w", err)
	}
	row, err := parseRecord(record)
	if err != nil {
		return nil // not a data row: treat as header, discard
	}
	if err := validate.Struct(&row); err != nil {
		return nil
	}
	q, err := row.toQuote(s.book)
	if err != nil {
		return nil
	}
	s.pending = &q
	return nil
}

// SessionID is a per-replay id attached to log lines, for correlating
// a single file's worth of quotes across a run.
func (s *CSVSource) SessionID() string { return s.sessionID.String() }

// FileDigest returns the blake2b-256 digest of every byte read so far.
// It is only a digest of the whole file once the source is fully
// drained (Peek/Next returns false), since the hash streams with the
// underlying reader.
func (s *CSVSource) FileDigest() string {
	return fmt.Sprintf("%x", s.hasher.Sum(nil))
}

// Close releases the underlying file handle.
func (s *CSVSource) Close() error { return s.closer.Close() }

func (s *CSVSource) fill() {
	if s.pending != nil || s.exhausted {
		return
	}
	if s.limiter != nil {
		_ = s.limiter.Wait(context.Background())
	}
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.reader.Read()
	})
	if err != nil {
		if err == io.EOF {
			s.exhausted = true
			return
		}
		s.logger.Error("feed read failed", zap.Error(err))
		s.exhausted = true
		return
	}
	record := result.([]string)
	row, err := parseRecord(record)
	if err != nil {
		s.logger.Error("feed parse failed", zap.Error(err), zap.Strings("record", record))
		s.exhausted = true
		return
	}
	if err := validate.Struct(&row); err != nil {
		s.logger.Error("feed row validation failed", zap.Error(err), zap.Strings("record", record))
		s.exhausted = true
		return
	}
	q, err := row.toQuote(s.book)
	if err != nil {
		s.logger.Error("feed row conversion failed", zap.Error(err), zap.Strings("record", record))
		s.exhausted = true
		return
	}
	s.pending = &q
}

// Peek implements lob.QuoteSource.
func (s *CSVSource) Peek() (lob.Quote, bool) {
	s.fill()
	if s.pending == nil {
		return lob.Quote{}, false
	}
	return *s.pending, true
}

// Next implements lob.QuoteSource.
func (s *CSVSource) Next() (lob.Quote, bool) {
	q, ok := s.Peek()
	if ok {
		s.pending = nil
	}
	return q, ok
}

// column order per spec.md §6: timestamp, uid, price, quantity, side, type.
func parseRecord(record []string) (Row, error) {
	if len(record) != 6 {
		return Row{}, fmt.Errorf("feed: expected 6 columns, got %d", len(record))
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("feed: invalid timestamp %q: %w", record[0], err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(record[1]), 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("feed: invalid uid %q: %w", record[1], err)
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("feed: invalid quantity %q: %w", record[3], err)
	}
	side, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil {
		return Row{}, fmt.Errorf("feed: invalid side %q: %w", record[4], err)
	}
	qtype, err := strconv.Atoi(strings.TrimSpace(record[5]))
	if err != nil {
		return Row{}, fmt.Errorf("feed: invalid type %q: %w", record[5], err)
	}
	return Row{
		Timestamp: ts,
		ID:        id,
		Price:     strings.TrimSpace(record[2]),
		Qty:       qty,
		Side:      side,
		Type:      qtype,
	}, nil
}
