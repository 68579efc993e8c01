package feed

import (
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobengine/internal/lob"
)

// TransactionSink receives every executed trade, downstream of the
// engine's own transaction log.
type TransactionSink interface {
	OnTransaction(lob.Transaction)
}

// TickSink receives every emitted snapshot tick.
type TickSink interface {
	OnTick(lob.Tick)
}

// Dispatcher fans Transaction/Tick records out to registered sinks on
// a bounded goroutine pool, so a slow or blocking sink never stalls
// the single-threaded engine that produced the record.
type Dispatcher struct {
	pool      *ants.Pool
	logger    *zap.Logger
	mu        sync.RWMutex
	txSinks   []TransactionSink
	tickSinks []TickSink
}

// NewDispatcher builds a Dispatcher backed by a pool of size workers.
func NewDispatcher(size int, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, logger: logger}, nil
}

// AddTransactionSink registers s to receive future transactions.
func (d *Dispatcher) AddTransactionSink(s TransactionSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txSinks = append(d.txSinks, s)
}

// AddTickSink registers s to receive future ticks.
func (d *Dispatcher) AddTickSink(s TickSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickSinks = append(d.tickSinks, s)
}

// DispatchTransaction submits tx to every registered TransactionSink.
// A full pool drops the delivery to that sink rather than blocking the
// caller, logging the drop.
func (d *Dispatcher) DispatchTransaction(tx lob.Transaction) {
	d.mu.RLock()
	sinks := d.txSinks
	d.mu.RUnlock()
	for _, sink := range sinks {
		sink := sink
		if err := d.pool.Submit(func() { sink.OnTransaction(tx) }); err != nil {
			d.logger.Warn("dropped transaction dispatch", zap.Error(err))
		}
	}
}

// DispatchTick submits tk to every registered TickSink.
func (d *Dispatcher) DispatchTick(tk lob.Tick) {
	d.mu.RLock()
	sinks := d.tickSinks
	d.mu.RUnlock()
	for _, sink := range sinks {
		sink := sink
		if err := d.pool.Submit(func() { sink.OnTick(tk) }); err != nil {
			d.logger.Warn("dropped tick dispatch", zap.Error(err))
		}
	}
}

// Close releases the underlying worker pool.
func (d *Dispatcher) Close() {
	d.pool.Release()
}
