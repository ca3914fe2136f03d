// Package feed delivers market data bars to registered callbacks. Delivery is
// at-least-once per completed bar and preserves arrival order per symbol.
package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// Callback receives one completed bar. Callbacks run on the feed's pump
// goroutine; a slow callback delays subsequent bars rather than reordering
// them.
type Callback func(bar types.MarketData)

// Feed is a source of completed market data bars.
type Feed interface {
	// Start begins producing bars. Starting a started feed is a no-op. Feeds
	// are one-shot: once stopped they cannot be restarted, and Start returns
	// an error.
	Start() error
	// Stop halts production and joins the delivery goroutine. Stopping a
	// stopped feed is a no-op. Stop is callable from any goroutine.
	Stop() error
	// AddCallback registers an additional callback.
	AddCallback(cb Callback)
	// SetCallback replaces all registered callbacks with one.
	SetCallback(cb Callback)
	// DroppedBars reports how many bars were discarded because the queue
	// was full.
	DroppedBars() uint64
}

// stopTimeout bounds how long Stop waits for the pump goroutine to drain.
const stopTimeout = 5 * time.Second

// dispatcher owns the bounded queue and the single pump goroutine that
// bridges producers into callback execution. Producers never block on slow
// callbacks: a full queue drops the bar and counts it.
type dispatcher struct {
	mu        sync.Mutex
	callbacks []Callback
	queue     chan types.MarketData
	quit      chan struct{}
	pumpDone  chan struct{}
	dropped   atomic.Uint64
	logger    *logger.Logger
}

func newDispatcher(queueSize int, log *logger.Logger) *dispatcher {
	return &dispatcher{
		queue:    make(chan types.MarketData, queueSize),
		quit:     make(chan struct{}),
		pumpDone: make(chan struct{}),
		logger:   log,
	}
}

func (d *dispatcher) AddCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callbacks = append(d.callbacks, cb)
}

func (d *dispatcher) SetCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callbacks = []Callback{cb}
}

func (d *dispatcher) DroppedBars() uint64 {
	return d.dropped.Load()
}

// enqueue offers a bar to the queue without blocking. Bars arriving while the
// queue is full are dropped; the consumer is expected to catch up from later
// bars.
func (d *dispatcher) enqueue(bar types.MarketData) {
	select {
	case d.queue <- bar:
	default:
		d.dropped.Add(1)
		d.logger.Warn("market data queue full, dropping bar",
			zap.String("symbol", bar.Symbol),
			zap.Time("bar_time", bar.Time),
			zap.Uint64("dropped_total", d.dropped.Load()))
	}
}

// pump delivers queued bars to every callback until quit, then drains what is
// already queued. Runs on its own goroutine. The queue channel is never
// closed, so a late producer can never panic on send.
func (d *dispatcher) pump() {
	defer close(d.pumpDone)

	for {
		select {
		case <-d.quit:
			for {
				select {
				case bar := <-d.queue:
					d.deliver(bar)
				default:
					return
				}
			}
		case bar := <-d.queue:
			d.deliver(bar)
		}
	}
}

// deliver fans one bar out to a snapshot of the registered callbacks.
func (d *dispatcher) deliver(bar types.MarketData) {
	d.mu.Lock()
	callbacks := make([]Callback, len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.mu.Unlock()

	for _, cb := range callbacks {
		d.invoke(cb, bar)
	}
}

// invoke runs one callback, containing any panic so a faulty consumer cannot
// take down the feed.
func (d *dispatcher) invoke(cb Callback, bar types.MarketData) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("market data callback panicked",
				zap.String("symbol", bar.Symbol),
				zap.Any("panic", r))
		}
	}()

	cb(bar)
}

// joined reports whether the pump has already been told to quit. A joined
// dispatcher delivers nothing; the owning feed cannot be restarted.
func (d *dispatcher) joined() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

// join signals the pump to drain and waits for it, bounded by stopTimeout.
func (d *dispatcher) join() error {
	close(d.quit)

	select {
	case <-d.pumpDone:
		return nil
	case <-time.After(stopTimeout):
		return errors.New(errors.ErrCodeFeedClosed, "timed out waiting for feed delivery to drain")
	}
}

// New constructs the feed named by the configuration. An unknown source is a
// fatal configuration error.
func New(cfg *config.Config, log *logger.Logger) (Feed, error) {
	switch cfg.DataFeed.Source {
	case "binance":
		return NewBinanceFeed(cfg.Trading.Symbols, cfg.DataFeed, log), nil
	case "mock":
		return NewMockFeed(cfg.Trading.Symbols, cfg.DataFeed, log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFeed,
			"unsupported data feed source: %s", cfg.DataFeed.Source)
	}
}
