package feed

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// MockFeed emits random-walk bars on a ticker. Deterministic under a fixed
// seed, so simulations and tests can replay the same price path.
type MockFeed struct {
	*dispatcher

	mu       sync.Mutex
	symbols  []string
	interval time.Duration
	logger   *logger.Logger

	// priceMu guards the walk state, separately from the lifecycle lock so
	// Stop can join the ticker goroutine without deadlocking it.
	priceMu  sync.Mutex
	rng      *rand.Rand
	prices   map[string]float64
	stopC    chan struct{}
	tickDone chan struct{}
	running  bool
}

// NewMockFeed creates a random-walk feed for the given symbols.
func NewMockFeed(symbols []string, cfg config.DataFeedConfig, log *logger.Logger) *MockFeed {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	basePrice := cfg.BasePrice
	if basePrice <= 0 {
		basePrice = 50000.0
	}

	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		prices[symbol] = basePrice
	}

	return &MockFeed{
		dispatcher: newDispatcher(cfg.QueueSize, log),
		symbols:    symbols,
		interval:   cfg.UpdateInterval,
		logger:     log,
		rng:        rand.New(rand.NewSource(seed)),
		prices:     prices,
	}
}

// Start begins emitting bars on the configured interval.
func (f *MockFeed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}

	if f.joined() {
		return errors.New(errors.ErrCodeFeedClosed, "feed is stopped and cannot be restarted")
	}

	f.stopC = make(chan struct{})
	f.tickDone = make(chan struct{})
	f.running = true

	go f.pump()
	go f.tick()

	f.logger.Info("mock feed started",
		zap.Strings("symbols", f.symbols),
		zap.Duration("interval", f.interval))

	return nil
}

// Stop halts the ticker and joins the delivery goroutine.
func (f *MockFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}

	close(f.stopC)
	<-f.tickDone
	f.running = false

	return f.join()
}

// tick emits one bar per symbol per interval until stopped.
func (f *MockFeed) tick() {
	defer close(f.tickDone)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopC:
			return
		case now := <-ticker.C:
			for _, symbol := range f.symbols {
				f.enqueue(f.nextBar(symbol, now))
			}
		}
	}
}

// nextBar steps the random walk for one symbol. Each step moves the price by
// up to ±0.2%.
func (f *MockFeed) nextBar(symbol string, now time.Time) types.MarketData {
	f.priceMu.Lock()
	defer f.priceMu.Unlock()

	last := f.prices[symbol]
	next := last * (1 + (f.rng.Float64()-0.5)*0.004)
	f.prices[symbol] = next

	high := last
	low := next

	if next > last {
		high = next
		low = last
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   now,
		Open:   last,
		High:   high,
		Low:    low,
		Close:  next,
		Volume: 100 + f.rng.Float64()*900,
	}
}

// Ensure MockFeed implements Feed.
var _ Feed = (*MockFeed)(nil)
