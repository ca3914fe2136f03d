package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	pkgerrors "github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// barCollector accumulates delivered bars behind a lock.
type barCollector struct {
	mu   sync.Mutex
	bars []types.MarketData
}

func (c *barCollector) callback(bar types.MarketData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bars = append(c.bars, bar)
}

func (c *barCollector) snapshot() []types.MarketData {
	c.mu.Lock()
	defer c.mu.Unlock()

	bars := make([]types.MarketData, len(c.bars))
	copy(bars, c.bars)

	return bars
}

func (c *barCollector) waitForBars(t *testing.T, n int, timeout time.Duration) []types.MarketData {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if bars := c.snapshot(); len(bars) >= n {
			return bars
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %d bars, got %d", n, len(c.snapshot()))

	return nil
}

func testFeedConfig() config.DataFeedConfig {
	return config.DataFeedConfig{
		Source:         "mock",
		Interval:       "1m",
		UpdateInterval: 5 * time.Millisecond,
		QueueSize:      64,
		BasePrice:      100.0,
		Seed:           42,
	}
}

type MockFeedTestSuite struct {
	suite.Suite
}

func TestMockFeedSuite(t *testing.T) {
	suite.Run(t, new(MockFeedTestSuite))
}

func (suite *MockFeedTestSuite) TestDeliversBarsInOrder() {
	feed := NewMockFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())
	collector := &barCollector{}
	feed.SetCallback(collector.callback)

	suite.Require().NoError(feed.Start())
	defer func() { suite.Require().NoError(feed.Stop()) }()

	bars := collector.waitForBars(suite.T(), 5, 2*time.Second)

	for i, bar := range bars {
		suite.Equal("BTCUSDT", bar.Symbol)
		suite.Greater(bar.Close, 0.0)

		if i > 0 {
			// Each bar opens where the previous one closed.
			suite.InDelta(bars[i-1].Close, bar.Open, 1e-9)
			suite.False(bar.Time.Before(bars[i-1].Time))
		}
	}
}

func (suite *MockFeedTestSuite) TestDeterministicUnderSeed() {
	collect := func() []types.MarketData {
		feed := NewMockFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())
		collector := &barCollector{}
		feed.SetCallback(collector.callback)

		suite.Require().NoError(feed.Start())

		bars := collector.waitForBars(suite.T(), 5, 2*time.Second)
		suite.Require().NoError(feed.Stop())

		return bars[:5]
	}

	first := collect()
	second := collect()

	for i := range first {
		suite.InDelta(first[i].Close, second[i].Close, 1e-12)
	}
}

func (suite *MockFeedTestSuite) TestStartAndStopAreIdempotent() {
	feed := NewMockFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())

	suite.Require().NoError(feed.Start())
	suite.Require().NoError(feed.Start())
	suite.Require().NoError(feed.Stop())
	suite.Require().NoError(feed.Stop())
}

func (suite *MockFeedTestSuite) TestStartAfterStopReturnsError() {
	feed := NewMockFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())

	suite.Require().NoError(feed.Start())
	suite.Require().NoError(feed.Stop())

	// The delivery goroutine is gone; a restart would silently produce
	// nothing, so it is rejected instead.
	err := feed.Start()
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodeFeedClosed, pkgerrors.GetCode(err))
}

func (suite *MockFeedTestSuite) TestCallbackPanicDoesNotStopDelivery() {
	feed := NewMockFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())
	collector := &barCollector{}
	feed.AddCallback(func(types.MarketData) { panic("boom") })
	feed.AddCallback(collector.callback)

	suite.Require().NoError(feed.Start())
	defer func() { suite.Require().NoError(feed.Stop()) }()

	collector.waitForBars(suite.T(), 3, 2*time.Second)
}

func (suite *MockFeedTestSuite) TestSetCallbackReplacesExisting() {
	feed := NewMockFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())
	replaced := &barCollector{}
	kept := &barCollector{}
	feed.AddCallback(replaced.callback)
	feed.SetCallback(kept.callback)

	suite.Require().NoError(feed.Start())
	defer func() { suite.Require().NoError(feed.Stop()) }()

	kept.waitForBars(suite.T(), 2, 2*time.Second)
	suite.Empty(replaced.snapshot())
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	dispatcher := newDispatcher(1, logger.NewNopLogger())

	// No pump running: the second and third bars find the queue full.
	dispatcher.enqueue(types.MarketData{Symbol: "BTCUSDT"})
	dispatcher.enqueue(types.MarketData{Symbol: "BTCUSDT"})
	dispatcher.enqueue(types.MarketData{Symbol: "BTCUSDT"})

	assert.Equal(t, uint64(2), dispatcher.DroppedBars())
}

func TestDispatcherDrainsQueuedBarsOnJoin(t *testing.T) {
	dispatcher := newDispatcher(8, logger.NewNopLogger())
	collector := &barCollector{}
	dispatcher.AddCallback(collector.callback)

	dispatcher.enqueue(types.MarketData{Symbol: "BTCUSDT", Close: 1})
	dispatcher.enqueue(types.MarketData{Symbol: "BTCUSDT", Close: 2})

	go dispatcher.pump()
	require.NoError(t, dispatcher.join())

	bars := collector.snapshot()
	require.Len(t, bars, 2)
	assert.InDelta(t, 1.0, bars[0].Close, 1e-9)
	assert.InDelta(t, 2.0, bars[1].Close, 1e-9)
}

func TestBinanceFeedFiltersPartialBars(t *testing.T) {
	feed := NewBinanceFeed([]string{"BTCUSDT"}, testFeedConfig(), logger.NewNopLogger())

	var handler futures.WsKlineHandler

	feed.serve = func(symbol, interval string, h futures.WsKlineHandler, _ futures.ErrHandler) (chan struct{}, chan struct{}, error) {
		handler = h

		return make(chan struct{}), make(chan struct{}), nil
	}

	collector := &barCollector{}
	feed.SetCallback(collector.callback)

	require.NoError(t, feed.Start())
	defer func() { require.NoError(t, feed.Stop()) }()

	handler(&futures.WsKlineEvent{Kline: futures.WsKline{
		Symbol: "BTCUSDT", Open: "100", High: "101", Low: "99", Close: "100.5", Volume: "10",
		EndTime: time.Now().UnixMilli(), IsFinal: false,
	}})
	handler(&futures.WsKlineEvent{Kline: futures.WsKline{
		Symbol: "BTCUSDT", Open: "100.5", High: "102", Low: "100", Close: "101.5", Volume: "12",
		EndTime: time.Now().UnixMilli(), IsFinal: true,
	}})

	bars := collector.waitForBars(t, 1, 2*time.Second)
	require.Len(t, bars, 1)
	assert.InDelta(t, 101.5, bars[0].Close, 1e-9)
}

func TestBinanceFeedStartFailureClosesOpenedStreams(t *testing.T) {
	cfg := testFeedConfig()
	feed := NewBinanceFeed([]string{"BTCUSDT", "ETHUSDT"}, cfg, logger.NewNopLogger())

	firstStop := make(chan struct{})
	calls := 0

	feed.serve = func(symbol, interval string, _ futures.WsKlineHandler, _ futures.ErrHandler) (chan struct{}, chan struct{}, error) {
		calls++
		if calls == 1 {
			return make(chan struct{}), firstStop, nil
		}

		return nil, nil, assert.AnError
	}

	err := feed.Start()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ErrCodeFeedConnectFailed, pkgerrors.GetCode(err))

	select {
	case <-firstStop:
	default:
		t.Fatal("expected the opened stream to be closed after a partial start failure")
	}
}

func TestNewFeedFactory(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.DataFeed.Source = "mock"
	feed, err := New(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &MockFeed{}, feed)

	cfg.DataFeed.Source = "binance"
	feed, err = New(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &BinanceFeed{}, feed)

	cfg.DataFeed.Source = "csv"
	_, err = New(cfg, logger.NewNopLogger())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.ErrCodeUnsupportedFeed, pkgerrors.GetCode(err))
}
