package feed

import (
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// klineServeFunc matches futures.WsKlineServe. Swappable for tests.
type klineServeFunc func(symbol, interval string, handler futures.WsKlineHandler, errHandler futures.ErrHandler) (doneC, stopC chan struct{}, err error)

// BinanceFeed streams completed klines from the Binance futures websocket.
// Partial (in-progress) bars are filtered out; only final bars reach the
// callbacks.
type BinanceFeed struct {
	*dispatcher

	mu       sync.Mutex
	symbols  []string
	interval string
	logger   *logger.Logger
	serve    klineServeFunc
	stops    []chan struct{}
	running  bool
}

// NewBinanceFeed creates a websocket kline feed for the given symbols.
func NewBinanceFeed(symbols []string, cfg config.DataFeedConfig, log *logger.Logger) *BinanceFeed {
	return &BinanceFeed{
		dispatcher: newDispatcher(cfg.QueueSize, log),
		symbols:    symbols,
		interval:   cfg.Interval,
		logger:     log,
		serve:      futures.WsKlineServe,
	}
}

// Start opens one websocket stream per symbol. If any stream fails to open,
// already-opened streams are torn down and the error is returned.
func (f *BinanceFeed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}

	if f.joined() {
		return errors.New(errors.ErrCodeFeedClosed, "feed is stopped and cannot be restarted")
	}

	for _, symbol := range f.symbols {
		_, stopC, err := f.serve(symbol, f.interval, f.handleKline, f.handleError)
		if err != nil {
			for _, stop := range f.stops {
				close(stop)
			}

			f.stops = nil

			return errors.Wrapf(errors.ErrCodeFeedConnectFailed, err,
				"failed to open kline stream for %s", symbol)
		}

		f.stops = append(f.stops, stopC)
	}

	f.running = true

	go f.pump()

	f.logger.Info("binance feed started",
		zap.Strings("symbols", f.symbols),
		zap.String("interval", f.interval))

	return nil
}

// Stop closes all streams and joins the delivery goroutine.
func (f *BinanceFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}

	for _, stop := range f.stops {
		close(stop)
	}

	f.stops = nil
	f.running = false

	return f.join()
}

// handleKline runs on the websocket read goroutine. It must not block, so
// delivery goes through the bounded queue.
func (f *BinanceFeed) handleKline(event *futures.WsKlineEvent) {
	if event == nil || !event.Kline.IsFinal {
		return
	}

	kline := event.Kline

	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		f.logger.Warn("unparseable kline, skipping", zap.String("symbol", kline.Symbol), zap.Error(err))

		return
	}

	high, _ := strconv.ParseFloat(kline.High, 64)
	low, _ := strconv.ParseFloat(kline.Low, 64)
	closePrice, _ := strconv.ParseFloat(kline.Close, 64)
	volume, _ := strconv.ParseFloat(kline.Volume, 64)

	f.enqueue(types.MarketData{
		Symbol: kline.Symbol,
		Time:   time.UnixMilli(kline.EndTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	})
}

func (f *BinanceFeed) handleError(err error) {
	f.logger.Error("binance websocket error", zap.Error(err))
}

// Ensure BinanceFeed implements Feed.
var _ Feed = (*BinanceFeed)(nil)
