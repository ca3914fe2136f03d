// Package engine is the composition root and scheduling core. It wires the
// connector, feed, strategy, risk manager, position manager, and executor
// together, serializes all per-symbol work through a busy slot, and runs the
// periodic reconciliation sweep.
package engine

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/exchange"
	"github.com/rxtech-lab/argo-live-trader/internal/executor"
	"github.com/rxtech-lab/argo-live-trader/internal/feed"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/position"
	"github.com/rxtech-lab/argo-live-trader/internal/risk"
	"github.com/rxtech-lab/argo-live-trader/internal/strategy"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// orderRetention bounds how long terminal order records are kept before the
// periodic sweep discards them.
const orderRetention = 24 * time.Hour

// StrategyStatus identifies the loaded strategy in status reports.
type StrategyStatus struct {
	Name string `json:"name" yaml:"name"`
}

// SystemStatus is a point-in-time view of the running system.
type SystemStatus struct {
	Running             bool                      `json:"running" yaml:"running"`
	LastUpdate          time.Time                 `json:"last_update" yaml:"last_update"`
	RiskMetrics         types.RiskMetrics         `json:"risk_metrics" yaml:"risk_metrics"`
	ExecutionStatistics types.ExecutionStatistics `json:"execution_statistics" yaml:"execution_statistics"`
	PositionStatus      position.Status           `json:"position_status" yaml:"position_status"`
	StrategyStatus      StrategyStatus            `json:"strategy_status" yaml:"strategy_status"`
}

// finalState is the JSON snapshot persisted on shutdown.
type finalState struct {
	Timestamp           time.Time                 `json:"timestamp"`
	RiskMetrics         types.RiskMetrics         `json:"risk_metrics"`
	ExecutionStatistics types.ExecutionStatistics `json:"execution_statistics"`
	PositionStatus      position.Status           `json:"position_status"`
	StrategyStatus      StrategyStatus            `json:"strategy_status"`
}

// Engine drives the live trading loop. All per-symbol mutation, whether
// triggered by a bar or by the reconciliation sweep, runs under that symbol's
// slot lock, so no two order executions for one symbol are ever in flight
// concurrently.
type Engine struct {
	cfg       *config.Config
	log       *logger.Logger
	connector exchange.Connector
	feed      feed.Feed
	strategy  strategy.Strategy
	risk      *risk.Manager
	positions *position.Manager
	executor  *executor.Executor

	mu         sync.Mutex
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	loopDone   chan struct{}
	lastUpdate time.Time

	slotMu sync.Mutex
	slots  map[string]*sync.Mutex
}

// New builds the whole system from configuration. Any component that fails to
// construct aborts startup.
func New(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	connector, err := exchange.New(cfg, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to build exchange connector", err)
	}

	marketFeed, err := feed.New(cfg, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to build market data feed", err)
	}

	strat, err := strategy.New(cfg.Strategy, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to build strategy", err)
	}

	return newEngine(cfg, log, connector, marketFeed, strat), nil
}

func newEngine(cfg *config.Config, log *logger.Logger, connector exchange.Connector, marketFeed feed.Feed, strat strategy.Strategy) *Engine {
	engine := &Engine{
		cfg:       cfg,
		log:       log,
		connector: connector,
		feed:      marketFeed,
		strategy:  strat,
		risk:      risk.NewManager(cfg.RiskManagement, log),
		positions: position.NewManager(cfg.PositionManagement, log),
		executor:  executor.NewExecutor(cfg.Execution, connector, log),
		ctx:       context.Background(),
		slots:     make(map[string]*sync.Mutex),
	}

	engine.executor.SetCallbacks(engine.onOrderFilled, engine.onOrderFailed)
	engine.feed.SetCallback(engine.onMarketData)

	return engine
}

// Start adopts venue state, starts the feed, and launches the periodic loop.
// Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.log.Warn("engine already running")

		return nil
	}

	e.ctx, e.cancel = context.WithCancel(ctx)

	// Venue truth outranks whatever local state a previous session left
	// behind: adopt open venue positions before processing the first bar.
	if !e.cfg.Execution.SimulationMode {
		venuePositions, err := e.connector.GetPositions(e.ctx)
		if err != nil {
			e.cancel()

			return errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to fetch venue positions", err)
		}

		e.positions.Adopt(venuePositions)
	}

	account, err := e.connector.GetAccountInfo(e.ctx)
	if err != nil {
		e.cancel()

		return errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to fetch account info", err)
	}

	e.risk.UpdateAccountInfo(account)
	e.risk.ResetDailyStats()

	if err := e.feed.Start(); err != nil {
		e.cancel()

		return errors.Wrap(errors.ErrCodeEngineInitFailed, "failed to start market data feed", err)
	}

	e.running = true
	e.loopDone = make(chan struct{})

	go e.loop(e.ctx, e.loopDone)

	e.log.Info("engine started",
		zap.Strings("symbols", e.cfg.Trading.Symbols),
		zap.String("strategy", e.strategy.Name()),
		zap.Bool("simulation", e.cfg.Execution.SimulationMode),
		zap.Float64("initial_balance", account.TotalWalletBalance))

	return nil
}

// Stop cancels the loop, stops the feed, closes the connector, and writes the
// final state snapshot. In-flight orders are left unresolved for operator
// handling. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()

	if !e.running {
		e.mu.Unlock()

		return nil
	}

	e.running = false
	e.cancel()
	loopDone := e.loopDone
	e.mu.Unlock()

	<-loopDone

	if err := e.feed.Stop(); err != nil {
		e.log.Error("failed to stop market data feed", zap.Error(err))
	}

	if err := e.connector.Close(); err != nil {
		e.log.Error("failed to close exchange connector", zap.Error(err))
	}

	if err := e.writeFinalState(); err != nil {
		e.log.Error("failed to write final state snapshot", zap.Error(err))
	}

	e.log.Info("engine stopped")

	return nil
}

// Running reports whether the engine has been started and not yet stopped.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running
}

// Status returns a point-in-time system snapshot.
func (e *Engine) Status() SystemStatus {
	e.mu.Lock()
	running := e.running
	lastUpdate := e.lastUpdate
	e.mu.Unlock()

	return SystemStatus{
		Running:             running,
		LastUpdate:          lastUpdate,
		RiskMetrics:         e.risk.Metrics(),
		ExecutionStatistics: e.executor.Statistics(),
		PositionStatus:      e.positions.Status(),
		StrategyStatus:      StrategyStatus{Name: e.strategy.Name()},
	}
}

// loop runs the periodic reconciliation sweep until the engine context is
// cancelled.
func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.Monitoring.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcile(ctx)
		}
	}
}

// reconcile refreshes account state from the venue, reprices and sweeps open
// positions, and purges expired records. Errors here are logged and left for
// the next sweep; the venue remains the source of truth.
func (e *Engine) reconcile(ctx context.Context) {
	account, err := e.connector.GetAccountInfo(ctx)
	if err != nil {
		e.log.Warn("account refresh failed", zap.Error(err))
	} else {
		e.risk.UpdateAccountInfo(account)
	}

	// In live mode the venue's position list replaces the local table. The
	// simulated path never reaches the connector, so its fills exist only
	// locally and adoption would erase them.
	if !e.cfg.Execution.SimulationMode {
		venuePositions, err := e.connector.GetPositions(ctx)
		if err != nil {
			e.log.Warn("position refresh failed", zap.Error(err))
		} else {
			e.positions.Adopt(venuePositions)
		}
	}

	e.sweepPositions(ctx)

	if removed := e.positions.CleanupExpired(); removed > 0 {
		e.log.Debug("purged expired position records", zap.Int("count", removed))
	}

	e.executor.CleanupOldOrders(orderRetention)
}

// sweepPositions reprices every open position and force-closes those that hit
// a risk boundary. When trading is disabled the whole book is flattened.
func (e *Engine) sweepPositions(ctx context.Context) {
	flattenAll := !e.risk.TradingEnabled()

	for _, pos := range e.positions.All() {
		slot := e.slot(pos.Symbol)
		slot.Lock()

		e.sweepOne(ctx, pos.Symbol, flattenAll)

		slot.Unlock()
	}
}

func (e *Engine) sweepOne(ctx context.Context, symbol string, flatten bool) {
	pos, ok := e.positions.Get(symbol)
	if !ok {
		return
	}

	bar, err := e.connector.GetMarketData(ctx, symbol)
	if err != nil {
		e.log.Warn("market data refresh failed",
			zap.String("symbol", symbol),
			zap.Error(err))

		return
	}

	e.positions.UpdatePrice(symbol, bar.Close)

	if flatten {
		e.closePosition(ctx, &pos, bar.Close, "trading_disabled")

		return
	}

	if force, reason := e.risk.ShouldForceClose(&pos, bar.Close); force {
		e.closePosition(ctx, &pos, bar.Close, reason)
	}
}

// onMarketData runs on the feed's pump goroutine. Processing happens inline
// under the symbol's slot: bars for one symbol are handled strictly in order.
func (e *Engine) onMarketData(bar types.MarketData) {
	e.mu.Lock()
	running := e.running
	ctx := e.ctx
	e.lastUpdate = time.Now()
	e.mu.Unlock()

	if !running {
		return
	}

	e.processBar(ctx, bar)
}

func (e *Engine) processBar(ctx context.Context, bar types.MarketData) {
	slot := e.slot(bar.Symbol)
	slot.Lock()
	defer slot.Unlock()

	e.positions.UpdateAll(bar)

	signal, err := e.strategy.OnMarketData(bar)
	if err != nil {
		e.log.Error("strategy error",
			zap.String("symbol", bar.Symbol),
			zap.Error(err))
	} else if signal != nil {
		e.processSignal(ctx, signal, bar)
	}

	// Risk boundaries are checked on every bar, not just on the periodic
	// sweep.
	if pos, ok := e.positions.Get(bar.Symbol); ok {
		if force, reason := e.risk.ShouldForceClose(&pos, bar.Close); force {
			e.closePosition(ctx, &pos, bar.Close, reason)
		}
	}
}

// processSignal runs validate, size, execute, apply for one signal. The
// caller holds the symbol slot. A risk rejection is logged and dropped, never
// propagated.
func (e *Engine) processSignal(ctx context.Context, signal *types.Signal, bar types.MarketData) {
	account, err := e.connector.GetAccountInfo(ctx)
	if err != nil {
		e.log.Error("account fetch failed, dropping signal",
			zap.String("symbol", signal.Symbol),
			zap.Error(err))

		return
	}

	e.risk.UpdateAccountInfo(account)

	if err := e.risk.ValidateSignal(signal); err != nil {
		e.log.Warn("signal rejected",
			zap.String("symbol", signal.Symbol),
			zap.String("action", string(signal.Action)),
			zap.Error(err))

		return
	}

	existing, hasPosition := e.positions.Get(signal.Symbol)

	if signal.Action == types.SignalActionClose {
		if hasPosition {
			e.closePosition(ctx, &existing, signal.Price, "strategy_close")
		}

		return
	}

	desired := types.PositionSideLong
	if signal.Action == types.SignalActionSell {
		desired = types.PositionSideShort
	}

	// A direction flip routes through flat: the opposite signal closes the
	// open position, and a later signal may open the other way.
	if hasPosition && existing.Side != desired {
		e.closePosition(ctx, &existing, signal.Price, "signal_reversal")

		return
	}

	if !hasPosition && !e.positions.CanOpenNew() {
		e.log.Warn("maximum concurrent positions reached, dropping signal",
			zap.String("symbol", signal.Symbol))

		return
	}

	positionSize := e.risk.CalculatePositionSize(signal, account)

	result, err := e.executor.ExecuteSignal(ctx, signal, positionSize, bar.Close)
	if err != nil {
		e.log.Error("signal execution rejected",
			zap.String("symbol", signal.Symbol),
			zap.Error(err))

		return
	}

	if !result.Success {
		e.log.Error("signal execution failed",
			zap.String("symbol", signal.Symbol),
			zap.String("error", result.ErrorMessage))

		return
	}

	e.applyFill(signal.Symbol, desired, result)
}

// applyFill folds a successful entry fill into the position table.
func (e *Engine) applyFill(symbol string, side types.PositionSide, result *types.ExecutionResult) {
	var err error
	if _, ok := e.positions.Get(symbol); ok {
		_, err = e.positions.AddTo(symbol, result.FilledQuantity, result.FilledPrice)
	} else {
		_, err = e.positions.Open(symbol, side, result.FilledQuantity, result.FilledPrice, result.OrderID)
	}

	if err != nil {
		e.log.Error("failed to apply fill to position table",
			zap.String("symbol", symbol),
			zap.Error(err))
	}
}

// closePosition executes a market order that flattens the position, then
// realizes the PnL and records the trade. The caller holds the symbol slot.
func (e *Engine) closePosition(ctx context.Context, pos *types.Position, closePrice float64, reason string) {
	side := types.OrderSideSell
	if pos.Side == types.PositionSideShort {
		side = types.OrderSideBuy
	}

	order := types.Order{
		ID:           uuid.New().String(),
		Symbol:       pos.Symbol,
		Side:         side,
		Type:         types.OrderTypeMarket,
		Quantity:     pos.Size,
		Price:        closePrice,
		Status:       types.OrderStatusCreated,
		StopLoss:     optional.None[float64](),
		TakeProfit:   optional.None[float64](),
		Reason:       reason,
		StrategyName: e.strategy.Name(),
		CreatedAt:    time.Now(),
	}

	result, err := e.executor.ExecuteOrder(ctx, order)
	if err != nil {
		e.log.Error("close order rejected",
			zap.String("symbol", pos.Symbol),
			zap.String("reason", reason),
			zap.Error(err))

		return
	}

	if !result.Success {
		e.log.Error("close order failed",
			zap.String("symbol", pos.Symbol),
			zap.String("reason", reason),
			zap.String("error", result.ErrorMessage))

		return
	}

	closed, err := e.positions.Close(pos.Symbol, result.FilledPrice, reason)
	if err != nil {
		e.log.Error("failed to close position record",
			zap.String("symbol", pos.Symbol),
			zap.Error(err))

		return
	}

	e.risk.RecordTrade(types.TradeRecord{
		Symbol:     closed.Symbol,
		Side:       closed.Side,
		Size:       closed.Size,
		EntryPrice: closed.EntryPrice,
		ExitPrice:  result.FilledPrice,
		PnL:        closed.RealizedPnL,
		Reason:     reason,
		Time:       time.Now(),
	})

	e.log.Info("position closed",
		zap.String("symbol", closed.Symbol),
		zap.String("reason", reason),
		zap.Float64("close_price", result.FilledPrice),
		zap.Float64("realized_pnl", closed.RealizedPnL))
}

func (e *Engine) onOrderFilled(order types.Order, result types.ExecutionResult) {
	e.log.Info("order filled",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("filled_quantity", result.FilledQuantity),
		zap.Float64("filled_price", result.FilledPrice))
}

func (e *Engine) onOrderFailed(order types.Order, result types.ExecutionResult) {
	e.log.Warn("order failed",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("error", result.ErrorMessage))
}

// slot returns the symbol's serialization lock, creating it on first use.
func (e *Engine) slot(symbol string) *sync.Mutex {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()

	slot, ok := e.slots[symbol]
	if !ok {
		slot = &sync.Mutex{}
		e.slots[symbol] = slot
	}

	return slot
}

// writeFinalState persists the shutdown snapshot.
func (e *Engine) writeFinalState() error {
	state := finalState{
		Timestamp:           time.Now(),
		RiskMetrics:         e.risk.Metrics(),
		ExecutionStatistics: e.executor.Statistics(),
		PositionStatus:      e.positions.Status(),
		StrategyStatus:      StrategyStatus{Name: e.strategy.Name()},
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotFailed, "failed to encode final state", err)
	}

	if err := os.WriteFile(e.cfg.Monitoring.StateFile, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "failed to write final state to %s", e.cfg.Monitoring.StateFile)
	}

	e.log.Info("final state written", zap.String("path", e.cfg.Monitoring.StateFile))

	return nil
}
