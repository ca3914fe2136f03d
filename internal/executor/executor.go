// Package executor owns the order lifecycle. Every order moves
// CREATED -> PENDING -> {FILLED, FAILED, CANCELLED}; the pending map and the
// completed/failed lists are disjoint by order id, and the filled/failed
// callbacks fire exactly once per order.
package executor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/exchange"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// OrderCallback observes a terminal order outcome. Callbacks run on the
// executing goroutine and are panic-isolated.
type OrderCallback func(order types.Order, result types.ExecutionResult)

// Executor places orders either against a simulated book or through the
// exchange connector. Safe for concurrent use; distinct orders may execute
// concurrently.
type Executor struct {
	cfg       config.ExecutionConfig
	connector exchange.Connector
	log       *logger.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	pending   map[string]*types.Order
	venueIDs  map[string]string
	completed []types.Order
	failed    []types.Order

	filledCallback OrderCallback
	failedCallback OrderCallback
}

// NewExecutor creates an executor. The connector is only used in live mode;
// the simulated path never touches it.
func NewExecutor(cfg config.ExecutionConfig, connector exchange.Connector, log *logger.Logger) *Executor {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Executor{
		cfg:       cfg,
		connector: connector,
		log:       log,
		rng:       rand.New(rand.NewSource(seed)),
		pending:   make(map[string]*types.Order),
		venueIDs:  make(map[string]string),
	}
}

// SetCallbacks registers the terminal-outcome observers. Either may be nil.
func (e *Executor) SetCallbacks(filled, failed OrderCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.filledCallback = filled
	e.failedCallback = failed
}

// ExecuteSignal sizes a MARKET order from a BUY or SELL signal and executes
// it. positionSize is the quote-currency amount to commit; the base quantity
// is positionSize divided by the current price.
func (e *Executor) ExecuteSignal(ctx context.Context, signal *types.Signal, positionSize, currentPrice float64) (*types.ExecutionResult, error) {
	if currentPrice <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "current price must be positive, got %f", currentPrice)
	}

	var side types.OrderSide

	switch signal.Action {
	case types.SignalActionBuy:
		side = types.OrderSideBuy
	case types.SignalActionSell:
		side = types.OrderSideSell
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidSignal,
			"signal action %s cannot be executed directly", signal.Action)
	}

	order := types.Order{
		ID:           uuid.New().String(),
		Symbol:       signal.Symbol,
		Side:         side,
		Type:         types.OrderTypeMarket,
		Quantity:     positionSize / currentPrice,
		Price:        currentPrice,
		Status:       types.OrderStatusCreated,
		StopLoss:     optional.None[float64](),
		TakeProfit:   optional.None[float64](),
		Reason:       "strategy",
		StrategyName: signal.StrategyName,
		CreatedAt:    time.Now(),
	}

	return e.ExecuteOrder(ctx, order)
}

// ExecuteOrder runs one order to a terminal state and returns the outcome.
// The returned result mirrors what the callbacks observe. An error is
// returned only when the order never entered execution (validation or
// duplicate id); execution failures come back as an unsuccessful result.
func (e *Executor) ExecuteOrder(ctx context.Context, order types.Order) (*types.ExecutionResult, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := e.admit(&order); err != nil {
		return nil, err
	}

	e.log.Info("executing order",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Float64("quantity", order.Quantity),
		zap.Float64("price", order.Price),
		zap.Bool("simulation", e.cfg.SimulationMode))

	var result types.ExecutionResult
	if e.cfg.SimulationMode {
		result = e.executeSimulated(ctx, &order)
	} else {
		result = e.executeLive(ctx, &order)
	}

	e.finalize(order.ID, result)

	return &result, nil
}

// admit validates the transition into PENDING and registers the order. A
// duplicate id is rejected.
func (e *Executor) admit(order *types.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pending[order.ID]; exists {
		return errors.Newf(errors.ErrCodeInvalidOrder, "order %s is already executing", order.ID)
	}

	if err := order.Transition(types.OrderStatusPending); err != nil {
		return err
	}

	e.pending[order.ID] = order

	return nil
}

// finalize applies a terminal outcome exactly once. If the order left the
// pending map in the meantime (cancelled), the outcome is discarded.
func (e *Executor) finalize(orderID string, result types.ExecutionResult) {
	e.mu.Lock()

	order, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()

		return
	}

	delete(e.pending, orderID)
	delete(e.venueIDs, orderID)

	var callback OrderCallback

	if result.Success {
		if err := order.Transition(types.OrderStatusFilled); err != nil {
			e.mu.Unlock()
			e.log.Error("illegal fill transition", zap.String("order_id", orderID), zap.Error(err))

			return
		}

		order.FilledPrice = result.FilledPrice
		order.FilledQuantity = result.FilledQuantity
		order.Commission = result.Commission
		order.FilledAt = result.Timestamp
		e.completed = append(e.completed, *order)
		callback = e.filledCallback
	} else {
		if err := order.Transition(types.OrderStatusFailed); err != nil {
			e.mu.Unlock()
			e.log.Error("illegal failure transition", zap.String("order_id", orderID), zap.Error(err))

			return
		}

		e.failed = append(e.failed, *order)
		callback = e.failedCallback
	}

	snapshot := *order
	e.mu.Unlock()

	if result.Success {
		e.log.Info("order filled",
			zap.String("order_id", orderID),
			zap.Float64("filled_price", result.FilledPrice),
			zap.Float64("commission", result.Commission))
	} else {
		e.log.Error("order failed",
			zap.String("order_id", orderID),
			zap.String("error", result.ErrorMessage))
	}

	e.safeCallback(callback, snapshot, result)
}

// safeCallback invokes a callback, containing any panic.
func (e *Executor) safeCallback(cb OrderCallback, order types.Order, result types.ExecutionResult) {
	if cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("order callback panicked",
				zap.String("order_id", order.ID),
				zap.Any("panic", r))
		}
	}()

	cb(order, result)
}

// executeSimulated fills the order against a synthetic book: fixed latency,
// adverse slippage, a commission charge, and a seeded success probability.
func (e *Executor) executeSimulated(ctx context.Context, order *types.Order) types.ExecutionResult {
	if e.cfg.SimulationLatency > 0 {
		timer := time.NewTimer(e.cfg.SimulationLatency)

		select {
		case <-ctx.Done():
			timer.Stop()

			return types.ExecutionResult{
				OrderID:      order.ID,
				ErrorMessage: ctx.Err().Error(),
				Timestamp:    time.Now(),
			}
		case <-timer.C:
		}
	}

	var filledPrice float64
	if order.Side == types.OrderSideBuy {
		filledPrice = order.Price * (1 + e.cfg.SimulationSlippage)
	} else {
		filledPrice = order.Price * (1 - e.cfg.SimulationSlippage)
	}

	commission := order.Quantity * filledPrice * e.cfg.CommissionRate

	e.mu.Lock()
	succeeded := e.rng.Float64() < e.cfg.SuccessProbability
	e.mu.Unlock()

	if !succeeded {
		return types.ExecutionResult{
			OrderID:      order.ID,
			ErrorMessage: "simulated execution failure",
			Timestamp:    time.Now(),
		}
	}

	return types.ExecutionResult{
		Success:        true,
		OrderID:        order.ID,
		FilledPrice:    filledPrice,
		FilledQuantity: order.Quantity,
		Commission:     commission,
		Timestamp:      time.Now(),
	}
}

// executeLive places the order through the connector with bounded retries.
// Each attempt runs under its own timeout; a timed-out attempt counts as a
// failure here, and the venue's true outcome is left to reconciliation.
// Only transient venue failures are retried; a permanent rejection fails the
// order on the first attempt.
func (e *Executor) executeLive(ctx context.Context, order *types.Order) types.ExecutionResult {
	request := exchange.OrderRequest{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Type:     order.Type,
		Quantity: order.Quantity,
	}
	if order.Type == types.OrderTypeLimit {
		request.Price = optional.Some(order.Price)
	}

	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxRetryCount; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
		response, err := e.connector.CreateOrder(attemptCtx, request)

		cancel()

		if err == nil {
			result := e.awaitFill(ctx, order, response)
			if result.Success {
				return result
			}

			lastErr = errors.New(errors.ErrCodeOrderFailed, result.ErrorMessage)
		} else {
			lastErr = err

			if !errors.IsTransient(err) {
				e.log.Error("order rejected with a permanent venue error",
					zap.String("order_id", order.ID),
					zap.Int("attempt", attempt),
					zap.Error(err))

				return types.ExecutionResult{
					OrderID:      order.ID,
					ErrorMessage: errors.Wrap(errors.ErrCodeOrderRejected, "order rejected by the venue", err).Error(),
					Timestamp:    time.Now(),
				}
			}

			e.log.Warn("transient order attempt failed",
				zap.String("order_id", order.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", e.cfg.MaxRetryCount),
				zap.Error(err))
		}

		if ctx.Err() != nil {
			break
		}

		if attempt < e.cfg.MaxRetryCount {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.RetryDelay):
			}
		}
	}

	return types.ExecutionResult{
		OrderID:      order.ID,
		ErrorMessage: errors.Wrapf(errors.ErrCodeRetriesExhausted, lastErr, "order failed after %d attempts", e.cfg.MaxRetryCount).Error(),
		Timestamp:    time.Now(),
	}
}

// awaitFill resolves a venue acknowledgement into a terminal outcome,
// polling a still-pending order until the order timeout elapses.
func (e *Executor) awaitFill(ctx context.Context, order *types.Order, response *exchange.OrderResponse) types.ExecutionResult {
	e.mu.Lock()
	e.venueIDs[order.ID] = response.VenueOrderID
	e.mu.Unlock()

	status := response.Status
	deadline := time.Now().Add(e.cfg.OrderTimeout)

	for status == types.OrderStatusPending && time.Now().Before(deadline) && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.RetryDelay):
		}

		polled, err := e.connector.GetOrderStatus(ctx, order.Symbol, response.VenueOrderID)
		if err != nil {
			e.log.Warn("order status poll failed",
				zap.String("order_id", order.ID),
				zap.Error(err))

			continue
		}

		status = polled
	}

	switch status {
	case types.OrderStatusFilled:
		filledPrice := response.FilledPrice
		if filledPrice <= 0 {
			filledPrice = order.Price
		}

		filledQuantity := response.FilledQuantity
		if filledQuantity <= 0 {
			filledQuantity = order.Quantity
		}

		return types.ExecutionResult{
			Success:        true,
			OrderID:        order.ID,
			FilledPrice:    filledPrice,
			FilledQuantity: filledQuantity,
			Commission:     response.Commission,
			Timestamp:      time.Now(),
		}
	case types.OrderStatusCancelled:
		return types.ExecutionResult{
			OrderID:      order.ID,
			ErrorMessage: "order cancelled at the venue",
			Timestamp:    time.Now(),
		}
	default:
		return types.ExecutionResult{
			OrderID:      order.ID,
			ErrorMessage: "order not filled within timeout",
			Timestamp:    time.Now(),
		}
	}
}

// CancelOrder cancels a pending order. In live mode the venue is told first;
// locally the order leaves the pending map so the in-flight execution
// discards its outcome.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) error {
	e.mu.Lock()
	order, ok := e.pending[orderID]

	if !ok {
		e.mu.Unlock()

		return errors.Newf(errors.ErrCodeOrderNotFound, "no pending order %s", orderID)
	}

	venueID := e.venueIDs[orderID]
	symbol := order.Symbol
	e.mu.Unlock()

	if !e.cfg.SimulationMode && venueID != "" {
		if err := e.connector.CancelOrder(ctx, symbol, venueID); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok = e.pending[orderID]
	if !ok {
		// Filled or failed while we were talking to the venue.
		return errors.Newf(errors.ErrCodeOrderNotPending, "order %s already reached a terminal state", orderID)
	}

	if err := order.Transition(types.OrderStatusCancelled); err != nil {
		return err
	}

	delete(e.pending, orderID)
	delete(e.venueIDs, orderID)
	e.log.Info("order cancelled", zap.String("order_id", orderID))

	return nil
}

// OrderStatus looks an order up across the pending, completed, and failed
// sets.
func (e *Executor) OrderStatus(orderID string) (types.OrderStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if order, ok := e.pending[orderID]; ok {
		return order.Status, true
	}

	for i := range e.completed {
		if e.completed[i].ID == orderID {
			return e.completed[i].Status, true
		}
	}

	for i := range e.failed {
		if e.failed[i].ID == orderID {
			return e.failed[i].Status, true
		}
	}

	return "", false
}

// PendingOrders returns copies of the orders currently executing.
func (e *Executor) PendingOrders() []types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]types.Order, 0, len(e.pending))
	for _, order := range e.pending {
		orders = append(orders, *order)
	}

	return orders
}

// CompletedOrders returns copies of the filled orders.
func (e *Executor) CompletedOrders() []types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]types.Order, len(e.completed))
	copy(orders, e.completed)

	return orders
}

// FailedOrders returns copies of the failed orders.
func (e *Executor) FailedOrders() []types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]types.Order, len(e.failed))
	copy(orders, e.failed)

	return orders
}

// Statistics summarizes execution outcomes.
func (e *Executor) Statistics() types.ExecutionStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := len(e.completed) + len(e.failed)

	successRate := 0.0
	if total > 0 {
		successRate = float64(len(e.completed)) / float64(total)
	}

	var totalCommission float64
	for _, order := range e.completed {
		totalCommission += order.Commission
	}

	return types.ExecutionStatistics{
		TotalOrders:     total,
		CompletedOrders: len(e.completed),
		FailedOrders:    len(e.failed),
		PendingOrders:   len(e.pending),
		SuccessRate:     successRate,
		TotalCommission: totalCommission,
		SimulationMode:  e.cfg.SimulationMode,
	}
}

// CleanupOldOrders drops completed and failed records older than maxAge,
// bounding memory over a long session.
func (e *Executor) CleanupOldOrders(maxAge time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)

	kept := e.completed[:0]

	for _, order := range e.completed {
		if order.CreatedAt.After(cutoff) {
			kept = append(kept, order)
		}
	}

	e.completed = kept

	keptFailed := e.failed[:0]

	for _, order := range e.failed {
		if order.CreatedAt.After(cutoff) {
			keptFailed = append(keptFailed, order)
		}
	}

	e.failed = keptFailed
}
