package exchange

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// MockConfig tunes the simulated venue.
type MockConfig struct {
	InitialBalance float64
	BasePrice      float64
	Latency        time.Duration
	Slippage       float64
	CommissionRate float64
	// FailureRate is the probability that CreateOrder rejects the order.
	FailureRate float64
	// Seed makes the connector deterministic. 0 seeds from the clock.
	Seed int64
}

type mockOrder struct {
	request        OrderRequest
	status         types.OrderStatus
	filledPrice    float64
	filledQuantity float64
	commission     float64
}

// MockConnector is an in-memory venue for simulation and tests. Market orders
// fill immediately at the current simulated price plus slippage; limit orders
// stay pending until their status is polled. All behavior is deterministic
// under a fixed seed.
type MockConnector struct {
	mu        sync.Mutex
	cfg       MockConfig
	logger    *logger.Logger
	rng       *rand.Rand
	balance   float64
	prices    map[string]float64
	orders    map[string]*mockOrder
	positions map[string]*types.Position
	nextID    int64
	closed    bool
}

// NewMockConnector creates a simulated venue seeded from cfg.
func NewMockConnector(cfg MockConfig, log *logger.Logger) *MockConnector {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 50000.0
	}

	return &MockConnector{
		cfg:       cfg,
		logger:    log,
		rng:       rand.New(rand.NewSource(seed)),
		balance:   cfg.InitialBalance,
		prices:    make(map[string]float64),
		orders:    make(map[string]*mockOrder),
		positions: make(map[string]*types.Position),
	}
}

// GetAccountInfo returns the simulated account state.
func (m *MockConnector) GetAccountInfo(ctx context.Context) (*types.AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	m.sleepLatency(ctx)

	var unrealized, margin float64

	for _, position := range m.positions {
		price := m.currentPrice(position.Symbol)
		unrealized += position.PnLAt(price, position.Size)
		margin += position.Margin
	}

	return &types.AccountInfo{
		TotalWalletBalance:         m.balance,
		AvailableBalance:           m.balance - margin,
		TotalUnrealizedPnL:         unrealized,
		TotalMarginBalance:         m.balance + unrealized,
		TotalPositionInitialMargin: margin,
		MaxWithdrawAmount:          m.balance - margin,
		Timestamp:                  time.Now(),
	}, nil
}

// GetPositions returns the simulated open positions repriced at the current
// simulated price.
func (m *MockConnector) GetPositions(ctx context.Context) ([]types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	m.sleepLatency(ctx)

	positions := make([]types.Position, 0, len(m.positions))

	for _, position := range m.positions {
		snapshot := *position
		price := m.currentPrice(snapshot.Symbol)
		snapshot.CurrentPrice = price
		snapshot.UnrealizedPnL = snapshot.PnLAt(price, snapshot.Size)
		snapshot.Percentage = snapshot.ReturnPercentageAt(price)
		snapshot.UpdatedAt = time.Now()

		positions = append(positions, snapshot)
	}

	return positions, nil
}

// CreateOrder places a simulated order. Failure injection happens before any
// state change, so a rejected order leaves the account untouched.
func (m *MockConnector) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	if req.Quantity <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidOrder, "order quantity must be greater than zero")
	}

	m.sleepLatency(ctx)

	if m.cfg.FailureRate > 0 && m.rng.Float64() < m.cfg.FailureRate {
		return nil, errors.Newf(errors.ErrCodeOrderRejected, "simulated rejection for %s order on %s", req.Side, req.Symbol)
	}

	m.nextID++
	venueOrderID := strconv.FormatInt(m.nextID, 10)

	order := &mockOrder{request: req, status: types.OrderStatusPending}
	m.orders[venueOrderID] = order

	if req.Type == types.OrderTypeMarket {
		m.fill(order, m.slippagePrice(req.Side, m.currentPrice(req.Symbol)))
	}

	return &OrderResponse{
		VenueOrderID:   venueOrderID,
		Status:         order.status,
		FilledPrice:    order.filledPrice,
		FilledQuantity: order.filledQuantity,
		Commission:     order.commission,
		Timestamp:      time.Now(),
	}, nil
}

// CancelOrder cancels a pending simulated order.
func (m *MockConnector) CancelOrder(ctx context.Context, symbol, venueOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	m.sleepLatency(ctx)

	order, ok := m.orders[venueOrderID]
	if !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", venueOrderID)
	}

	if order.status != types.OrderStatusPending {
		return errors.Newf(errors.ErrCodeOrderNotPending, "order %s is %s, not pending", venueOrderID, order.status)
	}

	order.status = types.OrderStatusCancelled

	return nil
}

// GetOrderStatus returns the simulated order status. Polling a pending limit
// order fills it at its limit price.
func (m *MockConnector) GetOrderStatus(ctx context.Context, symbol, venueOrderID string) (types.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.OrderStatusFailed, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	m.sleepLatency(ctx)

	order, ok := m.orders[venueOrderID]
	if !ok {
		return types.OrderStatusFailed, errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", venueOrderID)
	}

	if order.status == types.OrderStatusPending && order.request.Type == types.OrderTypeLimit {
		price := order.request.Price.TakeOr(m.currentPrice(order.request.Symbol))
		m.fill(order, price)
	}

	return order.status, nil
}

// GetMarketData returns a random-walk bar around the last simulated price.
func (m *MockConnector) GetMarketData(ctx context.Context, symbol string) (*types.MarketData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	m.sleepLatency(ctx)

	last := m.currentPrice(symbol)
	// Step the walk by up to ±0.1% per query.
	next := last * (1 + (m.rng.Float64()-0.5)*0.002)
	m.prices[symbol] = next

	high := last
	low := next

	if next > last {
		high = next
		low = last
	}

	return &types.MarketData{
		Symbol: symbol,
		Time:   time.Now(),
		Open:   last,
		High:   high,
		Low:    low,
		Close:  next,
		Volume: 100 + m.rng.Float64()*900,
	}, nil
}

// Close marks the connector closed and rejects all further calls.
func (m *MockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

// fill executes an order against the simulated book and updates the account
// and net position. Caller holds the lock.
func (m *MockConnector) fill(order *mockOrder, price float64) {
	req := order.request
	notional := price * req.Quantity
	commission := notional * m.cfg.CommissionRate

	order.status = types.OrderStatusFilled
	order.filledPrice = price
	order.filledQuantity = req.Quantity
	order.commission = commission
	m.balance -= commission

	position, exists := m.positions[req.Symbol]
	if !exists {
		side := types.PositionSideLong
		if req.Side == types.OrderSideSell {
			side = types.PositionSideShort
		}

		m.positions[req.Symbol] = &types.Position{
			Symbol:       req.Symbol,
			Side:         side,
			Size:         req.Quantity,
			EntryPrice:   price,
			CurrentPrice: price,
			Margin:       notional,
			UpdatedAt:    time.Now(),
		}

		return
	}

	increasing := (position.Side == types.PositionSideLong && req.Side == types.OrderSideBuy) ||
		(position.Side == types.PositionSideShort && req.Side == types.OrderSideSell)

	if increasing {
		position.EntryPrice = position.WeightedEntryPrice(req.Quantity, price)
		position.Size += req.Quantity
		position.Margin += notional
		position.UpdatedAt = time.Now()

		return
	}

	closeSize := req.Quantity
	if closeSize > position.Size {
		closeSize = position.Size
	}

	m.balance += position.PnLAt(price, closeSize)
	position.Size -= closeSize
	position.Margin = position.EntryPrice * position.Size
	position.UpdatedAt = time.Now()

	if position.Size <= 0 {
		delete(m.positions, req.Symbol)
	}

	if remainder := req.Quantity - closeSize; remainder > 0 {
		// Flip: the excess opens a new position on the other side.
		side := types.PositionSideLong
		if req.Side == types.OrderSideSell {
			side = types.PositionSideShort
		}

		m.positions[req.Symbol] = &types.Position{
			Symbol:       req.Symbol,
			Side:         side,
			Size:         remainder,
			EntryPrice:   price,
			CurrentPrice: price,
			Margin:       price * remainder,
			UpdatedAt:    time.Now(),
		}
	}
}

// slippagePrice applies adverse slippage: buys fill above the quote, sells
// below it.
func (m *MockConnector) slippagePrice(side types.OrderSide, price float64) float64 {
	if side == types.OrderSideBuy {
		return price * (1 + m.cfg.Slippage)
	}

	return price * (1 - m.cfg.Slippage)
}

// currentPrice returns the last simulated price for a symbol, seeding it from
// the base price on first use. Caller holds the lock.
func (m *MockConnector) currentPrice(symbol string) float64 {
	price, ok := m.prices[symbol]
	if !ok {
		price = m.cfg.BasePrice
		m.prices[symbol] = price
	}

	return price
}

// sleepLatency simulates venue round-trip time, cut short if the context is
// cancelled. Caller holds the lock.
func (m *MockConnector) sleepLatency(ctx context.Context) {
	if m.cfg.Latency <= 0 {
		return
	}

	timer := time.NewTimer(m.cfg.Latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Ensure MockConnector implements Connector.
var _ Connector = (*MockConnector)(nil)
