// Package position tracks net open exposure per symbol. The manager holds the
// local view; the venue's answer always wins when the two disagree, and the
// engine reconciles them periodically.
package position

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// Status summarizes the manager for monitoring and the final snapshot.
type Status struct {
	ActivePositions    int              `json:"active_positions" yaml:"active_positions"`
	MaxPositions       int              `json:"max_positions" yaml:"max_positions"`
	TotalUnrealizedPnL float64          `json:"total_unrealized_pnl" yaml:"total_unrealized_pnl"`
	TotalRealizedPnL   float64          `json:"total_realized_pnl" yaml:"total_realized_pnl"`
	Positions          []types.Position `json:"positions" yaml:"positions"`
	HistoryCount       int              `json:"history_count" yaml:"history_count"`
}

// Manager owns the live position map and the closed-position history. Safe
// for concurrent use.
type Manager struct {
	mu        sync.Mutex
	cfg       config.PositionConfig
	log       *logger.Logger
	positions map[string]*types.Position
	history   []types.Position
}

// NewManager creates an empty position manager.
func NewManager(cfg config.PositionConfig, log *logger.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       log,
		positions: make(map[string]*types.Position),
	}
}

// Has reports whether the symbol carries open exposure.
func (m *Manager) Has(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok := m.positions[symbol]

	return ok && position.IsOpen()
}

// Get returns a copy of the symbol's open position.
func (m *Manager) Get(symbol string) (types.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok := m.positions[symbol]
	if !ok || !position.IsOpen() {
		return types.Position{}, false
	}

	return *position, true
}

// All returns copies of every open position.
func (m *Manager) All() []types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := make([]types.Position, 0, len(m.positions))

	for _, position := range m.positions {
		if position.IsOpen() {
			positions = append(positions, *position)
		}
	}

	return positions
}

// CanOpenNew reports whether the concurrent-position cap allows another
// position.
func (m *Manager) CanOpenNew() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.openCount() < m.cfg.MaxPositions
}

// Open creates a position for the symbol, or adds to it when one already
// exists on the same side. An existing opposite-side position is an error:
// the caller must close it first, the manager never auto-flips.
func (m *Manager) Open(symbol string, side types.PositionSide, size, entryPrice float64, orderID string) (types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size <= 0 || entryPrice <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPosition,
			"position size and entry price must be positive, got size=%f price=%f", size, entryPrice)
	}

	if existing, ok := m.positions[symbol]; ok && existing.IsOpen() {
		if existing.Side != side {
			return types.Position{}, errors.Newf(errors.ErrCodePositionDirection,
				"%s holds a %s position, close it before opening %s", symbol, existing.Side, side)
		}

		return m.addLocked(existing, size, entryPrice)
	}

	if m.openCount() >= m.cfg.MaxPositions {
		return types.Position{}, errors.Newf(errors.ErrCodePositionLimit,
			"maximum concurrent positions reached: %d", m.cfg.MaxPositions)
	}

	position := &types.Position{
		Symbol:       symbol,
		Side:         side,
		Size:         size,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		Margin:       size * entryPrice,
		OrderID:      orderID,
		UpdatedAt:    time.Now(),
	}
	m.positions[symbol] = position

	m.log.Info("opened position",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("size", size),
		zap.Float64("entry_price", entryPrice))

	return *position, nil
}

// AddTo increases an existing position, recomputing the size-weighted average
// entry price.
func (m *Manager) AddTo(symbol string, size, price float64) (types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok := m.positions[symbol]
	if !ok || !position.IsOpen() {
		return types.Position{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	return m.addLocked(position, size, price)
}

func (m *Manager) addLocked(position *types.Position, size, price float64) (types.Position, error) {
	if size <= 0 || price <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPosition,
			"added size and price must be positive, got size=%f price=%f", size, price)
	}

	position.EntryPrice = position.WeightedEntryPrice(size, price)
	position.Size += size
	position.Margin += size * price
	position.UpdatedAt = time.Now()

	m.log.Info("added to position",
		zap.String("symbol", position.Symbol),
		zap.Float64("added_size", size),
		zap.Float64("price", price),
		zap.Float64("new_entry_price", position.EntryPrice))

	return *position, nil
}

// Reduce realizes PnL on part of a position. Reducing by the full size or
// more closes it.
func (m *Manager) Reduce(symbol string, size, price float64, reason string) (types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok := m.positions[symbol]
	if !ok || !position.IsOpen() {
		return types.Position{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	if size >= position.Size {
		return m.closeLocked(position, price, reason)
	}

	partialPnL := position.PnLAt(price, size)

	position.Size -= size
	position.Margin = position.EntryPrice * position.Size
	position.RealizedPnL += partialPnL
	position.UpdatedAt = time.Now()

	m.log.Info("reduced position",
		zap.String("symbol", symbol),
		zap.Float64("reduced_size", size),
		zap.Float64("price", price),
		zap.Float64("partial_pnl", partialPnL),
		zap.String("reason", reason))

	return *position, nil
}

// Close realizes the position's full PnL at the close price, appends the
// closed record to history, and zeroes the live entry. The zero-size entry
// stays in the map until CleanupExpired purges it.
func (m *Manager) Close(symbol string, closePrice float64, reason string) (types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok := m.positions[symbol]
	if !ok || !position.IsOpen() {
		return types.Position{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	return m.closeLocked(position, closePrice, reason)
}

func (m *Manager) closeLocked(position *types.Position, closePrice float64, reason string) (types.Position, error) {
	if closePrice <= 0 {
		closePrice = position.CurrentPrice
	}

	realized := position.RealizedPnL + position.PnLAt(closePrice, position.Size)

	closed := *position
	closed.CurrentPrice = closePrice
	closed.RealizedPnL = realized
	closed.UnrealizedPnL = 0
	closed.Percentage = closed.ReturnPercentageAt(closePrice)
	closed.UpdatedAt = time.Now()

	m.history = append(m.history, closed)

	position.Size = 0
	position.UnrealizedPnL = 0
	position.RealizedPnL = 0
	position.Margin = 0
	position.UpdatedAt = time.Now()

	m.log.Info("closed position",
		zap.String("symbol", closed.Symbol),
		zap.String("side", string(closed.Side)),
		zap.Float64("close_price", closePrice),
		zap.Float64("realized_pnl", realized),
		zap.String("reason", reason))

	return closed, nil
}

// UpdatePrice reprices one symbol's position, refreshing unrealized PnL and
// the return percentage without touching realized figures.
func (m *Manager) UpdatePrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok := m.positions[symbol]
	if !ok || !position.IsOpen() {
		return
	}

	position.CurrentPrice = price
	position.UnrealizedPnL = position.PnLAt(price, position.Size)
	position.Percentage = position.ReturnPercentageAt(price)
}

// UpdateAll reprices from a market data bar.
func (m *Manager) UpdateAll(bar types.MarketData) {
	m.UpdatePrice(bar.Symbol, bar.Close)
}

// Adopt replaces the live position map with the venue's view. Used at startup
// and by reconciliation; local history is preserved.
func (m *Manager) Adopt(positions []types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions = make(map[string]*types.Position, len(positions))

	for _, position := range positions {
		adopted := position
		if adopted.UpdatedAt.IsZero() {
			adopted.UpdatedAt = time.Now()
		}

		m.positions[position.Symbol] = &adopted
	}

	m.log.Info("adopted venue positions", zap.Int("count", len(positions)))
}

// TotalUnrealizedPnL sums unrealized PnL across open positions.
func (m *Manager) TotalUnrealizedPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64

	for _, position := range m.positions {
		if position.IsOpen() {
			total += position.UnrealizedPnL
		}
	}

	return total
}

// TotalRealizedPnL sums realized PnL across open positions and history.
func (m *Manager) TotalRealizedPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64

	for _, position := range m.positions {
		total += position.RealizedPnL
	}

	for _, position := range m.history {
		total += position.RealizedPnL
	}

	return total
}

// History returns copies of all closed positions.
func (m *Manager) History() []types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]types.Position, len(m.history))
	copy(history, m.history)

	return history
}

// CleanupExpired purges zero-size entries whose last update is older than the
// configured position timeout. Bounds the map without touching open
// positions.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.PositionTimeout)
	removed := 0

	for symbol, position := range m.positions {
		if !position.IsOpen() && position.UpdatedAt.Before(cutoff) {
			delete(m.positions, symbol)

			removed++

			m.log.Debug("purged expired position record", zap.String("symbol", symbol))
		}
	}

	return removed
}

// Status returns a monitoring snapshot.
func (m *Manager) Status() Status {
	positions := m.All()

	m.mu.Lock()
	defer m.mu.Unlock()

	var unrealized float64
	for _, position := range positions {
		unrealized += position.UnrealizedPnL
	}

	realized := 0.0

	for _, position := range m.positions {
		realized += position.RealizedPnL
	}

	for _, position := range m.history {
		realized += position.RealizedPnL
	}

	return Status{
		ActivePositions:    len(positions),
		MaxPositions:       m.cfg.MaxPositions,
		TotalUnrealizedPnL: unrealized,
		TotalRealizedPnL:   realized,
		Positions:          positions,
		HistoryCount:       len(m.history),
	}
}

func (m *Manager) openCount() int {
	count := 0

	for _, position := range m.positions {
		if position.IsOpen() {
			count++
		}
	}

	return count
}
