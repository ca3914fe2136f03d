// Package risk enforces the account-level trading limits: position sizing,
// protective price levels, drawdown and daily loss caps, and the day trade
// budget. The manager is the only component allowed to veto a signal.
package risk

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// alertThreshold is the fraction of a limit at which a warning alert is
// raised before the limit actually rejects trades.
const alertThreshold = 0.8

// Manager tracks account risk state and validates every signal before it can
// become an order. Safe for concurrent use.
type Manager struct {
	mu  sync.Mutex
	cfg config.RiskConfig
	log *logger.Logger

	tradingEnabled    bool
	dailyStartBalance float64
	peakBalance       float64
	currentBalance    float64
	dailyPnL          float64
	totalPnL          float64
	currentDrawdown   float64
	maxDrawdown       float64
	tradesToday       int
	history           []types.TradeRecord
	alerts            []string
}

// NewManager creates a risk manager with trading enabled.
func NewManager(cfg config.RiskConfig, log *logger.Logger) *Manager {
	return &Manager{
		cfg:            cfg,
		log:            log,
		tradingEnabled: true,
	}
}

// UpdateAccountInfo refreshes the balance-derived risk state: peak balance,
// current and maximum drawdown, and the near-limit alerts.
func (m *Manager) UpdateAccountInfo(info *types.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentBalance = info.TotalWalletBalance

	if m.dailyStartBalance == 0 {
		m.dailyStartBalance = m.currentBalance
	}

	if m.currentBalance > m.peakBalance {
		m.peakBalance = m.currentBalance
	}

	if m.peakBalance > 0 {
		m.currentDrawdown = (m.peakBalance - m.currentBalance) / m.peakBalance
		m.maxDrawdown = math.Max(m.maxDrawdown, m.currentDrawdown)
	}

	m.checkRiskLimits()
}

// ValidateSignal decides whether a signal may proceed to execution. The
// checks run in order of severity: the kill switch, the day trade budget, the
// drawdown cap, and the daily loss cap.
func (m *Manager) ValidateSignal(signal *types.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.tradingEnabled {
		return errors.New(errors.ErrCodeTradingDisabled, "trading is disabled by the risk manager")
	}

	if m.tradesToday >= m.cfg.MaxTradesPerDay {
		return errors.Newf(errors.ErrCodeRiskRejected,
			"daily trade limit reached: %d", m.cfg.MaxTradesPerDay)
	}

	if m.currentDrawdown > m.cfg.MaxDrawdownPercentage {
		return errors.Newf(errors.ErrCodeRiskRejected,
			"current drawdown %.2f%% exceeds limit %.2f%%",
			m.currentDrawdown*100, m.cfg.MaxDrawdownPercentage*100)
	}

	if m.dailyStartBalance > 0 && m.dailyPnL < 0 {
		dailyLoss := math.Abs(m.dailyPnL) / m.dailyStartBalance
		if dailyLoss > m.cfg.MaxDailyLossPercentage {
			return errors.Newf(errors.ErrCodeRiskRejected,
				"daily loss %.2f%% exceeds limit %.2f%%",
				dailyLoss*100, m.cfg.MaxDailyLossPercentage*100)
		}
	}

	return nil
}

// CalculatePositionSize returns the quote-currency amount to commit to a
// signal: available balance scaled by the position cap and the signal
// strength, then clamped to the minimum size, a 95% available-balance
// ceiling, and the leverage limit.
func (m *Manager) CalculatePositionSize(signal *types.Signal, info *types.AccountInfo) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := info.AvailableBalance

	size := available * m.cfg.MaxPositionPercentage * signal.Strength
	size = math.Max(size, m.cfg.MinPositionSize)
	size = math.Min(size, available*0.95)
	size = math.Min(size, available*m.cfg.MaxLeverage)

	m.log.Info("calculated position size",
		zap.String("symbol", signal.Symbol),
		zap.Float64("size", size),
		zap.Float64("strength", signal.Strength),
		zap.Float64("available_balance", available))

	return size
}

// CalculateStopLoss returns the protective stop price for an entry:
// entry×(1−pct) for LONG, mirrored for SHORT.
func (m *Manager) CalculateStopLoss(entryPrice float64, side types.PositionSide) float64 {
	if side == types.PositionSideLong {
		return entryPrice * (1 - m.cfg.StopLossPercentage)
	}

	return entryPrice * (1 + m.cfg.StopLossPercentage)
}

// CalculateTakeProfit returns the profit target price for an entry:
// entry×(1+pct) for LONG, mirrored for SHORT.
func (m *Manager) CalculateTakeProfit(entryPrice float64, side types.PositionSide) float64 {
	if side == types.PositionSideLong {
		return entryPrice * (1 + m.cfg.TakeProfitPercentage)
	}

	return entryPrice * (1 - m.cfg.TakeProfitPercentage)
}

// ShouldForceClose reports whether a position has hit its stop loss or take
// profit boundary at the current price. Both boundaries are inclusive.
func (m *Manager) ShouldForceClose(position *types.Position, currentPrice float64) (bool, string) {
	if position.EntryPrice <= 0 {
		return false, ""
	}

	var pnlPct float64
	if position.Side == types.PositionSideLong {
		pnlPct = (currentPrice - position.EntryPrice) / position.EntryPrice
	} else {
		pnlPct = (position.EntryPrice - currentPrice) / position.EntryPrice
	}

	if pnlPct <= -m.cfg.StopLossPercentage {
		m.log.Warn("stop loss hit",
			zap.String("symbol", position.Symbol),
			zap.Float64("pnl_pct", pnlPct*100))

		return true, "stop_loss"
	}

	if pnlPct >= m.cfg.TakeProfitPercentage {
		m.log.Info("take profit hit",
			zap.String("symbol", position.Symbol),
			zap.Float64("pnl_pct", pnlPct*100))

		return true, "take_profit"
	}

	return false, ""
}

// RecordTrade appends a completed trade, charges it against the day budget,
// and folds its PnL into the daily and total totals.
func (m *Manager) RecordTrade(record types.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.Time.IsZero() {
		record.Time = time.Now()
	}

	m.history = append(m.history, record)
	m.tradesToday++
	m.dailyPnL += record.PnL
	m.totalPnL += record.PnL

	m.checkRiskLimits()

	m.log.Info("recorded trade",
		zap.String("symbol", record.Symbol),
		zap.Float64("pnl", record.PnL),
		zap.Int("trades_today", m.tradesToday))
}

// ResetDailyStats rolls the day over: the current balance becomes the new
// daily baseline and the day counters clear.
func (m *Manager) ResetDailyStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyStartBalance = m.currentBalance
	m.dailyPnL = 0
	m.tradesToday = 0
	m.alerts = nil

	m.log.Info("daily risk stats reset",
		zap.Float64("daily_start_balance", m.dailyStartBalance))
}

// EnableTrading lifts the kill switch.
func (m *Manager) EnableTrading() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tradingEnabled = true
	m.log.Info("trading enabled")
}

// DisableTrading sets the kill switch. Existing positions are handled by the
// engine's force-flatten sweep.
func (m *Manager) DisableTrading() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tradingEnabled = false
	m.log.Warn("trading disabled")
}

// TradingEnabled reports the kill switch state.
func (m *Manager) TradingEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tradingEnabled
}

// Metrics returns a snapshot of the aggregate risk metrics.
func (m *Manager) Metrics() types.RiskMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var winning int

	for _, trade := range m.history {
		if trade.PnL > 0 {
			winning++
		}
	}

	winRate := 0.0
	if len(m.history) > 0 {
		winRate = float64(winning) / float64(len(m.history))
	}

	return types.RiskMetrics{
		MaxDrawdown:     m.maxDrawdown,
		CurrentDrawdown: m.currentDrawdown,
		WinRate:         winRate,
		TotalTrades:     len(m.history),
		WinningTrades:   winning,
		LosingTrades:    len(m.history) - winning,
		TotalPnL:        m.totalPnL,
		DailyPnL:        m.dailyPnL,
		TradesToday:     m.tradesToday,
		MaxPositionSize: m.currentBalance * m.cfg.MaxPositionPercentage,
	}
}

// Alerts returns the currently active near-limit warnings.
func (m *Manager) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]string, len(m.alerts))
	copy(alerts, m.alerts)

	return alerts
}

// checkRiskLimits rebuilds the alert list, warning when any tracked limit is
// above 80% consumed. Caller holds the lock.
func (m *Manager) checkRiskLimits() {
	m.alerts = m.alerts[:0]

	if m.currentDrawdown > m.cfg.MaxDrawdownPercentage*alertThreshold {
		m.alerts = append(m.alerts, "drawdown approaching limit")
		m.log.Warn("drawdown approaching limit",
			zap.Float64("current_pct", m.currentDrawdown*100),
			zap.Float64("limit_pct", m.cfg.MaxDrawdownPercentage*100))
	}

	if m.dailyStartBalance > 0 && m.dailyPnL < 0 {
		dailyLoss := math.Abs(m.dailyPnL) / m.dailyStartBalance
		if dailyLoss > m.cfg.MaxDailyLossPercentage*alertThreshold {
			m.alerts = append(m.alerts, "daily loss approaching limit")
			m.log.Warn("daily loss approaching limit",
				zap.Float64("current_pct", dailyLoss*100),
				zap.Float64("limit_pct", m.cfg.MaxDailyLossPercentage*100))
		}
	}

	if float64(m.tradesToday) > float64(m.cfg.MaxTradesPerDay)*alertThreshold {
		m.alerts = append(m.alerts, "daily trade count approaching limit")
		m.log.Warn("daily trade count approaching limit",
			zap.Int("trades_today", m.tradesToday),
			zap.Int("limit", m.cfg.MaxTradesPerDay))
	}
}
