package types

import "time"

// RiskMetrics summarizes the risk manager's day-scoped and session-scoped
// counters. Day-scoped fields are reset by an explicit ResetDailyStats call on
// the manager, never by wall-clock logic inside it.
type RiskMetrics struct {
	MaxDrawdown     float64 `yaml:"max_drawdown" json:"max_drawdown"`
	CurrentDrawdown float64 `yaml:"current_drawdown" json:"current_drawdown"`
	WinRate         float64 `yaml:"win_rate" json:"win_rate"`
	TotalTrades     int     `yaml:"total_trades" json:"total_trades"`
	WinningTrades   int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades    int     `yaml:"losing_trades" json:"losing_trades"`
	TotalPnL        float64 `yaml:"total_pnl" json:"total_pnl"`
	DailyPnL        float64 `yaml:"daily_pnl" json:"daily_pnl"`
	TradesToday     int     `yaml:"trades_today" json:"trades_today"`
	// MaxPositionSize is the largest quote-denominated position the current
	// balance permits under the configured position percentage cap.
	MaxPositionSize float64 `yaml:"max_position_size" json:"max_position_size"`
}

// TradeRecord is the closed-trade summary the risk manager accumulates for
// win-rate and daily P&L tracking.
type TradeRecord struct {
	Symbol     string       `yaml:"symbol" json:"symbol"`
	Side       PositionSide `yaml:"side" json:"side"`
	Size       float64      `yaml:"size" json:"size"`
	EntryPrice float64      `yaml:"entry_price" json:"entry_price"`
	ExitPrice  float64      `yaml:"exit_price" json:"exit_price"`
	PnL        float64      `yaml:"pnl" json:"pnl"`
	Reason     string       `yaml:"reason" json:"reason"`
	Time       time.Time    `yaml:"time" json:"time"`
}
