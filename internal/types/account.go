package types

import "time"

// AccountInfo represents the venue's view of the account. It is always
// refreshed from the exchange connector and never derived locally.
type AccountInfo struct {
	// TotalWalletBalance is the wallet balance excluding unrealized P&L.
	TotalWalletBalance float64 `yaml:"total_wallet_balance" json:"total_wallet_balance"`
	// AvailableBalance is the amount available for new exposure.
	AvailableBalance float64 `yaml:"available_balance" json:"available_balance"`
	// TotalUnrealizedPnL is the unrealized profit/loss across open positions.
	TotalUnrealizedPnL float64 `yaml:"total_unrealized_pnl" json:"total_unrealized_pnl"`
	// TotalMarginBalance is wallet balance plus unrealized P&L.
	TotalMarginBalance float64 `yaml:"total_margin_balance" json:"total_margin_balance"`
	// TotalPositionInitialMargin is the margin reserved for open positions.
	TotalPositionInitialMargin float64 `yaml:"total_position_initial_margin" json:"total_position_initial_margin"`
	// TotalOpenOrderInitialMargin is the margin reserved for open orders.
	TotalOpenOrderInitialMargin float64 `yaml:"total_open_order_initial_margin" json:"total_open_order_initial_margin"`
	// MaxWithdrawAmount is the amount withdrawable right now.
	MaxWithdrawAmount float64 `yaml:"max_withdraw_amount" json:"max_withdraw_amount"`
	Timestamp         time.Time `yaml:"timestamp" json:"timestamp"`
}
