package types

import "time"

// ExecutionResult is the outcome of driving one order through execution,
// reported exactly once per order.
type ExecutionResult struct {
	Success        bool      `yaml:"success" json:"success"`
	OrderID        string    `yaml:"order_id" json:"order_id"`
	FilledPrice    float64   `yaml:"filled_price" json:"filled_price"`
	FilledQuantity float64   `yaml:"filled_quantity" json:"filled_quantity"`
	Commission     float64   `yaml:"commission" json:"commission"`
	ErrorMessage   string    `yaml:"error_message" json:"error_message"`
	Timestamp      time.Time `yaml:"timestamp" json:"timestamp"`
}

// ExecutionStatistics aggregates executor outcomes for status reporting and
// the shutdown snapshot.
type ExecutionStatistics struct {
	TotalOrders     int     `yaml:"total_orders" json:"total_orders"`
	CompletedOrders int     `yaml:"completed_orders" json:"completed_orders"`
	FailedOrders    int     `yaml:"failed_orders" json:"failed_orders"`
	PendingOrders   int     `yaml:"pending_orders" json:"pending_orders"`
	SuccessRate     float64 `yaml:"success_rate" json:"success_rate"`
	TotalCommission float64 `yaml:"total_commission" json:"total_commission"`
	SimulationMode  bool    `yaml:"simulation_mode" json:"simulation_mode"`
}
