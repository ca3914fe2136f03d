// Package exchange provides venue connectivity. A Connector is the single
// source of truth for account state and venue positions; everything above it
// treats the venue's answers as authoritative.
package exchange

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// OrderRequest is a venue-bound order instruction. Price is required for
// LIMIT orders and ignored for MARKET orders.
type OrderRequest struct {
	Symbol   string
	Side     types.OrderSide
	Type     types.OrderType
	Quantity float64
	Price    optional.Option[float64]
}

// OrderResponse is the venue's acknowledgement of a placed order.
type OrderResponse struct {
	// VenueOrderID is the venue-assigned identifier used for later
	// cancellation and status queries.
	VenueOrderID   string
	Status         types.OrderStatus
	FilledPrice    float64
	FilledQuantity float64
	Commission     float64
	Timestamp      time.Time
}

// Connector is the venue-facing surface. Implementations must be safe for
// concurrent use.
type Connector interface {
	// GetAccountInfo returns the venue's current view of the account.
	GetAccountInfo(ctx context.Context) (*types.AccountInfo, error)
	// GetPositions returns all open positions held at the venue.
	GetPositions(ctx context.Context) ([]types.Position, error)
	// CreateOrder places an order and returns the venue's acknowledgement.
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
	// CancelOrder cancels an open order by venue order id.
	CancelOrder(ctx context.Context, symbol, venueOrderID string) error
	// GetOrderStatus queries the current status of an order at the venue.
	GetOrderStatus(ctx context.Context, symbol, venueOrderID string) (types.OrderStatus, error)
	// GetMarketData returns the latest bar-shaped snapshot for a symbol.
	GetMarketData(ctx context.Context, symbol string) (*types.MarketData, error)
	// Close releases the connector's resources. A closed connector rejects
	// all further calls.
	Close() error
}

// New constructs the connector named by the configuration. An unknown name is
// a fatal configuration error rather than a silent fallback to the mock.
func New(cfg *config.Config, log *logger.Logger) (Connector, error) {
	switch cfg.Exchange.Name {
	case "binance":
		return NewBinanceConnector(cfg.Exchange, log), nil
	case "mock":
		return NewMockConnector(MockConfig{
			InitialBalance: cfg.Exchange.InitialBalance,
			BasePrice:      cfg.DataFeed.BasePrice,
			Latency:        cfg.Execution.SimulationLatency,
			Slippage:       cfg.Execution.SimulationSlippage,
			CommissionRate: cfg.Execution.CommissionRate,
			FailureRate:    1 - cfg.Execution.SuccessProbability,
			Seed:           cfg.Execution.Seed,
		}, log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedExchange,
			"unsupported exchange: %s", cfg.Exchange.Name)
	}
}
