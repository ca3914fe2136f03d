package exchange

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

const (
	// binanceQuantityPrecision is a default decimal precision for order
	// quantities. Production deployments should derive symbol-specific
	// precision from exchange info (LOT_SIZE, PRICE_FILTER).
	binanceQuantityPrecision = 8
)

// Service interfaces for mocking the Binance futures API.

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side futures.SideType) CreateOrderService
	Type(orderType futures.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif futures.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*futures.CreateOrderResponse, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*futures.CancelOrderResponse, error)
}

// GetOrderService interface for querying order status.
type GetOrderService interface {
	Symbol(symbol string) GetOrderService
	OrderID(orderID int64) GetOrderService
	Do(ctx context.Context) (*futures.Order, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*futures.Account, error)
}

// GetPositionRiskService interface for listing venue positions.
type GetPositionRiskService interface {
	Do(ctx context.Context) ([]*futures.PositionRisk, error)
}

// ListPriceChangeStatsService interface for 24h ticker statistics.
type ListPriceChangeStatsService interface {
	Symbol(symbol string) ListPriceChangeStatsService
	Do(ctx context.Context) ([]*futures.PriceChangeStats, error)
}

// FuturesClient abstracts the Binance futures client for testing.
type FuturesClient interface {
	NewCreateOrderService() CreateOrderService
	NewCancelOrderService() CancelOrderService
	NewGetOrderService() GetOrderService
	NewGetAccountService() GetAccountService
	NewGetPositionRiskService() GetPositionRiskService
	NewListPriceChangeStatsService() ListPriceChangeStatsService
}

// realFuturesClient wraps the actual futures.Client.
type realFuturesClient struct {
	client *futures.Client
}

func (r *realFuturesClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realFuturesClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realFuturesClient) NewGetOrderService() GetOrderService {
	return &realGetOrderService{service: r.client.NewGetOrderService()}
}

func (r *realFuturesClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realFuturesClient) NewGetPositionRiskService() GetPositionRiskService {
	return &realGetPositionRiskService{service: r.client.NewGetPositionRiskService()}
}

func (r *realFuturesClient) NewListPriceChangeStatsService() ListPriceChangeStatsService {
	return &realListPriceChangeStatsService{service: r.client.NewListPriceChangeStatsService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *futures.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif futures.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*futures.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *futures.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*futures.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetOrderService struct {
	service *futures.GetOrderService
}

func (s *realGetOrderService) Symbol(symbol string) GetOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realGetOrderService) OrderID(orderID int64) GetOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realGetOrderService) Do(ctx context.Context) (*futures.Order, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *futures.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*futures.Account, error) {
	return s.service.Do(ctx)
}

type realGetPositionRiskService struct {
	service *futures.GetPositionRiskService
}

func (s *realGetPositionRiskService) Do(ctx context.Context) ([]*futures.PositionRisk, error) {
	return s.service.Do(ctx)
}

type realListPriceChangeStatsService struct {
	service *futures.ListPriceChangeStatsService
}

func (s *realListPriceChangeStatsService) Symbol(symbol string) ListPriceChangeStatsService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPriceChangeStatsService) Do(ctx context.Context) ([]*futures.PriceChangeStats, error) {
	return s.service.Do(ctx)
}

// BinanceConnector implements Connector against Binance USD-M futures. It is
// stateless apart from the client; all account and position state is fetched
// from the venue on every call.
type BinanceConnector struct {
	client FuturesClient
	logger *logger.Logger
	closed bool
}

// NewBinanceConnector creates a connector against the Binance futures API.
// When cfg.Testnet is set, requests go to the futures testnet.
func NewBinanceConnector(cfg config.ExchangeConfig, log *logger.Logger) *BinanceConnector {
	if cfg.Testnet {
		futures.UseTestnet = true
	}

	client := futures.NewClient(cfg.APIKey, cfg.APISecret)

	return &BinanceConnector{
		client: &realFuturesClient{client: client},
		logger: log,
	}
}

// newBinanceConnectorWithClient creates a connector with a custom client.
// This is used for testing with mock clients.
func newBinanceConnectorWithClient(client FuturesClient, log *logger.Logger) *BinanceConnector {
	return &BinanceConnector{
		client: client,
		logger: log,
	}
}

// GetAccountInfo returns the venue's current account state.
func (b *BinanceConnector) GetAccountInfo(ctx context.Context) (*types.AccountInfo, error) {
	if b.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExchangeRequest, "failed to get account info from Binance", err)
	}

	return &types.AccountInfo{
		TotalWalletBalance:          parseFloat(account.TotalWalletBalance),
		AvailableBalance:            parseFloat(account.AvailableBalance),
		TotalUnrealizedPnL:          parseFloat(account.TotalUnrealizedProfit),
		TotalMarginBalance:          parseFloat(account.TotalMarginBalance),
		TotalPositionInitialMargin:  parseFloat(account.TotalPositionInitialMargin),
		TotalOpenOrderInitialMargin: parseFloat(account.TotalOpenOrderInitialMargin),
		MaxWithdrawAmount:           parseFloat(account.MaxWithdrawAmount),
		Timestamp:                   time.Now(),
	}, nil
}

// GetPositions returns all open futures positions. Venue position amounts are
// signed; the sign determines the side and the magnitude the size.
func (b *BinanceConnector) GetPositions(ctx context.Context) ([]types.Position, error) {
	if b.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExchangeRequest, "failed to get positions from Binance", err)
	}

	positions := make([]types.Position, 0, len(risks))

	for _, risk := range risks {
		amount := parseFloat(risk.PositionAmt)
		if amount == 0 {
			continue
		}

		side := types.PositionSideLong
		size := amount

		if amount < 0 {
			side = types.PositionSideShort
			size = -amount
		}

		entryPrice := parseFloat(risk.EntryPrice)
		markPrice := parseFloat(risk.MarkPrice)

		position := types.Position{
			Symbol:        risk.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entryPrice,
			CurrentPrice:  markPrice,
			UnrealizedPnL: parseFloat(risk.UnRealizedProfit),
			Margin:        parseFloat(risk.IsolatedMargin),
			UpdatedAt:     time.Now(),
		}
		position.Percentage = position.ReturnPercentageAt(markPrice)

		positions = append(positions, position)
	}

	return positions, nil
}

// CreateOrder places an order on Binance futures.
func (b *BinanceConnector) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if b.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	if req.Quantity <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidOrder, "order quantity must be greater than zero")
	}

	var side futures.SideType

	switch req.Side {
	case types.OrderSideBuy:
		side = futures.SideTypeBuy
	case types.OrderSideSell:
		side = futures.SideTypeSell
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", req.Side)
	}

	service := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Quantity(strconv.FormatFloat(req.Quantity, 'f', binanceQuantityPrecision, 64))

	switch req.Type {
	case types.OrderTypeMarket:
		service = service.Type(futures.OrderTypeMarket)
	case types.OrderTypeLimit:
		price, err := req.Price.Take()
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidOrder, "limit order requires a price")
		}

		service = service.Type(futures.OrderTypeLimit).
			Price(strconv.FormatFloat(price, 'f', -1, 64)).
			TimeInForce(futures.TimeInForceTypeGTC)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order type: %s", req.Type)
	}

	response, err := service.Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance",
			classifyVenueError("create_order", req.Symbol, err))
	}

	return &OrderResponse{
		VenueOrderID:   strconv.FormatInt(response.OrderID, 10),
		Status:         mapBinanceOrderStatus(response.Status),
		FilledPrice:    parseFloat(response.AvgPrice),
		FilledQuantity: parseFloat(response.ExecutedQuantity),
		Timestamp:      time.UnixMilli(response.UpdateTime),
	}, nil
}

// CancelOrder cancels an open order.
func (b *BinanceConnector) CancelOrder(ctx context.Context, symbol, venueOrderID string) error {
	if b.closed {
		return errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	orderID, err := strconv.ParseInt(venueOrderID, 10, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid venue order id %q", venueOrderID)
	}

	_, err = b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to cancel order on Binance", err)
	}

	return nil
}

// GetOrderStatus queries the venue for the current status of an order.
func (b *BinanceConnector) GetOrderStatus(ctx context.Context, symbol, venueOrderID string) (types.OrderStatus, error) {
	if b.closed {
		return types.OrderStatusFailed, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	orderID, err := strconv.ParseInt(venueOrderID, 10, 64)
	if err != nil {
		return types.OrderStatusFailed, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid venue order id %q", venueOrderID)
	}

	order, err := b.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return types.OrderStatusFailed, errors.Wrap(errors.ErrCodeOrderNotFound, "failed to get order from Binance", err)
	}

	return mapBinanceOrderStatus(order.Status), nil
}

// GetMarketData returns a bar-shaped snapshot built from the 24h ticker.
func (b *BinanceConnector) GetMarketData(ctx context.Context, symbol string) (*types.MarketData, error) {
	if b.closed {
		return nil, errors.New(errors.ErrCodeExchangeUnavailable, "connector is closed")
	}

	stats, err := b.client.NewListPriceChangeStatsService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetch, "failed to get market data from Binance", err)
	}

	if len(stats) == 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataFetch, "no market data for symbol %s", symbol)
	}

	stat := stats[0]

	return &types.MarketData{
		Symbol: stat.Symbol,
		Time:   time.UnixMilli(stat.CloseTime),
		Open:   parseFloat(stat.OpenPrice),
		High:   parseFloat(stat.HighPrice),
		Low:    parseFloat(stat.LowPrice),
		Close:  parseFloat(stat.LastPrice),
		Volume: parseFloat(stat.Volume),
	}, nil
}

// Close marks the connector closed. The underlying HTTP client holds no
// persistent connections that need tearing down.
func (b *BinanceConnector) Close() error {
	b.closed = true

	return nil
}

// classifyVenueError marks a venue failure transient when it is worth
// retrying: timeouts, dropped connections, rate limits, and server-side
// errors. Permanent rejections (bad symbol, insufficient margin, filters)
// pass through unchanged so the executor fails them immediately.
func classifyVenueError(op, symbol string, err error) error {
	if !isRetryable(err) {
		return err
	}

	return errors.NewTransientError(op, symbol, "retryable venue failure", err)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		// DISCONNECTED, TOO_MANY_REQUESTS, TIMEOUT, SERVICE_SHUTTING_DOWN.
		case -1001, -1003, -1007, -1016:
			return true
		}
	}

	return false
}

// mapBinanceOrderStatus maps a venue order status to the local lifecycle.
func mapBinanceOrderStatus(status futures.OrderStatusType) types.OrderStatus {
	switch status {
	case futures.OrderStatusTypeNew, futures.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPending
	case futures.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case futures.OrderStatusTypeCanceled:
		return types.OrderStatusCancelled
	case futures.OrderStatusTypeRejected, futures.OrderStatusTypeExpired:
		return types.OrderStatusFailed
	default:
		return types.OrderStatusFailed
	}
}

func parseFloat(s string) float64 {
	value, _ := strconv.ParseFloat(s, 64)

	return value
}

// Ensure BinanceConnector implements Connector.
var _ Connector = (*BinanceConnector)(nil)
