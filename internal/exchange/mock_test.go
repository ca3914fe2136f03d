package exchange

import (
	"context"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	pkgerrors "github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

type MockConnectorTestSuite struct {
	suite.Suite
	connector *MockConnector
}

func TestMockConnectorSuite(t *testing.T) {
	suite.Run(t, new(MockConnectorTestSuite))
}

func (suite *MockConnectorTestSuite) SetupTest() {
	suite.connector = NewMockConnector(MockConfig{
		InitialBalance: 10000.0,
		BasePrice:      100.0,
		Slippage:       0.0005,
		CommissionRate: 0.001,
		FailureRate:    0,
		Seed:           42,
	}, logger.NewNopLogger())
}

func (suite *MockConnectorTestSuite) TestMarketBuyFillsWithSlippage() {
	response, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, response.Status)
	// Quote 100 with 0.05% adverse slippage fills at 100.05.
	suite.InDelta(100.05, response.FilledPrice, 1e-9)
	suite.InDelta(1.0, response.FilledQuantity, 1e-9)
	// Commission is 0.1% of notional.
	suite.InDelta(0.10005, response.Commission, 1e-9)
}

func (suite *MockConnectorTestSuite) TestMarketSellFillsBelowQuote() {
	response, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideSell,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().NoError(err)
	suite.InDelta(99.95, response.FilledPrice, 1e-9)
}

func (suite *MockConnectorTestSuite) TestCommissionReducesBalance() {
	_, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().NoError(err)

	info, err := suite.connector.GetAccountInfo(context.Background())
	suite.Require().NoError(err)
	suite.InDelta(10000.0-0.10005, info.TotalWalletBalance, 1e-9)
}

func (suite *MockConnectorTestSuite) TestPositionsReflectFills() {
	_, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 2.0,
	})
	suite.Require().NoError(err)

	positions, err := suite.connector.GetPositions(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal("BTCUSDT", positions[0].Symbol)
	suite.Equal(types.PositionSideLong, positions[0].Side)
	suite.InDelta(2.0, positions[0].Size, 1e-9)
	suite.InDelta(100.05, positions[0].EntryPrice, 1e-9)
}

func (suite *MockConnectorTestSuite) TestAddingAveragesEntry() {
	for i := 0; i < 2; i++ {
		_, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
			Symbol:   "BTCUSDT",
			Side:     types.OrderSideBuy,
			Type:     types.OrderTypeMarket,
			Quantity: 1.0,
		})
		suite.Require().NoError(err)
	}

	positions, err := suite.connector.GetPositions(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.InDelta(2.0, positions[0].Size, 1e-9)
	// Both fills landed at the same simulated price, so the average holds.
	suite.InDelta(100.05, positions[0].EntryPrice, 1e-9)
}

func (suite *MockConnectorTestSuite) TestSellClosesLongAndRealizesPnL() {
	_, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().NoError(err)

	_, err = suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideSell,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().NoError(err)

	positions, err := suite.connector.GetPositions(context.Background())
	suite.Require().NoError(err)
	suite.Empty(positions)

	// Round trip at a flat price loses the slippage on both legs plus two
	// commissions.
	info, err := suite.connector.GetAccountInfo(context.Background())
	suite.Require().NoError(err)
	expectedBalance := 10000.0 - 0.10005 - 0.09995 + (99.95 - 100.05)
	suite.InDelta(expectedBalance, info.TotalWalletBalance, 1e-9)
}

func (suite *MockConnectorTestSuite) TestLimitOrderPendingUntilPolled() {
	response, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeLimit,
		Quantity: 1.0,
		Price:    optional.Some(99.0),
	})
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusPending, response.Status)

	status, err := suite.connector.GetOrderStatus(context.Background(), "BTCUSDT", response.VenueOrderID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusFilled, status)

	positions, err := suite.connector.GetPositions(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.InDelta(99.0, positions[0].EntryPrice, 1e-9)
}

func (suite *MockConnectorTestSuite) TestCancelPendingOrder() {
	response, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeLimit,
		Quantity: 1.0,
		Price:    optional.Some(99.0),
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.connector.CancelOrder(context.Background(), "BTCUSDT", response.VenueOrderID))

	status, err := suite.connector.GetOrderStatus(context.Background(), "BTCUSDT", response.VenueOrderID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusCancelled, status)
}

func (suite *MockConnectorTestSuite) TestCancelFilledOrderFails() {
	response, err := suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().NoError(err)

	err = suite.connector.CancelOrder(context.Background(), "BTCUSDT", response.VenueOrderID)
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodeOrderNotPending, pkgerrors.GetCode(err))
}

func (suite *MockConnectorTestSuite) TestFailureInjection() {
	connector := NewMockConnector(MockConfig{
		InitialBalance: 10000.0,
		BasePrice:      100.0,
		FailureRate:    1.0,
		Seed:           42,
	}, logger.NewNopLogger())

	_, err := connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodeOrderRejected, pkgerrors.GetCode(err))

	// A rejected order leaves the account untouched.
	info, err := connector.GetAccountInfo(context.Background())
	suite.Require().NoError(err)
	suite.InDelta(10000.0, info.TotalWalletBalance, 1e-9)

	positions, err := connector.GetPositions(context.Background())
	suite.Require().NoError(err)
	suite.Empty(positions)
}

func (suite *MockConnectorTestSuite) TestUnknownOrderStatus() {
	_, err := suite.connector.GetOrderStatus(context.Background(), "BTCUSDT", "999")
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodeOrderNotFound, pkgerrors.GetCode(err))
}

func (suite *MockConnectorTestSuite) TestMarketDataDeterministicUnderSeed() {
	first := NewMockConnector(MockConfig{InitialBalance: 1000, BasePrice: 100, Seed: 7}, logger.NewNopLogger())
	second := NewMockConnector(MockConfig{InitialBalance: 1000, BasePrice: 100, Seed: 7}, logger.NewNopLogger())

	for i := 0; i < 5; i++ {
		barA, errA := first.GetMarketData(context.Background(), "BTCUSDT")
		barB, errB := second.GetMarketData(context.Background(), "BTCUSDT")
		suite.Require().NoError(errA)
		suite.Require().NoError(errB)
		suite.InDelta(barA.Close, barB.Close, 1e-12)
	}
}

func (suite *MockConnectorTestSuite) TestClosedConnectorRejectsCalls() {
	suite.Require().NoError(suite.connector.Close())

	_, err := suite.connector.GetAccountInfo(context.Background())
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodeExchangeUnavailable, pkgerrors.GetCode(err))

	_, err = suite.connector.CreateOrder(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     types.OrderSideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: 1.0,
	})
	suite.Require().Error(err)
}
