package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	pkgerrors "github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

type PositionManagerTestSuite struct {
	suite.Suite
	manager *Manager
}

func TestPositionManagerSuite(t *testing.T) {
	suite.Run(t, new(PositionManagerTestSuite))
}

func (suite *PositionManagerTestSuite) SetupTest() {
	suite.manager = NewManager(config.PositionConfig{
		MaxPositions:    2,
		PositionTimeout: time.Hour,
	}, logger.NewNopLogger())
}

func (suite *PositionManagerTestSuite) TestOpenCreatesPosition() {
	position, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "order-1")
	suite.Require().NoError(err)
	suite.Equal(types.PositionSideLong, position.Side)
	suite.InDelta(1.0, position.Size, 1e-9)
	suite.InDelta(100.0, position.EntryPrice, 1e-9)
	suite.True(suite.manager.Has("BTCUSDT"))
}

func (suite *PositionManagerTestSuite) TestOpenSameSideAveragesEntry() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "order-1")
	suite.Require().NoError(err)

	// 1 @ 100 plus 1 @ 120 averages to 110.
	position, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 120.0, "order-2")
	suite.Require().NoError(err)
	suite.InDelta(2.0, position.Size, 1e-9)
	suite.InDelta(110.0, position.EntryPrice, 1e-9)
}

func (suite *PositionManagerTestSuite) TestOpenOppositeSideIsRejected() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "order-1")
	suite.Require().NoError(err)

	_, err = suite.manager.Open("BTCUSDT", types.PositionSideShort, 1.0, 100.0, "order-2")
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodePositionDirection, pkgerrors.GetCode(err))

	// The original long survives untouched.
	position, ok := suite.manager.Get("BTCUSDT")
	suite.True(ok)
	suite.Equal(types.PositionSideLong, position.Side)
	suite.InDelta(1.0, position.Size, 1e-9)
}

func (suite *PositionManagerTestSuite) TestOpenEnforcesMaxPositions() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)
	_, err = suite.manager.Open("ETHUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)

	suite.False(suite.manager.CanOpenNew())

	_, err = suite.manager.Open("SOLUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodePositionLimit, pkgerrors.GetCode(err))

	// Adding to an existing position is still allowed at the cap.
	_, err = suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.NoError(err)
}

func (suite *PositionManagerTestSuite) TestCloseRealizesPnLAndRecordsHistory() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 2.0, 100.0, "")
	suite.Require().NoError(err)

	closed, err := suite.manager.Close("BTCUSDT", 110.0, "take_profit")
	suite.Require().NoError(err)
	suite.InDelta(20.0, closed.RealizedPnL, 1e-9)
	suite.InDelta(0.0, closed.UnrealizedPnL, 1e-9)

	suite.False(suite.manager.Has("BTCUSDT"))
	suite.Require().Len(suite.manager.History(), 1)
	suite.InDelta(20.0, suite.manager.TotalRealizedPnL(), 1e-9)
}

func (suite *PositionManagerTestSuite) TestCloseMissingPosition() {
	_, err := suite.manager.Close("BTCUSDT", 100.0, "")
	suite.Require().Error(err)
	suite.Equal(pkgerrors.ErrCodePositionNotFound, pkgerrors.GetCode(err))
}

func (suite *PositionManagerTestSuite) TestReducePartiallyRealizes() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 2.0, 100.0, "")
	suite.Require().NoError(err)

	position, err := suite.manager.Reduce("BTCUSDT", 1.0, 110.0, "partial_exit")
	suite.Require().NoError(err)
	suite.InDelta(1.0, position.Size, 1e-9)
	suite.InDelta(10.0, position.RealizedPnL, 1e-9)
	suite.True(suite.manager.Has("BTCUSDT"))
	suite.Empty(suite.manager.History())
}

func (suite *PositionManagerTestSuite) TestReduceFullSizeCloses() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideShort, 2.0, 100.0, "")
	suite.Require().NoError(err)

	closed, err := suite.manager.Reduce("BTCUSDT", 2.0, 90.0, "exit")
	suite.Require().NoError(err)
	// Short from 100 closed at 90 realizes 10 per unit.
	suite.InDelta(20.0, closed.RealizedPnL, 1e-9)
	suite.False(suite.manager.Has("BTCUSDT"))
	suite.Len(suite.manager.History(), 1)
}

func (suite *PositionManagerTestSuite) TestReduceThenCloseAccumulatesRealized() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 2.0, 100.0, "")
	suite.Require().NoError(err)

	_, err = suite.manager.Reduce("BTCUSDT", 1.0, 110.0, "")
	suite.Require().NoError(err)

	closed, err := suite.manager.Close("BTCUSDT", 120.0, "")
	suite.Require().NoError(err)
	// 10 realized on the reduce plus 20 on the close.
	suite.InDelta(30.0, closed.RealizedPnL, 1e-9)
	suite.InDelta(30.0, suite.manager.TotalRealizedPnL(), 1e-9)
}

func (suite *PositionManagerTestSuite) TestUpdatePriceRefreshesUnrealized() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 2.0, 100.0, "")
	suite.Require().NoError(err)

	suite.manager.UpdatePrice("BTCUSDT", 105.0)

	position, ok := suite.manager.Get("BTCUSDT")
	suite.Require().True(ok)
	suite.InDelta(10.0, position.UnrealizedPnL, 1e-9)
	suite.InDelta(5.0, position.Percentage, 1e-9)
	suite.InDelta(10.0, suite.manager.TotalUnrealizedPnL(), 1e-9)

	// Realized figures stay untouched.
	suite.InDelta(0.0, position.RealizedPnL, 1e-9)
}

func (suite *PositionManagerTestSuite) TestUpdateAllUsesBarClose() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)

	suite.manager.UpdateAll(types.MarketData{Symbol: "BTCUSDT", Close: 95.0})

	position, ok := suite.manager.Get("BTCUSDT")
	suite.Require().True(ok)
	suite.InDelta(-5.0, position.UnrealizedPnL, 1e-9)
}

func (suite *PositionManagerTestSuite) TestAdoptReplacesLiveView() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)

	suite.manager.Adopt([]types.Position{
		{Symbol: "ETHUSDT", Side: types.PositionSideShort, Size: 3.0, EntryPrice: 2000.0},
	})

	suite.False(suite.manager.Has("BTCUSDT"))
	suite.True(suite.manager.Has("ETHUSDT"))

	position, ok := suite.manager.Get("ETHUSDT")
	suite.Require().True(ok)
	suite.Equal(types.PositionSideShort, position.Side)
}

func (suite *PositionManagerTestSuite) TestCleanupExpiredPurgesOnlyStaleZeroSize() {
	manager := NewManager(config.PositionConfig{
		MaxPositions: 5,
		// Everything zero-size is immediately stale.
		PositionTimeout: -time.Second,
	}, logger.NewNopLogger())

	_, err := manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)
	_, err = manager.Open("ETHUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)

	_, err = manager.Close("ETHUSDT", 110.0, "")
	suite.Require().NoError(err)

	removed := manager.CleanupExpired()
	suite.Equal(1, removed)
	suite.True(manager.Has("BTCUSDT"))
	// History is untouched by cleanup.
	suite.Len(manager.History(), 1)
}

func (suite *PositionManagerTestSuite) TestStatusSnapshot() {
	_, err := suite.manager.Open("BTCUSDT", types.PositionSideLong, 1.0, 100.0, "")
	suite.Require().NoError(err)
	suite.manager.UpdatePrice("BTCUSDT", 110.0)

	status := suite.manager.Status()
	suite.Equal(1, status.ActivePositions)
	suite.Equal(2, status.MaxPositions)
	suite.InDelta(10.0, status.TotalUnrealizedPnL, 1e-9)
	suite.Len(status.Positions, 1)
}
