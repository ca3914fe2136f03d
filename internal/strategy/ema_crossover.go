package strategy

import (
	"math"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/indicator"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

const emaCrossoverName = "ema-crossover"

// symbolState tracks the averages and the last emitted direction for one
// symbol.
type symbolState struct {
	fast *indicator.EMA
	slow *indicator.EMA
	// lastAction is the direction of the last crossing, whether or not it
	// cleared the strength threshold. A crossing is reported at most once.
	lastAction types.SignalAction
}

// EMACrossover emits BUY when the fast average crosses above the slow one and
// SELL when it crosses below. Signal strength is the relative divergence of
// the two averages, capped at 1.
type EMACrossover struct {
	cfg    config.StrategyConfig
	logger *logger.Logger
	states map[string]*symbolState
}

// NewEMACrossover creates the crossover strategy from its configuration.
func NewEMACrossover(cfg config.StrategyConfig, log *logger.Logger) (*EMACrossover, error) {
	if cfg.SlowEMAPeriod <= cfg.FastEMAPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"slow EMA period (%d) must be greater than fast EMA period (%d)",
			cfg.SlowEMAPeriod, cfg.FastEMAPeriod)
	}

	return &EMACrossover{
		cfg:    cfg,
		logger: log,
		states: make(map[string]*symbolState),
	}, nil
}

// Name returns the strategy identifier.
func (s *EMACrossover) Name() string {
	return emaCrossoverName
}

// OnMarketData updates both averages with the bar's close and emits a signal
// when the direction flips. Nothing is emitted during warmup (before the slow
// average has a full period), when the direction is unchanged, or when the
// divergence is below the configured minimum strength.
func (s *EMACrossover) OnMarketData(bar types.MarketData) (*types.Signal, error) {
	state, err := s.stateFor(bar.Symbol)
	if err != nil {
		return nil, err
	}

	fast := state.fast.Update(bar.Close)
	slow := state.slow.Update(bar.Close)

	if !state.slow.Ready() || bar.Close <= 0 {
		return nil, nil
	}

	var action types.SignalAction

	switch {
	case fast > slow:
		action = types.SignalActionBuy
	case fast < slow:
		action = types.SignalActionSell
	default:
		return nil, nil
	}

	if action == state.lastAction {
		return nil, nil
	}

	// Record the crossing even when too weak to act on, so the same cross
	// cannot fire again on a later bar.
	state.lastAction = action

	strength := math.Min(math.Abs(fast-slow)/bar.Close, 1.0)
	if strength < s.cfg.MinSignalStrength {
		s.logger.Debug("crossover below strength threshold",
			zap.String("symbol", bar.Symbol),
			zap.String("action", string(action)),
			zap.Float64("strength", strength))

		return nil, nil
	}

	signal := &types.Signal{
		Symbol:       bar.Symbol,
		Action:       action,
		Strength:     strength,
		Price:        bar.Close,
		Time:         bar.Time,
		Reason:       "ema_crossover",
		StrategyName: emaCrossoverName,
	}

	if err := signal.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("crossover signal",
		zap.String("symbol", bar.Symbol),
		zap.String("action", string(action)),
		zap.Float64("price", bar.Close),
		zap.Float64("strength", strength),
		zap.Float64("fast_ema", fast),
		zap.Float64("slow_ema", slow))

	return signal, nil
}

// Reset discards all per-symbol state.
func (s *EMACrossover) Reset() {
	s.states = make(map[string]*symbolState)
}

func (s *EMACrossover) stateFor(symbol string) (*symbolState, error) {
	if state, ok := s.states[symbol]; ok {
		return state, nil
	}

	fast, err := indicator.NewEMA(s.cfg.FastEMAPeriod)
	if err != nil {
		return nil, err
	}

	slow, err := indicator.NewEMA(s.cfg.SlowEMAPeriod)
	if err != nil {
		return nil, err
	}

	state := &symbolState{fast: fast, slow: slow}
	s.states[symbol] = state

	return state, nil
}

// Ensure EMACrossover implements Strategy.
var _ Strategy = (*EMACrossover)(nil)
