// Package strategy turns market data bars into trading signals. Strategies
// are pure consumers: they never place orders or touch positions directly.
package strategy

import (
	"github.com/rxtech-lab/argo-live-trader/internal/config"
	"github.com/rxtech-lab/argo-live-trader/internal/logger"
	"github.com/rxtech-lab/argo-live-trader/internal/types"
	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// Strategy consumes completed bars and may emit a signal. OnMarketData is
// called from a single goroutine per symbol; implementations keep per-symbol
// state without locking.
type Strategy interface {
	// Name returns the strategy's identifier, stamped onto every signal.
	Name() string
	// OnMarketData consumes one completed bar. It returns nil when the bar
	// produces no actionable signal.
	OnMarketData(bar types.MarketData) (*types.Signal, error)
	// Reset discards all accumulated state.
	Reset()
}

// New constructs the strategy named by the configuration. An unknown name is
// a fatal configuration error.
func New(cfg config.StrategyConfig, log *logger.Logger) (Strategy, error) {
	switch cfg.Name {
	case "ema-crossover":
		return NewEMACrossover(cfg, log)
	default:
		return nil, errors.Newf(errors.ErrCodeStrategyNotLoaded,
			"unknown strategy: %s", cfg.Name)
	}
}
