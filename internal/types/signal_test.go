package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSignal() Signal {
	return Signal{
		Symbol:       "BTCUSDT",
		Action:       SignalActionBuy,
		Strength:     0.8,
		Price:        50000.0,
		Time:         time.Now(),
		Reason:       "ema_cross_up",
		StrategyName: "ema-crossover",
	}
}

func TestSignalValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Signal)
		shouldError bool
	}{
		{
			name:        "valid buy signal",
			mutate:      func(s *Signal) {},
			shouldError: false,
		},
		{
			name:        "valid close signal",
			mutate:      func(s *Signal) { s.Action = SignalActionClose },
			shouldError: false,
		},
		{
			name:        "zero strength is allowed",
			mutate:      func(s *Signal) { s.Strength = 0 },
			shouldError: false,
		},
		{
			name:        "missing symbol",
			mutate:      func(s *Signal) { s.Symbol = "" },
			shouldError: true,
		},
		{
			name:        "unknown action",
			mutate:      func(s *Signal) { s.Action = "HOLD" },
			shouldError: true,
		},
		{
			name:        "strength above one",
			mutate:      func(s *Signal) { s.Strength = 1.5 },
			shouldError: true,
		},
		{
			name:        "negative price",
			mutate:      func(s *Signal) { s.Price = -10 },
			shouldError: true,
		},
		{
			name:        "missing strategy name",
			mutate:      func(s *Signal) { s.StrategyName = "" },
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := newTestSignal()
			tt.mutate(&signal)

			err := signal.Validate()
			if tt.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
