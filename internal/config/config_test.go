package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		shouldError bool
	}{
		{
			name:        "default is valid",
			mutate:      func(c *Config) {},
			shouldError: false,
		},
		{
			name:        "no symbols",
			mutate:      func(c *Config) { c.Trading.Symbols = nil },
			shouldError: true,
		},
		{
			name:        "position percentage above one",
			mutate:      func(c *Config) { c.Trading.MaxPositionPercentage = 1.5 },
			shouldError: true,
		},
		{
			name:        "zero stop loss percentage",
			mutate:      func(c *Config) { c.RiskManagement.StopLossPercentage = 0 },
			shouldError: true,
		},
		{
			name:        "drawdown percentage above one",
			mutate:      func(c *Config) { c.RiskManagement.MaxDrawdownPercentage = 1.2 },
			shouldError: true,
		},
		{
			name:        "slow ema not greater than fast",
			mutate:      func(c *Config) { c.Strategy.SlowEMAPeriod = c.Strategy.FastEMAPeriod },
			shouldError: true,
		},
		{
			name:        "unknown exchange",
			mutate:      func(c *Config) { c.Exchange.Name = "kraken" },
			shouldError: true,
		},
		{
			name: "binance live without credentials",
			mutate: func(c *Config) {
				c.Exchange.Name = "binance"
				c.Trading.SimulationMode = false
			},
			shouldError: true,
		},
		{
			name: "binance live with credentials",
			mutate: func(c *Config) {
				c.Exchange.Name = "binance"
				c.Trading.SimulationMode = false
				c.Exchange.APIKey = "key"
				c.Exchange.APISecret = "secret"
			},
			shouldError: false,
		},
		{
			name:        "success probability zero",
			mutate:      func(c *Config) { c.Execution.SuccessProbability = 0 },
			shouldError: true,
		},
		{
			name:        "unknown log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.shouldError {
				assert.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	content := `
trading:
  symbols: ["BTCUSDT", "ETHUSDT"]
  simulation_mode: true
  initial_balance: 10000.0
  max_position_percentage: 0.95
  leverage: 1.0
strategy:
  name: ema-crossover
  fast_ema_period: 12
  slow_ema_period: 26
  min_signal_strength: 0.3
risk_management:
  max_position_percentage: 0.95
  max_daily_loss_percentage: 0.05
  max_drawdown_percentage: 0.10
  stop_loss_percentage: 0.02
  take_profit_percentage: 0.06
  min_position_size: 10.0
  max_leverage: 20.0
  max_trades_per_day: 50
position_management:
  max_positions: 5
  position_timeout: 1h
execution:
  max_retry_count: 3
  retry_delay: 1s
  order_timeout: 30s
  simulation_mode: true
  simulation_latency: 100ms
  simulation_slippage: 0.0005
  commission_rate: 0.001
  success_probability: 0.95
exchange:
  name: mock
  testnet: true
  initial_balance: 10000.0
data_feed:
  source: mock
  interval: 1m
  update_interval: 1s
  queue_size: 256
  base_price: 50000.0
logging:
  level: info
monitoring:
  update_interval: 5s
  state_file: final_state.json
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 26, cfg.Strategy.SlowEMAPeriod)
	assert.Equal(t, time.Hour, cfg.PositionManagement.PositionTimeout)
	assert.Equal(t, 30*time.Second, cfg.Execution.OrderTimeout)
	assert.Equal(t, "mock", cfg.Exchange.Name)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading: [not a map"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
