// Package config loads and validates the trader's YAML configuration.
// Malformed or out-of-range configuration is a fatal startup error: nothing
// trades until the whole file validates.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

// TradingConfig holds the top-level trading parameters.
type TradingConfig struct {
	Symbols               []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	SimulationMode        bool     `yaml:"simulation_mode"`
	InitialBalance        float64  `yaml:"initial_balance" validate:"required,gt=0"`
	MaxPositionPercentage float64  `yaml:"max_position_percentage" validate:"required,gt=0,lte=1"`
	Leverage              float64  `yaml:"leverage" validate:"required,gte=1"`
}

// StrategyConfig holds the parameters of the injected strategy.
type StrategyConfig struct {
	Name              string  `yaml:"name" validate:"required"`
	FastEMAPeriod     int     `yaml:"fast_ema_period" validate:"required,gt=0"`
	SlowEMAPeriod     int     `yaml:"slow_ema_period" validate:"required,gt=0"`
	MinSignalStrength float64 `yaml:"min_signal_strength" validate:"gte=0,lte=1"`
}

// RiskConfig holds the risk manager's caps and percentages.
type RiskConfig struct {
	MaxPositionPercentage  float64 `yaml:"max_position_percentage" validate:"required,gt=0,lte=1"`
	MaxDailyLossPercentage float64 `yaml:"max_daily_loss_percentage" validate:"required,gt=0,lte=1"`
	MaxDrawdownPercentage  float64 `yaml:"max_drawdown_percentage" validate:"required,gt=0,lte=1"`
	StopLossPercentage     float64 `yaml:"stop_loss_percentage" validate:"required,gt=0,lte=1"`
	TakeProfitPercentage   float64 `yaml:"take_profit_percentage" validate:"required,gt=0,lte=1"`
	MinPositionSize        float64 `yaml:"min_position_size" validate:"gte=0"`
	MaxLeverage            float64 `yaml:"max_leverage" validate:"required,gte=1"`
	MaxTradesPerDay        int     `yaml:"max_trades_per_day" validate:"required,gt=0"`
}

// PositionConfig holds the position manager's limits.
type PositionConfig struct {
	MaxPositions    int           `yaml:"max_positions" validate:"required,gt=0"`
	PositionTimeout time.Duration `yaml:"position_timeout" validate:"required,gt=0"`
}

// ExecutionConfig holds the order executor's retry and simulation parameters.
type ExecutionConfig struct {
	MaxRetryCount      int           `yaml:"max_retry_count" validate:"required,gt=0"`
	RetryDelay         time.Duration `yaml:"retry_delay" validate:"required,gt=0"`
	OrderTimeout       time.Duration `yaml:"order_timeout" validate:"required,gt=0"`
	SimulationMode     bool          `yaml:"simulation_mode"`
	SimulationLatency  time.Duration `yaml:"simulation_latency" validate:"gte=0"`
	SimulationSlippage float64       `yaml:"simulation_slippage" validate:"gte=0,lt=1"`
	CommissionRate     float64       `yaml:"commission_rate" validate:"gte=0,lt=1"`
	// SuccessProbability is the simulated fill probability; 1.0 never fails.
	SuccessProbability float64 `yaml:"success_probability" validate:"gt=0,lte=1"`
	// Seed makes the simulated path deterministic. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// ExchangeConfig holds venue selection and credentials.
type ExchangeConfig struct {
	Name      string `yaml:"name" validate:"required,oneof=binance mock"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	// InitialBalance seeds the mock connector's account.
	InitialBalance float64 `yaml:"initial_balance" validate:"gte=0"`
}

// DataFeedConfig holds the market data feed selection and tuning.
type DataFeedConfig struct {
	Source         string        `yaml:"source" validate:"required,oneof=binance mock"`
	Interval       string        `yaml:"interval" validate:"required"`
	UpdateInterval time.Duration `yaml:"update_interval" validate:"required,gt=0"`
	QueueSize      int           `yaml:"queue_size" validate:"required,gt=0"`
	// BasePrice seeds the mock feed's random walk.
	BasePrice float64 `yaml:"base_price" validate:"gte=0"`
	// Seed makes the mock feed deterministic. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// LoggingConfig holds logger tuning.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"required,oneof=debug info warn error"`
}

// MonitoringConfig holds the engine's periodic loop tuning and snapshot path.
type MonitoringConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval" validate:"required,gt=0"`
	StateFile      string        `yaml:"state_file" validate:"required"`
}

// Config is the complete live trading configuration.
type Config struct {
	Trading            TradingConfig    `yaml:"trading" validate:"required"`
	Strategy           StrategyConfig   `yaml:"strategy" validate:"required"`
	RiskManagement     RiskConfig       `yaml:"risk_management" validate:"required"`
	PositionManagement PositionConfig   `yaml:"position_management" validate:"required"`
	Execution          ExecutionConfig  `yaml:"execution" validate:"required"`
	Exchange           ExchangeConfig   `yaml:"exchange" validate:"required"`
	DataFeed           DataFeedConfig   `yaml:"data_feed" validate:"required"`
	Logging            LoggingConfig    `yaml:"logging" validate:"required"`
	Monitoring         MonitoringConfig `yaml:"monitoring" validate:"required"`
}

// Validate validates the Config struct, including cross-field constraints the
// struct tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if c.Strategy.SlowEMAPeriod <= c.Strategy.FastEMAPeriod {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"slow EMA period (%d) must be greater than fast EMA period (%d)",
			c.Strategy.SlowEMAPeriod, c.Strategy.FastEMAPeriod)
	}

	if c.Exchange.Name == "binance" && !c.Trading.SimulationMode {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration,
				"binance live trading requires api_key and api_secret")
		}
	}

	return nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns a simulation-ready configuration used by tests and as
// a starting point for new deployments.
func DefaultConfig() *Config {
	return &Config{
		Trading: TradingConfig{
			Symbols:               []string{"BTCUSDT"},
			SimulationMode:        true,
			InitialBalance:        10000.0,
			MaxPositionPercentage: 0.95,
			Leverage:              1.0,
		},
		Strategy: StrategyConfig{
			Name:              "ema-crossover",
			FastEMAPeriod:     12,
			SlowEMAPeriod:     26,
			MinSignalStrength: 0.3,
		},
		RiskManagement: RiskConfig{
			MaxPositionPercentage:  0.95,
			MaxDailyLossPercentage: 0.05,
			MaxDrawdownPercentage:  0.10,
			StopLossPercentage:     0.02,
			TakeProfitPercentage:   0.06,
			MinPositionSize:        10.0,
			MaxLeverage:            20.0,
			MaxTradesPerDay:        50,
		},
		PositionManagement: PositionConfig{
			MaxPositions:    5,
			PositionTimeout: time.Hour,
		},
		Execution: ExecutionConfig{
			MaxRetryCount:      3,
			RetryDelay:         time.Second,
			OrderTimeout:       30 * time.Second,
			SimulationMode:     true,
			SimulationLatency:  100 * time.Millisecond,
			SimulationSlippage: 0.0005,
			CommissionRate:     0.001,
			SuccessProbability: 0.95,
			Seed:               0,
		},
		Exchange: ExchangeConfig{
			Name:           "mock",
			Testnet:        true,
			InitialBalance: 10000.0,
		},
		DataFeed: DataFeedConfig{
			Source:         "mock",
			Interval:       "1m",
			UpdateInterval: time.Second,
			QueueSize:      256,
			BasePrice:      50000.0,
			Seed:           0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Monitoring: MonitoringConfig{
			UpdateInterval: 5 * time.Second,
			StateFile:      "final_state.json",
		},
	}
}
