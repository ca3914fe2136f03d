package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-live-trader/internal/types"
)

// BarGenerator produces synthetic candlestick series for tests. Prices follow
// a geometric random walk with an optional drift, so a positive drift yields a
// series that trends up on average.
type BarGenerator struct {
	rng *rand.Rand
}

// NewBarGenerator creates a generator. Use a fixed seed for reproducible
// series in tests.
func NewBarGenerator(seed int64) *BarGenerator {
	return &BarGenerator{rng: rand.New(rand.NewSource(seed))}
}

// SeriesConfig configures one generated series.
type SeriesConfig struct {
	// Symbol stamps every bar.
	Symbol string
	// StartTime is the timestamp of the first bar.
	StartTime time.Time
	// Interval is the spacing between bars.
	Interval time.Duration
	// Count is the number of bars to generate.
	Count int
	// StartPrice is the first bar's open.
	StartPrice float64
	// Volatility is the per-bar standard deviation of returns.
	Volatility float64
	// Drift is the total return spread across the whole series. 0.2 over
	// 100 bars trends the close roughly 20% above the start.
	Drift float64
	// BaseVolume is the average per-bar volume.
	BaseVolume float64
}

// DefaultSeriesConfig returns a neutral one-minute BTCUSDT series.
func DefaultSeriesConfig() SeriesConfig {
	return SeriesConfig{
		Symbol:     "BTCUSDT",
		StartTime:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Interval:   time.Minute,
		Count:      500,
		StartPrice: 50000.0,
		Volatility: 0.002,
		BaseVolume: 100.0,
	}
}

// Generate produces the configured series.
func (g *BarGenerator) Generate(cfg SeriesConfig) []types.MarketData {
	bars := make([]types.MarketData, cfg.Count)
	price := cfg.StartPrice
	barTime := cfg.StartTime

	perBarDrift := 0.0
	if cfg.Count > 0 {
		perBarDrift = cfg.Drift / float64(cfg.Count)
	}

	for i := 0; i < cfg.Count; i++ {
		open := price

		// Box-Muller for a normally distributed per-bar return.
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		close := open * (1 + cfg.Volatility*z + perBarDrift)
		if close <= 0 {
			close = open * 0.99
		}

		wickSpan := math.Abs(g.rng.Float64()) * cfg.Volatility * open * 0.5
		high := math.Max(open, close) + wickSpan
		low := math.Min(open, close) - wickSpan

		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		bars[i] = types.MarketData{
			Symbol: cfg.Symbol,
			Time:   barTime,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: cfg.BaseVolume * (0.5 + g.rng.Float64()),
		}

		price = close
		barTime = barTime.Add(cfg.Interval)
	}

	return bars
}

// GenerateTrending is a convenience wrapper that generates count bars with the
// given total drift and low noise, handy for forcing indicator crossings.
func (g *BarGenerator) GenerateTrending(symbol string, count int, drift float64) []types.MarketData {
	cfg := DefaultSeriesConfig()
	cfg.Symbol = symbol
	cfg.Count = count
	cfg.Drift = drift
	cfg.Volatility = 0.0005

	return g.Generate(cfg)
}
