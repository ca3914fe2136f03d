package types

import "time"

// MarketData is a single completed candlestick for one symbol. It is
// ephemeral: the core never persists bars, a rolling window is the
// strategy's concern.
type MarketData struct {
	Id     string    `yaml:"id" json:"id"`
	Symbol string    `yaml:"symbol" json:"symbol"`
	Time   time.Time `yaml:"time" json:"time"`
	Open   float64   `yaml:"open" json:"open"`
	High   float64   `yaml:"high" json:"high"`
	Low    float64   `yaml:"low" json:"low"`
	Close  float64   `yaml:"close" json:"close"`
	Volume float64   `yaml:"volume" json:"volume"`
}
