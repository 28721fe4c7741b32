package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// MarketConfig seeds the parameters of a market that has no snapshot yet.
type MarketConfig struct {
	MinPricePerBit     int64  `env:"MARKET_MIN_PRICE_PER_BIT" envDefault:"1000000000" yaml:"min_price_per_bit"`
	TotalSeats         int64  `env:"MARKET_TOTAL_SEATS" envDefault:"100" yaml:"total_seats"`
	MaxSeatPercentage  int64  `env:"MARKET_MAX_SEAT_PERCENTAGE" envDefault:"100" yaml:"max_seat_percentage"`
	UsefulnessExponent int64  `env:"MARKET_USEFULNESS_EXPONENT" envDefault:"6" yaml:"usefulness_exponent"`
	PowerUserFee       int64  `env:"MARKET_POWER_USER_FEE" envDefault:"0" yaml:"power_user_fee"`
	HistoricalFee      int64  `env:"MARKET_HISTORICAL_FEE" envDefault:"0" yaml:"historical_fee"`
	HistoricalPolicy   string `env:"MARKET_HISTORICAL_POLICY" envDefault:"coupled" yaml:"historical_policy"`
}

// LoadMarket reads env defaults, then lets the YAML file at path override
// any field it sets. An empty path skips the file.
func LoadMarket(path string) (MarketConfig, error) {
	var cfg MarketConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read market params: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse market params %s: %w", path, err)
	}
	return cfg, nil
}
