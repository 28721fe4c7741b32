package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	APIURL   string        `env:"API_URL" envDefault:"http://localhost:8080"`
	APIKey   string        `env:"API_KEY" envDefault:""`
	Seats    int64         `env:"BOT_SEATS" envDefault:"1"`
	MaxPrice int64         `env:"BOT_MAX_PRICE_PER_BIT" envDefault:"0"`
	Interval time.Duration `env:"BOT_INTERVAL" envDefault:"30s"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
