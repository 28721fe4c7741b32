package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`
	// OwnerID is the market owner. Admin requests act as this identity.
	OwnerID string `env:"OWNER_ID" envDefault:"owner"`

	ModuleRef        string `env:"MODULE_REF" envDefault:"v1"`
	MarketParamsPath string `env:"MARKET_PARAMS_PATH"`
	SnapshotEvery    int    `env:"SNAPSHOT_EVERY" envDefault:"50"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
