package config

type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
	Market MarketConfig
}

// LoadApp loads every section the server needs. marketPath overrides
// MARKET_PARAMS_PATH when set.
func LoadApp(marketPath string) (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	if marketPath == "" {
		marketPath = serverCfg.MarketParamsPath
	}
	marketCfg, err := LoadMarket(marketPath)
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Log:    logCfg,
		Market: marketCfg,
	}, nil
}
