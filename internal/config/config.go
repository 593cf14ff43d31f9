package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sleepswap-engine/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := &models.Config{}
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	applyDefaults(config)
	applyEnvOverrides(config)

	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.StableSymbol == "" {
		cfg.StableSymbol = "USDT"
	}
	if cfg.RSIOversold == 0 {
		cfg.RSIOversold = 30
	}
	if cfg.RSIOverbought == 0 {
		cfg.RSIOverbought = 70
	}
	if cfg.RSIPeriod == 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.RSIGrids == 0 {
		cfg.RSIGrids = 3
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// applyEnvOverrides 允许通过环境变量覆盖敏感或部署相关的配置项。
func applyEnvOverrides(cfg *models.Config) {
	if v := os.Getenv("SLEEPSWAP_OWNER_ADDRESS"); v != "" {
		cfg.OwnerAddress = v
	}
	if v := os.Getenv("SLEEPSWAP_KEEPER_ADDRESS"); v != "" {
		cfg.KeeperAddress = v
	}
	if v := os.Getenv("SLEEPSWAP_WS_URL"); v != "" {
		cfg.WSURL = v
	}
}

func validate(cfg *models.Config) error {
	if cfg.OwnerAddress == "" {
		return fmt.Errorf("配置缺少 owner_address")
	}
	if cfg.FeeBps < 0 || cfg.FeeBps >= 10000 {
		return fmt.Errorf("fee_bps 非法: %d", cfg.FeeBps)
	}
	if cfg.RSIOversold >= cfg.RSIOverbought {
		return fmt.Errorf("rsi_oversold(%d) 必须小于 rsi_overbought(%d)", cfg.RSIOversold, cfg.RSIOverbought)
	}
	return nil
}
