package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Load reads the TOML file at path over the defaults, then applies SXLM_*
// environment overrides. A missing file is not an error; the defaults plus
// environment stand alone.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, errors.Wrap(err, "decode config file")
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr("SXLM_ADMIN", &cfg.Admin)
	setStr("SXLM_DATA_DSN", &cfg.DataDSN)
	setStr("SXLM_LOG_LEVEL", &cfg.LogLevel)
	setStr("SXLM_METRICS_ADDR", &cfg.MetricsAddr)

	setInt("SXLM_COLLATERAL_FACTOR_BPS", &cfg.Risk.CollateralFactorBps)
	setInt("SXLM_LIQUIDATION_THRESHOLD_BPS", &cfg.Risk.LiquidationThresholdBps)
	setInt("SXLM_LIQUIDATION_BONUS_BPS", &cfg.Risk.LiquidationBonusBps)
	setInt("SXLM_BORROW_RATE_BPS", &cfg.Risk.BorrowRateBps)

	setInt("SXLM_PROTOCOL_FEE_BPS", &cfg.Staking.ProtocolFeeBps)
	setInt("SXLM_UNBONDING_PERIOD_SECONDS", &cfg.Staking.UnbondingPeriodSeconds)

	setInt("SXLM_SWAP_FEE_BPS", &cfg.Swap.FeeBps)
}

func setStr(key string, target *string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}

func setInt(key string, target *int64) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}
