package config

import (
	"github.com/pkg/errors"
)

// Config is the daemon configuration. Values load from TOML with SXLM_*
// environment overrides on top.
type Config struct {
	Admin       string `toml:"admin"`
	DataDSN     string `toml:"data_dsn"`
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`

	Risk    RiskConfig    `toml:"risk"`
	Staking StakingConfig `toml:"staking"`
	Swap    SwapConfig    `toml:"swap"`
}

type RiskConfig struct {
	CollateralFactorBps     int64 `toml:"collateral_factor_bps"`
	LiquidationThresholdBps int64 `toml:"liquidation_threshold_bps"`
	LiquidationBonusBps     int64 `toml:"liquidation_bonus_bps"`
	BorrowRateBps           int64 `toml:"borrow_rate_bps"`
}

type StakingConfig struct {
	ProtocolFeeBps         int64 `toml:"protocol_fee_bps"`
	UnbondingPeriodSeconds int64 `toml:"unbonding_period_seconds"`
}

type SwapConfig struct {
	FeeBps int64 `toml:"fee_bps"`
}

func Defaults() Config {
	return Config{
		DataDSN:     "sxlm.db",
		LogLevel:    "info",
		MetricsAddr: ":9090",
		Risk: RiskConfig{
			CollateralFactorBps:     7_000,
			LiquidationThresholdBps: 8_000,
			LiquidationBonusBps:     500,
			BorrowRateBps:           500,
		},
		Staking: StakingConfig{
			ProtocolFeeBps:         1_000,
			UnbondingPeriodSeconds: 604_800,
		},
		Swap: SwapConfig{
			FeeBps: 30,
		},
	}
}

func (c Config) Validate() error {
	if c.MetricsAddr == "" {
		return errors.New("metrics_addr must not be empty")
	}
	if c.Risk.CollateralFactorBps <= 0 || c.Risk.CollateralFactorBps > 10_000 {
		return errors.New("risk.collateral_factor_bps out of range")
	}
	if c.Risk.LiquidationThresholdBps < c.Risk.CollateralFactorBps || c.Risk.LiquidationThresholdBps > 10_000 {
		return errors.New("risk.liquidation_threshold_bps out of range")
	}
	if c.Risk.LiquidationBonusBps < 0 || c.Risk.LiquidationBonusBps > 10_000 {
		return errors.New("risk.liquidation_bonus_bps out of range")
	}
	if c.Risk.BorrowRateBps < 0 {
		return errors.New("risk.borrow_rate_bps must not be negative")
	}
	if c.Staking.ProtocolFeeBps < 0 || c.Staking.ProtocolFeeBps > 10_000 {
		return errors.New("staking.protocol_fee_bps out of range")
	}
	if c.Staking.UnbondingPeriodSeconds <= 0 {
		return errors.New("staking.unbonding_period_seconds must be positive")
	}
	if c.Swap.FeeBps < 0 || c.Swap.FeeBps >= 10_000 {
		return errors.New("swap.fee_bps out of range")
	}
	return nil
}
