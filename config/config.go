package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"positionEngine/internal/adapters/logger"
	"positionEngine/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	// Binance API (kline fetcher only, public endpoints work without keys)
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market
	Symbol   string
	Interval string

	// Simulation
	InitialFunds float64
	TakerFee     float64 // fraction of notional, e.g. 0.0004
	MakerFee     float64
	Slippage     float64 // fraction of price applied against the taker

	// Sizing and risk limits
	RiskPerTrade    float64 // fraction of equity lost at the initial stop
	MaxPositionSize float64 // 0 = no cap
	MaxLeverage     float64 // 0 = no cap
	MaxDrawdown     float64 // 0 = no limit
	MaxDailyLoss    float64 // 0 = no limit
	MaxDailyTrades  int     // 0 = no limit

	// Strategy Parameters
	StrategyName          string  // ma_rsi_trend | ma_crossover
	StrategyShortMAPeriod int     // e.g., 20
	StrategyLongMAPeriod  int     // e.g., 50
	StrategyEMAPeriod     int     // e.g., 20
	StrategyRSIPeriod     int     // e.g., 14
	StrategyRSIOverbought float64 // e.g., 70.0
	StrategyRSIOversold   float64 // e.g., 30.0
	StrategyAllowShort    bool
	StrategyMinADX        float64 // ma_crossover trend filter, 0 disables

	// Files
	DBPath          string
	KlinesCSV       string
	RiskProfilePath string // YAML risk.Params, empty means defaults

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "std" or "zap"

	// Metrics
	MetricsAddr string // empty disables the /metrics endpoint
}

// RiskConfig returns the sizing and limit settings for the risk manager.
func (c *Config) RiskConfig() risk.RiskConfig {
	return risk.RiskConfig{
		RiskPerTrade:    c.RiskPerTrade,
		MaxPositionSize: c.MaxPositionSize,
		MaxLeverage:     c.MaxLeverage,
		MaxDrawdown:     c.MaxDrawdown,
		MaxDailyLoss:    c.MaxDailyLoss,
		MaxDailyTrades:  c.MaxDailyTrades,
	}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Market
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	cfg.Interval = getEnv("INTERVAL", "1h")

	// Simulation
	cfg.InitialFunds = requireFloat(&errs, "INITIAL_FUNDS", 10000, func(v float64) bool { return v > 0 }, "must be positive")
	cfg.TakerFee = requireFloat(&errs, "TAKER_FEE", 0.0004, isFraction, "must be in [0,1)")
	cfg.MakerFee = requireFloat(&errs, "MAKER_FEE", 0.0002, isFraction, "must be in [0,1)")
	cfg.Slippage = requireFloat(&errs, "SLIPPAGE", 0.0005, isFraction, "must be in [0,1)")

	// Sizing and risk limits
	cfg.RiskPerTrade = requireFloat(&errs, "RISK_PER_TRADE", 0.01, func(v float64) bool { return v > 0 && v < 1 }, "must be in (0,1)")
	cfg.MaxPositionSize = requireFloat(&errs, "MAX_POSITION_SIZE", 0, nonNegative, "cannot be negative")
	cfg.MaxLeverage = requireFloat(&errs, "MAX_LEVERAGE", 1, nonNegative, "cannot be negative")
	cfg.MaxDrawdown = requireFloat(&errs, "MAX_DRAWDOWN", 0, isFraction, "must be in [0,1)")
	cfg.MaxDailyLoss = requireFloat(&errs, "MAX_DAILY_LOSS", 0, isFraction, "must be in [0,1)")
	maxTrades, err := getEnvAsIntRequired("MAX_DAILY_TRADES", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_TRADES: %v", err))
	} else if maxTrades < 0 {
		errs = append(errs, "MAX_DAILY_TRADES cannot be negative")
	}
	cfg.MaxDailyTrades = maxTrades

	// Strategy Parameters (using defaults if not set)
	cfg.StrategyShortMAPeriod = getEnvAsInt("STRATEGY_SHORT_MA_PERIOD", 20)
	cfg.StrategyLongMAPeriod = getEnvAsInt("STRATEGY_LONG_MA_PERIOD", 50)
	cfg.StrategyEMAPeriod = getEnvAsInt("STRATEGY_EMA_PERIOD", 20)
	cfg.StrategyRSIPeriod = getEnvAsInt("STRATEGY_RSI_PERIOD", 14)
	cfg.StrategyRSIOverbought = getEnvAsFloat("STRATEGY_RSI_OVERBOUGHT", 70.0)
	cfg.StrategyRSIOversold = getEnvAsFloat("STRATEGY_RSI_OVERSOLD", 30.0)
	cfg.StrategyAllowShort = getEnvAsBool("STRATEGY_ALLOW_SHORT", false)
	cfg.StrategyName = getEnv("STRATEGY", "ma_rsi_trend")
	cfg.StrategyMinADX = getEnvAsFloat("STRATEGY_MIN_ADX", 0)
	if cfg.StrategyName != "ma_rsi_trend" && cfg.StrategyName != "ma_crossover" {
		errs = append(errs, fmt.Sprintf("unknown STRATEGY %q (want ma_rsi_trend or ma_crossover)", cfg.StrategyName))
	}
	if cfg.StrategyMinADX < 0 {
		errs = append(errs, "STRATEGY_MIN_ADX cannot be negative")
	}

	// Validate strategy periods
	if cfg.StrategyShortMAPeriod <= 0 || cfg.StrategyLongMAPeriod <= 0 || cfg.StrategyEMAPeriod <= 0 || cfg.StrategyRSIPeriod <= 0 {
		errs = append(errs, "strategy periods (MA, EMA, RSI) must be positive")
	}
	if cfg.StrategyShortMAPeriod >= cfg.StrategyLongMAPeriod {
		errs = append(errs, "STRATEGY_SHORT_MA_PERIOD must be less than STRATEGY_LONG_MA_PERIOD")
	}
	if cfg.StrategyRSIOverbought <= cfg.StrategyRSIOversold || cfg.StrategyRSIOverbought > 100 || cfg.StrategyRSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}

	// Files
	cfg.DBPath = getEnv("DB_PATH", "./data/position_engine.db")
	cfg.KlinesCSV = getEnv("KLINES_CSV", "")
	cfg.RiskProfilePath = getEnv("RISK_PROFILE", "")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "std"))
	if cfg.LogFormat != "std" && cfg.LogFormat != "zap" {
		errs = append(errs, "LOG_FORMAT must be std or zap")
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// LoadRiskParams reads a YAML risk profile. An empty path or a missing file
// yields the documented defaults; unknown keys are an error.
func LoadRiskParams(path string) (risk.Params, error) {
	if path == "" {
		return risk.DefaultParams(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return risk.DefaultParams(), nil
	}
	if err != nil {
		return risk.Params{}, fmt.Errorf("open risk profile %s: %w", path, err)
	}
	defer f.Close()

	var params risk.Params
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		return risk.Params{}, fmt.Errorf("decode risk profile %s: %w", path, err)
	}
	return params.WithDefaults(), nil
}

func isFraction(v float64) bool  { return v >= 0 && v < 1 }
func nonNegative(v float64) bool { return v >= 0 }

// requireFloat reads a float setting and records a validation error when it
// is malformed or fails check.
func requireFloat(errs *[]string, key string, def float64, check func(float64) bool, msg string) float64 {
	v, err := getEnvAsFloatRequired(key, def)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid %s: %v", key, err))
		return def
	}
	if !check(v) {
		*errs = append(*errs, fmt.Sprintf("%s %s", key, msg))
	}
	return v
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
