package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"klineTrader/internal/adapters/logger"
	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/risk"
	"klineTrader/internal/strategy/strategies"
)

// Exchange and ledger selectors.
const (
	ExchangeWazirX  = "wazirx"
	ExchangeBinance = "binance"
	LedgerMongo     = "mongo"
	LedgerSQLite    = "sqlite"
)

// ATRParams mirrors strategies.ATRScalpConfig in the config file.
type ATRParams struct {
	Period         int     `json:"period"`
	EntryThreshold float64 `json:"entryThreshold"`
	ExitThreshold  float64 `json:"exitThreshold"`
	PollSeconds    int     `json:"pollSeconds"`
}

// SMAParams mirrors strategies.SMACrossoverConfig.
type SMAParams struct {
	ShortPeriod int `json:"shortPeriod"`
	LongPeriod  int `json:"longPeriod"`
	PollSeconds int `json:"pollSeconds"`
}

// MRParams mirrors strategies.MeanReversionConfig.
type MRParams struct {
	Lookback       int     `json:"lookback"`
	EntryThreshold float64 `json:"entryThreshold"`
	ExitThreshold  float64 `json:"exitThreshold"`
	PollSeconds    int     `json:"pollSeconds"`
}

// StrategyParams groups per-strategy parameters. Zero values take the strategy defaults.
type StrategyParams struct {
	ATR ATRParams `json:"atr"`
	SMA SMAParams `json:"sma"`
	MR  MRParams  `json:"mr"`
}

// Config holds all application configuration.
type Config struct {
	// Exchange API
	APIKey      string `json:"apiKey"`
	SecretKey   string `json:"secretKey"`
	Exchange    string `json:"exchange"` // wazirx or binance
	BaseURL     string `json:"baseURL"`  // Overrides the exchange default
	IsTestnet   bool   `json:"isTestnet"`
	RecvWindow  int    `json:"recvWindow"` // milliseconds
	HTTPTimeout int    `json:"httpTimeoutSeconds"`

	// Trade ledger
	Ledger        string `json:"ledger"` // mongo or sqlite
	DatabaseURI   string `json:"databaseURI"`
	DatabaseName  string `json:"databaseName"`
	DBPath        string `json:"dbPath"`
	CheckpointDir string `json:"checkpointDir"` // Empty disables resume

	// Trading Parameters
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	Strategy       string  `json:"strategy"`
	Trades         int     `json:"trades"`
	Interval       string  `json:"interval"`
	WindowMargin   int     `json:"windowMargin"`
	BookDepth      int     `json:"bookDepth"`
	StopLoss       float64 `json:"stopLoss"` // e.g. 0.02 for 2%
	MaxQuantity    float64 `json:"maxQuantity"`
	MaxDailyLoss   float64 `json:"maxDailyLoss"`
	MaxDailyTrades int     `json:"maxDailyTrades"`

	Strategies StrategyParams `json:"strategies"`

	// Retry of transient exchange errors
	RetryMaxAttempts int `json:"retryMaxAttempts"`
	RetryMinDelayMs  int `json:"retryMinDelayMs"`
	RetryMaxDelayMs  int `json:"retryMaxDelayMs"`

	// Logging
	LogLevel      string `json:"logLevel"`
	LogOutput     string `json:"logOutput"`
	LogFile       string `json:"logFile"`
	LogMaxSize    int    `json:"logMaxSize"`
	LogMaxBackups int    `json:"logMaxBackups"`
	LogMaxAge     int    `json:"logMaxAge"`
	LogCompress   bool   `json:"logCompress"` // Gzip rotated log files

	Display bool `json:"display"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Exchange:         ExchangeWazirX,
		RecvWindow:       5000,
		HTTPTimeout:      10,
		Ledger:           LedgerMongo,
		DatabaseName:     "klineTrader",
		DBPath:           "./data/trades.db",
		Symbol:           "btcinr",
		Quantity:         1,
		Strategy:         strategies.CodeATRScalp,
		Trades:           1,
		Interval:         "1m",
		WindowMargin:     2,
		BookDepth:        5,
		StopLoss:         0.02,
		RetryMaxAttempts: 5,
		RetryMinDelayMs:  500,
		RetryMaxDelayMs:  10000,
		LogLevel:         "INFO",
		LogOutput:        "both",
		LogFile:          "app.log",
		LogMaxSize:       10,
		LogMaxBackups:    3,
		LogMaxAge:        28,
	}
}

// LoadConfig reads the JSON file at path (skipped when empty) over the defaults,
// then applies .env and environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ports.ErrConfigurationError, path, err)
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ports.ErrConfigurationError, path, err)
		}
	}

	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	if errs := cfg.applyEnv(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) applyEnv() []string {
	var errs []string

	c.APIKey = getEnv("API_KEY", c.APIKey)
	c.SecretKey = getEnv("API_SECRET", c.SecretKey)
	c.Exchange = getEnv("EXCHANGE", c.Exchange)
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.Ledger = getEnv("LEDGER", c.Ledger)
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DatabaseName = getEnv("DATABASE_NAME", c.DatabaseName)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.CheckpointDir = getEnv("CHECKPOINT_DIR", c.CheckpointDir)
	c.Symbol = getEnv("SYMBOL", c.Symbol)
	c.Strategy = getEnv("STRATEGY", c.Strategy)
	c.Interval = getEnv("INTERVAL", c.Interval)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogOutput = getEnv("LOG_OUTPUT", c.LogOutput)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	var err error
	if c.IsTestnet, err = getEnvAsBool("IS_TESTNET", c.IsTestnet); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Display, err = getEnvAsBool("DISPLAY_TABLES", c.Display); err != nil {
		errs = append(errs, err.Error())
	}
	if c.LogCompress, err = getEnvAsBool("LOG_COMPRESS", c.LogCompress); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Quantity, err = getEnvAsFloat("QUANTITY", c.Quantity); err != nil {
		errs = append(errs, err.Error())
	}
	if c.StopLoss, err = getEnvAsFloat("STOP_LOSS", c.StopLoss); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Trades, err = getEnvAsInt("TRADES", c.Trades); err != nil {
		errs = append(errs, err.Error())
	}
	if c.RetryMaxAttempts, err = getEnvAsInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

// Validate checks the configuration. Credentials are only required when
// requireCredentials is set, since health checks use public endpoints.
func (c *Config) Validate(requireCredentials bool) error {
	var errs []string // Collect validation errors

	if requireCredentials {
		if c.APIKey == "" {
			errs = append(errs, "API_KEY must be set")
		}
		if c.SecretKey == "" {
			errs = append(errs, "API_SECRET must be set")
		}
	}

	switch strings.ToLower(c.Exchange) {
	case ExchangeWazirX, ExchangeBinance:
	default:
		errs = append(errs, fmt.Sprintf("exchange must be %q or %q, got %q", ExchangeWazirX, ExchangeBinance, c.Exchange))
	}

	switch strings.ToLower(c.Ledger) {
	case LedgerMongo:
		if requireCredentials && c.DatabaseURI == "" {
			errs = append(errs, "DATABASE_URI must be set for the mongo ledger")
		}
		if c.DatabaseName == "" {
			errs = append(errs, "DATABASE_NAME must be set for the mongo ledger")
		}
	case LedgerSQLite:
		if c.DBPath == "" {
			errs = append(errs, "DB_PATH must be set for the sqlite ledger")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger must be %q or %q, got %q", LedgerMongo, LedgerSQLite, c.Ledger))
	}

	if c.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}
	if c.Quantity <= 0 {
		errs = append(errs, "QUANTITY must be positive")
	}
	if c.Trades <= 0 {
		errs = append(errs, "TRADES must be positive")
	}
	if _, err := domain.ParseInterval(c.Interval); err != nil {
		errs = append(errs, err.Error())
	}
	if c.WindowMargin < 0 {
		errs = append(errs, "windowMargin cannot be negative")
	}
	if c.BookDepth <= 0 {
		errs = append(errs, "bookDepth must be positive")
	}
	if c.StopLoss < 0 || c.StopLoss >= 1.0 {
		errs = append(errs, "STOP_LOSS must be in [0.0, 1.0)")
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, "retryMaxAttempts must be at least 1")
	}
	if c.RetryMinDelayMs <= 0 || c.RetryMaxDelayMs < c.RetryMinDelayMs {
		errs = append(errs, "retry delays must be positive with max >= min")
	}

	if _, err := strategies.New(c.Strategy, c.StrategyConfig(), nopLogger{}); err != nil {
		errs = append(errs, err.Error())
	}

	// Combine validation errors
	if len(errs) > 0 {
		return fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// StrategyConfig converts the strategy section into strategies.Config.
func (c *Config) StrategyConfig() strategies.Config {
	p := c.Strategies
	return strategies.Config{
		ATRScalp: strategies.ATRScalpConfig{
			Period:         p.ATR.Period,
			EntryThreshold: p.ATR.EntryThreshold,
			ExitThreshold:  p.ATR.ExitThreshold,
			PollInterval:   seconds(p.ATR.PollSeconds),
		},
		SMACrossover: strategies.SMACrossoverConfig{
			ShortPeriod:  p.SMA.ShortPeriod,
			LongPeriod:   p.SMA.LongPeriod,
			PollInterval: seconds(p.SMA.PollSeconds),
		},
		MeanReversion: strategies.MeanReversionConfig{
			Lookback:       p.MR.Lookback,
			EntryThreshold: p.MR.EntryThreshold,
			ExitThreshold:  p.MR.ExitThreshold,
			PollInterval:   seconds(p.MR.PollSeconds),
		},
	}
}

// LoggerConfig returns the logger adapter settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Output:     c.LogOutput,
		File:       c.LogFile,
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAge,
		Compress:   c.LogCompress,
	}
}

// RiskConfig returns the risk manager settings.
func (c *Config) RiskConfig() risk.RiskConfig {
	return risk.RiskConfig{
		StopLossPercent: c.StopLoss,
		MaxQuantity:     c.MaxQuantity,
		MaxDailyLoss:    c.MaxDailyLoss,
		MaxDailyTrades:  c.MaxDailyTrades,
	}
}

// RetryDelays returns the backoff bounds.
func (c *Config) RetryDelays() (min, max time.Duration) {
	return time.Duration(c.RetryMinDelayMs) * time.Millisecond, time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return defaultValue, fmt.Errorf("invalid integer value '%s' for key %s", valueStr, key)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid float value '%s' for key %s", valueStr, key)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue, errors.New("invalid boolean value '" + valueStr + "' for key " + key)
	}
	return value, nil
}

// nopLogger lets Validate build a strategy without a real logger.
type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (nopLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Error(context.Context, error, string, ...map[string]interface{}) {}
