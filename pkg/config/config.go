package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the execution core.
type Config struct {
	// Run mode: backtest, dryrun, testnet, live.
	Mode string

	Port string

	// Binance USDT-M futures credentials.
	BinanceAPIKey    string
	BinanceAPISecret string

	Symbols  []string
	Interval string // candle interval fed to strategies, e.g. "1m"
	Strategy string

	// Backtest candle window.
	BacktestCandles int

	Risk RiskSettings

	// Simulated trade economics (backtest/dry-run only).
	SlippageTicks float64
	TickSize      float64
	TakerFeeRate  float64 // may be negative (maker rebate passthrough)

	// Simulator seed balance.
	InitialBalance float64

	// Exchange state service.
	ReconcileIntervalSec int
	StreamMaxReconnects  int

	// Trade ledger.
	DBPath string

	// Logging.
	LogLevel string
	LogFile  string
}

// RiskSettings bundles sizing and circuit-breaker parameters. It can be
// overridden from a YAML file via RISK_CONFIG_PATH.
type RiskSettings struct {
	RiskPerTradePct    float64 `yaml:"risk_per_trade_pct"`
	QtyStep            float64 `yaml:"qty_step"`
	MaxQty             float64 `yaml:"max_qty"`
	MaxNotional        float64 `yaml:"max_notional"`
	QtyDecimals        int     `yaml:"qty_decimals"`
	NotionalDecimals   int     `yaml:"notional_decimals"`
	MaxTradesPerDay    int     `yaml:"max_trades_per_day"`
	MaxConsecutiveLoss int     `yaml:"max_consecutive_loss"`
	MaxAbsPnl          float64 `yaml:"max_abs_pnl"`
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Mode:             strings.ToLower(getEnv("MODE", "dryrun")),
		Port:             getEnv("PORT", "8080"),
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		Symbols:          splitAndTrim(getEnv("SYMBOLS", "BTCUSDT")),
		Interval:         getEnv("CANDLE_INTERVAL", "1m"),
		Strategy:         getEnv("STRATEGY", "ma_cross"),
		BacktestCandles:  getEnvInt("BACKTEST_CANDLES", 500),
		Risk: RiskSettings{
			RiskPerTradePct:    getEnvFloat("RISK_PER_TRADE_PCT", 0.01),
			QtyStep:            getEnvFloat("QTY_STEP", 0.001),
			MaxQty:             getEnvFloat("MAX_QTY", 10),
			MaxNotional:        getEnvFloat("MAX_NOTIONAL", 100000),
			QtyDecimals:        getEnvInt("QTY_DECIMALS", 3),
			NotionalDecimals:   getEnvInt("NOTIONAL_DECIMALS", 2),
			MaxTradesPerDay:    getEnvInt("MAX_TRADES_PER_DAY", 20),
			MaxConsecutiveLoss: getEnvInt("MAX_CONSECUTIVE_LOSS", 3),
			MaxAbsPnl:          getEnvFloat("MAX_ABS_PNL", 1e6),
		},
		SlippageTicks:        getEnvFloat("SLIPPAGE_TICKS", 0.5),
		TickSize:             getEnvFloat("TICK_SIZE", 0.01),
		TakerFeeRate:         getEnvFloat("TAKER_FEE_RATE", 0.0004),
		InitialBalance:       getEnvFloat("INITIAL_BALANCE", 10000),
		ReconcileIntervalSec: getEnvInt("RECONCILE_INTERVAL_SEC", 15),
		StreamMaxReconnects:  getEnvInt("STREAM_MAX_RECONNECTS", 5),
		DBPath:               getEnv("DB_PATH", "./data/trades.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFile:              getEnv("LOG_FILE", ""),
	}

	if path := os.Getenv("RISK_CONFIG_PATH"); path != "" {
		if err := loadRiskFile(path, &cfg.Risk); err != nil {
			return nil, fmt.Errorf("load risk config %s: %w", path, err)
		}
	}

	switch cfg.Mode {
	case "backtest", "dryrun", "testnet", "live":
	default:
		return nil, fmt.Errorf("unknown MODE %q", cfg.Mode)
	}

	if (cfg.Mode == "testnet" || cfg.Mode == "live") && (cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "") {
		return nil, fmt.Errorf("mode %s requires BINANCE_API_KEY and BINANCE_API_SECRET", cfg.Mode)
	}

	return cfg, nil
}

func loadRiskFile(path string, out *RiskSettings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
