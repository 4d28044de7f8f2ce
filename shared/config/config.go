package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App            AppConfig
	Exchange       ExchangeConfig
	CircuitBreaker CircuitBreakerConfig
	Risk           RiskConfig
	Defaults       DefaultsConfig
	Alert          AlertConfig
	Loop           LoopConfig
	Auth           AuthConfig
	Postgres       PostgresConfig
	Redis          RedisConfig
	RateLimiter    RateLimiterConfig
	Kafka          KafkaConfig
	Tracing        TracingConfig
}

type AppConfig struct {
	LogLevel        string        `env:"LOG_LEVEL"         env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT"        env-default:"console"`
	HTTPAddress     string        `env:"HTTP_ADDRESS"      env-default:":8080"`
	GRPCAddress     string        `env:"GRPC_ADDRESS"      env-default:":50051"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"  env-default:"5s"`
	TradeTimeout    time.Duration `env:"TRADE_TIMEOUT"     env-default:"30s"`
}

type ExchangeConfig struct {
	MockTrading       bool          `env:"MOCK_TRADING"        env-default:"true"`
	PrivateKey        string        `env:"BLUEFIN_PRIVATE_KEY"`
	APIKey            string        `env:"BLUEFIN_API_KEY"`
	APISecret         string        `env:"BLUEFIN_API_SECRET"`
	Network           string        `env:"BLUEFIN_NETWORK"     env-default:"testnet"`
	APIURL            string        `env:"BLUEFIN_API_URL"`
	WSURL             string        `env:"BLUEFIN_WS_URL"`
	RequestTimeout    time.Duration `env:"EXCHANGE_REQUEST_TIMEOUT" env-default:"10s"`
	RequestsPerSecond float64       `env:"EXCHANGE_RPS"        env-default:"10"`
	SimulatedBalance  float64       `env:"SIMULATED_BALANCE"   env-default:"10000"`
}

// BaseURL falls back to the public endpoint of the selected network.
func (e ExchangeConfig) BaseURL() string {
	if e.APIURL != "" {
		return e.APIURL
	}
	if e.Network == "mainnet" {
		return "https://dapi.api.sui-prod.bluefin.io"
	}
	return "https://dapi.api.sui-staging.bluefin.io"
}

func (e ExchangeConfig) StreamURL() string {
	if e.WSURL != "" {
		return e.WSURL
	}
	if e.Network == "mainnet" {
		return "wss://dapi.api.sui-prod.bluefin.io"
	}
	return "wss://dapi.api.sui-staging.bluefin.io"
}

type CircuitBreakerConfig struct {
	MaxRequests uint32        `env:"CB_MAX_REQUESTS" env-default:"3"`
	Interval    time.Duration `env:"CB_INTERVAL"     env-default:"10s"`
	Timeout     time.Duration `env:"CB_TIMEOUT"      env-default:"5s"`
	MaxFailures uint32        `env:"CB_MAX_FAILURES" env-default:"5"`
}

type RiskConfig struct {
	MaxRiskPerTrade      float64 `env:"RISK_MAX_RISK_PER_TRADE"      env-default:"0.02"`
	MaxPositionSizeUSD   float64 `env:"RISK_MAX_POSITION_SIZE_USD"   env-default:"1000"`
	DefaultLeverage      int     `env:"RISK_DEFAULT_LEVERAGE"        env-default:"5"`
	StopLossPercentage   float64 `env:"RISK_STOP_LOSS_PERCENTAGE"    env-default:"0.05"`
	TakeProfitMultiplier float64 `env:"RISK_TAKE_PROFIT_MULTIPLIER"  env-default:"2"`
	MaxOpenPositions     int     `env:"RISK_MAX_OPEN_POSITIONS"      env-default:"3"`
	MaxDailyLoss         float64 `env:"RISK_MAX_DAILY_LOSS"          env-default:"0.05"`
}

// DefaultsConfig holds environment overrides for execute_trade parameters.
// Empty values fall through to RiskConfig.
type DefaultsConfig struct {
	RiskPercentage       string `env:"DEFAULT_RISK_PERCENTAGE"`
	StopLossPercentage   string `env:"DEFAULT_STOP_LOSS_PERCENTAGE"`
	TakeProfitPercentage string `env:"DEFAULT_TAKE_PROFIT_PCT"`
	Leverage             string `env:"DEFAULT_LEVERAGE"`
}

type AlertConfig struct {
	PositionSizePct float64 `env:"DEFAULT_POSITION_SIZE_PCT" env-default:"0.05"`
	Leverage        int     `env:"DEFAULT_LEVERAGE"          env-default:"5"`
	StopLossPct     float64 `env:"DEFAULT_STOP_LOSS_PCT"     env-default:"0.15"`
	TakeProfitPct   float64 `env:"DEFAULT_TAKE_PROFIT_PCT"   env-default:"0.3"`
	QueueSize       int     `env:"ALERT_QUEUE_SIZE"          env-default:"64"`
}

type LoopConfig struct {
	Enabled           bool          `env:"TRADING_LOOP_ENABLED"   env-default:"false"`
	Symbols           []string      `env:"TRADING_SYMBOLS"        env-default:"SUI-PERP" env-separator:","`
	Timeframe         string        `env:"TRADING_TIMEFRAME"      env-default:"5m"`
	AnalysisInterval  time.Duration `env:"ANALYSIS_INTERVAL"      env-default:"300s"`
	ErrorCooldown     time.Duration `env:"ERROR_COOLDOWN"         env-default:"30s"`
	MinConfidence     float64       `env:"MIN_CONFIDENCE"         env-default:"0.7"`
	RecommendationURL string        `env:"RECOMMENDATION_URL"`
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"     env-default:"dev-secret-key"`
	AdminUsername string        `env:"ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string        `env:"ADMIN_PASSWORD" env-default:"password"`
	TokenTTL      time.Duration `env:"JWT_TTL"        env-default:"24h"`
}

type PostgresConfig struct {
	DBURI string `env:"TRADER_DB_URI"`
}

func (p PostgresConfig) Enabled() bool {
	return p.DBURI != ""
}

type RedisConfig struct {
	Host              string        `env:"REDIS_HOST"               env-default:""`
	Port              int           `env:"REDIS_PORT"               env-default:"6379"`
	MaxIdle           int           `env:"REDIS_MAX_IDLE"           env-default:"10"`
	IdleTimeout       time.Duration `env:"REDIS_IDLE_TIMEOUT"       env-default:"240s"`
	ConnectionTimeout time.Duration `env:"REDIS_CONNECTION_TIMEOUT" env-default:"2s"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type RateLimiterConfig struct {
	Webhook int64         `env:"RATE_LIMIT_WEBHOOK" env-default:"50"`
	Login   int64         `env:"RATE_LIMIT_LOGIN"   env-default:"5"`
	Window  time.Duration `env:"RATE_LIMIT_WINDOW"  env-default:"1m"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `env:"KAFKA_ORDER_TOPIC" env-default:"trader.orders"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type TracingConfig struct {
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"perp-trader"`
}

// Load reads an optional .env file and then the process environment.
// A non-empty path is read as a cleanenv config file instead.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("godotenv.Load: %w", err)
	}

	config := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("cleanenv.ReadConfig: %w", err)
		}
		return config, nil
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("cleanenv.ReadEnv: %w", err)
	}

	return config, nil
}
