package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Providers ProvidersConfig

	SecretKey  string `env:"APP_SECRET_KEY,default=ChangeMe"`
	LogVerbose bool   `env:"APP_VERBOSE,default=0"`
	LogPretty  bool   `env:"APP_PRETTY,default=0"`
}

type ServerConfig struct {
	Listen       string        `env:"RUN_ADDRESS,default=localhost:8088"`
	TimeoutRead  time.Duration `env:"SERVER_TIMEOUT_READ,default=5s"`
	TimeoutWrite time.Duration `env:"SERVER_TIMEOUT_WRITE,default=10s"`
	TimeoutIdle  time.Duration `env:"SERVER_TIMEOUT_IDLE,default=1m"`
}

type DatabaseConfig struct {
	DSN string `env:"DATABASE_URI,required"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD,default="`
	DB       int    `env:"REDIS_DB,default=0"`
}

// GatewayConfig carries the payment gateway contract: credentials, the
// callback/return URLs baked into every payment, and the payment lifetime
// after which pending topups are reconciled directly.
type GatewayConfig struct {
	APIURL          string        `env:"CRYPTOMUS_API_URL,default=https://api.cryptomus.com"`
	MerchantID      string        `env:"CRYPTOMUS_MERCHANT_ID,required"`
	APIKey          string        `env:"CRYPTOMUS_API_KEY,required"`
	CallbackURL     string        `env:"PAYMENT_CALLBACK_URL,required"`
	ReturnURL       string        `env:"PAYMENT_RETURN_URL,default="`
	PaymentLifetime time.Duration `env:"PAYMENT_LIFETIME,default=30m"`
	MinTopup        string        `env:"MIN_TOPUP,default=5"`
}

// ProvidersConfig is the explicit credentials set injected into the
// provider registry. A missing key leaves that provider unregistered.
type ProvidersConfig struct {
	SevenProxyAPIKey  string `env:"PROVIDER_711_API_KEY,default="`
	ProxySellerAPIKey string `env:"PROVIDER_PROXYSELLER_API_KEY,default="`
	LightningAPIKey   string `env:"PROVIDER_LIGHTNING_API_KEY,default="`
	GoProxyAPIKey     string `env:"PROVIDER_GOPROXY_API_KEY,default="`
}

// New config constructor
func New() Config {
	return Config{}
}

// Load config from environment and from .env file (if exists) and from flags
func (cfg *Config) Load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env load: %w", err)
	}

	if err := envdecode.StrictDecode(cfg); err != nil {
		return fmt.Errorf("env decode: %w", err)
	}

	pflag.StringVarP(&cfg.Server.Listen, "listen-addr", "a", cfg.Server.Listen, "Server address to listen on")
	pflag.StringVarP(&cfg.Database.DSN, "database-uri", "d", cfg.Database.DSN, "Database URI")
	pflag.BoolVarP(&cfg.LogVerbose, "verbose", "v", cfg.LogVerbose, "Verbose output")
	pflag.BoolVarP(&cfg.LogPretty, "pretty", "p", cfg.LogPretty, "Pretty output")
	pflag.Parse()

	return nil
}
