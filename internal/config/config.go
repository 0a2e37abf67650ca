package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	// Chain
	ChainMode       chain.Mode
	RPCURL          string
	ContractAddress string
	SignerKeys      []string
	SimSeed         uint64

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Optional stores
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel string
	LogJSON  bool

	// Session timings
	PollInterval       time.Duration
	NameSettle         time.Duration
	GameSettle         time.Duration
	TxDisplay          time.Duration
	RevealLock         time.Duration
	RevealTick         time.Duration
	SessionIdleTimeout time.Duration

	// HTTP
	APIRateLimit            int
	APIRateWindowSeconds    int
	ActionRateLimit         int
	ActionRateWindowSeconds int
	AllowedOrigin           string
}

// Load reads .env (if present) and the environment. Missing required values
// are fatal.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}

	cfg := &Config{
		AppPort:         e.str("APP_PORT", "8080"),
		ChainMode:       chain.Mode(strings.ToLower(e.str("CHAIN_MODE", string(chain.ModeRPC)))),
		RPCURL:          getenv("RPC_URL"),
		ContractAddress: getenv("CONTRACT_ADDRESS"),
		SignerKeys:      splitList(getenv("SIGNER_KEYS")),
		SimSeed:         uint64(e.num("SIM_SEED", 1)),

		JWTSecret: getenv("JWT_SECRET"),
		TokenTTL:  time.Duration(e.num("TOKEN_TTL_HOURS", 24)) * time.Hour,

		DatabaseURL:   getenv("DATABASE_URL"),
		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       e.num("REDIS_DB", 0),
		CacheTTL:      time.Duration(e.num("CACHE_TTL_HOURS", 24*30)) * time.Hour,

		LogLevel: strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogJSON:  e.flag("LOG_JSON"),

		PollInterval:       e.millis("POLL_INTERVAL_MS", 3000),
		NameSettle:         e.millis("NAME_SETTLE_MS", 1000),
		GameSettle:         e.millis("GAME_SETTLE_MS", 2000),
		TxDisplay:          e.millis("TX_DISPLAY_MS", 5000),
		RevealLock:         e.millis("REVEAL_LOCK_MS", 180000),
		RevealTick:         e.millis("REVEAL_TICK_MS", 3000),
		SessionIdleTimeout: time.Duration(e.num("SESSION_IDLE_TIMEOUT_MIN", 30)) * time.Minute,

		APIRateLimit:            e.num("API_RATE_LIMIT", 120),
		APIRateWindowSeconds:    e.num("API_RATE_WINDOW_SECONDS", 60),
		ActionRateLimit:         e.num("ACTION_RATE_LIMIT", 30),
		ActionRateWindowSeconds: e.num("ACTION_RATE_WINDOW_SECONDS", 60),
		AllowedOrigin:           getenv("ALLOWED_ORIGIN"),
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.SignerKeys) == 0 {
		return errors.New("SIGNER_KEYS is not set")
	}

	switch c.ChainMode {
	case chain.ModeRPC:
		if c.RPCURL == "" {
			return errors.New("RPC_URL is not set")
		}
		if c.ContractAddress == "" {
			return errors.New("CONTRACT_ADDRESS is not set")
		}
	case chain.ModeSim:
	default:
		return fmt.Errorf("CHAIN_MODE %q: want rpc or sim", c.ChainMode)
	}
	return nil
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) num(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: not a non-negative integer: %q", key, v))
		return def
	}
	return n
}

func (e *env) millis(key string, def int) time.Duration {
	return time.Duration(e.num(key, def)) * time.Millisecond
}

func (e *env) flag(key string) bool {
	b, _ := strconv.ParseBool(e.get(key))
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
