package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names the optional YAML config file. Environment variables always win over it.
const PathEnvVar = "CONFIG_PATH"

const minJWTSecretLen = 32

// Config captures all runtime configuration. Keys mirror the environment variable names.
type Config struct {
	Port             string `koanf:"port"`
	ReadTimeoutSecs  int    `koanf:"server_read_timeout"`
	WriteTimeoutSecs int    `koanf:"server_write_timeout"`
	IdleTimeoutSecs  int    `koanf:"server_idle_timeout"`

	DBURL             string `koanf:"db_url"`
	DBMaxConns        int    `koanf:"db_max_conns"`
	DBMinConns        int    `koanf:"db_min_conns"`
	DBMaxIdleSecs     int    `koanf:"db_max_conn_idle_secs"`
	DBMaxLifeSecs     int    `koanf:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs int    `koanf:"db_conn_timeout_secs"`
	DBStatementCache  int    `koanf:"db_statement_cache_capacity"`
	DBAutoMigrate     bool   `koanf:"db_auto_migrate"`

	JWTSecret  string `koanf:"jwt_secret"`
	JWTTTLSecs int    `koanf:"jwt_ttl_secs"`
	BcryptCost int    `koanf:"bcrypt_cost"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	AuthRateLimitRequests   int `koanf:"auth_rate_limit_requests"`
	AuthRateLimitWindowSecs int `koanf:"auth_rate_limit_window_secs"`

	AdminUsername string `koanf:"admin_username"`
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
}

func defaults() Config {
	return Config{
		Port:                    "8080",
		ReadTimeoutSecs:         15,
		WriteTimeoutSecs:        15,
		IdleTimeoutSecs:         60,
		DBMaxConns:              20,
		DBMinConns:              2,
		DBMaxIdleSecs:           300,
		DBMaxLifeSecs:           3600,
		DBConnTimeoutSecs:       10,
		DBStatementCache:        256,
		DBAutoMigrate:           true,
		JWTTTLSecs:              24 * 60 * 60,
		BcryptCost:              12,
		LogLevel:                "info",
		LogFormat:               "json",
		CORSAllowedOrigins:      []string{"http://localhost:3000"},
		AuthRateLimitRequests:   20,
		AuthRateLimitWindowSecs: 60,
	}
}

// knownKeys lists every config key that may be set from the environment.
var knownKeys = map[string]struct{}{}

func init() {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		panic(fmt.Sprintf("config: flatten defaults: %v", err))
	}
	for _, key := range k.Keys() {
		knownKeys[key] = struct{}{}
	}
}

// Load reads configuration from defaults, an optional YAML file and environment variables,
// then validates it.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(PathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if raw, ok := k.Get("cors_allowed_origins").(string); ok {
		if err := k.Set("cors_allowed_origins", splitList(raw)); err != nil {
			return Config{}, fmt.Errorf("parse CORS_ALLOWED_ORIGINS: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}
	if c.JWTTTLSecs <= 0 {
		return fmt.Errorf("JWT_TTL_SECS must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if c.AuthRateLimitRequests < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_REQUESTS must be non-negative")
	}
	if c.AuthRateLimitRequests > 0 && c.AuthRateLimitWindowSecs <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_WINDOW_SECS must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	admin := []string{c.AdminUsername, c.AdminEmail, c.AdminPassword}
	set := 0
	for _, v := range admin {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(admin) {
		return fmt.Errorf("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// BootstrapAdmin reports whether an administrator account should be ensured at startup.
func (c Config) BootstrapAdmin() bool {
	return c.AdminUsername != ""
}

// envKey maps PORT -> port, DB_URL -> db_url and drops anything unknown.
func envKey(key string) string {
	key = strings.ToLower(key)
	if _, ok := knownKeys[key]; ok {
		return key
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
