package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAppName        = "UserConsole"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultServiceTimeout = 15 * time.Second
	defaultSessionTTL     = 30 * time.Minute
	defaultGuardTTL       = 30 * time.Second
	defaultAttemptLimit   = 5
	defaultJournalDriver  = "memory"
	configFileEnvVar      = "CONSOLE_CONFIG"
)

// Config captures application runtime configuration loaded from the environment,
// an optional .env file and an optional YAML file.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	ShutdownPeriod time.Duration

	// Remote user service.
	ServiceURL       string
	ServiceToken     string
	ServiceTokenFile string
	ServiceTimeout   time.Duration

	RedisURL     string
	SessionTTL   time.Duration
	GuardTTL     time.Duration
	AttemptLimit int

	JournalDriver string
	DatabaseURL   string
	SQLitePath    string

	OperatorUser         string
	OperatorPasswordHash string
}

// Load reads configuration values and populates a Config instance. A .env file in
// the working directory is loaded first when present; real environment variables
// win over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString(configFileEnvVar); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("USER_SERVICE_TIMEOUT", defaultServiceTimeout)
	v.SetDefault("SESSION_TTL", defaultSessionTTL)
	v.SetDefault("GUARD_TTL", defaultGuardTTL)
	v.SetDefault("ATTEMPT_LIMIT_PER_MIN", defaultAttemptLimit)
	v.SetDefault("JOURNAL_DRIVER", defaultJournalDriver)
	v.SetDefault("OPERATOR_USER", "admin")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		configFileEnvVar,
		"USER_SERVICE_URL",
		"USER_SERVICE_TOKEN",
		"USER_SERVICE_TOKEN_FILE",
		"REDIS_URL",
		"DATABASE_URL",
		"SQLITE_PATH",
		"OPERATOR_PASSWORD_HASH",
	} {
		v.SetDefault(key, "")
	}
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppName:              v.GetString("APP_NAME"),
		AppEnv:               v.GetString("APP_ENV"),
		Port:                 v.GetString("PORT"),
		LogLevel:             strings.ToLower(v.GetString("LOG_LEVEL")),
		ShutdownPeriod:       v.GetDuration("SHUTDOWN_TIMEOUT"),
		ServiceURL:           strings.TrimRight(v.GetString("USER_SERVICE_URL"), "/"),
		ServiceToken:         strings.TrimSpace(v.GetString("USER_SERVICE_TOKEN")),
		ServiceTokenFile:     v.GetString("USER_SERVICE_TOKEN_FILE"),
		ServiceTimeout:       v.GetDuration("USER_SERVICE_TIMEOUT"),
		RedisURL:             v.GetString("REDIS_URL"),
		SessionTTL:           v.GetDuration("SESSION_TTL"),
		GuardTTL:             v.GetDuration("GUARD_TTL"),
		AttemptLimit:         v.GetInt("ATTEMPT_LIMIT_PER_MIN"),
		JournalDriver:        strings.ToLower(v.GetString("JOURNAL_DRIVER")),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		SQLitePath:           v.GetString("SQLITE_PATH"),
		OperatorUser:         v.GetString("OPERATOR_USER"),
		OperatorPasswordHash: v.GetString("OPERATOR_PASSWORD_HASH"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ServiceURL == "" {
		return errors.New("USER_SERVICE_URL must be set")
	}
	if c.ServiceToken == "" && c.ServiceTokenFile == "" {
		return errors.New("USER_SERVICE_TOKEN or USER_SERVICE_TOKEN_FILE must be set")
	}
	if c.ServiceTimeout <= 0 {
		return fmt.Errorf("invalid USER_SERVICE_TIMEOUT: %s", c.ServiceTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid SESSION_TTL: %s", c.SessionTTL)
	}
	if c.GuardTTL <= 0 {
		return fmt.Errorf("invalid GUARD_TTL: %s", c.GuardTTL)
	}

	switch c.JournalDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set when JOURNAL_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be set when JOURNAL_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unknown JOURNAL_DRIVER %q", c.JournalDriver)
	}
	return nil
}

// ValidateServer checks the settings only the long-running server needs. One-shot
// commands never touch Redis, so it is required here rather than in Load.
func (c Config) ValidateServer() error {
	if !c.IsDev() && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the console runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
