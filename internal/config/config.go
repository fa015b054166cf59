package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		SessionTTL string `yaml:"session_ttl"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Quiz struct {
		PassingThreshold string `yaml:"passing_threshold"`
		CountUnanswered  bool   `yaml:"count_unanswered"`
		SeedSample       bool   `yaml:"seed_sample"`
	} `yaml:"quiz"`
	Log struct {
		Level string `yaml:"level"`
		Color bool   `yaml:"color"`
	} `yaml:"log"`
	Bootstrap struct {
		AdminUsername string `yaml:"admin_username"`
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"bootstrap"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error; the environment alone can configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment when present.
// Variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Server.Port, "PORT")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Quiz.PassingThreshold, "PASSING_THRESHOLD")
	override(&cfg.Bootstrap.AdminUsername, "ADMIN_USERNAME")
	override(&cfg.Bootstrap.AdminPassword, "ADMIN_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
