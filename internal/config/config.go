package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
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
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL             string `yaml:"ttl"`
		AttemptDuration string `yaml:"attempt_duration"`
	} `yaml:"quiz"`
	Auth struct {
		GoogleClientID     string `yaml:"google_client_id"`
		AllowedEmailSuffix string `yaml:"allowed_email_suffix"`
		JWTSecret          string `yaml:"jwt_secret"`
		SessionTTL         string `yaml:"session_ttl"`
	} `yaml:"auth"`
	Admins []string `yaml:"admins"`
	Timers struct {
		RegistrationDefault string `yaml:"registration_default"`
		ResultsDefault      string `yaml:"results_default"`
		RefreshSchedule     string `yaml:"refresh_schedule"`
	} `yaml:"timers"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Load reads YAML config from path. A missing file yields an empty config so
// the service can run from environment variables alone; environment overrides
// are applied in both cases.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding values that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORTAL_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PORTAL_GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("PORTAL_EMAIL_SUFFIX"); v != "" {
		cfg.Auth.AllowedEmailSuffix = v
	}
	if v := os.Getenv("PORTAL_ADMINS"); v != "" {
		cfg.Admins = splitList(v)
	}
	if v := os.Getenv("PORTAL_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("PORTAL_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
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
