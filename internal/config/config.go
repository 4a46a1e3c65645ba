package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Поддерживаемые драйверы хранилища.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config описывает параметры сервиса напитков.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth struct {
		Domain        string   `yaml:"domain"`
		Issuer        string   `yaml:"issuer"`
		Audience      string   `yaml:"audience"`
		JWKSURL       string   `yaml:"jwks_url"`
		PublicKeyPath string   `yaml:"public_key_path"`
		Algorithms    []string `yaml:"algorithms"`
		LeewaySeconds int      `yaml:"leeway_seconds"`
	} `yaml:"auth"`
	Storage struct {
		Driver             string `yaml:"driver"`
		Path               string `yaml:"path"`
		DSN                string `yaml:"dsn"`
		AuditRetentionDays int    `yaml:"audit_retention_days"`
	} `yaml:"storage"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"scheduler"`
	Web struct {
		ListenAddr       string  `yaml:"listen_addr"`
		ReadTimeoutMS    int     `yaml:"read_timeout_ms"`
		WriteTimeoutMS   int     `yaml:"write_timeout_ms"`
		RequestTimeoutMS int     `yaml:"request_timeout_ms"`
		ShutdownTimeoutS int     `yaml:"shutdown_timeout_s"`
		MaxBodyBytes     int64   `yaml:"max_body_bytes"`
		RateLimitRPS     float64 `yaml:"rate_limit_rps"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
	} `yaml:"web"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Auth.Audience = "coffeeshop"
	cfg.Auth.Algorithms = []string{"RS256"}
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.Path = "/var/lib/coffeeshop/drinks.db"
	cfg.Storage.AuditRetentionDays = 30
	cfg.Scheduler.IntervalSeconds = 3600
	cfg.Web.ListenAddr = "127.0.0.1:5000"
	cfg.Web.ReadTimeoutMS = 2000
	cfg.Web.WriteTimeoutMS = 5000
	cfg.Web.RequestTimeoutMS = 3000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 20
	cfg.Web.RateLimitRPS = 10
	cfg.Web.RateLimitBurst = 20
	return cfg
}

// Load читает конфиг из файла YAML, поверх значений по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором/CI.
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("config file is empty")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность секций.
func (c Config) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q", c.Log.Format))
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver))
	}
	if c.Storage.AuditRetentionDays < 0 {
		errs = append(errs, errors.New("storage.audit_retention_days must not be negative"))
	}
	if c.Scheduler.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("scheduler.interval_seconds must be positive"))
	}
	if c.Web.RateLimitRPS < 0 {
		errs = append(errs, errors.New("web.rate_limit_rps must not be negative"))
	}
	if c.Web.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("web.max_body_bytes must not be negative"))
	}
	return errors.Join(errs...)
}
