// Package config loads application configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shortstat/shortstat/internal/entity"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env               string           `yaml:"env"`
	ShortCodeLength   int              `yaml:"short_code_length"`
	InitialVisitCount int64            `yaml:"initial_visit_count"`
	VisitMode         entity.VisitMode `yaml:"visit_mode"`
	CountMode         entity.CountMode `yaml:"count_mode"`
	StrictValidation  bool             `yaml:"strict_validation"`
	ReportingTimezone string           `yaml:"reporting_timezone"`
	MasterKey         string           `yaml:"master_key"`
	CleanKey          string           `yaml:"clean_key"`
	HTTPServer        `yaml:"http_server"`
	Postgres          `yaml:"postgres"`
	Redis             `yaml:"redis"`
	Upload            `yaml:"upload"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis is optional. An empty host disables the mapping cache.
type Redis struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

var defaultRedis = Redis{
	Port: 6379,
	TTL:  time.Hour,
}

func (r *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (r *Redis) Enabled() bool {
	return r.Host != ""
}

type Upload struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

var defaultUpload = Upload{
	Dir: "uploads",
	TTL: 30 * 24 * time.Hour,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.ShortCodeLength = 6
	cfg.VisitMode = entity.VisitModeAggregate
	cfg.CountMode = entity.CountModePerOriginalURL
	cfg.ReportingTimezone = "UTC"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Upload = defaultUpload
}

func validate(cfg *Config) error {
	if !cfg.VisitMode.Valid() {
		return fmt.Errorf("unknown visit_mode %q", cfg.VisitMode)
	}

	if !cfg.CountMode.Valid() {
		return fmt.Errorf("unknown count_mode %q", cfg.CountMode)
	}

	if cfg.ShortCodeLength < 1 {
		return fmt.Errorf("short_code_length must be positive, got %d", cfg.ShortCodeLength)
	}

	if cfg.InitialVisitCount < 0 {
		return fmt.Errorf("initial_visit_count must not be negative, got %d", cfg.InitialVisitCount)
	}

	return nil
}
