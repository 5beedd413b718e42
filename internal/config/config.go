// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"licensehub.dev/internal/license"
)

const (
	ServerPrefix  = "LICENSEHUB"
	MonitorPrefix = "LICENSE"
)

// Server configures cmd/api.
type Server struct {
	Addr            string        `envconfig:"ADDR" default:":4000"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	DatabaseURL     string        `envconfig:"PG_DSN"`
	AuthSecret      string        `envconfig:"AUTH_SECRET"`
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	DefaultStatus   string        `envconfig:"DEFAULT_STATUS" default:"NOT_PAID"`
	AdminUsername   string        `envconfig:"ADMIN_USERNAME"`
	AdminPassword   string        `envconfig:"ADMIN_PASSWORD"`
	CheckRate       float64       `envconfig:"CHECK_RATE" default:"5"`
	CheckBurst      int           `envconfig:"CHECK_BURST" default:"10"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	MigrateOnStart  bool          `envconfig:"MIGRATE_ON_START" default:"true"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Commit          string        `envconfig:"COMMIT" default:"none"`
}

// LoadServer reads LICENSEHUB_* variables and validates them.
func LoadServer() (Server, error) {
	var cfg Server
	if err := envconfig.Process(ServerPrefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c Server) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AuthSecret) == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required"))
	}
	if _, err := license.ParseStatus(c.DefaultStatus); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_STATUS: %w", err))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.CheckRate <= 0 || c.CheckBurst <= 0 {
		errs = append(errs, errors.New("CHECK_RATE and CHECK_BURST must be positive"))
	}
	if c.AdminUsername != "" && len(c.AdminPassword) < 6 {
		errs = append(errs, errors.New("ADMIN_PASSWORD must be at least 6 characters when ADMIN_USERNAME is set"))
	}
	return errors.Join(errs...)
}

// InitialStatus returns DefaultStatus as a license.Status.
func (c Server) InitialStatus() license.Status {
	s, err := license.ParseStatus(c.DefaultStatus)
	if err != nil {
		return license.StatusNotPaid
	}
	return s
}

// Monitor configures cmd/monitor. Each variable may also be given without the
// LICENSE_ prefix, e.g. PROJECT_IDENTIFIER.
type Monitor struct {
	ServerURL         string        `envconfig:"SERVER_URL" default:"http://localhost:4000"`
	ProjectIdentifier string        `envconfig:"PROJECT_IDENTIFIER"`
	CheckInterval     time.Duration `envconfig:"CHECK_INTERVAL" default:"1h"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	GraceFailures     int           `envconfig:"GRACE_FAILURES" default:"3"`
	ListenAddr        string        `envconfig:"LISTEN_ADDR" default:":8081"`
}

// LoadMonitor reads LICENSE_* variables and validates them.
func LoadMonitor() (Monitor, error) {
	var cfg Monitor
	if err := envconfig.Process(MonitorPrefix, &cfg); err != nil {
		return Monitor{}, fmt.Errorf("load monitor config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Monitor{}, fmt.Errorf("monitor config: %w", err)
	}
	return cfg, nil
}

// Validate enforces that a hung check can never overlap the next poll.
func (c Monitor) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ProjectIdentifier) == "" {
		errs = append(errs, errors.New("PROJECT_IDENTIFIER is required"))
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SERVER_URL %q is not an absolute URL", c.ServerURL))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, errors.New("CHECK_INTERVAL must be positive"))
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout >= c.CheckInterval {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive and shorter than CHECK_INTERVAL"))
	}
	if c.GraceFailures < 1 {
		errs = append(errs, errors.New("GRACE_FAILURES must be at least 1"))
	}
	return errors.Join(errs...)
}
