package store

import (
	"strings"
	"time"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG   PGConfig
	Lite LiteConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Guard/boot knobs:
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// LiteConfig configures a local sqlite database file
type LiteConfig struct {
	Enabled bool
	Path    string
	// ReadOnly opens the file with mode=ro so a corrupt run can never touch it
	ReadOnly bool
}

// ForDSN fills the matching backend from a single DSN string:
// postgres:// (or postgresql://) selects postgres, anything else is treated
// as a sqlite file path
func ForDSN(dsn string) Config {
	var cfg Config
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		cfg.PG = PGConfig{Enabled: true, URL: dsn}
		return cfg
	}
	cfg.Lite = LiteConfig{Enabled: true, Path: dsn, ReadOnly: true}
	return cfg
}
