package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// OpenConfig selects a backend by driver name. Only the fields for the
// chosen driver are read.
type OpenConfig struct {
	Driver        string
	DatabaseURL   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open connects the configured backend. An empty driver means postgres.
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("database URL required")
		}
		s, err := NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return s, nil
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("sqlite path required")
		}
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return s, nil
	case DriverMongo:
		if cfg.MongoURI == "" {
			return nil, errors.New("mongo URI required")
		}
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		s, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
