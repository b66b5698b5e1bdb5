package database

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"contrib.go.opencensus.io/integrations/ocsql"
	"github.com/Notifuse/emailbuilder/config"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// GetConnectionPoolSettings returns connection pool settings based on environment
func GetConnectionPoolSettings() (maxOpen, maxIdle int, maxLifetime time.Duration) {
	environment := os.Getenv("ENVIRONMENT")

	// Use smaller pools for test environment to conserve connections
	if environment == "test" || os.Getenv("INTEGRATION_TESTS") == "true" {
		return 10, 5, 2 * time.Minute
	}

	return 25, 25, 20 * time.Minute
}

// GetDSN returns the DSN of the document database
func GetDSN(cfg *config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		sslMode,
	)
}

type connectOptions struct {
	traced        bool
	statsInterval time.Duration
}

// ConnectOption configures Connect
type ConnectOption func(*connectOptions)

// WithTracing wraps the postgres driver with ocsql so every query gets a span.
// A positive statsInterval also records connection pool stats.
func WithTracing(statsInterval time.Duration) ConnectOption {
	return func(o *connectOptions) {
		o.traced = true
		o.statsInterval = statsInterval
	}
}

// Connect opens and pings the document database, then applies the pool settings
func Connect(cfg *config.DatabaseConfig, opts ...ConnectOption) (*sql.DB, error) {
	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}

	driverName, err := driverFor(o.traced)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, GetDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ConfigurePool(db)

	if o.traced && o.statsInterval > 0 {
		if err := ocsql.RecordStats(db, o.statsInterval); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to record database stats: %w", err)
		}
	}
	return db, nil
}

var (
	tracedDriverOnce sync.Once
	tracedDriverName string
	tracedDriverErr  error
)

// driverFor returns the postgres driver name, registering the ocsql wrapper
// at most once per process.
func driverFor(traced bool) (string, error) {
	if !traced {
		return "postgres", nil
	}
	tracedDriverOnce.Do(func() {
		tracedDriverName, tracedDriverErr = ocsql.Register("postgres", ocsql.WithAllTraceOptions())
	})
	if tracedDriverErr != nil {
		return "", fmt.Errorf("failed to register traced driver: %w", tracedDriverErr)
	}
	return tracedDriverName, nil
}

// ConfigurePool applies GetConnectionPoolSettings to db
func ConfigurePool(db *sql.DB) {
	maxOpen, maxIdle, maxLifetime := GetConnectionPoolSettings()
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	db.SetConnMaxIdleTime(maxLifetime / 2)
}
