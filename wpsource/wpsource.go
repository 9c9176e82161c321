// Package wpsource reads the legacy WordPress MySQL database for sync.
// Every loader is read-only and defensive: the poll plugin tables only
// exist on installs that ran the plugin, so "table missing" and "column
// missing" collapse to zero rows instead of aborting the run. All other
// errors propagate.
package wpsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-sql-driver/mysql"
)

// ErrNotConfigured is returned when host, user, or database name is unset.
var ErrNotConfigured = errors.New("wpsource: WP_DB_HOST, WP_DB_USER, and WP_DB_NAME are required")

// ErrBadPrefix is returned when the table prefix contains characters that
// cannot be safely interpolated into SQL identifiers.
var ErrBadPrefix = errors.New("wpsource: table prefix contains unsupported characters")

// ErrConnect wraps driver-level connection failures so callers can map
// them to a transport-style error without inspecting driver types.
var ErrConnect = errors.New("wpsource: cannot connect to source database")

// prefixPattern is the only shape a table prefix may have; prefixes name
// tables, so they cannot go through placeholder binding.
var prefixPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config holds the source connection parameters. Values come from the
// WP_DB_* environment variables or a YAML config file.
type Config struct {
	Host     string `env:"WP_DB_HOST" yaml:"host"`
	Port     int    `env:"WP_DB_PORT" envDefault:"3306" yaml:"port"`
	User     string `env:"WP_DB_USER" yaml:"user"`
	Password string `env:"WP_DB_PASSWORD" yaml:"password"`
	Database string `env:"WP_DB_NAME" yaml:"database"`
	Prefix   string `env:"WP_DB_PREFIX" envDefault:"wp_" yaml:"prefix"`
}

// Configured reports whether the mandatory connection parameters are set.
func (c Config) Configured() bool {
	return c.Host != "" && c.User != "" && c.Database != ""
}

// Validate checks the mandatory parameters and the prefix shape.
func (c Config) Validate() error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if !prefixPattern.MatchString(c.Prefix) {
		return fmt.Errorf("%w: %q", ErrBadPrefix, c.Prefix)
	}
	return nil
}

func (c Config) dsn() string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4", c.User, c.Password, c.Host, port, c.Database)
}

// Reader pulls source rows over a single MySQL connection pool opened for
// the duration of one sync run. No retry: a failed connect aborts the run.
type Reader struct {
	db     *sql.DB
	prefix string
}

// Connect validates cfg, opens the source database, and verifies it with
// one ping. The returned Reader must be closed by the caller.
func Connect(ctx context.Context, cfg Config) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	// A handful of post-scoped reads run concurrently; everything else is
	// sequential.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return &Reader{db: db, prefix: cfg.Prefix}, nil
}

// Close releases the source connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// table quotes a prefixed table name for interpolation. The prefix has
// already passed prefixPattern, names are compile-time constants.
func (r *Reader) table(name string) string {
	return "`" + r.prefix + name + "`"
}

// missingSchema reports whether err is MySQL's "no such table" (1146) or
// "unknown column" (1054), the two shapes an absent plugin takes.
func missingSchema(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1146 || me.Number == 1054
	}
	return false
}
