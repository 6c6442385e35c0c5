package dbm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnsupportedDatabase = errors.New("unsupported database type")

// Kind identifies a database server flavour.
type Kind string

const (
	KindPostgres Kind = "postgresql"
	KindMySQL    Kind = "mysql"
	KindMSSQL    Kind = "mssql"
	KindSQLite   Kind = "sqlite"
)

// ParseKind accepts the names clients send, case-insensitively. "pg" is an alias
// for postgresql.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "pg":
		return KindPostgres, nil
	case "mysql":
		return KindMySQL, nil
	case "mssql":
		return KindMSSQL, nil
	case "sqlite":
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDatabase, s)
	}
}

// Manager bootstraps one named database: creates it, creates model tables and
// inserts rows.
type Manager interface {
	// EnsureDatabase creates the database if it does not exist.
	EnsureDatabase(ctx context.Context) error
	// EnsureTable creates the schema's table if it does not exist.
	EnsureTable(ctx context.Context, s Schema) error
	// Insert validates and writes one record, returning its primary key.
	Insert(ctx context.Context, s Schema, record map[string]any) (any, error)
	Close() error
}

// Endpoint is the server address and credentials for one kind of database.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (e Endpoint) addr() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// Config holds the endpoints for every supported kind.
type Config struct {
	Postgres Endpoint
	MySQL    Endpoint
	MSSQL    Endpoint

	// SQLiteDir holds the sqlite files, one <name>.db per database.
	SQLiteDir string

	ConnectTimeout time.Duration
}

// Getter reads a configuration value with a default.
type Getter interface {
	Get(key, def string) string
}

// ConfigFrom reads PG_*, MYSQL_* and MSSQL_* settings, falling back to localhost
// and the default ports. SQL Server settings also accept the DBSERVER, DBPUERTO,
// DBUSER and DBPASSWD keys. SQLITE_DIR defaults to the working directory.
func ConfigFrom(env Getter) (Config, error) {
	pgPort, err := strconv.Atoi(env.Get("PG_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PG_PORT: %w", err)
	}
	myPort, err := strconv.Atoi(env.Get("MYSQL_PORT", "3306"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MYSQL_PORT: %w", err)
	}
	msPort, err := strconv.Atoi(lookup(env, "1433", "MSSQL_PORT", "DBPUERTO"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MSSQL_PORT: %w", err)
	}

	return Config{
		Postgres: Endpoint{
			Host:     env.Get("PG_HOST", "localhost"),
			Port:     pgPort,
			User:     env.Get("PG_USER", ""),
			Password: env.Get("PG_PASSWORD", ""),
		},
		MySQL: Endpoint{
			Host:     env.Get("MYSQL_HOST", "localhost"),
			Port:     myPort,
			User:     env.Get("MYSQL_USER", ""),
			Password: env.Get("MYSQL_PASSWORD", ""),
		},
		MSSQL: Endpoint{
			Host:     lookup(env, "localhost", "MSSQL_HOST", "DBSERVER"),
			Port:     msPort,
			User:     lookup(env, "", "MSSQL_USER", "DBUSER"),
			Password: lookup(env, "", "MSSQL_PASSWORD", "DBPASSWD"),
		},
		SQLiteDir: env.Get("SQLITE_DIR", "."),
	}, nil
}

// lookup returns the first non-empty value among keys.
func lookup(env Getter, def string, keys ...string) string {
	for _, k := range keys {
		if v := env.Get(k, ""); v != "" {
			return v
		}
	}
	return def
}

// Open returns a manager for the named database, creating the database first when
// it is missing.
func Open(ctx context.Context, kind, name string, cfg Config, log zerolog.Logger) (Manager, error) {
	k, err := ParseKind(kind)
	if err != nil {
		log.Error().Str("tipo", kind).Msg("Unsupported database type")
		return nil, err
	}
	if err := ValidateIdentifier(name); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	log = log.With().Str("tipo", string(k)).Str("base", name).Logger()
	log.Info().Msg("Initialising database manager")

	var m Manager
	switch k {
	case KindPostgres:
		m = newPostgresManager(name, cfg.Postgres, cfg.ConnectTimeout, log)
	case KindMySQL:
		m = newMySQLManager(name, cfg.MySQL, cfg.ConnectTimeout, log)
	case KindMSSQL:
		m = newMSSQLManager(name, cfg.MSSQL, cfg.ConnectTimeout, log)
	case KindSQLite:
		m = newSQLiteManager(name, cfg.SQLiteDir, cfg.ConnectTimeout, log)
	}

	if err := m.EnsureDatabase(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}

	return m, nil
}
