package dbm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// maintenance database used to issue CREATE DATABASE
const postgresAdminDatabase = "postgres"

type postgresManager struct {
	name    string
	ep      Endpoint
	timeout time.Duration
	log     zerolog.Logger
	pool    *pgxpool.Pool
	d       postgresDialect
}

func newPostgresManager(name string, ep Endpoint, timeout time.Duration, log zerolog.Logger) *postgresManager {
	return &postgresManager{name: name, ep: ep, timeout: timeout, log: log}
}

func (m *postgresManager) connString(database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(m.ep.User, m.ep.Password),
		Host:     m.ep.addr(),
		Path:     "/" + database,
		RawQuery: "connect_timeout=" + strconv.Itoa(int(m.timeout.Seconds())),
	}
	return u.String()
}

func (m *postgresManager) EnsureDatabase(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, m.connString(postgresAdminDatabase))
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to connect to PostgreSQL server")
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "CREATE DATABASE "+m.d.quote(m.name)+" WITH ENCODING 'UTF8'")
	switch {
	case err == nil:
		m.log.Info().Msg("Database created")
	case isPgCode(err, pgerrcode.DuplicateDatabase):
		m.log.Warn().Msg("Database already exists")
	default:
		m.log.Error().Err(err).Msg("Failed to create database")
		return fmt.Errorf("failed to create database %s: %w", m.name, err)
	}

	pool, err := pgxpool.New(ctx, m.connString(m.name))
	if err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", m.name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database %s: %w", m.name, err)
	}
	m.pool = pool

	return nil
}

func (m *postgresManager) EnsureTable(ctx context.Context, s Schema) error {
	if m.pool == nil {
		return errors.New("database not connected")
	}

	stmt, err := createTableSQL(m.d, s)
	if err != nil {
		return err
	}
	if _, err := m.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.Table, err)
	}

	m.log.Info().Str("tabla", s.Table).Msg("Table created or already present")
	return nil
}

func (m *postgresManager) Insert(ctx context.Context, s Schema, record map[string]any) (any, error) {
	if m.pool == nil {
		return nil, errors.New("database not connected")
	}

	rec, err := s.Normalize(record, time.Now())
	if err != nil {
		return nil, err
	}
	key, ok := s.Key()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrInvalidRecord, s.Model)
	}

	stmt := insertSQL(m.d, s.Table, rec.Columns) + " RETURNING " + m.d.quote(key.Name)

	var pk any
	if err := m.pool.QueryRow(ctx, stmt, rec.Values...).Scan(&pk); err != nil {
		m.log.Error().Err(err).Str("tabla", s.Table).Msg("Failed to insert record")
		if isPgCode(err,
			pgerrcode.UniqueViolation,
			pgerrcode.NotNullViolation,
			pgerrcode.StringDataRightTruncationDataException,
			pgerrcode.InvalidDatetimeFormat) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		return nil, fmt.Errorf("failed to insert into %s: %w", s.Table, err)
	}

	m.log.Info().Str("tabla", s.Table).Any("id", pk).Msg("Record inserted")
	return pk, nil
}

func (m *postgresManager) Close() error {
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
	m.log.Debug().Msg("Connection closed")
	return nil
}

func isPgCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return slices.Contains(codes, pgErr.Code)
}
