package dbm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// sqlTables creates tables and inserts rows for the servers reached through
// database/sql. Managers embed it and open db in EnsureDatabase.
type sqlTables struct {
	db  *sql.DB
	d   dialect
	log zerolog.Logger

	// badRecord reports driver errors caused by the record's values.
	badRecord func(error) bool
}

func (t *sqlTables) EnsureTable(ctx context.Context, s Schema) error {
	if t.db == nil {
		return errors.New("database not connected")
	}

	stmt, err := createTableSQL(t.d, s)
	if err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.Table, err)
	}

	t.log.Info().Str("tabla", s.Table).Msg("Table created or already present")
	return nil
}

// Insert returns the key supplied by the record.
func (t *sqlTables) Insert(ctx context.Context, s Schema, record map[string]any) (any, error) {
	if t.db == nil {
		return nil, errors.New("database not connected")
	}

	rec, err := s.Normalize(record, time.Now())
	if err != nil {
		return nil, err
	}

	if _, err := t.db.ExecContext(ctx, insertSQL(t.d, s.Table, rec.Columns), rec.Values...); err != nil {
		t.log.Error().Err(err).Str("tabla", s.Table).Msg("Failed to insert record")
		if t.badRecord != nil && t.badRecord(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		return nil, fmt.Errorf("failed to insert into %s: %w", s.Table, err)
	}

	t.log.Info().Str("tabla", s.Table).Any("id", rec.Key).Msg("Record inserted")
	return rec.Key, nil
}

func (t *sqlTables) Close() error {
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	t.log.Debug().Msg("Connection closed")
	return err
}

// connect opens driverName with dsn and checks the connection.
func (t *sqlTables) connect(ctx context.Context, driverName, dsn, name string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database %s: %w", name, err)
	}
	t.db = db
	return nil
}
