package dbm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteExt is appended to the database name to form the file name.
const SQLiteExt = ".db"

type sqliteManager struct {
	sqlTables
	name    string
	path    string
	timeout time.Duration
}

func newSQLiteManager(name, dir string, timeout time.Duration, log zerolog.Logger) *sqliteManager {
	return &sqliteManager{
		sqlTables: sqlTables{d: sqliteDialect{}, log: log, badRecord: isSQLiteRecordError},
		name:      name,
		path:      filepath.Join(dir, name+SQLiteExt),
		timeout:   timeout,
	}
}

func (m *sqliteManager) dsn() string {
	return m.path + "?_pragma=busy_timeout(" + strconv.FormatInt(m.timeout.Milliseconds(), 10) + ")"
}

// EnsureDatabase opens the file, which sqlite creates on first use.
func (m *sqliteManager) EnsureDatabase(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", m.path, err)
	}

	if err := m.connect(ctx, "sqlite", m.dsn(), m.name); err != nil {
		m.log.Error().Err(err).Str("path", m.path).Msg("Failed to open database file")
		return err
	}
	// one writer at a time
	m.db.SetMaxOpenConns(1)

	m.log.Info().Str("path", m.path).Msg("Database verified or created")
	return nil
}

func isSQLiteRecordError(err error) bool {
	var liteErr *sqlite.Error
	return errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
