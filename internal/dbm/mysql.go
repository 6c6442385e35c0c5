package dbm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// server error numbers that indicate a bad record rather than a server fault
var mysqlRecordErrors = []uint16{
	1048, // ER_BAD_NULL_ERROR
	1062, // ER_DUP_ENTRY
	1292, // ER_TRUNCATED_WRONG_VALUE
	1406, // ER_DATA_TOO_LONG
}

type mysqlManager struct {
	sqlTables
	name    string
	ep      Endpoint
	timeout time.Duration
}

func newMySQLManager(name string, ep Endpoint, timeout time.Duration, log zerolog.Logger) *mysqlManager {
	return &mysqlManager{
		sqlTables: sqlTables{d: mysqlDialect{}, log: log, badRecord: isMySQLRecordError},
		name:      name,
		ep:        ep,
		timeout:   timeout,
	}
}

func (m *mysqlManager) dsn(database string) string {
	cfg := gomysql.NewConfig()
	cfg.User = m.ep.User
	cfg.Passwd = m.ep.Password
	cfg.Net = "tcp"
	cfg.Addr = m.ep.addr()
	cfg.DBName = database
	cfg.Timeout = m.timeout
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func (m *mysqlManager) EnsureDatabase(ctx context.Context) error {
	admin, err := sql.Open("mysql", m.dsn(""))
	if err != nil {
		return fmt.Errorf("failed to open mysql connection: %w", err)
	}
	defer admin.Close()

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+m.d.quote(m.name)); err != nil {
		m.log.Error().Err(err).Msg("Failed to create database")
		return fmt.Errorf("failed to create database %s: %w", m.name, err)
	}
	m.log.Info().Msg("Database verified or created")

	return m.connect(ctx, "mysql", m.dsn(m.name), m.name)
}

func isMySQLRecordError(err error) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && slices.Contains(mysqlRecordErrors, myErr.Number)
}
