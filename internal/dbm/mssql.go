package dbm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"
)

// database used to look up and create the target database
const mssqlAdminDatabase = "master"

// server error numbers that indicate a bad record rather than a server fault
var mssqlRecordErrors = []int32{
	241,  // conversion failed when converting date and/or time
	515,  // cannot insert NULL
	2601, // duplicate key row in unique index
	2627, // violation of PRIMARY KEY or UNIQUE constraint
	2628, // string or binary data would be truncated
	8152, // string or binary data would be truncated (pre 2019)
}

type mssqlManager struct {
	sqlTables
	name    string
	ep      Endpoint
	timeout time.Duration
}

func newMSSQLManager(name string, ep Endpoint, timeout time.Duration, log zerolog.Logger) *mssqlManager {
	return &mssqlManager{
		sqlTables: sqlTables{d: mssqlDialect{}, log: log, badRecord: isMSSQLRecordError},
		name:      name,
		ep:        ep,
		timeout:   timeout,
	}
}

// dsn encrypts the connection but trusts the server certificate, matching
// typical on-premise installs with self-signed certificates.
func (m *mssqlManager) dsn(database string) string {
	q := url.Values{}
	q.Set("database", database)
	q.Set("encrypt", "true")
	q.Set("TrustServerCertificate", "true")
	q.Set("connection timeout", strconv.Itoa(int(m.timeout.Seconds())))

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(m.ep.User, m.ep.Password),
		Host:     m.ep.addr(),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (m *mssqlManager) EnsureDatabase(ctx context.Context) error {
	admin, err := sql.Open("sqlserver", m.dsn(mssqlAdminDatabase))
	if err != nil {
		return fmt.Errorf("failed to open sql server connection: %w", err)
	}
	defer admin.Close()

	var found int
	err = admin.QueryRowContext(ctx, "SELECT COUNT(*) FROM sys.databases WHERE name = @p1", m.name).Scan(&found)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to look up database")
		return fmt.Errorf("failed to look up database %s: %w", m.name, err)
	}

	if found == 0 {
		m.log.Info().Msg("Database does not exist, creating")
		if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+m.d.quote(m.name)); err != nil {
			m.log.Error().Err(err).Msg("Failed to create database")
			return fmt.Errorf("failed to create database %s: %w", m.name, err)
		}
		m.log.Info().Msg("Database created")
	} else {
		m.log.Info().Msg("Database already exists")
	}

	return m.connect(ctx, "sqlserver", m.dsn(m.name), m.name)
}

func isMSSQLRecordError(err error) bool {
	var msErr mssql.Error
	return errors.As(err, &msErr) && slices.Contains(mssqlRecordErrors, msErr.Number)
}
