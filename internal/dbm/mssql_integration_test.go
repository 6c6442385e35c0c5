//go:build integration

package dbm

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mssqlTestPassword = "Sgex-Test-2025!"

func setupMSSQLEndpoint(t *testing.T, ctx context.Context) Endpoint {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mcr.microsoft.com/mssql/server:2022-latest",
			ExposedPorts: []string{"1433/tcp"},
			Env: map[string]string{
				"ACCEPT_EULA":       "Y",
				"MSSQL_SA_PASSWORD": mssqlTestPassword,
			},
			WaitingFor: wait.ForLog("SQL Server is now ready for client connections").
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1433")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return Endpoint{Host: host, Port: p, User: "sa", Password: mssqlTestPassword}
}

func TestIntegration_MSSQLManager(t *testing.T) {
	ctx := context.Background()
	cfg := Config{MSSQL: setupMSSQLEndpoint(t, ctx), ConnectTimeout: 30 * time.Second}

	m, err := Open(ctx, "mssql", "facturacion", cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.EnsureTable(ctx, SolicitudSAT))
	require.NoError(t, m.EnsureTable(ctx, SolicitudSAT))

	pk, err := m.Insert(ctx, SolicitudSAT, map[string]any{
		"id": "req-1", "fi": "2025-01-01", "ff": "2025-01-31", "tipo": "CFDI",
	})
	require.NoError(t, err)
	require.Equal(t, "req-1", pk)

	_, err = m.Insert(ctx, SolicitudSAT, map[string]any{"id": "req-1", "fi": "2025-01-01", "ff": "2025-01-31"})
	require.ErrorIs(t, err, ErrInvalidRecord)

	// the second open finds the database in sys.databases
	again, err := Open(ctx, "mssql", "facturacion", cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
