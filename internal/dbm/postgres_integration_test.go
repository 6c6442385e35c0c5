//go:build integration

package dbm

import (
	"context"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresEndpoint(t *testing.T, ctx context.Context) Endpoint {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:18-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return Endpoint{Host: host, Port: p, User: "test", Password: "test"}
}

func TestIntegration_PostgresManager(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Postgres: setupPostgresEndpoint(t, ctx)}

	m, err := Open(ctx, "pg", "facturacion", cfg, zerolog.Nop())
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

	// opening again finds the existing database
	again, err := Open(ctx, "postgresql", "facturacion", cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
