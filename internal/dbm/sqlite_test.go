package dbm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSQLiteManager(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "bases")
	cfg := Config{SQLiteDir: dir}

	m, err := Open(ctx, "SQLite", "facturas", cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.EnsureTable(ctx, SolicitudSAT))
	require.NoError(t, m.EnsureTable(ctx, SolicitudSAT), "second call is a no-op")

	_, err = os.Stat(filepath.Join(dir, "facturas.db"))
	require.NoError(t, err)

	t.Run("insert returns key", func(t *testing.T) {
		pk, err := m.Insert(ctx, SolicitudSAT, map[string]any{
			"id": "req-1", "fi": "2025-01-01", "ff": "2025-01-31", "tipo": "CFDI",
		})
		require.NoError(t, err)
		require.Equal(t, "req-1", pk)

		var estado string
		lite := m.(*sqliteManager)
		require.NoError(t, lite.db.QueryRowContext(ctx,
			`SELECT "estado" FROM "solicitudes_sat" WHERE "id" = ?`, "req-1").Scan(&estado))
		require.Equal(t, "pendiente", estado)
	})

	t.Run("duplicate key is an invalid record", func(t *testing.T) {
		_, err := m.Insert(ctx, SolicitudSAT, map[string]any{"id": "req-1", "fi": "2025-02-01", "ff": "2025-02-28"})
		require.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := m.Insert(ctx, SolicitudSAT, map[string]any{"id": "req-2"})
		require.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("reopen keeps rows", func(t *testing.T) {
		again, err := Open(ctx, "sqlite", "facturas", cfg, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = again.Close() })

		var n int
		require.NoError(t, again.(*sqliteManager).db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM "solicitudes_sat"`).Scan(&n))
		require.Equal(t, 1, n)
	})
}
