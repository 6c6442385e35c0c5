package dbm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTableSQL(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		stmt, err := createTableSQL(postgresDialect{}, SolicitudSAT)
		require.NoError(t, err)
		require.Equal(t, `CREATE TABLE IF NOT EXISTS "solicitudes_sat" (
	"id" VARCHAR(64) PRIMARY KEY,
	"fi" DATE NOT NULL,
	"ff" DATE NOT NULL,
	"solicitado" TIMESTAMP,
	"tipo" TEXT,
	"estado" VARCHAR(20)
)`, stmt)
	})

	t.Run("mysql", func(t *testing.T) {
		stmt, err := createTableSQL(mysqlDialect{}, SolicitudSAT)
		require.NoError(t, err)
		require.Equal(t, "CREATE TABLE IF NOT EXISTS `solicitudes_sat` (\n"+
			"\t`id` VARCHAR(64) PRIMARY KEY,\n"+
			"\t`fi` DATE NOT NULL,\n"+
			"\t`ff` DATE NOT NULL,\n"+
			"\t`solicitado` DATETIME,\n"+
			"\t`tipo` VARCHAR(255),\n"+
			"\t`estado` VARCHAR(20)\n"+
			")", stmt)
	})

	t.Run("mssql", func(t *testing.T) {
		stmt, err := createTableSQL(mssqlDialect{}, SolicitudSAT)
		require.NoError(t, err)
		require.Equal(t, "IF OBJECT_ID(N'solicitudes_sat', N'U') IS NULL\n"+
			"CREATE TABLE [solicitudes_sat] (\n"+
			"\t[id] NVARCHAR(64) PRIMARY KEY,\n"+
			"\t[fi] DATE NOT NULL,\n"+
			"\t[ff] DATE NOT NULL,\n"+
			"\t[solicitado] DATETIME2,\n"+
			"\t[tipo] NVARCHAR(255),\n"+
			"\t[estado] NVARCHAR(20)\n"+
			")", stmt)
	})

	t.Run("sqlite", func(t *testing.T) {
		stmt, err := createTableSQL(sqliteDialect{}, SolicitudSAT)
		require.NoError(t, err)
		require.Equal(t, `CREATE TABLE IF NOT EXISTS "solicitudes_sat" (
	"id" VARCHAR(64) PRIMARY KEY,
	"fi" DATE NOT NULL,
	"ff" DATE NOT NULL,
	"solicitado" TIMESTAMP,
	"tipo" TEXT,
	"estado" VARCHAR(20)
)`, stmt)
	})

	t.Run("invalid table name", func(t *testing.T) {
		_, err := createTableSQL(postgresDialect{}, Schema{Model: "X", Table: "bad name"})
		require.ErrorIs(t, err, ErrInvalidIdentifier)
	})
}

func TestInsertSQL(t *testing.T) {
	cols := []string{"rfc_empresa", "email"}

	require.Equal(t,
		`INSERT INTO "certificados" ("rfc_empresa", "email") VALUES ($1, $2)`,
		insertSQL(postgresDialect{}, "certificados", cols))

	require.Equal(t,
		"INSERT INTO `certificados` (`rfc_empresa`, `email`) VALUES (?, ?)",
		insertSQL(mysqlDialect{}, "certificados", cols))

	require.Equal(t,
		"INSERT INTO [certificados] ([rfc_empresa], [email]) VALUES (@p1, @p2)",
		insertSQL(mssqlDialect{}, "certificados", cols))

	require.Equal(t,
		`INSERT INTO "certificados" ("rfc_empresa", "email") VALUES (?, ?)`,
		insertSQL(sqliteDialect{}, "certificados", cols))
}
