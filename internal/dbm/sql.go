package dbm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// dialect renders the statements that differ between servers.
type dialect interface {
	quote(ident string) string
	columnType(col Column) string
	placeholder(n int) string
	// createTable wraps column definitions in a statement that is a no-op when
	// the table exists.
	createTable(table string, defs []string) string
}

func createIfNotExists(d dialect, table string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(table), strings.Join(defs, ",\n\t"))
}

type postgresDialect struct{}

func (postgresDialect) quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func (postgresDialect) columnType(col Column) string {
	switch col.Type {
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	default:
		if col.Size > 0 {
			return "VARCHAR(" + strconv.Itoa(col.Size) + ")"
		}
		return "TEXT"
	}
}

func (postgresDialect) placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (d postgresDialect) createTable(table string, defs []string) string {
	return createIfNotExists(d, table, defs)
}

type mysqlDialect struct{}

func (mysqlDialect) quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) columnType(col Column) string {
	switch col.Type {
	case Date:
		return "DATE"
	case Timestamp:
		return "DATETIME"
	default:
		// TEXT cannot be indexed without a prefix length
		size := col.Size
		if size == 0 {
			size = 255
		}
		return "VARCHAR(" + strconv.Itoa(size) + ")"
	}
}

func (mysqlDialect) placeholder(int) string {
	return "?"
}

func (d mysqlDialect) createTable(table string, defs []string) string {
	return createIfNotExists(d, table, defs)
}

type mssqlDialect struct{}

func (mssqlDialect) quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (mssqlDialect) columnType(col Column) string {
	switch col.Type {
	case Date:
		return "DATE"
	case Timestamp:
		return "DATETIME2"
	default:
		// NVARCHAR(MAX) cannot be a key column
		size := col.Size
		if size == 0 {
			size = 255
		}
		return "NVARCHAR(" + strconv.Itoa(size) + ")"
	}
}

func (mssqlDialect) placeholder(n int) string {
	return "@p" + strconv.Itoa(n)
}

// no IF NOT EXISTS for tables in T-SQL; table is a validated identifier
func (d mssqlDialect) createTable(table string, defs []string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n\t%s\n)",
		table, d.quote(table), strings.Join(defs, ",\n\t"))
}

type sqliteDialect struct{}

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) columnType(col Column) string {
	switch col.Type {
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	default:
		if col.Size > 0 {
			return "VARCHAR(" + strconv.Itoa(col.Size) + ")"
		}
		return "TEXT"
	}
}

func (sqliteDialect) placeholder(int) string {
	return "?"
}

func (d sqliteDialect) createTable(table string, defs []string) string {
	return createIfNotExists(d, table, defs)
}

func createTableSQL(d dialect, s Schema) (string, error) {
	if err := ValidateIdentifier(s.Table); err != nil {
		return "", err
	}

	defs := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		if err := ValidateIdentifier(col.Name); err != nil {
			return "", err
		}
		def := d.quote(col.Name) + " " + d.columnType(col)
		switch {
		case col.PrimaryKey:
			def += " PRIMARY KEY"
		case col.Required:
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	return d.createTable(s.Table, defs), nil
}

func insertSQL(d dialect, table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.quote(c)
		params[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
}
