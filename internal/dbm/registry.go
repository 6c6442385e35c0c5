package dbm

import (
	"maps"
	"slices"
	"time"

	"github.com/civir-gex/sgextools/internal/models"
)

// ColumnType is the portable type of a column, rendered per dialect.
type ColumnType int

const (
	Text ColumnType = iota
	Date
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case Text:
		return "text"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column describes one table column.
type Column struct {
	Name       string
	Type       ColumnType
	Size       int // max length for Text columns, 0 means unbounded
	PrimaryKey bool
	Required   bool

	// Default supplies a value when the record omits the column.
	Default func(now time.Time) any
}

// Schema is a model name bound to a table layout.
type Schema struct {
	Model   string
	Table   string
	Columns []Column
}

// Key returns the primary key column.
func (s Schema) Key() (Column, bool) {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Registry maps model names to schemas. It is immutable after construction.
type Registry struct {
	schemas map[string]Schema
}

func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Model] = s
	}
	return r
}

// Lookup returns the schema registered under the model name.
func (r *Registry) Lookup(model string) (Schema, bool) {
	s, ok := r.schemas[model]
	return s, ok
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.schemas))
}

// CertificadoSAT is the certificados table, shared with the certificate store.
var CertificadoSAT = Schema{
	Model: "CertificadoSAT",
	Table: "certificados",
	Columns: []Column{
		{Name: "rfc_empresa", Type: Text, Size: 20, PrimaryKey: true, Required: true},
		{Name: "rfc_representante", Type: Text, Size: 20},
		{Name: "razon_social", Type: Text, Size: 255},
		{Name: "email", Type: Text, Size: 255},
		{Name: "serie", Type: Text, Size: 100},
		{Name: "valido_desde", Type: Timestamp},
		{Name: "valido_hasta", Type: Timestamp},
		{Name: "pwd", Type: Text, Size: 255},
	},
}

// SolicitudSAT is the solicitudes_sat table of bulk download requests.
var SolicitudSAT = Schema{
	Model: "SolicitudSAT",
	Table: "solicitudes_sat",
	Columns: []Column{
		{Name: "id", Type: Text, Size: 64, PrimaryKey: true, Required: true},
		{Name: "fi", Type: Date, Required: true},
		{Name: "ff", Type: Date, Required: true},
		{Name: "solicitado", Type: Timestamp, Default: func(now time.Time) any { return now }},
		{Name: "tipo", Type: Text},
		{Name: "estado", Type: Text, Size: 20, Default: func(time.Time) any { return string(models.SatRequestPending) }},
	},
}

// DefaultRegistry holds the models the server can bootstrap.
var DefaultRegistry = NewRegistry(CertificadoSAT, SolicitudSAT)
