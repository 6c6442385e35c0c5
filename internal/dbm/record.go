package dbm

import (
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalidRecord     = errors.New("invalid record")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier rejects database, table and column names that would need quoting
// tricks to be safe.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// accepted layouts for timestamp values, tried in order
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Record is a row ready for insertion: columns in schema order with converted values.
type Record struct {
	Columns []string
	Values  []any
	Key     any
}

// Normalize checks raw (typically decoded JSON) against the schema and converts the
// values to driver types. Unknown columns, missing required columns and values of the
// wrong shape fail with ErrInvalidRecord.
func (s Schema) Normalize(raw map[string]any, now time.Time) (*Record, error) {
	for name := range raw {
		if _, ok := s.column(name); !ok {
			return nil, fmt.Errorf("%w: unknown column %q for %s", ErrInvalidRecord, name, s.Model)
		}
	}

	rec := &Record{}
	for _, col := range s.Columns {
		value, present := raw[col.Name]
		if !present || value == nil {
			switch {
			case col.Default != nil:
				value = col.Default(now)
			case col.Required:
				return nil, fmt.Errorf("%w: column %q is required", ErrInvalidRecord, col.Name)
			default:
				continue
			}
		}

		converted, err := convert(col, value)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidRecord, col.Name, err)
		}

		rec.Columns = append(rec.Columns, col.Name)
		rec.Values = append(rec.Values, converted)
		if col.PrimaryKey {
			rec.Key = converted
		}
	}

	return rec, nil
}

func convert(col Column, value any) (any, error) {
	switch col.Type {
	case Text:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		if col.Size > 0 && utf8.RuneCountInString(s) > col.Size {
			return nil, fmt.Errorf("longer than %d characters", col.Size)
		}
		return s, nil

	case Date:
		t, err := toTime(value, time.DateOnly, time.RFC3339)
		if err != nil {
			return nil, err
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil

	case Timestamp:
		return toTime(value, timestampLayouts...)

	default:
		return nil, fmt.Errorf("unsupported column type %s", col.Type)
	}
}

func toTime(value any, layouts ...string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", v)
	default:
		return time.Time{}, fmt.Errorf("expected date string, got %T", value)
	}
}
