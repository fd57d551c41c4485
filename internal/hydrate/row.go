// Package hydrate turns raw query rows into values the model package can read.
package hydrate

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is a single result row keyed by column name (or alias).
type Row map[string]any

// timeLayouts covers what pgx and modernc/sqlite hand back for timestamp columns
// that were not already decoded into time.Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Has reports whether the column is present in the row at all.
func (r Row) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// IsNull reports whether the column is missing or NULL.
func (r Row) IsNull(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}

func (r Row) Int64(col string) (int64, error) {
	v, ok := r[col]
	if !ok {
		return 0, fmt.Errorf("column %q missing", col)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("column %q is null", col)
	}
	return 0, fmt.Errorf("column %q: unsupported integer type %T", col, v)
}

func (r Row) NullInt64(col string) (sql.NullInt64, error) {
	if r.IsNull(col) {
		return sql.NullInt64{}, nil
	}
	n, err := r.Int64(col)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

func (r Row) String(col string) (string, error) {
	v, ok := r[col]
	if !ok {
		return "", fmt.Errorf("column %q missing", col)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return fmt.Sprint(v), nil
}

func (r Row) NullString(col string) (*string, error) {
	if r.IsNull(col) {
		return nil, nil
	}
	s, err := r.String(col)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r Row) Bool(col string) (bool, error) {
	v, ok := r[col]
	if !ok {
		return false, fmt.Errorf("column %q missing", col)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case string:
		return strconv.ParseBool(b)
	case []byte:
		return strconv.ParseBool(string(b))
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("column %q: unsupported bool type %T", col, v)
}

func (r Row) Time(col string) (time.Time, error) {
	v, ok := r[col]
	if !ok {
		return time.Time{}, fmt.Errorf("column %q missing", col)
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(col, t)
	case []byte:
		return parseTime(col, string(t))
	case nil:
		return time.Time{}, fmt.Errorf("column %q is null", col)
	}
	return time.Time{}, fmt.Errorf("column %q: unsupported time type %T", col, v)
}

func (r Row) NullTime(col string) (*time.Time, error) {
	if r.IsNull(col) {
		return nil, nil
	}
	t, err := r.Time(col)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTime(col, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("column %q: malformed timestamp %q", col, s)
}
