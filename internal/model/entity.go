package model

import (
	"time"

	"github.com/templui/skillfolio/internal/hydrate"
)

// TransientID marks an entity that has not been written yet.
const TransientID int64 = -1

// Now is the clock used for stored timestamps. Values are UTC and truncated to
// the second so they compare the same way in every database.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// rowReader collects the first accessor error so hydrators can read a row
// field by field and check once.
type rowReader struct {
	row hydrate.Row
	err error
}

func (r *rowReader) int64(col string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.row.Int64(col)
	r.err = err
	return v
}

func (r *rowReader) string(col string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.row.String(col)
	r.err = err
	return v
}

func (r *rowReader) nullString(col string) *string {
	if r.err != nil {
		return nil
	}
	v, err := r.row.NullString(col)
	r.err = err
	return v
}

// optString reads a column that only some queries select.
func (r *rowReader) optString(col string) string {
	if !r.row.Has(col) {
		return ""
	}
	return r.string(col)
}

func (r *rowReader) time(col string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, err := r.row.Time(col)
	r.err = err
	return v
}

func (r *rowReader) nullTime(col string) *time.Time {
	if r.err != nil {
		return nil
	}
	v, err := r.row.NullTime(col)
	r.err = err
	return v
}

// parse runs an enum parser over a column, keeping the first error.
func parse[T any](r *rowReader, col string, fn func(string) (T, error)) T {
	var zero T
	s := r.string(col)
	if r.err != nil {
		return zero
	}
	v, err := fn(s)
	if err != nil {
		r.err = err
		return zero
	}
	return v
}
