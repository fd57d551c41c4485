package crud

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/hydrate"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultTimeout = 5 * time.Second

// Store runs statements against a single table.
type Store struct {
	db      *sqlx.DB
	ext     sqlx.ExtContext
	inTx    bool
	table   string
	alias   string
	search  []string
	timeout time.Duration
}

type Option func(*Store)

// WithAlias sets the alias used for the table in SELECT statements, so joins
// can refer to it ("users u").
func WithAlias(alias string) Option {
	return func(s *Store) { s.alias = alias }
}

// WithSearch sets the columns Search matches against.
func WithSearch(columns ...string) Option {
	return func(s *Store) { s.search = columns }
}

// WithTimeout bounds every statement issued by the store.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(db *sqlx.DB, table string, opts ...Option) *Store {
	s := &Store{
		db:      db,
		ext:     db,
		table:   table,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the table the store is bound to.
func (s *Store) Table() string {
	return s.table
}

// Using returns a copy of the store that runs its statements inside tx.
func (s *Store) Using(tx *Tx) *Store {
	c := *s
	c.db = nil
	c.ext = tx.tx
	c.inTx = true
	return &c
}

func (s *Store) fail(op string, err error) error {
	err = classify(err)
	if !errors.Is(err, ErrNoRows) {
		slog.Error("query failed", "table", s.table, "op", op, "error", err)
	}
	return &QueryError{Table: s.table, Op: op, Err: err}
}

func (s *Store) prepare(ctx context.Context, op string, st statement) (context.Context, context.CancelFunc, string, []any, error) {
	query, args, err := st.bind(sqlx.BindType(s.ext.DriverName()))
	if err != nil {
		return nil, nil, "", nil, s.fail(op, err)
	}
	slog.Debug("query", "table", s.table, "op", op, "sql", query, "args", len(args))
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, cancel, query, args, nil
}

func (s *Store) queryRows(ctx context.Context, op string, st statement) ([]hydrate.Row, error) {
	ctx, cancel, query, args, err := s.prepare(ctx, op, st)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer rows.Close()

	result := []hydrate.Row{}
	for rows.Next() {
		row := make(map[string]any)
		err = rows.MapScan(row)
		if err != nil {
			return nil, s.fail(op, err)
		}
		result = append(result, hydrate.Row(row))
	}
	err = rows.Err()
	if err != nil {
		return nil, s.fail(op, err)
	}
	return result, nil
}

// Insert writes one row and returns its generated id.
func (s *Store) Insert(ctx context.Context, fields Fields) (int64, error) {
	st, err := buildInsert(s.table, fields)
	if err != nil {
		return 0, s.fail("insert", err)
	}
	ctx, cancel, query, args, err := s.prepare(ctx, "insert", st)
	if err != nil {
		return 0, err
	}
	defer cancel()

	var id int64
	err = s.ext.QueryRowxContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return 0, s.fail("insert", err)
	}
	return id, nil
}

// FindMany returns every matching row. No match yields an empty slice.
func (s *Store) FindMany(ctx context.Context, q Query) ([]hydrate.Row, error) {
	st, err := buildSelect(s.table, s.alias, q)
	if err != nil {
		return nil, s.fail("select", err)
	}
	return s.queryRows(ctx, "select", st)
}

// FindOne returns the first matching row or ErrNoRows.
func (s *Store) FindOne(ctx context.Context, q Query) (hydrate.Row, error) {
	q.Limit = 1
	q.Offset = 0
	rows, err := s.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &QueryError{Table: s.table, Op: "select", Err: ErrNoRows}
	}
	return rows[0], nil
}

// Aggregate returns fn(column) over the matching rows. The value is invalid
// when the aggregate is NULL (e.g. SUM over no rows).
func (s *Store) Aggregate(ctx context.Context, a Aggregate) (sql.NullFloat64, error) {
	st, err := buildAggregate(s.table, s.alias, a)
	if err != nil {
		return sql.NullFloat64{}, s.fail("aggregate", err)
	}
	ctx, cancel, query, args, err := s.prepare(ctx, "aggregate", st)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	defer cancel()

	var v sql.NullFloat64
	err = s.ext.QueryRowxContext(ctx, query, args...).Scan(&v)
	if err != nil {
		return sql.NullFloat64{}, s.fail("aggregate", err)
	}
	return v, nil
}

// Count is Aggregate with COUNT(*).
func (s *Store) Count(ctx context.Context, conds Conditions) (int64, error) {
	v, err := s.Aggregate(ctx, Aggregate{Where: conds})
	if err != nil {
		return 0, err
	}
	return int64(v.Float64), nil
}

func (s *Store) Exists(ctx context.Context, conds Conditions) (bool, error) {
	st, err := buildExists(s.table, conds)
	if err != nil {
		return false, s.fail("exists", err)
	}
	ctx, cancel, query, args, err := s.prepare(ctx, "exists", st)
	if err != nil {
		return false, err
	}
	defer cancel()

	var found bool
	err = s.ext.QueryRowxContext(ctx, query, args...).Scan(&found)
	if err != nil {
		return false, s.fail("exists", err)
	}
	return found, nil
}

// Search matches term case-insensitively as a substring of any search column.
// An empty term returns an unfiltered page ordered by id.
func (s *Store) Search(ctx context.Context, term string, limit, offset int) ([]hydrate.Row, error) {
	if limit <= 0 {
		limit = 10
	}
	term = cases.Lower(language.Und).String(term)
	st, err := buildSearch(s.table, s.search, term, limit, offset)
	if err != nil {
		return nil, s.fail("search", err)
	}
	return s.queryRows(ctx, "search", st)
}

// Update sets fields on matching rows and returns how many were affected.
func (s *Store) Update(ctx context.Context, fields Fields, conds Conditions) (int64, error) {
	st, err := buildUpdate(s.table, fields, conds)
	if err != nil {
		return 0, s.fail("update", err)
	}
	return s.exec(ctx, "update", st)
}

// Delete removes matching rows and returns how many were affected.
func (s *Store) Delete(ctx context.Context, conds Conditions) (int64, error) {
	st, err := buildDelete(s.table, conds)
	if err != nil {
		return 0, s.fail("delete", err)
	}
	return s.exec(ctx, "delete", st)
}

func (s *Store) exec(ctx context.Context, op string, st statement) (int64, error) {
	ctx, cancel, query, args, err := s.prepare(ctx, op, st)
	if err != nil {
		return 0, err
	}
	defer cancel()

	result, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.fail(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, s.fail(op, err)
	}
	return n, nil
}

// normalize converts times to UTC and dereferences optional values so every
// driver sees plain values or NULL.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *int64:
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}
