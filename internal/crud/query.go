// Package crud is a small query builder bound to one table at a time.
//
// Every value reaches the database as a bound parameter. Identifiers (table,
// columns, ORDER BY) are checked against an identifier grammar instead of
// being escaped, and JOIN clauses are expected to be constants owned by the
// calling repository.
package crud

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Op is a comparison operator used in a WHERE condition.
type Op string

const (
	OpEq        Op = "="
	OpNotEq     Op = "!="
	OpLt        Op = "<"
	OpLte       Op = "<="
	OpGt        Op = ">"
	OpGte       Op = ">="
	OpLike      Op = "LIKE"
	OpIn        Op = "IN"
	OpIsNull    Op = "IS NULL"
	OpIsNotNull Op = "IS NOT NULL"
)

var validOps = map[Op]bool{
	OpEq: true, OpNotEq: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpLike: true, OpIn: true, OpIsNull: true, OpIsNotNull: true,
}

var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	columnRe = regexp.MustCompile(`^(\*|[A-Za-z_][A-Za-z0-9_]*\.\*|[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?( (?i:AS) [A-Za-z_][A-Za-z0-9_]*)?)$`)
	tableRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	unsafeRe = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// Cond is one WHERE condition. An empty Op falls back to the query's default operator.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Conditions are rendered in order and joined with AND.
type Conditions []Cond

// Eq is shorthand for an equality condition.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

// Where builds a condition with an explicit operator.
func Where(column string, op Op, value any) Cond {
	return Cond{Column: column, Op: op, Value: value}
}

// IsNull builds a NULL check.
func IsNull(column string) Cond {
	return Cond{Column: column, Op: OpIsNull}
}

// Fields maps columns to values for INSERT and UPDATE. Columns are emitted in
// sorted order so the generated SQL is stable.
type Fields map[string]any

// Join is appended verbatim as "<Type> JOIN <Table> ON <On>".
type Join struct {
	Type  string
	Table string
	On    string
}

// LeftJoin is shorthand for a LEFT join.
func LeftJoin(table, on string) Join {
	return Join{Type: "LEFT", Table: table, On: on}
}

// InnerJoin is shorthand for an INNER join.
func InnerJoin(table, on string) Join {
	return Join{Type: "INNER", Table: table, On: on}
}

var joinTypes = map[string]bool{"INNER": true, "LEFT": true, "RIGHT": true, "CROSS": true}

// Query describes a SELECT against the store's table.
type Query struct {
	Where     Conditions
	Columns   []string // empty means "*"
	OrderBy   string
	Ascending bool
	Limit     int // 0 means no limit
	Offset    int
	Joins     []Join
	Operator  Op // default operator for conditions without one, "=" if empty
}

// Aggregate describes a "SELECT fn(column)" against the store's table.
type Aggregate struct {
	Where     Conditions
	Func      string // COUNT if empty
	Column    string // * if empty
	OrderBy   string
	Ascending bool
	Limit     int
	Joins     []Join
	Operator  Op
}

// statement is SQL text with named placeholders plus the values bound to them.
type statement struct {
	SQL  string
	Args map[string]any
}

// bind converts named placeholders to the driver's positional bindvars.
func (st statement) bind(bindType int) (string, []any, error) {
	query, args, err := sqlx.Named(st.SQL, st.Args)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(bindType, query), args, nil
}

// placeholder turns a column reference into a valid bind parameter name.
func placeholder(prefix, column string, i int) string {
	return fmt.Sprintf("%s_%s_%d", prefix, unsafeRe.ReplaceAllString(column, "_"), i)
}

func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, name)
	}
	return nil
}

func checkTable(name string) error {
	if !tableRe.MatchString(name) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func renderFrom(table, alias string) string {
	if alias == "" {
		return table
	}
	return table + " " + alias
}

func renderColumns(cols []string) (string, error) {
	if len(cols) == 0 {
		return "*", nil
	}
	for _, c := range cols {
		if !columnRe.MatchString(c) {
			return "", fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c)
		}
	}
	return strings.Join(cols, ", "), nil
}

func renderJoins(b *strings.Builder, joins []Join) error {
	for _, j := range joins {
		typ := strings.ToUpper(strings.TrimSpace(j.Type))
		if typ == "" {
			typ = "INNER"
		}
		if !joinTypes[typ] {
			return fmt.Errorf("%w: join type %q", ErrInvalidIdentifier, j.Type)
		}
		b.WriteString(" ")
		b.WriteString(typ)
		b.WriteString(" JOIN ")
		b.WriteString(j.Table)
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}
	return nil
}

// renderWhere appends " WHERE ..." (or nothing) and records bound values in args.
func renderWhere(b *strings.Builder, conds Conditions, defaultOp Op, args map[string]any) error {
	if len(conds) == 0 {
		return nil
	}
	if defaultOp == "" {
		defaultOp = OpEq
	}

	parts := make([]string, 0, len(conds))
	for i, c := range conds {
		if err := checkIdent("column", c.Column); err != nil {
			return err
		}
		op := c.Op
		if op == "" {
			op = defaultOp
		}
		op = Op(strings.ToUpper(string(op)))
		if !validOps[op] {
			return fmt.Errorf("%w: %q", ErrInvalidOperator, op)
		}

		switch op {
		case OpIsNull, OpIsNotNull:
			parts = append(parts, fmt.Sprintf("%s %s", c.Column, op))
		case OpIn:
			part, err := renderIn(c, i, args)
			if err != nil {
				return err
			}
			parts = append(parts, part)
		default:
			name := placeholder("w", c.Column, i)
			args[name] = normalize(c.Value)
			parts = append(parts, fmt.Sprintf("%s %s :%s", c.Column, op, name))
		}
	}

	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(parts, " AND "))
	return nil
}

func renderIn(c Cond, i int, args map[string]any) (string, error) {
	v := reflect.ValueOf(c.Value)
	if v.Kind() != reflect.Slice {
		return "", fmt.Errorf("%w: IN on %s needs a slice, got %T", ErrInvalidOperator, c.Column, c.Value)
	}
	if v.Len() == 0 {
		// Nothing can match an empty set.
		return "1 = 0", nil
	}
	names := make([]string, v.Len())
	for j := 0; j < v.Len(); j++ {
		name := fmt.Sprintf("%s_%d", placeholder("w", c.Column, i), j)
		args[name] = normalize(v.Index(j).Interface())
		names[j] = ":" + name
	}
	return fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(names, ", ")), nil
}

func renderOrder(b *strings.Builder, orderBy string, asc bool) error {
	if orderBy == "" {
		return nil
	}
	if err := checkIdent("order by", orderBy); err != nil {
		return err
	}
	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	fmt.Fprintf(b, " ORDER BY %s %s", orderBy, dir)
	return nil
}

func renderPage(b *strings.Builder, limit, offset int, args map[string]any) {
	if limit > 0 {
		args["page_limit"] = limit
		b.WriteString(" LIMIT :page_limit")
	}
	if offset > 0 {
		if limit <= 0 {
			// SQLite rejects OFFSET without LIMIT.
			args["page_limit"] = int64(1<<62)
			b.WriteString(" LIMIT :page_limit")
		}
		args["page_offset"] = offset
		b.WriteString(" OFFSET :page_offset")
	}
}

func buildSelect(table, alias string, q Query) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	cols, err := renderColumns(q.Columns)
	if err != nil {
		return statement{}, err
	}

	args := make(map[string]any)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, renderFrom(table, alias))
	if err := renderJoins(&b, q.Joins); err != nil {
		return statement{}, err
	}
	if err := renderWhere(&b, q.Where, q.Operator, args); err != nil {
		return statement{}, err
	}
	if err := renderOrder(&b, q.OrderBy, q.Ascending); err != nil {
		return statement{}, err
	}
	renderPage(&b, q.Limit, q.Offset, args)
	return statement{SQL: b.String(), Args: args}, nil
}

func buildAggregate(table, alias string, a Aggregate) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	fn := strings.ToUpper(a.Func)
	if fn == "" {
		fn = "COUNT"
	}
	if !aggregateFuncs[fn] {
		return statement{}, fmt.Errorf("%w: aggregate %q", ErrInvalidIdentifier, a.Func)
	}
	col := a.Column
	if col == "" {
		col = "*"
	}
	if col != "*" {
		if err := checkIdent("column", col); err != nil {
			return statement{}, err
		}
	}

	args := make(map[string]any)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s(%s) FROM %s", fn, col, renderFrom(table, alias))
	if err := renderJoins(&b, a.Joins); err != nil {
		return statement{}, err
	}
	if err := renderWhere(&b, a.Where, a.Operator, args); err != nil {
		return statement{}, err
	}
	if err := renderOrder(&b, a.OrderBy, a.Ascending); err != nil {
		return statement{}, err
	}
	renderPage(&b, a.Limit, 0, args)
	return statement{SQL: b.String(), Args: args}, nil
}

func buildExists(table string, conds Conditions) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	args := make(map[string]any)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT EXISTS(SELECT 1 FROM %s", table)
	if err := renderWhere(&b, conds, OpEq, args); err != nil {
		return statement{}, err
	}
	b.WriteString(`) AS "exists"`)
	return statement{SQL: b.String(), Args: args}, nil
}

func buildSearch(table string, columns []string, term string, limit, offset int) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	args := make(map[string]any)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s", table)

	if term != "" && len(columns) > 0 {
		parts := make([]string, len(columns))
		for i, c := range columns {
			if err := checkIdent("column", c); err != nil {
				return statement{}, err
			}
			parts[i] = fmt.Sprintf(`LOWER(%s) LIKE :search_term ESCAPE '\'`, c)
		}
		args["search_term"] = "%" + escapeLike(term) + "%"
		b.WriteString(" WHERE (")
		b.WriteString(strings.Join(parts, " OR "))
		b.WriteString(")")
	}

	b.WriteString(" ORDER BY id ASC")
	renderPage(&b, limit, offset, args)
	return statement{SQL: b.String(), Args: args}, nil
}

func buildInsert(table string, fields Fields) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	if len(fields) == 0 {
		return statement{}, ErrNoFields
	}

	cols := sortedColumns(fields)
	args := make(map[string]any, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		if err := checkIdent("column", c); err != nil {
			return statement{}, err
		}
		name := placeholder("v", c, i)
		args[name] = normalize(fields[c])
		names[i] = ":" + name
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), strings.Join(names, ", "))
	return statement{SQL: query, Args: args}, nil
}

func buildUpdate(table string, fields Fields, conds Conditions) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	if len(fields) == 0 {
		return statement{}, ErrNoFields
	}
	if len(conds) == 0 {
		return statement{}, ErrUnscoped
	}

	cols := sortedColumns(fields)
	args := make(map[string]any, len(cols)+len(conds))
	sets := make([]string, len(cols))
	for i, c := range cols {
		if err := checkIdent("column", c); err != nil {
			return statement{}, err
		}
		name := placeholder("s", c, i)
		args[name] = normalize(fields[c])
		sets[i] = fmt.Sprintf("%s = :%s", c, name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s", table, strings.Join(sets, ", "))
	if err := renderWhere(&b, conds, OpEq, args); err != nil {
		return statement{}, err
	}
	return statement{SQL: b.String(), Args: args}, nil
}

func buildDelete(table string, conds Conditions) (statement, error) {
	if err := checkTable(table); err != nil {
		return statement{}, err
	}
	if len(conds) == 0 {
		return statement{}, ErrUnscoped
	}
	args := make(map[string]any, len(conds))
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s", table)
	if err := renderWhere(&b, conds, OpEq, args); err != nil {
		return statement{}, err
	}
	return statement{SQL: b.String(), Args: args}, nil
}

func sortedColumns(fields Fields) []string {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
