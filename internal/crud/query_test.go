package crud

import (
	"errors"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
)

func TestBuildSelectBindsHostileValues(t *testing.T) {
	hostile := []string{
		"x' OR '1'='1",
		"1; DROP TABLE users; --",
		"admin'--",
	}
	conds := Conditions{
		Eq("email", hostile[0]),
		Eq("u.username", hostile[1]),
		Where("role", OpNotEq, hostile[2]),
	}

	st, err := buildSelect("users", "u", Query{Where: conds})
	if err != nil {
		t.Fatalf("buildSelect failed: %v", err)
	}
	for _, v := range hostile {
		if strings.Contains(st.SQL, v) {
			t.Errorf("statement contains raw value %q: %s", v, st.SQL)
		}
	}
	if strings.Contains(st.SQL, "'") || strings.Contains(st.SQL, ";") || strings.Contains(st.SQL, "--") {
		t.Errorf("statement contains SQL metacharacters: %s", st.SQL)
	}

	query, args, err := st.bind(sqlx.DOLLAR)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if len(args) != len(conds) {
		t.Fatalf("Expected %d bound args, got %d", len(conds), len(args))
	}
	want := "SELECT * FROM users u WHERE email = $1 AND u.username = $2 AND role != $3"
	if query != want {
		t.Errorf("Expected %q, got %q", want, query)
	}
	for i, v := range hostile {
		if args[i] != v {
			t.Errorf("arg %d: expected %q, got %v", i, v, args[i])
		}
	}
}

func TestBuildUpdateAndDeleteAreParameterized(t *testing.T) {
	st, err := buildUpdate("users", Fields{"username": "o'brien", "email": "x@y.z"}, Conditions{Eq("id", 3)})
	if err != nil {
		t.Fatalf("buildUpdate failed: %v", err)
	}
	query, args, err := st.bind(sqlx.QUESTION)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	want := "UPDATE users SET email = ?, username = ? WHERE id = ?"
	if query != want {
		t.Errorf("Expected %q, got %q", want, query)
	}
	if len(args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(args))
	}

	st, err = buildDelete("users", Conditions{Eq("email", "'; DELETE FROM users; --")})
	if err != nil {
		t.Fatalf("buildDelete failed: %v", err)
	}
	if strings.Contains(st.SQL, "DELETE FROM users;") {
		t.Errorf("value leaked into statement: %s", st.SQL)
	}
	if len(st.Args) != 1 {
		t.Errorf("Expected 1 arg, got %d", len(st.Args))
	}
}

func TestBuildSelectClauses(t *testing.T) {
	q := Query{
		Columns: []string{"u.id", "u.username", "s.id AS skill_id", "us.level AS skill_level"},
		Joins: []Join{
			LeftJoin("user_skills us", "us.user_id = u.id"),
			LeftJoin("skills s", "s.id = us.skill_id"),
		},
		Where:     Conditions{Eq("u.id", 1)},
		OrderBy:   "u.id",
		Ascending: true,
		Limit:     10,
		Offset:    20,
	}
	st, err := buildSelect("users", "u", q)
	if err != nil {
		t.Fatalf("buildSelect failed: %v", err)
	}
	want := "SELECT u.id, u.username, s.id AS skill_id, us.level AS skill_level FROM users u" +
		" LEFT JOIN user_skills us ON us.user_id = u.id" +
		" LEFT JOIN skills s ON s.id = us.skill_id" +
		" WHERE u.id = :w_u_id_0 ORDER BY u.id ASC LIMIT :page_limit OFFSET :page_offset"
	if st.SQL != want {
		t.Errorf("Expected\n%s\ngot\n%s", want, st.SQL)
	}
}

func TestBuildSelectDefaultOperator(t *testing.T) {
	st, err := buildSelect("users", "", Query{
		Where:    Conditions{{Column: "created_at", Value: "2025-01-01"}},
		Operator: OpGte,
	})
	if err != nil {
		t.Fatalf("buildSelect failed: %v", err)
	}
	if !strings.Contains(st.SQL, "created_at >= :w_created_at_0") {
		t.Errorf("default operator not applied: %s", st.SQL)
	}
}

func TestBuildSelectIn(t *testing.T) {
	st, err := buildSelect("users", "", Query{Where: Conditions{Where("id", OpIn, []int64{1, 2, 3})}})
	if err != nil {
		t.Fatalf("buildSelect failed: %v", err)
	}
	if len(st.Args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(st.Args))
	}
	if !strings.Contains(st.SQL, "id IN (:w_id_0_0, :w_id_0_1, :w_id_0_2)") {
		t.Errorf("unexpected IN clause: %s", st.SQL)
	}

	st, err = buildSelect("users", "", Query{Where: Conditions{Where("id", OpIn, []int64{})}})
	if err != nil {
		t.Fatalf("buildSelect failed: %v", err)
	}
	if !strings.Contains(st.SQL, "1 = 0") {
		t.Errorf("empty IN should match nothing: %s", st.SQL)
	}
}

func TestBuildRejectsBadIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"column", func() error {
			_, err := buildSelect("users", "", Query{Where: Conditions{Eq("id = 1 OR 1", 1)}})
			return err
		}, ErrInvalidIdentifier},
		{"order by", func() error {
			_, err := buildSelect("users", "", Query{OrderBy: "id; DROP TABLE users"})
			return err
		}, ErrInvalidIdentifier},
		{"table", func() error {
			_, err := buildInsert("users; --", Fields{"a": 1})
			return err
		}, ErrInvalidIdentifier},
		{"operator", func() error {
			_, err := buildSelect("users", "", Query{Where: Conditions{Where("id", "= 1 OR 1 =", 1)}})
			return err
		}, ErrInvalidOperator},
		{"aggregate", func() error {
			_, err := buildAggregate("users", "", Aggregate{Func: "pg_sleep"})
			return err
		}, ErrInvalidIdentifier},
		{"unscoped delete", func() error {
			_, err := buildDelete("users", nil)
			return err
		}, ErrUnscoped},
		{"empty insert", func() error {
			_, err := buildInsert("users", Fields{})
			return err
		}, ErrNoFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildExistsAndAggregate(t *testing.T) {
	st, err := buildExists("users", Conditions{Eq("email", "a@x.com")})
	if err != nil {
		t.Fatalf("buildExists failed: %v", err)
	}
	want := `SELECT EXISTS(SELECT 1 FROM users WHERE email = :w_email_0) AS "exists"`
	if st.SQL != want {
		t.Errorf("Expected %q, got %q", want, st.SQL)
	}

	st, err = buildAggregate("users", "", Aggregate{})
	if err != nil {
		t.Fatalf("buildAggregate failed: %v", err)
	}
	if st.SQL != "SELECT COUNT(*) FROM users" {
		t.Errorf("unexpected aggregate: %s", st.SQL)
	}
}

func TestBuildSearchEscapesWildcards(t *testing.T) {
	st, err := buildSearch("skills", []string{"name", "description"}, "100%_go", 10, 0)
	if err != nil {
		t.Fatalf("buildSearch failed: %v", err)
	}
	if got := st.Args["search_term"]; got != `%100\%\_go%` {
		t.Errorf("unexpected term %v", got)
	}
	if strings.Count(st.SQL, ":search_term") != 2 {
		t.Errorf("expected one placeholder per column: %s", st.SQL)
	}

	st, err = buildSearch("skills", []string{"name"}, "", 5, 5)
	if err != nil {
		t.Fatalf("buildSearch failed: %v", err)
	}
	if strings.Contains(st.SQL, "WHERE") {
		t.Errorf("empty term should not filter: %s", st.SQL)
	}
}
