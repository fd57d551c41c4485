package crud

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL DEFAULT 'user',
	score INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE skills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE user_skills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	skill_id INTEGER NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
	level TEXT NOT NULL
);
`

func setupTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crud.db")
	db, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		db.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db, func() { db.Close() }
}

func insertUser(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), Fields{
		"username": name,
		"email":    name + "@example.com",
	})
	if err != nil {
		t.Fatalf("Insert %s failed: %v", name, err)
	}
	return id
}

func TestInsertAndFindOne(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	id := insertUser(t, users, "alice")
	if id != 1 {
		t.Fatalf("Expected first id 1, got %d", id)
	}

	row, err := users.FindOne(ctx, Query{Where: Conditions{Eq("id", id)}})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	name, err := row.String("username")
	if err != nil {
		t.Fatalf("username: %v", err)
	}
	if name != "alice" {
		t.Errorf("Expected alice, got %s", name)
	}
	role, _ := row.String("role")
	if role != "user" {
		t.Errorf("Expected default role user, got %s", role)
	}
}

func TestFindOneNoRows(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")

	_, err := users.FindOne(context.Background(), Query{Where: Conditions{Eq("id", 42)}})
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("Expected ErrNoRows, got %v", err)
	}
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Table != "users" {
		t.Errorf("Expected QueryError for users, got %#v", err)
	}
}

func TestFindManyEmptyIsNotNil(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")

	rows, err := users.FindMany(context.Background(), Query{Where: Conditions{Eq("role", "admin")}})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", rows)
	}
}

func TestCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	n, err := users.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected 0, got %d", n)
	}

	for _, name := range []string{"a", "b", "c"} {
		insertUser(t, users, name)
	}
	n, err = users.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3, got %d", n)
	}

	n, err = users.Count(ctx, Conditions{Eq("username", "b")})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1, got %d", n)
	}
}

func TestAggregate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	v, err := users.Aggregate(ctx, Aggregate{Func: "sum", Column: "score"})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if v.Valid {
		t.Errorf("Expected NULL sum over no rows, got %v", v.Float64)
	}

	for i, name := range []string{"a", "b", "c"} {
		id := insertUser(t, users, name)
		if _, err := users.Update(ctx, Fields{"score": (i + 1) * 10}, Conditions{Eq("id", id)}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	tests := []struct {
		fn   string
		want float64
	}{
		{"SUM", 60},
		{"MAX", 30},
		{"MIN", 10},
		{"AVG", 20},
	}
	for _, tt := range tests {
		v, err := users.Aggregate(ctx, Aggregate{Func: tt.fn, Column: "score"})
		if err != nil {
			t.Fatalf("%s failed: %v", tt.fn, err)
		}
		if !v.Valid || v.Float64 != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.fn, tt.want, v)
		}
	}
}

func TestExists(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	found, err := users.Exists(ctx, Conditions{Eq("email", "alice@example.com")})
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if found {
		t.Error("Expected no match before insert")
	}

	insertUser(t, users, "alice")
	found, err = users.Exists(ctx, Conditions{Eq("email", "alice@example.com")})
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !found {
		t.Error("Expected match after insert")
	}
}

func TestPaginationCoversEveryRowOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	const total, size = 7, 3
	for i := 0; i < total; i++ {
		insertUser(t, users, fmt.Sprintf("user%d", i))
	}

	seen := make(map[int64]bool)
	var sizes []int
	for offset := 0; offset < total; offset += size {
		rows, err := users.FindMany(ctx, Query{OrderBy: "id", Ascending: true, Limit: size, Offset: offset})
		if err != nil {
			t.Fatalf("FindMany offset %d failed: %v", offset, err)
		}
		sizes = append(sizes, len(rows))
		for _, r := range rows {
			id, err := r.Int64("id")
			if err != nil {
				t.Fatalf("id: %v", err)
			}
			if seen[id] {
				t.Errorf("id %d returned twice", id)
			}
			seen[id] = true
		}
	}

	if len(seen) != total {
		t.Errorf("Expected %d distinct rows, got %d", total, len(seen))
	}
	want := []int{3, 3, 1}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("page %d: expected %d rows, got %d", i, want[i], sizes[i])
		}
	}
}

func TestOffsetWithoutLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")

	for _, name := range []string{"a", "b", "c"} {
		insertUser(t, users, name)
	}
	rows, err := users.FindMany(context.Background(), Query{OrderBy: "id", Ascending: true, Offset: 1})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 rows, got %d", len(rows))
	}
}

func TestSearch(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	skills := New(db, "skills", WithSearch("name"))
	ctx := context.Background()

	for _, name := range []string{"Go", "Golang Tooling", "PostgreSQL", "100% Coverage"} {
		if _, err := skills.Insert(ctx, Fields{"name": name}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tests := []struct {
		term string
		want int
	}{
		{"go", 2},
		{"GO", 2},
		{"sql", 1},
		{"%", 1},
		{"_", 0},
		{"", 4},
		{"rust", 0},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			rows, err := skills.Search(ctx, tt.term, 10, 0)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("Expected %d rows for %q, got %d", tt.want, tt.term, len(rows))
			}
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	id := insertUser(t, users, "alice")
	insertUser(t, users, "bob")

	n, err := users.Update(ctx, Fields{"role": "admin"}, Conditions{Eq("id", id)})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 affected row, got %d", n)
	}
	admins, _ := users.Count(ctx, Conditions{Eq("role", "admin")})
	if admins != 1 {
		t.Errorf("Expected 1 admin, got %d", admins)
	}

	if _, err := users.Update(ctx, Fields{"role": "admin"}, nil); !errors.Is(err, ErrUnscoped) {
		t.Errorf("Expected ErrUnscoped, got %v", err)
	}

	n, err = users.Delete(ctx, Conditions{Eq("id", id)})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted row, got %d", n)
	}
	remaining, _ := users.Count(ctx, nil)
	if remaining != 1 {
		t.Errorf("Expected 1 remaining user, got %d", remaining)
	}
}

func TestConstraintErrors(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	userSkills := New(db, "user_skills")
	ctx := context.Background()

	insertUser(t, users, "alice")
	_, err := users.Insert(ctx, Fields{"username": "alice2", "email": "alice@example.com"})
	if !errors.Is(err, ErrUniqueViolation) {
		t.Errorf("Expected ErrUniqueViolation, got %v", err)
	}

	_, err = userSkills.Insert(ctx, Fields{"user_id": 1, "skill_id": 99, "level": "expert"})
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("Expected ErrForeignKey, got %v", err)
	}
}

func TestJoinedSelect(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	users := New(db, "users", WithAlias("u"))
	skills := New(db, "skills")
	userSkills := New(db, "user_skills")

	uid := insertUser(t, users, "alice")
	for _, name := range []string{"Go", "SQL"} {
		sid, err := skills.Insert(ctx, Fields{"name": name})
		if err != nil {
			t.Fatalf("Insert skill failed: %v", err)
		}
		if _, err := userSkills.Insert(ctx, Fields{"user_id": uid, "skill_id": sid, "level": "expert"}); err != nil {
			t.Fatalf("Insert user skill failed: %v", err)
		}
	}

	rows, err := users.FindMany(ctx, Query{
		Columns: []string{"u.id", "u.username", "s.id AS skill_id", "s.name AS skill_name"},
		Joins: []Join{
			LeftJoin("user_skills us", "us.user_id = u.id"),
			LeftJoin("skills s", "s.id = us.skill_id"),
		},
		Where:     Conditions{Eq("u.id", uid)},
		OrderBy:   "s.id",
		Ascending: true,
	})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 joined rows, got %d", len(rows))
	}
	name, _ := rows[1].String("skill_name")
	if name != "SQL" {
		t.Errorf("Expected SQL, got %s", name)
	}
}

func TestWithTransaction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	users := New(db, "users")
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		err := users.WithTransaction(ctx, func(tx *Tx) error {
			_, err := users.Using(tx).Insert(ctx, Fields{"username": "a", "email": "a@example.com"})
			return err
		})
		if err != nil {
			t.Fatalf("WithTransaction failed: %v", err)
		}
		n, _ := users.Count(ctx, nil)
		if n != 1 {
			t.Errorf("Expected 1 row after commit, got %d", n)
		}
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := users.WithTransaction(ctx, func(tx *Tx) error {
			if _, err := users.Using(tx).Insert(ctx, Fields{"username": "b", "email": "b@example.com"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}
		n, _ := users.Count(ctx, nil)
		if n != 1 {
			t.Errorf("Expected rollback to keep 1 row, got %d", n)
		}
	})

	t.Run("rollback on panic", func(t *testing.T) {
		func() {
			defer func() {
				if r := recover(); r != "kaboom" {
					t.Errorf("Expected re-raised panic, got %v", r)
				}
			}()
			_ = users.WithTransaction(ctx, func(tx *Tx) error {
				if _, err := users.Using(tx).Insert(ctx, Fields{"username": "c", "email": "c@example.com"}); err != nil {
					return err
				}
				panic("kaboom")
			})
		}()
		n, _ := users.Count(ctx, nil)
		if n != 1 {
			t.Errorf("Expected rollback to keep 1 row, got %d", n)
		}
	})

	t.Run("nested", func(t *testing.T) {
		err := users.WithTransaction(ctx, func(tx *Tx) error {
			return users.Using(tx).WithTransaction(ctx, func(*Tx) error { return nil })
		})
		if !errors.Is(err, ErrNestedTransaction) {
			t.Errorf("Expected ErrNestedTransaction, got %v", err)
		}
	})
}
