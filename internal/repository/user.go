package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/hydrate"
	"github.com/templui/skillfolio/internal/model"
)

// UserFilter selects users. Zero fields are ignored.
type UserFilter struct {
	ID           int64
	Email        string
	Username     string
	Role         model.Role
	CreatedSince time.Time
}

func (f UserFilter) conditions() crud.Conditions {
	var conds crud.Conditions
	if f.ID != 0 {
		conds = append(conds, crud.Eq("id", f.ID))
	}
	if f.Email != "" {
		conds = append(conds, crud.Eq("email", f.Email))
	}
	if f.Username != "" {
		conds = append(conds, crud.Eq("username", f.Username))
	}
	if f.Role != "" {
		conds = append(conds, crud.Eq("role", f.Role.String()))
	}
	if !f.CreatedSince.IsZero() {
		conds = append(conds, crud.Where("created_at", crud.OpGte, f.CreatedSince))
	}
	return conds
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id int64) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	WithSkills(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context, filter UserFilter, page Page) ([]model.User, error)
	ListWithSkills(ctx context.Context, ids []int64) ([]model.User, error)
	Search(ctx context.Context, term string, page Page) ([]model.User, error)
	Count(ctx context.Context, filter UserFilter) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Recent(ctx context.Context, n int) ([]model.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) error
	WithTx(tx *crud.Tx) UserRepository
}

var userColumns = []string{"id", "username", "email", "password_hash", "avatar", "role", "created_at", "updated_at"}

var userSkillJoin = struct {
	columns []string
	joins   []crud.Join
}{
	columns: []string{
		"us.id AS user_skill_id",
		"s.id AS skill_id",
		"s.name AS skill_name",
		"us.level AS skill_level",
		"us.created_at AS skill_created_at",
		"us.updated_at AS skill_updated_at",
	},
	joins: []crud.Join{
		crud.LeftJoin("user_skills us", "us.user_id = u.id"),
		crud.LeftJoin("skills s", "s.id = us.skill_id"),
	},
}

type userRepository struct {
	users *crud.Store
}

func NewUserRepository(db *sqlx.DB, opts ...crud.Option) UserRepository {
	opts = append([]crud.Option{crud.WithAlias("u"), crud.WithSearch("username", "email")}, opts...)
	return &userRepository{users: crud.New(db, "users", opts...)}
}

func (r *userRepository) WithTx(tx *crud.Tx) UserRepository {
	return &userRepository{users: r.users.Using(tx)}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	id, err := r.users.Insert(ctx, crud.Fields{
		"username":      user.Username,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"avatar":        user.Avatar,
		"role":          user.Role.String(),
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	})
	if err != nil {
		return translate(err, "user", user.Email)
	}
	user.ID = id
	return nil
}

func (r *userRepository) ByID(ctx context.Context, id int64) (*model.User, error) {
	row, err := r.users.FindOne(ctx, crud.Query{Where: byID(id)})
	if err != nil {
		return nil, translate(err, "user", id)
	}
	return model.UserFromRow(row)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	row, err := r.users.FindOne(ctx, crud.Query{Where: crud.Conditions{crud.Eq("email", email)}})
	if err != nil {
		return nil, translate(err, "user", email)
	}
	return model.UserFromRow(row)
}

func (r *userRepository) joined(ctx context.Context, where crud.Conditions) ([]hydrate.Row, error) {
	return r.users.FindMany(ctx, crud.Query{
		Columns:   append(qualify("u", userColumns...), userSkillJoin.columns...),
		Joins:     userSkillJoin.joins,
		Where:     where,
		OrderBy:   "u.id",
		Ascending: true,
	})
}

// WithSkills loads a user together with every skill they claim.
func (r *userRepository) WithSkills(ctx context.Context, id int64) (*model.User, error) {
	rows, err := r.joined(ctx, crud.Conditions{crud.Eq("u.id", id)})
	if err != nil {
		return nil, translate(err, "user", id)
	}
	user, err := model.UserFromJoinedRows(rows)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NotFound("user", id)
	}
	return user, nil
}

func (r *userRepository) ListWithSkills(ctx context.Context, ids []int64) ([]model.User, error) {
	rows, err := r.joined(ctx, crud.Conditions{crud.Where("u.id", crud.OpIn, ids)})
	if err != nil {
		return nil, err
	}
	return model.UsersFromRows(rows, hydrate.Joined)
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, page Page) ([]model.User, error) {
	rows, err := r.users.FindMany(ctx, crud.Query{
		Where:     filter.conditions(),
		OrderBy:   "id",
		Ascending: true,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return model.UsersFromRows(rows, hydrate.Flat)
}

// Search matches term against username and email, case-insensitively.
func (r *userRepository) Search(ctx context.Context, term string, page Page) ([]model.User, error) {
	rows, err := r.users.Search(ctx, term, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return model.UsersFromRows(rows, hydrate.Flat)
}

func (r *userRepository) Count(ctx context.Context, filter UserFilter) (int64, error) {
	return r.users.Count(ctx, filter.conditions())
}

func (r *userRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return r.Count(ctx, UserFilter{CreatedSince: since})
}

// Recent returns the n most recently registered users, newest first.
func (r *userRepository) Recent(ctx context.Context, n int) ([]model.User, error) {
	rows, err := r.users.FindMany(ctx, crud.Query{OrderBy: "id", Ascending: false, Limit: n})
	if err != nil {
		return nil, err
	}
	return model.UsersFromRows(rows, hydrate.Flat)
}

func (r *userRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.users.Exists(ctx, crud.Conditions{crud.Eq("email", email)})
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = model.Now()
	n, err := r.users.Update(ctx, crud.Fields{
		"username":      user.Username,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"avatar":        user.Avatar,
		"role":          user.Role.String(),
		"updated_at":    user.UpdatedAt,
	}, byID(user.ID))
	return affected(n, err, "user", user.ID)
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.users.Delete(ctx, byID(id))
	return affected(n, err, "user", id)
}
