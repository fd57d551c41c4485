package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
)

type ProjectUserRepository interface {
	Set(ctx context.Context, member *model.ProjectUser) error
	Role(ctx context.Context, projectID, userID int64) (model.ProjectRole, error)
	Members(ctx context.Context, projectID int64) ([]model.ProjectUser, error)
	Remove(ctx context.Context, projectID, userID int64) error
	WithTx(tx *crud.Tx) ProjectUserRepository
}

var projectUserColumns = []string{"id", "project_id", "user_id", "role", "created_at", "updated_at"}

type projectUserRepository struct {
	members *crud.Store
}

func NewProjectUserRepository(db *sqlx.DB, opts ...crud.Option) ProjectUserRepository {
	opts = append([]crud.Option{crud.WithAlias("pu")}, opts...)
	return &projectUserRepository{members: crud.New(db, "project_users", opts...)}
}

func (r *projectUserRepository) WithTx(tx *crud.Tx) ProjectUserRepository {
	return &projectUserRepository{members: r.members.Using(tx)}
}

func membership(projectID, userID int64) crud.Conditions {
	return crud.Conditions{crud.Eq("project_id", projectID), crud.Eq("user_id", userID)}
}

// Set gives the user a role on the project, replacing any role they had.
func (r *projectUserRepository) Set(ctx context.Context, member *model.ProjectUser) error {
	member.UpdatedAt = model.Now()
	n, err := r.members.Update(ctx, crud.Fields{
		"role":       member.Role.String(),
		"updated_at": member.UpdatedAt,
	}, membership(member.ProjectID, member.UserID))
	if err != nil {
		return translate(err, "project member", member.UserID)
	}
	if n > 0 {
		row, err := r.members.FindOne(ctx, crud.Query{Where: membership(member.ProjectID, member.UserID)})
		if err != nil {
			return translate(err, "project member", member.UserID)
		}
		stored, err := model.ProjectUserFromRow(row)
		if err != nil {
			return err
		}
		member.ID, member.CreatedAt = stored.ID, stored.CreatedAt
		return nil
	}

	id, err := r.members.Insert(ctx, crud.Fields{
		"project_id": member.ProjectID,
		"user_id":    member.UserID,
		"role":       member.Role.String(),
		"created_at": member.CreatedAt,
		"updated_at": member.UpdatedAt,
	})
	if err != nil {
		return translate(err, "project member", member.UserID)
	}
	member.ID = id
	return nil
}

// Role returns the user's role on the project, or NotFound if they are not a member.
func (r *projectUserRepository) Role(ctx context.Context, projectID, userID int64) (model.ProjectRole, error) {
	row, err := r.members.FindOne(ctx, crud.Query{
		Columns: []string{"role"},
		Where:   membership(projectID, userID),
	})
	if err != nil {
		return "", translate(err, "project member", userID)
	}
	role, err := row.String("role")
	if err != nil {
		return "", err
	}
	return model.ParseProjectRole(role)
}

// Members lists everyone on the project with their usernames, in join order.
func (r *projectUserRepository) Members(ctx context.Context, projectID int64) ([]model.ProjectUser, error) {
	rows, err := r.members.FindMany(ctx, crud.Query{
		Columns:   append(qualify("pu", projectUserColumns...), "u.username AS username"),
		Joins:     []crud.Join{crud.InnerJoin("users u", "u.id = pu.user_id")},
		Where:     crud.Conditions{crud.Eq("pu.project_id", projectID)},
		OrderBy:   "pu.id",
		Ascending: true,
	})
	if err != nil {
		return nil, err
	}
	return model.ProjectUsersFromRows(rows)
}

func (r *projectUserRepository) Remove(ctx context.Context, projectID, userID int64) error {
	n, err := r.members.Delete(ctx, membership(projectID, userID))
	return affected(n, err, "project member", userID)
}
