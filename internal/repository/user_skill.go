package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
)

type UserSkillRepository interface {
	Set(ctx context.Context, entry *model.UserSkill) error
	Remove(ctx context.Context, userID, skillID int64) error
	ByUser(ctx context.Context, userID int64) ([]model.UserSkill, error)
	WithTx(tx *crud.Tx) UserSkillRepository
}

var userSkillColumns = []string{"id", "user_id", "skill_id", "level", "created_at", "updated_at"}

type userSkillRepository struct {
	entries *crud.Store
}

func NewUserSkillRepository(db *sqlx.DB, opts ...crud.Option) UserSkillRepository {
	opts = append([]crud.Option{crud.WithAlias("us")}, opts...)
	return &userSkillRepository{entries: crud.New(db, "user_skills", opts...)}
}

func (r *userSkillRepository) WithTx(tx *crud.Tx) UserSkillRepository {
	return &userSkillRepository{entries: r.entries.Using(tx)}
}

func pair(userID, skillID int64) crud.Conditions {
	return crud.Conditions{crud.Eq("user_id", userID), crud.Eq("skill_id", skillID)}
}

// Set records the user's level for a skill, replacing any previous level.
func (r *userSkillRepository) Set(ctx context.Context, entry *model.UserSkill) error {
	entry.UpdatedAt = model.Now()
	n, err := r.entries.Update(ctx, crud.Fields{
		"level":      entry.Level.String(),
		"updated_at": entry.UpdatedAt,
	}, pair(entry.UserID, entry.SkillID))
	if err != nil {
		return translate(err, "user skill", entry.SkillID)
	}
	if n > 0 {
		row, err := r.entries.FindOne(ctx, crud.Query{Where: pair(entry.UserID, entry.SkillID)})
		if err != nil {
			return translate(err, "user skill", entry.SkillID)
		}
		stored, err := model.UserSkillFromRow(row)
		if err != nil {
			return err
		}
		entry.ID, entry.CreatedAt = stored.ID, stored.CreatedAt
		return nil
	}

	id, err := r.entries.Insert(ctx, crud.Fields{
		"user_id":    entry.UserID,
		"skill_id":   entry.SkillID,
		"level":      entry.Level.String(),
		"created_at": entry.CreatedAt,
		"updated_at": entry.UpdatedAt,
	})
	if err != nil {
		return translate(err, "user skill", entry.SkillID)
	}
	entry.ID = id
	return nil
}

func (r *userSkillRepository) Remove(ctx context.Context, userID, skillID int64) error {
	n, err := r.entries.Delete(ctx, pair(userID, skillID))
	return affected(n, err, "user skill", skillID)
}

// ByUser lists a user's skills with their names, alphabetically.
func (r *userSkillRepository) ByUser(ctx context.Context, userID int64) ([]model.UserSkill, error) {
	rows, err := r.entries.FindMany(ctx, crud.Query{
		Columns:   append(qualify("us", userSkillColumns...), "s.name AS skill_name"),
		Joins:     []crud.Join{crud.InnerJoin("skills s", "s.id = us.skill_id")},
		Where:     crud.Conditions{crud.Eq("us.user_id", userID)},
		OrderBy:   "s.name",
		Ascending: true,
	})
	if err != nil {
		return nil, err
	}
	return model.UserSkillsFromRows(rows)
}
