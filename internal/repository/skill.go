package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
)

// SkillFilter selects skills. Zero fields are ignored.
type SkillFilter struct {
	ID   int64
	Name string
}

func (f SkillFilter) conditions() crud.Conditions {
	var conds crud.Conditions
	if f.ID != 0 {
		conds = append(conds, crud.Eq("id", f.ID))
	}
	if f.Name != "" {
		conds = append(conds, crud.Eq("name", f.Name))
	}
	return conds
}

type SkillRepository interface {
	Create(ctx context.Context, skill *model.Skill) error
	ByID(ctx context.Context, id int64) (*model.Skill, error)
	ByName(ctx context.Context, name string) (*model.Skill, error)
	NameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
	All(ctx context.Context) ([]model.Skill, error)
	List(ctx context.Context, filter SkillFilter, page Page) ([]model.Skill, error)
	Search(ctx context.Context, term string, page Page) ([]model.Skill, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, skill *model.Skill) error
	Delete(ctx context.Context, id int64) error
}

type skillRepository struct {
	skills *crud.Store
}

func NewSkillRepository(db *sqlx.DB, opts ...crud.Option) SkillRepository {
	opts = append([]crud.Option{crud.WithSearch("name", "description")}, opts...)
	return &skillRepository{skills: crud.New(db, "skills", opts...)}
}

func (r *skillRepository) Create(ctx context.Context, skill *model.Skill) error {
	id, err := r.skills.Insert(ctx, crud.Fields{
		"name":        skill.Name,
		"description": skill.Description,
	})
	if err != nil {
		return translate(err, "skill", skill.Name)
	}
	skill.ID = id
	return nil
}

func (r *skillRepository) ByID(ctx context.Context, id int64) (*model.Skill, error) {
	row, err := r.skills.FindOne(ctx, crud.Query{Where: byID(id)})
	if err != nil {
		return nil, translate(err, "skill", id)
	}
	return model.SkillFromRow(row)
}

func (r *skillRepository) ByName(ctx context.Context, name string) (*model.Skill, error) {
	row, err := r.skills.FindOne(ctx, crud.Query{Where: crud.Conditions{crud.Eq("name", name)}})
	if err != nil {
		return nil, translate(err, "skill", name)
	}
	return model.SkillFromRow(row)
}

// NameTaken reports whether another skill already uses name. Pass the skill's
// own id as exceptID when renaming it, or 0 when creating.
func (r *skillRepository) NameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	conds := crud.Conditions{crud.Eq("name", name)}
	if exceptID != 0 {
		conds = append(conds, crud.Where("id", crud.OpNotEq, exceptID))
	}
	return r.skills.Exists(ctx, conds)
}

func (r *skillRepository) All(ctx context.Context) ([]model.Skill, error) {
	return r.List(ctx, SkillFilter{}, Page{})
}

func (r *skillRepository) List(ctx context.Context, filter SkillFilter, page Page) ([]model.Skill, error) {
	rows, err := r.skills.FindMany(ctx, crud.Query{
		Where:     filter.conditions(),
		OrderBy:   "name",
		Ascending: true,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return model.SkillsFromRows(rows)
}

// Search matches term against name and description, case-insensitively.
func (r *skillRepository) Search(ctx context.Context, term string, page Page) ([]model.Skill, error) {
	rows, err := r.skills.Search(ctx, term, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return model.SkillsFromRows(rows)
}

func (r *skillRepository) Count(ctx context.Context) (int64, error) {
	return r.skills.Count(ctx, nil)
}

func (r *skillRepository) Update(ctx context.Context, skill *model.Skill) error {
	n, err := r.skills.Update(ctx, crud.Fields{
		"name":        skill.Name,
		"description": skill.Description,
	}, byID(skill.ID))
	return affected(n, err, "skill", skill.ID)
}

func (r *skillRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.skills.Delete(ctx, byID(id))
	return affected(n, err, "skill", id)
}
