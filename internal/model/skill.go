package model

import (
	"fmt"
	"time"

	"github.com/templui/skillfolio/internal/hydrate"
)

type Skill struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func NewSkill(name, description string) *Skill {
	return &Skill{ID: TransientID, Name: name, Description: description}
}

func (s *Skill) IsPersisted() bool {
	return s.ID >= 0
}

func SkillFromRow(row hydrate.Row) (*Skill, error) {
	r := &rowReader{row: row}
	s := &Skill{
		ID:          r.int64("id"),
		Name:        r.string("name"),
		Description: r.string("description"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate skill: %w", r.err)
	}
	return s, nil
}

func SkillsFromRows(rows []hydrate.Row) ([]Skill, error) {
	return hydrate.Collect[Skill](rows, hydrate.Flat, "id", SkillFromRow, nil)
}

// UserSkill is a user's claimed level for one skill.
type UserSkill struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	SkillID   int64      `json:"skill_id"`
	SkillName string     `json:"skill_name,omitempty"`
	Level     SkillLevel `json:"level"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewUserSkill(userID, skillID int64, level SkillLevel) *UserSkill {
	now := Now()
	return &UserSkill{
		ID:        TransientID,
		UserID:    userID,
		SkillID:   skillID,
		Level:     level,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *UserSkill) IsPersisted() bool {
	return s.ID >= 0
}

// UserSkillFromRow maps a user_skills row, optionally carrying skill_name from
// a join with skills.
func UserSkillFromRow(row hydrate.Row) (*UserSkill, error) {
	r := &rowReader{row: row}
	s := &UserSkill{
		ID:        r.int64("id"),
		UserID:    r.int64("user_id"),
		SkillID:   r.int64("skill_id"),
		SkillName: r.optString("skill_name"),
		Level:     parse(r, "level", ParseSkillLevel),
		CreatedAt: r.time("created_at"),
		UpdatedAt: r.time("updated_at"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate user skill: %w", r.err)
	}
	return s, nil
}

func UserSkillsFromRows(rows []hydrate.Row) ([]UserSkill, error) {
	return hydrate.Collect[UserSkill](rows, hydrate.Flat, "id", UserSkillFromRow, nil)
}

// userSkillFromJoined reads the skill_* child columns of a user join row.
func userSkillFromJoined(row hydrate.Row, userID int64) (UserSkill, error) {
	r := &rowReader{row: row}
	s := UserSkill{
		ID:        r.int64("user_skill_id"),
		UserID:    userID,
		SkillID:   r.int64("skill_id"),
		SkillName: r.string("skill_name"),
		Level:     parse(r, "skill_level", ParseSkillLevel),
		CreatedAt: r.time("skill_created_at"),
		UpdatedAt: r.time("skill_updated_at"),
	}
	return s, r.err
}
