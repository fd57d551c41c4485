package model

import (
	"fmt"
	"time"

	"github.com/templui/skillfolio/internal/hydrate"
)

type User struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Avatar       *string     `json:"avatar,omitempty"`
	Role         Role        `json:"role"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Skills       []UserSkill `json:"skills,omitempty"`
}

// NewUser returns an unsaved user with the default role.
func NewUser(username, email, passwordHash string) *User {
	now := Now()
	return &User{
		ID:           TransientID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (u *User) IsPersisted() bool {
	return u.ID >= 0
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Skill returns the user's entry for skillID, if any.
func (u *User) Skill(skillID int64) (UserSkill, bool) {
	for _, s := range u.Skills {
		if s.SkillID == skillID {
			return s, true
		}
	}
	return UserSkill{}, false
}

// UserFromRow maps one users row. Skills are left nil.
func UserFromRow(row hydrate.Row) (*User, error) {
	r := &rowReader{row: row}
	u := &User{
		ID:           r.int64("id"),
		Username:     r.string("username"),
		Email:        r.string("email"),
		PasswordHash: r.optString("password_hash"),
		Avatar:       r.nullString("avatar"),
		Role:         parse(r, "role", ParseRole),
		CreatedAt:    r.time("created_at"),
		UpdatedAt:    r.time("updated_at"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate user: %w", r.err)
	}
	return u, nil
}

// UserFromJoinedRows builds one user from the rows of a users/user_skills/skills
// LEFT JOIN. Every row must belong to the same user. No rows yields (nil, nil).
func UserFromJoinedRows(rows []hydrate.Row) (*User, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	u, err := UserFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	if err := sameParent(rows, "id", u.ID); err != nil {
		return nil, fmt.Errorf("hydrate user: %w", err)
	}

	u.Skills, err = hydrate.Fold(rows, "skill_id", func(row hydrate.Row) (UserSkill, error) {
		return userSkillFromJoined(row, u.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate user %d skills: %w", u.ID, err)
	}
	return u, nil
}

// UsersFromRows hydrates a result set in the given mode. Joined rows are
// grouped by the users primary key.
func UsersFromRows(rows []hydrate.Row, mode hydrate.FetchMode) ([]User, error) {
	return hydrate.Collect(rows, mode, "id", UserFromRow, UserFromJoinedRows)
}

func sameParent(rows []hydrate.Row, key string, id int64) error {
	for _, row := range rows {
		got, err := row.Int64(key)
		if err != nil {
			return err
		}
		if got != id {
			return fmt.Errorf("rows span parents %d and %d", id, got)
		}
	}
	return nil
}
