package model

import "fmt"

// Role is a user's site-wide role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	}
	return "", unknown("role", s)
}

func (r Role) String() string { return string(r) }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// SkillLevel is the proficiency a user claims for a skill. Stored values are
// the French labels used since the first schema.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "débutant"
	LevelIntermediate SkillLevel = "intermédiaire"
	LevelAdvanced     SkillLevel = "avancé"
	LevelExpert       SkillLevel = "expert"
)

// SkillLevels lists every level from lowest to highest.
var SkillLevels = []SkillLevel{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}

func ParseSkillLevel(s string) (SkillLevel, error) {
	for _, l := range SkillLevels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", unknown("level", s)
}

func (l SkillLevel) String() string { return string(l) }

func (l *SkillLevel) UnmarshalText(b []byte) error {
	v, err := ParseSkillLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityPrivate:
		return v, nil
	}
	return "", unknown("visibility", s)
}

func (v Visibility) String() string { return string(v) }

func (v *Visibility) UnmarshalText(b []byte) error {
	p, err := ParseVisibility(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// ProjectRole is a member's role on one project. Only owners may delete or
// share the project.
type ProjectRole string

const (
	ProjectOwner       ProjectRole = "owner"
	ProjectContributor ProjectRole = "contributor"
	ProjectViewer      ProjectRole = "viewer"
)

func ParseProjectRole(s string) (ProjectRole, error) {
	switch r := ProjectRole(s); r {
	case ProjectOwner, ProjectContributor, ProjectViewer:
		return r, nil
	}
	return "", unknown("project role", s)
}

func (r ProjectRole) String() string { return string(r) }

func (r *ProjectRole) UnmarshalText(b []byte) error {
	v, err := ParseProjectRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// CanEdit reports whether the role may change the project's fields and images.
func (r ProjectRole) CanEdit() bool {
	return r == ProjectOwner || r == ProjectContributor
}

func unknown(field, value string) *ValidationError {
	return Invalid(field, fmt.Sprintf("unknown %s %q", field, value))
}
