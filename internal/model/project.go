package model

import (
	"fmt"
	"time"

	"github.com/templui/skillfolio/internal/hydrate"
)

type Project struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ExternalLink string     `json:"external_link,omitempty"`
	Visibility   Visibility `json:"visibility"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Images       []Image    `json:"images,omitempty"`

	// MemberRole is the viewing user's role, set when the query joined project_users.
	MemberRole ProjectRole `json:"member_role,omitempty"`
}

func NewProject(title, description, externalLink string, visibility Visibility) *Project {
	now := Now()
	return &Project{
		ID:           TransientID,
		Title:        title,
		Description:  description,
		ExternalLink: externalLink,
		Visibility:   visibility,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (p *Project) IsPersisted() bool {
	return p.ID >= 0
}

func (p *Project) IsPublic() bool {
	return p.Visibility == VisibilityPublic
}

func ProjectFromRow(row hydrate.Row) (*Project, error) {
	r := &rowReader{row: row}
	p := &Project{
		ID:           r.int64("id"),
		Title:        r.string("title"),
		Description:  r.string("description"),
		ExternalLink: r.string("external_link"),
		Visibility:   parse(r, "visibility", ParseVisibility),
		CreatedAt:    r.time("created_at"),
		UpdatedAt:    r.time("updated_at"),
	}
	if r.err == nil && !row.IsNull("member_role") {
		p.MemberRole = parse(r, "member_role", ParseProjectRole)
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate project: %w", r.err)
	}
	return p, nil
}

// ProjectFromJoinedRows builds one project from a projects/project_images LEFT
// JOIN. No rows yields (nil, nil).
func ProjectFromJoinedRows(rows []hydrate.Row) (*Project, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	p, err := ProjectFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	if err := sameParent(rows, "id", p.ID); err != nil {
		return nil, fmt.Errorf("hydrate project: %w", err)
	}

	p.Images, err = hydrate.Fold(rows, "image_id", func(row hydrate.Row) (Image, error) {
		return imageFromJoined(row, p.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate project %d images: %w", p.ID, err)
	}
	return p, nil
}

func ProjectsFromRows(rows []hydrate.Row, mode hydrate.FetchMode) ([]Project, error) {
	return hydrate.Collect(rows, mode, "id", ProjectFromRow, ProjectFromJoinedRows)
}

// Image is a file attached to exactly one project.
type Image struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func NewImage(projectID int64, path, name string) *Image {
	return &Image{
		ID:         TransientID,
		ProjectID:  projectID,
		Path:       path,
		Name:       name,
		UploadedAt: Now(),
	}
}

func (i *Image) IsPersisted() bool {
	return i.ID >= 0
}

func ImageFromRow(row hydrate.Row) (*Image, error) {
	r := &rowReader{row: row}
	img := &Image{
		ID:         r.int64("id"),
		ProjectID:  r.int64("project_id"),
		Path:       r.string("path"),
		Name:       r.string("name"),
		UploadedAt: r.time("uploaded_at"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate image: %w", r.err)
	}
	return img, nil
}

func ImagesFromRows(rows []hydrate.Row) ([]Image, error) {
	return hydrate.Collect[Image](rows, hydrate.Flat, "id", ImageFromRow, nil)
}

func imageFromJoined(row hydrate.Row, projectID int64) (Image, error) {
	r := &rowReader{row: row}
	img := Image{
		ID:         r.int64("image_id"),
		ProjectID:  projectID,
		Path:       r.string("image_path"),
		Name:       r.string("image_name"),
		UploadedAt: r.time("image_uploaded_at"),
	}
	return img, r.err
}

// ProjectUser is one member's role on a project. A (project, user) pair holds
// at most one role.
type ProjectUser struct {
	ID        int64       `json:"id"`
	ProjectID int64       `json:"project_id"`
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username,omitempty"`
	Role      ProjectRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewProjectUser(projectID, userID int64, role ProjectRole) *ProjectUser {
	now := Now()
	return &ProjectUser{
		ID:        TransientID,
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *ProjectUser) IsPersisted() bool {
	return m.ID >= 0
}

func (m *ProjectUser) IsOwner() bool {
	return m.Role == ProjectOwner
}

// ProjectUserFromRow maps a project_users row, optionally carrying username
// from a join with users.
func ProjectUserFromRow(row hydrate.Row) (*ProjectUser, error) {
	r := &rowReader{row: row}
	m := &ProjectUser{
		ID:        r.int64("id"),
		ProjectID: r.int64("project_id"),
		UserID:    r.int64("user_id"),
		Username:  r.optString("username"),
		Role:      parse(r, "role", ParseProjectRole),
		CreatedAt: r.time("created_at"),
		UpdatedAt: r.time("updated_at"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("hydrate project user: %w", r.err)
	}
	return m, nil
}

func ProjectUsersFromRows(rows []hydrate.Row) ([]ProjectUser, error) {
	return hydrate.Collect[ProjectUser](rows, hydrate.Flat, "id", ProjectUserFromRow, nil)
}
