package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/hydrate"
	"github.com/templui/skillfolio/internal/model"
)

// ProjectFilter selects projects. Zero fields are ignored.
type ProjectFilter struct {
	Visibility   model.Visibility
	CreatedSince time.Time
}

func (f ProjectFilter) conditions() crud.Conditions {
	var conds crud.Conditions
	if f.Visibility != "" {
		conds = append(conds, crud.Eq("visibility", f.Visibility.String()))
	}
	if !f.CreatedSince.IsZero() {
		conds = append(conds, crud.Where("created_at", crud.OpGte, f.CreatedSince))
	}
	return conds
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	ByID(ctx context.Context, id int64) (*model.Project, error)
	WithImages(ctx context.Context, id int64) (*model.Project, error)
	ForMember(ctx context.Context, userID int64, page Page) ([]model.Project, error)
	List(ctx context.Context, filter ProjectFilter, page Page) ([]model.Project, error)
	Public(ctx context.Context, page Page) ([]model.Project, error)
	Count(ctx context.Context, filter ProjectFilter) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id int64) error

	AddImage(ctx context.Context, image *model.Image) error
	Image(ctx context.Context, projectID, imageID int64) (*model.Image, error)
	Images(ctx context.Context, projectID int64) ([]model.Image, error)
	DeleteImage(ctx context.Context, projectID, imageID int64) error

	WithTx(tx *crud.Tx) ProjectRepository
}

var projectColumns = []string{"id", "title", "description", "external_link", "visibility", "created_at", "updated_at"}

var projectImageJoin = struct {
	columns []string
	joins   []crud.Join
}{
	columns: []string{
		"pi.id AS image_id",
		"pi.path AS image_path",
		"pi.name AS image_name",
		"pi.uploaded_at AS image_uploaded_at",
	},
	joins: []crud.Join{
		crud.LeftJoin("project_images pi", "pi.project_id = p.id"),
	},
}

type projectRepository struct {
	projects *crud.Store
	images   *crud.Store
}

func NewProjectRepository(db *sqlx.DB, opts ...crud.Option) ProjectRepository {
	return &projectRepository{
		projects: crud.New(db, "projects", append([]crud.Option{crud.WithAlias("p")}, opts...)...),
		images:   crud.New(db, "project_images", opts...),
	}
}

func (r *projectRepository) WithTx(tx *crud.Tx) ProjectRepository {
	return &projectRepository{
		projects: r.projects.Using(tx),
		images:   r.images.Using(tx),
	}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	id, err := r.projects.Insert(ctx, crud.Fields{
		"title":         project.Title,
		"description":   project.Description,
		"external_link": project.ExternalLink,
		"visibility":    project.Visibility.String(),
		"created_at":    project.CreatedAt,
		"updated_at":    project.UpdatedAt,
	})
	if err != nil {
		return translate(err, "project", project.Title)
	}
	project.ID = id
	return nil
}

func (r *projectRepository) ByID(ctx context.Context, id int64) (*model.Project, error) {
	row, err := r.projects.FindOne(ctx, crud.Query{Where: byID(id)})
	if err != nil {
		return nil, translate(err, "project", id)
	}
	return model.ProjectFromRow(row)
}

// WithImages loads a project together with its images, oldest upload first.
func (r *projectRepository) WithImages(ctx context.Context, id int64) (*model.Project, error) {
	rows, err := r.projects.FindMany(ctx, crud.Query{
		Columns:   append(qualify("p", projectColumns...), projectImageJoin.columns...),
		Joins:     projectImageJoin.joins,
		Where:     crud.Conditions{crud.Eq("p.id", id)},
		OrderBy:   "pi.id",
		Ascending: true,
	})
	if err != nil {
		return nil, translate(err, "project", id)
	}
	project, err := model.ProjectFromJoinedRows(rows)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, model.NotFound("project", id)
	}
	return project, nil
}

// ForMember lists the projects userID belongs to, newest first, with the
// user's role on each.
func (r *projectRepository) ForMember(ctx context.Context, userID int64, page Page) ([]model.Project, error) {
	rows, err := r.projects.FindMany(ctx, crud.Query{
		Columns: append(qualify("p", projectColumns...), "pu.role AS member_role"),
		Joins: []crud.Join{
			crud.InnerJoin("project_users pu", "pu.project_id = p.id"),
		},
		Where:   crud.Conditions{crud.Eq("pu.user_id", userID)},
		OrderBy: "p.id",
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return model.ProjectsFromRows(rows, hydrate.Flat)
}

// List returns matching projects, newest first.
func (r *projectRepository) List(ctx context.Context, filter ProjectFilter, page Page) ([]model.Project, error) {
	rows, err := r.projects.FindMany(ctx, crud.Query{
		Where:   filter.conditions(),
		OrderBy: "id",
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return model.ProjectsFromRows(rows, hydrate.Flat)
}

func (r *projectRepository) Public(ctx context.Context, page Page) ([]model.Project, error) {
	return r.List(ctx, ProjectFilter{Visibility: model.VisibilityPublic}, page)
}

func (r *projectRepository) Count(ctx context.Context, filter ProjectFilter) (int64, error) {
	return r.projects.Count(ctx, filter.conditions())
}

func (r *projectRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return r.Count(ctx, ProjectFilter{CreatedSince: since})
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = model.Now()
	n, err := r.projects.Update(ctx, crud.Fields{
		"title":         project.Title,
		"description":   project.Description,
		"external_link": project.ExternalLink,
		"visibility":    project.Visibility.String(),
		"updated_at":    project.UpdatedAt,
	}, byID(project.ID))
	return affected(n, err, "project", project.ID)
}

// Delete removes the project; images and memberships cascade.
func (r *projectRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.projects.Delete(ctx, byID(id))
	return affected(n, err, "project", id)
}

func (r *projectRepository) AddImage(ctx context.Context, image *model.Image) error {
	id, err := r.images.Insert(ctx, crud.Fields{
		"project_id":  image.ProjectID,
		"path":        image.Path,
		"name":        image.Name,
		"uploaded_at": image.UploadedAt,
	})
	if err != nil {
		return translate(err, "image", image.Name)
	}
	image.ID = id
	return nil
}

func imageOf(projectID, imageID int64) crud.Conditions {
	return crud.Conditions{crud.Eq("id", imageID), crud.Eq("project_id", projectID)}
}

func (r *projectRepository) Image(ctx context.Context, projectID, imageID int64) (*model.Image, error) {
	row, err := r.images.FindOne(ctx, crud.Query{Where: imageOf(projectID, imageID)})
	if err != nil {
		return nil, translate(err, "image", imageID)
	}
	return model.ImageFromRow(row)
}

func (r *projectRepository) Images(ctx context.Context, projectID int64) ([]model.Image, error) {
	rows, err := r.images.FindMany(ctx, crud.Query{
		Where:     crud.Conditions{crud.Eq("project_id", projectID)},
		OrderBy:   "id",
		Ascending: true,
	})
	if err != nil {
		return nil, err
	}
	return model.ImagesFromRows(rows)
}

func (r *projectRepository) DeleteImage(ctx context.Context, projectID, imageID int64) error {
	n, err := r.images.Delete(ctx, imageOf(projectID, imageID))
	return affected(n, err, "image", imageID)
}
