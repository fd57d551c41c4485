package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/validation"
)

const (
	maxProjectTitle       = 200
	maxProjectDescription = 5000
)

// ProjectInput carries the editable fields of a project.
type ProjectInput struct {
	Title        string
	Description  string
	ExternalLink string
	Visibility   model.Visibility
}

func (in ProjectInput) validate() error {
	err := validation.ValidateName("title", in.Title, maxProjectTitle)
	if err != nil {
		return err
	}
	if len([]rune(in.Description)) > maxProjectDescription {
		return model.Invalid("description", "description is too long")
	}
	if in.ExternalLink != "" {
		u, err := url.Parse(in.ExternalLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return model.Invalid("external_link", "external link must be an http(s) URL")
		}
	}
	_, err = model.ParseVisibility(in.Visibility.String())
	return err
}

type ProjectService struct {
	db                    *sqlx.DB
	projectRepository     repository.ProjectRepository
	projectUserRepository repository.ProjectUserRepository
	userRepository        repository.UserRepository
	fileService           *FileService
	mailer                Mailer
	appURL                string
	appName               string
}

func NewProjectService(
	db *sqlx.DB,
	projectRepository repository.ProjectRepository,
	projectUserRepository repository.ProjectUserRepository,
	userRepository repository.UserRepository,
	fileService *FileService,
	mailer Mailer,
	appURL string,
	appName string,
) *ProjectService {
	return &ProjectService{
		db:                    db,
		projectRepository:     projectRepository,
		projectUserRepository: projectUserRepository,
		userRepository:        userRepository,
		fileService:           fileService,
		mailer:                mailer,
		appURL:                appURL,
		appName:               appName,
	}
}

// Create inserts the project and makes actor its owner in one transaction.
func (s *ProjectService) Create(ctx context.Context, actor Actor, in ProjectInput) (*model.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	err := in.validate()
	if err != nil {
		return nil, err
	}

	project := model.NewProject(in.Title, in.Description, in.ExternalLink, in.Visibility)
	err = crud.RunInTx(ctx, s.db, func(tx *crud.Tx) error {
		err := s.projectRepository.WithTx(tx).Create(ctx, project)
		if err != nil {
			return err
		}
		owner := model.NewProjectUser(project.ID, actor.UserID, model.ProjectOwner)
		return s.projectUserRepository.WithTx(tx).Set(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	project.MemberRole = model.ProjectOwner
	project.Images = []model.Image{}
	slog.Info("project created", "project_id", project.ID, "user_id", actor.UserID)
	return project, nil
}

// role returns actor's role on the project, or "" when they are not a member.
func (s *ProjectService) role(ctx context.Context, actor Actor, projectID int64) (model.ProjectRole, error) {
	role, err := s.projectUserRepository.Role(ctx, projectID, actor.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return "", nil
	}
	return role, err
}

// authorize loads the project and checks actor's role against allowed.
// Private projects a non-member cannot see are reported as not found.
func (s *ProjectService) authorize(ctx context.Context, actor Actor, projectID int64, action string, allowed func(model.ProjectRole) bool) (*model.Project, error) {
	project, err := s.projectRepository.ByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role, err := s.role(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if role == "" && !project.IsPublic() && !actor.IsAdmin() {
		return nil, model.NotFound("project", projectID)
	}
	if !allowed(role) {
		return nil, model.Forbidden(action, fmt.Sprintf("requires a different role on project %d", projectID))
	}
	project.MemberRole = role
	return project, nil
}

func isOwner(r model.ProjectRole) bool { return r == model.ProjectOwner }

// Get returns a project with its images. Private projects are visible to
// members and admins only.
func (s *ProjectService) Get(ctx context.Context, actor Actor, projectID int64) (*model.Project, error) {
	_, err := s.authorize(ctx, actor, projectID, "view project", func(model.ProjectRole) bool { return true })
	if err != nil {
		return nil, err
	}
	project, err := s.projectRepository.WithImages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project.MemberRole, err = s.role(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	for i := range project.Images {
		project.Images[i].Path = s.fileService.URL(ctx, project.Images[i].Path)
	}
	return project, nil
}

// Update requires the owner or contributor role.
func (s *ProjectService) Update(ctx context.Context, actor Actor, projectID int64, in ProjectInput) (*model.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	err := in.validate()
	if err != nil {
		return nil, err
	}
	project, err := s.authorize(ctx, actor, projectID, "edit project", model.ProjectRole.CanEdit)
	if err != nil {
		return nil, err
	}

	project.Title = in.Title
	project.Description = in.Description
	project.ExternalLink = in.ExternalLink
	project.Visibility = in.Visibility
	err = s.projectRepository.Update(ctx, project)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Delete is reserved to the project's owner.
func (s *ProjectService) Delete(ctx context.Context, actor Actor, projectID int64) error {
	_, err := s.authorize(ctx, actor, projectID, "delete project", isOwner)
	if err != nil {
		return err
	}
	images, err := s.projectRepository.Images(ctx, projectID)
	if err != nil {
		return err
	}
	err = s.projectRepository.Delete(ctx, projectID)
	if err != nil {
		return err
	}
	for _, img := range images {
		s.fileService.Delete(ctx, img.Path)
	}
	slog.Info("project deleted", "project_id", projectID, "user_id", actor.UserID)
	return nil
}

// Share gives userID a contributor or viewer role. Only the owner may share.
func (s *ProjectService) Share(ctx context.Context, actor Actor, projectID, userID int64, role model.ProjectRole) (*model.ProjectUser, error) {
	if role != model.ProjectContributor && role != model.ProjectViewer {
		return nil, model.Invalid("role", "role must be contributor or viewer")
	}
	project, err := s.authorize(ctx, actor, projectID, "share project", isOwner)
	if err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, model.Invalid("user_id", "owners cannot change their own role")
	}
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	member := model.NewProjectUser(projectID, userID, role)
	err = s.projectUserRepository.Set(ctx, member)
	if err != nil {
		return nil, err
	}
	member.Username = user.Username

	projectURL := fmt.Sprintf("%s/app/projects/%d", s.appURL, projectID)
	subject, body := projectSharedEmailTemplate(user.Username, project.Title, role.String(), projectURL, s.appName)
	err = s.mailer.Send(ctx, user.Email, subject, body)
	if err != nil {
		slog.Warn("failed to send project shared email", "error", err, "project_id", projectID, "user_id", userID)
	}
	return member, nil
}

// Unshare removes a member. The owner may remove anyone but themselves;
// members may remove themselves.
func (s *ProjectService) Unshare(ctx context.Context, actor Actor, projectID, userID int64) error {
	allowed := isOwner
	if userID == actor.UserID {
		allowed = func(r model.ProjectRole) bool { return r != "" && r != model.ProjectOwner }
	}
	_, err := s.authorize(ctx, actor, projectID, "remove member", allowed)
	if err != nil {
		return err
	}
	return s.projectUserRepository.Remove(ctx, projectID, userID)
}

// Members lists the project's members to anyone who can see the project.
func (s *ProjectService) Members(ctx context.Context, actor Actor, projectID int64) ([]model.ProjectUser, error) {
	_, err := s.authorize(ctx, actor, projectID, "view members", func(model.ProjectRole) bool { return true })
	if err != nil {
		return nil, err
	}
	return s.projectUserRepository.Members(ctx, projectID)
}

// AddImage stores an upload and attaches it to the project.
func (s *ProjectService) AddImage(ctx context.Context, actor Actor, projectID int64, upload Upload) (*model.Image, error) {
	_, err := s.authorize(ctx, actor, projectID, "add image", model.ProjectRole.CanEdit)
	if err != nil {
		return nil, err
	}

	key, err := s.fileService.SaveImage(ctx, fmt.Sprintf("projects/%d", projectID), upload)
	if err != nil {
		return nil, err
	}
	image := model.NewImage(projectID, key, upload.Filename)
	err = s.projectRepository.AddImage(ctx, image)
	if err != nil {
		s.fileService.Delete(ctx, key)
		return nil, err
	}
	image.Path = s.fileService.URL(ctx, key)
	return image, nil
}

func (s *ProjectService) RemoveImage(ctx context.Context, actor Actor, projectID, imageID int64) error {
	_, err := s.authorize(ctx, actor, projectID, "remove image", model.ProjectRole.CanEdit)
	if err != nil {
		return err
	}
	image, err := s.projectRepository.Image(ctx, projectID, imageID)
	if err != nil {
		return err
	}
	err = s.projectRepository.DeleteImage(ctx, projectID, imageID)
	if err != nil {
		return err
	}
	s.fileService.Delete(ctx, image.Path)
	return nil
}

// ForUser lists the projects userID is a member of, newest first.
func (s *ProjectService) ForUser(ctx context.Context, userID int64, page repository.Page) ([]model.Project, error) {
	return s.projectRepository.ForMember(ctx, userID, page)
}

// Public lists public projects, newest first.
func (s *ProjectService) Public(ctx context.Context, page repository.Page) ([]model.Project, error) {
	return s.projectRepository.Public(ctx, page)
}
