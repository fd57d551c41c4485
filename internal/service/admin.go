package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
)

const recentUsers = 5

// DashboardQuery selects the skill section of the dashboard: the full list
// when SkillSearch is empty, otherwise one page of matches.
type DashboardQuery struct {
	SkillSearch string
	SkillPage   repository.Page
}

type Dashboard struct {
	UserCount       int64             `json:"user_count"`
	UsersLast24h    int64             `json:"users_last_24h"`
	RecentUsers     []model.User      `json:"recent_users"`
	SkillCount      int64             `json:"skill_count"`
	Skills          []model.Skill     `json:"skills"`
	ProjectCount    int64             `json:"project_count"`
	ProjectsLast24h int64             `json:"projects_last_24h"`
	Errors          map[string]string `json:"errors,omitempty"`
}

type AdminService struct {
	userRepository    repository.UserRepository
	skillRepository   repository.SkillRepository
	projectRepository repository.ProjectRepository
	now               func() time.Time
}

func NewAdminService(
	userRepository repository.UserRepository,
	skillRepository repository.SkillRepository,
	projectRepository repository.ProjectRepository,
) *AdminService {
	return &AdminService{
		userRepository:    userRepository,
		skillRepository:   skillRepository,
		projectRepository: projectRepository,
		now:               model.Now,
	}
}

// Dashboard fills every section independently. A failing section is left at
// its zero value and noted in Errors; the returned error joins all failures.
func (s *AdminService) Dashboard(ctx context.Context, q DashboardQuery) (*Dashboard, error) {
	d := &Dashboard{
		RecentUsers: []model.User{},
		Skills:      []model.Skill{},
	}
	since := s.now().Add(-24 * time.Hour)

	var errs []error
	record := func(field string, err error) {
		if err == nil {
			return
		}
		if d.Errors == nil {
			d.Errors = map[string]string{}
		}
		d.Errors[field] = "unavailable"
		errs = append(errs, fmt.Errorf("%s: %w", field, err))
	}

	var err error
	d.UserCount, err = s.userRepository.Count(ctx, repository.UserFilter{})
	record("user_count", err)

	d.UsersLast24h, err = s.userRepository.CountSince(ctx, since)
	record("users_last_24h", err)

	users, err := s.userRepository.Recent(ctx, recentUsers)
	if err == nil {
		d.RecentUsers = users
	}
	record("recent_users", err)

	d.SkillCount, err = s.skillRepository.Count(ctx)
	record("skill_count", err)

	var skills []model.Skill
	if q.SkillSearch != "" {
		skills, err = s.skillRepository.Search(ctx, q.SkillSearch, q.SkillPage)
	} else {
		skills, err = s.skillRepository.All(ctx)
	}
	if err == nil {
		d.Skills = skills
	}
	record("skills", err)

	d.ProjectCount, err = s.projectRepository.Count(ctx, repository.ProjectFilter{})
	record("project_count", err)

	d.ProjectsLast24h, err = s.projectRepository.CountSince(ctx, since)
	record("projects_last_24h", err)

	return d, errors.Join(errs...)
}
