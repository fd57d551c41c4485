package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/validation"
)

const (
	maxSkillName        = 100
	maxSkillDescription = 1000
)

type SkillService struct {
	skillRepository repository.SkillRepository
}

func NewSkillService(skillRepository repository.SkillRepository) *SkillService {
	return &SkillService{skillRepository: skillRepository}
}

func validateSkill(name, description string) error {
	err := validation.ValidateName("name", name, maxSkillName)
	if err != nil {
		return err
	}
	if len([]rune(description)) > maxSkillDescription {
		return model.Invalid("description", "description is too long")
	}
	return nil
}

func (s *SkillService) Create(ctx context.Context, name, description string) (*model.Skill, error) {
	name = strings.TrimSpace(name)
	err := validateSkill(name, description)
	if err != nil {
		return nil, err
	}

	taken, err := s.skillRepository.NameTaken(ctx, name, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check skill name: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("skill %q: %w", name, model.ErrConflict)
	}

	skill := model.NewSkill(name, description)
	err = s.skillRepository.Create(ctx, skill)
	if err != nil {
		return nil, err
	}
	return skill, nil
}

func (s *SkillService) Update(ctx context.Context, id int64, name, description string) (*model.Skill, error) {
	name = strings.TrimSpace(name)
	err := validateSkill(name, description)
	if err != nil {
		return nil, err
	}

	skill, err := s.skillRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.skillRepository.NameTaken(ctx, name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check skill name: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("skill %q: %w", name, model.ErrConflict)
	}

	skill.Name = name
	skill.Description = description
	err = s.skillRepository.Update(ctx, skill)
	if err != nil {
		return nil, err
	}
	return skill, nil
}

func (s *SkillService) Delete(ctx context.Context, id int64) error {
	return s.skillRepository.Delete(ctx, id)
}

func (s *SkillService) Get(ctx context.Context, id int64) (*model.Skill, error) {
	return s.skillRepository.ByID(ctx, id)
}

// List pages through skills alphabetically, or searches them when term is set.
func (s *SkillService) List(ctx context.Context, term string, page repository.Page) ([]model.Skill, error) {
	if term != "" {
		return s.skillRepository.Search(ctx, term, page)
	}
	return s.skillRepository.List(ctx, repository.SkillFilter{}, page)
}
