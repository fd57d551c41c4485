package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/validation"
)

var ErrInvalidCurrentPassword = errors.New("current password is incorrect")

// Actor is the signed-in user a request runs on behalf of.
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

type UserService struct {
	userRepository      repository.UserRepository
	skillRepository     repository.SkillRepository
	userSkillRepository repository.UserSkillRepository
	fileService         *FileService
	authService         *AuthService
}

func NewUserService(
	userRepository repository.UserRepository,
	skillRepository repository.SkillRepository,
	userSkillRepository repository.UserSkillRepository,
	fileService *FileService,
	authService *AuthService,
) *UserService {
	return &UserService{
		userRepository:      userRepository,
		skillRepository:     skillRepository,
		userSkillRepository: userSkillRepository,
		fileService:         fileService,
		authService:         authService,
	}
}

// Profile returns the user with their skills and a fetchable avatar URL.
func (s *UserService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepository.WithSkills(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Avatar != nil {
		url := s.fileService.URL(ctx, *user.Avatar)
		user.Avatar = &url
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, username, email string) (*model.User, error) {
	email = validation.NormalizeEmail(email)
	err := validation.ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if email != user.Email {
		taken, err := s.userRepository.EmailTaken(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("email: %w", model.ErrConflict)
		}
	}

	user.Username = username
	user.Email = email
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.authService.ComparePassword(currentPassword, user.PasswordHash)
	if err != nil {
		return ErrInvalidCurrentPassword
	}

	err = validation.ValidatePassword(newPassword)
	if err != nil {
		return err
	}

	hash, err := s.authService.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", "user_id", userID)
	return nil
}

// UploadAvatar stores a new avatar and drops the previous one.
func (s *UserService) UploadAvatar(ctx context.Context, userID int64, upload Upload) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := s.fileService.SaveImage(ctx, "avatars", upload)
	if err != nil {
		return nil, err
	}

	previous := user.Avatar
	user.Avatar = &key
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		s.fileService.Delete(ctx, key)
		return nil, fmt.Errorf("failed to save avatar: %w", err)
	}
	if previous != nil {
		s.fileService.Delete(ctx, *previous)
	}
	return user, nil
}

// SetSkill records the user's level for a skill, replacing any earlier level.
func (s *UserService) SetSkill(ctx context.Context, userID, skillID int64, level model.SkillLevel) (*model.UserSkill, error) {
	_, err := model.ParseSkillLevel(level.String())
	if err != nil {
		return nil, err
	}
	skill, err := s.skillRepository.ByID(ctx, skillID)
	if err != nil {
		return nil, err
	}

	entry := model.NewUserSkill(userID, skill.ID, level)
	err = s.userSkillRepository.Set(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.SkillName = skill.Name
	return entry, nil
}

func (s *UserService) RemoveSkill(ctx context.Context, userID, skillID int64) error {
	return s.userSkillRepository.Remove(ctx, userID, skillID)
}

// List pages through users, or searches them when term is set.
func (s *UserService) List(ctx context.Context, term string, page repository.Page) ([]model.User, error) {
	if term != "" {
		return s.userRepository.Search(ctx, term, page)
	}
	return s.userRepository.List(ctx, repository.UserFilter{}, page)
}

// SetRole changes another user's role. Admins cannot change their own role.
func (s *UserService) SetRole(ctx context.Context, actor Actor, userID int64, role model.Role) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.Forbidden("change role", "admin role required")
	}
	if actor.UserID == userID {
		return nil, model.Forbidden("change role", "admins cannot change their own role")
	}
	_, err := model.ParseRole(role.String())
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("user role changed", "user_id", userID, "role", role, "by", actor.UserID)
	return user, nil
}

// Delete removes an account. Users may delete themselves; admins anyone else.
func (s *UserService) Delete(ctx context.Context, actor Actor, userID int64) error {
	if actor.UserID != userID && !actor.IsAdmin() {
		return model.Forbidden("delete user", "not your account")
	}
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return err
	}
	err = s.userRepository.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if user.Avatar != nil {
		s.fileService.Delete(ctx, *user.Avatar)
	}
	slog.Info("user deleted", "user_id", userID, "by", actor.UserID)
	return nil
}
