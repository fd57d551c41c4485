package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/config"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/db"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/service"
	"github.com/templui/skillfolio/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	AuthService    *service.AuthService
	UserService    *service.UserService
	SkillService   *service.SkillService
	ProjectService *service.ProjectService
	AdminService   *service.AdminService
	EmailService   *service.EmailService
	FileService    *service.FileService

	provider *db.Provider
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	provider := db.NewProvider(cfg.DB)
	database, err := provider.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(database.DB, cfg.DB.Driver)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := build(database, fileStorage, cfg)
	a.provider = provider
	return a, nil
}

// build wires repositories and services on an open, migrated database.
func build(database *sqlx.DB, fileStorage storage.Storage, cfg *config.Config) *App {
	timeout := crud.WithTimeout(cfg.DB.QueryTimeout)

	// Repositories
	userRepository := repository.NewUserRepository(database, timeout)
	skillRepository := repository.NewSkillRepository(database, timeout)
	userSkillRepository := repository.NewUserSkillRepository(database, timeout)
	projectRepository := repository.NewProjectRepository(database, timeout)
	projectUserRepository := repository.NewProjectUserRepository(database, timeout)
	resetTokenRepository := repository.NewResetTokenRepository(database, timeout)

	// Services
	emailService := service.NewEmailService(cfg.ResendAPIKey, cfg.MailFrom, cfg.IsDevelopment())
	fileService := service.NewFileService(fileStorage)
	authService := service.NewAuthService(
		database,
		userRepository,
		resetTokenRepository,
		emailService,
		cfg.AppURL,
		cfg.AppName,
		cfg.JWTSecret,
		cfg.IsProduction(),
		cfg.JWTExpiry,
		cfg.TokenPasswordResetExpiry,
	)
	userService := service.NewUserService(userRepository, skillRepository, userSkillRepository, fileService, authService)
	skillService := service.NewSkillService(skillRepository)
	projectService := service.NewProjectService(
		database,
		projectRepository,
		projectUserRepository,
		userRepository,
		fileService,
		emailService,
		cfg.AppURL,
		cfg.AppName,
	)
	adminService := service.NewAdminService(userRepository, skillRepository, projectRepository)

	return &App{
		Cfg:            cfg,
		DB:             database,
		AuthService:    authService,
		UserService:    userService,
		SkillService:   skillService,
		ProjectService: projectService,
		AdminService:   adminService,
		EmailService:   emailService,
		FileService:    fileService,
	}
}

func (a *App) Close() error {
	if a.provider != nil {
		return a.provider.Close()
	}
	return nil
}
