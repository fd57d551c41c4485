package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/db/dbtest"
	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/storage"
)

const testPassword = "Correct-Horse-42"

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("Expected an email to be sent")
	}
	return m.sent[len(m.sent)-1]
}

var tokenInMail = regexp.MustCompile(`/auth/reset-password/([0-9a-f]{64})`)

type testEnv struct {
	db         *sqlx.DB
	mailer     *fakeMailer
	store      *storage.LocalStorage
	users      repository.UserRepository
	skills     repository.SkillRepository
	userSkills repository.UserSkillRepository
	projects   repository.ProjectRepository
	members    repository.ProjectUserRepository
	tokens     repository.ResetTokenRepository

	auth    *AuthService
	user    *UserService
	skill   *SkillService
	project *ProjectService
	admin   *AdminService
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.New(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	e := &testEnv{
		db:         conn,
		mailer:     &fakeMailer{},
		store:      store,
		users:      repository.NewUserRepository(conn),
		skills:     repository.NewSkillRepository(conn),
		userSkills: repository.NewUserSkillRepository(conn),
		projects:   repository.NewProjectRepository(conn),
		members:    repository.NewProjectUserRepository(conn),
		tokens:     repository.NewResetTokenRepository(conn),
	}
	files := NewFileService(store)
	e.auth = NewAuthService(conn, e.users, e.tokens, e.mailer, "http://localhost:8090", "Skillfolio",
		"test-secret-at-least-16", false, time.Hour, time.Hour)
	e.user = NewUserService(e.users, e.skills, e.userSkills, files, e.auth)
	e.skill = NewSkillService(e.skills)
	e.project = NewProjectService(conn, e.projects, e.members, e.users, files, e.mailer, "http://localhost:8090", "Skillfolio")
	e.admin = NewAdminService(e.users, e.skills, e.projects)
	return e
}

// createUser inserts a user directly, skipping the bcrypt cost of Register.
func (e *testEnv) createUser(t *testing.T, username string, role model.Role) Actor {
	t.Helper()
	user := model.NewUser(username, username+"@example.com", "unused")
	user.Role = role
	err := e.users.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return Actor{UserID: user.ID, Role: user.Role}
}
