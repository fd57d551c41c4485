package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/templui/skillfolio/internal/app"
	"github.com/templui/skillfolio/internal/config"
)

const testPassword = "Correct-Horse-42"

func newTestApp(t *testing.T, overrides map[string]string) (*app.App, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"ENVIRONMENT":     "development",
		"APP_URL":         "http://localhost:8090",
		"JWT_SECRET":      "routes-test-secret-0123",
		"DB_DRIVER":       "sqlite",
		"DB_PATH":         filepath.Join(dir, "app.db"),
		"UPLOAD_DIR":      filepath.Join(dir, "uploads"),
		"AUTH_RATE_LIMIT": "0",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.LoadWith(config.FromMap(env))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, SetupRoutes(a)
}

// client keeps cookies between requests and echoes the CSRF token.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	csrf    string
}

func newClient(t *testing.T, h http.Handler) *client {
	c := &client{t: t, handler: h, cookies: map[string]*http.Cookie{}}
	rec := c.send(httptest.NewRequest(http.MethodGet, "/auth/csrf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected csrf endpoint to answer 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	c.csrf = body["csrf_token"]
	if c.csrf == "" {
		t.Fatal("Expected a csrf token")
	}
	return c
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Value == "" || cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func register(t *testing.T, c *client, username string) map[string]any {
	t.Helper()
	rec := c.do(http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	expectStatus(t, rec, http.StatusCreated)
	var user map[string]any
	decodeBody(t, rec, &user)
	return user
}

func TestRegisterLoginAndProfile(t *testing.T) {
	_, h := newTestApp(t, nil)
	c := newClient(t, h)

	user := register(t, c, "alice")
	if user["email"] != "alice@example.com" || user["role"] != "user" {
		t.Errorf("Expected alice as user, got %v", user)
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Error("Expected the password hash to stay out of responses")
	}

	rec := c.do(http.MethodGet, "/app/me", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = c.do(http.MethodGet, "/app/me", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "Wrong-Horse-42"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ALICE@example.com", "password": testPassword})
	expectStatus(t, rec, http.StatusOK)
	rec = c.do(http.MethodGet, "/app/me", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestRegisterReportsPasswordProblems(t *testing.T) {
	_, h := newTestApp(t, nil)
	c := newClient(t, h)

	rec := c.do(http.MethodPost, "/auth/register", map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "short",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	var body struct {
		Error    string   `json:"error"`
		Field    string   `json:"field"`
		Problems []string `json:"problems"`
	}
	decodeBody(t, rec, &body)
	if body.Field != "password" || len(body.Problems) < 2 {
		t.Errorf("Expected itemized password problems, got %+v", body)
	}

	rec = c.do(http.MethodPost, "/auth/register", map[string]string{"username": "bob"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	decodeBody(t, rec, &body)
	if len(body.Problems) != 2 {
		t.Errorf("Expected email and password to be reported missing, got %+v", body.Problems)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, h := newTestApp(t, nil)
	register(t, newClient(t, h), "alice")

	rec := newClient(t, h).do(http.MethodPost, "/auth/register", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": testPassword,
	})
	expectStatus(t, rec, http.StatusConflict)
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "email already exists" {
		t.Errorf("Expected a clean conflict message, got %q", body["error"])
	}
}

func TestStateChangesNeedCSRFToken(t *testing.T) {
	_, h := newTestApp(t, nil)
	c := newClient(t, h)
	c.csrf = ""

	rec := c.do(http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": testPassword,
	})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestAdminRoutes(t *testing.T) {
	a, h := newTestApp(t, nil)
	c := newClient(t, h)
	user := register(t, c, "root")

	rec := c.do(http.MethodGet, "/admin/dashboard", nil)
	expectStatus(t, rec, http.StatusForbidden)

	_, err := a.DB.Exec(`UPDATE users SET role = 'admin' WHERE id = ?`, int64(user["id"].(float64)))
	if err != nil {
		t.Fatalf("Failed to promote user: %v", err)
	}
	// The role travels in the session token, so sign in again.
	rec = c.do(http.MethodPost, "/auth/logout", nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = c.do(http.MethodPost, "/auth/login", map[string]string{"email": "root@example.com", "password": testPassword})
	expectStatus(t, rec, http.StatusOK)

	rec = c.do(http.MethodPost, "/admin/skills", map[string]string{"name": "Go", "description": "Gophers"})
	expectStatus(t, rec, http.StatusCreated)
	rec = c.do(http.MethodPost, "/admin/skills", map[string]string{"name": "Go"})
	expectStatus(t, rec, http.StatusConflict)

	rec = c.do(http.MethodGet, "/admin/dashboard", nil)
	expectStatus(t, rec, http.StatusOK)
	var dashboard struct {
		UserCount   int64            `json:"user_count"`
		SkillCount  int64            `json:"skill_count"`
		RecentUsers []map[string]any `json:"recent_users"`
		Errors      map[string]string
	}
	decodeBody(t, rec, &dashboard)
	if dashboard.UserCount != 1 || dashboard.SkillCount != 1 || len(dashboard.RecentUsers) != 1 {
		t.Errorf("Unexpected dashboard %+v", dashboard)
	}
	if len(dashboard.Errors) != 0 {
		t.Errorf("Expected no section errors, got %v", dashboard.Errors)
	}

	rec = c.do(http.MethodGet, "/skills?q=go", nil)
	expectStatus(t, rec, http.StatusOK)
	var skills []map[string]any
	decodeBody(t, rec, &skills)
	if len(skills) != 1 {
		t.Errorf("Expected search to find Go, got %v", skills)
	}

	rec = c.do(http.MethodPatch, "/admin/users/999/role", map[string]string{"role": "admin"})
	expectStatus(t, rec, http.StatusNotFound)
	rec = c.do(http.MethodPatch, "/admin/users/abc/role", map[string]string{"role": "admin"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestProjectRoutes(t *testing.T) {
	_, h := newTestApp(t, nil)
	owner := newClient(t, h)
	register(t, owner, "owner")
	stranger := newClient(t, h)
	strangerUser := register(t, stranger, "stranger")

	rec := owner.do(http.MethodPost, "/app/projects", map[string]string{
		"title":      "Secret",
		"visibility": "private",
	})
	expectStatus(t, rec, http.StatusCreated)
	var project map[string]any
	decodeBody(t, rec, &project)
	if project["member_role"] != "owner" {
		t.Errorf("Expected creator to be owner, got %v", project["member_role"])
	}
	path := "/app/projects/" + jsonNumber(project["id"])

	rec = stranger.do(http.MethodGet, path, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = owner.do(http.MethodPut, path+"/members/"+jsonNumber(strangerUser["id"]), map[string]string{"role": "viewer"})
	expectStatus(t, rec, http.StatusOK)
	rec = stranger.do(http.MethodGet, path, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = stranger.do(http.MethodDelete, path, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = owner.do(http.MethodPost, "/app/projects", map[string]string{"title": "Open", "visibility": "public"})
	expectStatus(t, rec, http.StatusCreated)
	rec = newClient(t, h).do(http.MethodGet, "/projects", nil)
	expectStatus(t, rec, http.StatusOK)
	var public []map[string]any
	decodeBody(t, rec, &public)
	if len(public) != 1 || public[0]["title"] != "Open" {
		t.Errorf("Expected only the public project, got %v", public)
	}

	rec = owner.do(http.MethodDelete, path, nil)
	expectStatus(t, rec, http.StatusNoContent)
}

func TestAvatarUpload(t *testing.T) {
	_, h := newTestApp(t, nil)
	c := newClient(t, h)
	register(t, c, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/app/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := c.send(req)
	expectStatus(t, rec, http.StatusOK)

	var user struct {
		Avatar string `json:"avatar"`
	}
	decodeBody(t, rec, &user)
	if user.Avatar == "" {
		t.Fatal("Expected an avatar URL")
	}

	rec = c.send(httptest.NewRequest(http.MethodGet, user.Avatar, nil))
	expectStatus(t, rec, http.StatusOK)
	rec = c.send(httptest.NewRequest(http.MethodGet, "/uploads/avatars/", nil))
	expectStatus(t, rec, http.StatusNotFound)
}

func TestPasswordResetRoutes(t *testing.T) {
	_, h := newTestApp(t, nil)
	c := newClient(t, h)

	rec := c.do(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	expectStatus(t, rec, http.StatusAccepted)

	rec = c.do(http.MethodGet, "/auth/reset-password/not-a-token", nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = c.do(http.MethodPost, "/auth/reset-password", map[string]string{
		"token":    "0000000000000000000000000000000000000000000000000000000000000000",
		"password": testPassword,
	})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAuthRateLimit(t *testing.T) {
	_, h := newTestApp(t, map[string]string{"AUTH_RATE_LIMIT": "2"})
	c := newClient(t, h)

	body := map[string]string{"email": "nobody@example.com", "password": testPassword}
	for i := 0; i < 2; i++ {
		rec := c.do(http.MethodPost, "/auth/login", body)
		expectStatus(t, rec, http.StatusUnauthorized)
	}
	rec := c.do(http.MethodPost, "/auth/login", body)
	expectStatus(t, rec, http.StatusTooManyRequests)
}

func TestHealthAndNotFound(t *testing.T) {
	_, h := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	expectStatus(t, rec, http.StatusNotFound)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON 404, got %s", ct)
	}
}

func jsonNumber(v any) string {
	return strconv.FormatInt(int64(v.(float64)), 10)
}
