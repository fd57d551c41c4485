package routes

import (
	"net/http"
	"strings"

	"github.com/templui/skillfolio/internal/app"
	"github.com/templui/skillfolio/internal/handler"
	"github.com/templui/skillfolio/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	home := handler.NewHomeHandler(app.DB, app.Cfg.AppName)
	auth := handler.NewAuthHandler(app.AuthService)
	account := handler.NewAccountHandler(app.AuthService, app.UserService)
	projects := handler.NewProjectHandler(app.ProjectService)
	skills := handler.NewSkillHandler(app.SkillService)
	admin := handler.NewAdminHandler(app.AdminService, app.UserService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", home.Health)

	// Uploaded files (local storage only, S3 serves its own URLs)
	if app.Cfg.StorageDriver == "local" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(app.Cfg.UploadDir)))))
	}

	mux.HandleFunc("GET /projects", projects.Public)
	mux.HandleFunc("GET /skills", skills.List)

	// Auth (rate limited)
	rateLimiter := middleware.RateLimitAuth(app.Cfg.AuthRateLimit)

	mux.HandleFunc("GET /auth/csrf", auth.CSRF)
	mux.HandleFunc("POST /auth/register", rateLimiter(middleware.RequireGuest(auth.Register)))
	mux.HandleFunc("POST /auth/login", rateLimiter(middleware.RequireGuest(auth.Login)))
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.HandleFunc("POST /auth/forgot-password", rateLimiter(auth.ForgotPassword))
	mux.HandleFunc("GET /auth/reset-password/{token}", rateLimiter(auth.VerifyResetToken))
	mux.HandleFunc("POST /auth/reset-password", rateLimiter(auth.ResetPassword))

	// ============================================================================
	// PROTECTED ROUTES (/app/*)
	// ============================================================================

	// Account
	mux.HandleFunc("GET /app/me", middleware.RequireAuth(account.Me))
	mux.HandleFunc("PATCH /app/me", middleware.RequireAuth(account.UpdateProfile))
	mux.HandleFunc("DELETE /app/me", middleware.RequireAuth(account.DeleteAccount))
	mux.HandleFunc("POST /app/me/password", middleware.RequireAuth(account.ChangePassword))
	mux.HandleFunc("POST /app/me/avatar", middleware.RequireAuth(account.UploadAvatar))
	mux.HandleFunc("PUT /app/me/skills/{id}", middleware.RequireAuth(account.SetSkill))
	mux.HandleFunc("DELETE /app/me/skills/{id}", middleware.RequireAuth(account.RemoveSkill))

	// Projects
	mux.HandleFunc("GET /app/projects", middleware.RequireAuth(projects.Mine))
	mux.HandleFunc("POST /app/projects", middleware.RequireAuth(projects.Create))
	mux.HandleFunc("GET /app/projects/{id}", middleware.RequireAuth(projects.Get))
	mux.HandleFunc("PATCH /app/projects/{id}", middleware.RequireAuth(projects.Update))
	mux.HandleFunc("DELETE /app/projects/{id}", middleware.RequireAuth(projects.Delete))
	mux.HandleFunc("GET /app/projects/{id}/members", middleware.RequireAuth(projects.Members))
	mux.HandleFunc("PUT /app/projects/{id}/members/{userID}", middleware.RequireAuth(projects.Share))
	mux.HandleFunc("DELETE /app/projects/{id}/members/{userID}", middleware.RequireAuth(projects.Unshare))
	mux.HandleFunc("POST /app/projects/{id}/images", middleware.RequireAuth(projects.AddImage))
	mux.HandleFunc("DELETE /app/projects/{id}/images/{imageID}", middleware.RequireAuth(projects.RemoveImage))

	// ============================================================================
	// ADMIN ROUTES (/admin/*)
	// ============================================================================

	mux.HandleFunc("GET /admin/dashboard", middleware.RequireAdmin(admin.Dashboard))
	mux.HandleFunc("GET /admin/users", middleware.RequireAdmin(admin.Users))
	mux.HandleFunc("PATCH /admin/users/{id}/role", middleware.RequireAdmin(admin.SetRole))
	mux.HandleFunc("DELETE /admin/users/{id}", middleware.RequireAdmin(admin.DeleteUser))
	mux.HandleFunc("POST /admin/skills", middleware.RequireAdmin(skills.Create))
	mux.HandleFunc("PATCH /admin/skills/{id}", middleware.RequireAdmin(skills.Update))
	mux.HandleFunc("DELETE /admin/skills/{id}", middleware.RequireAdmin(skills.Delete))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", home.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Config(app.Cfg),
		middleware.RequestID,
		middleware.AuthMiddleware(app.AuthService), // before logging so requests are attributed
		middleware.RequestLogging,
		middleware.CSRFProtection,
	)
}

// noDirListing hides directory indexes of the upload folder.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
