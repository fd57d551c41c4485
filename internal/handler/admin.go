package handler

import (
	"log/slog"
	"net/http"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/service"
)

type AdminHandler struct {
	adminService *service.AdminService
	userService  *service.UserService
}

func NewAdminHandler(adminService *service.AdminService, userService *service.UserService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		userService:  userService,
	}
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// Dashboard answers with whatever sections loaded. Failed sections are named
// in the "errors" field and the status stays 200.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := service.DashboardQuery{SkillSearch: r.URL.Query().Get("q")}
	if q.SkillSearch != "" {
		p, err := page(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		q.SkillPage = p
	}

	dashboard, err := h.adminService.Dashboard(r.Context(), q)
	if err != nil {
		slog.Error("dashboard partially loaded", "error", err, "sections", dashboard.Errors)
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	users, err := h.userService.List(r.Context(), r.URL.Query().Get("q"), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req setRoleRequest
	err = decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	a := actor(r)
	user, err := h.userService.SetRole(r.Context(), a, id, model.Role(req.Role))
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("user role changed", "user_id", id, "role", user.Role, "by", a.UserID)
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	a := actor(r)
	err = h.userService.Delete(r.Context(), a, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("user deleted", "user_id", id, "by", a.UserID)
	w.WriteHeader(http.StatusNoContent)
}
