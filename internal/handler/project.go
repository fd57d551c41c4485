package handler

import (
	"log/slog"
	"net/http"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
}

func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

type projectRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	ExternalLink string `json:"external_link" validate:"omitempty,http_url"`
	Visibility   string `json:"visibility" validate:"required,oneof=public private"`
}

func (req projectRequest) input() service.ProjectInput {
	return service.ProjectInput{
		Title:        req.Title,
		Description:  req.Description,
		ExternalLink: req.ExternalLink,
		Visibility:   model.Visibility(req.Visibility),
	}
}

type shareRequest struct {
	Role string `json:"role" validate:"required"`
}

// Public lists public projects for anyone.
func (h *ProjectHandler) Public(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	projects, err := h.projectService.Public(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Mine lists the projects the caller is a member of, with their role.
func (h *ProjectHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	projects, err := h.projectService.ForUser(r.Context(), actor(r).UserID, p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	a := actor(r)
	project, err := h.projectService.Create(r.Context(), a, req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("project created", "project_id", project.ID, "user_id", a.UserID)
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	project, err := h.projectService.Get(r.Context(), actor(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req projectRequest
	err = decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	project, err := h.projectService.Update(r.Context(), actor(r), id, req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	a := actor(r)
	err = h.projectService.Delete(r.Context(), a, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("project deleted", "project_id", id, "user_id", a.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	members, err := h.projectService.Members(r.Context(), actor(r), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *ProjectHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req shareRequest
	err = decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	member, err := h.projectService.Share(r.Context(), actor(r), id, userID, model.ProjectRole(req.Role))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *ProjectHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.projectService.Unshare(r.Context(), actor(r), id, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	upload, closeFile, err := formImage(w, r, "image")
	if err != nil {
		handleError(w, r, err)
		return
	}
	defer closeFile()

	image, err := h.projectService.AddImage(r.Context(), actor(r), id, upload)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, image)
}

func (h *ProjectHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	imageID, err := pathID(r, "imageID")
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.projectService.RemoveImage(r.Context(), actor(r), id, imageID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
