package handler

import (
	"log/slog"
	"net/http"

	"github.com/templui/skillfolio/internal/service"
)

type SkillHandler struct {
	skillService *service.SkillService
}

func NewSkillHandler(skillService *service.SkillService) *SkillHandler {
	return &SkillHandler{skillService: skillService}
}

type skillRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// List returns the skill catalogue, optionally filtered by ?q=.
func (h *SkillHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := page(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	skills, err := h.skillService.List(r.Context(), r.URL.Query().Get("q"), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (h *SkillHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req skillRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	skill, err := h.skillService.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("skill created", "skill_id", skill.ID, "by", actor(r).UserID)
	writeJSON(w, http.StatusCreated, skill)
}

func (h *SkillHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req skillRequest
	err = decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	skill, err := h.skillService.Update(r.Context(), id, req.Name, req.Description)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (h *SkillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.skillService.Delete(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("skill deleted", "skill_id", id, "by", actor(r).UserID)
	w.WriteHeader(http.StatusNoContent)
}
