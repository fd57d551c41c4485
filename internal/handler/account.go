package handler

import (
	"log/slog"
	"net/http"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/service"
	"github.com/templui/skillfolio/internal/validation"
)

const maxUploadBytes = 10 << 20

type AccountHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAccountHandler(authService *service.AuthService, userService *service.UserService) *AccountHandler {
	return &AccountHandler{
		authService: authService,
		userService: userService,
	}
}

type updateProfileRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,max=254"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type setSkillRequest struct {
	Level string `json:"level" validate:"required"`
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Profile(r.Context(), actor(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	userID := actor(r).UserID
	user, err := h.userService.UpdateProfile(r.Context(), userID, req.Username, req.Email)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("profile updated", "user_id", userID)
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	err := decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	userID := actor(r).UserID
	err = h.userService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("password changed", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	upload, closeFile, err := formImage(w, r, "avatar")
	if err != nil {
		handleError(w, r, err)
		return
	}
	defer closeFile()

	userID := actor(r).UserID
	_, err = h.userService.UploadAvatar(r.Context(), userID, upload)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.userService.Profile(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountHandler) SetSkill(w http.ResponseWriter, r *http.Request) {
	skillID, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req setSkillRequest
	err = decode(w, r, &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	entry, err := h.userService.SetSkill(r.Context(), actor(r).UserID, skillID, model.SkillLevel(req.Level))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *AccountHandler) RemoveSkill(w http.ResponseWriter, r *http.Request) {
	skillID, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	err = h.userService.RemoveSkill(r.Context(), actor(r).UserID, skillID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes the caller's own account and ends the session.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	err := h.userService.Delete(r.Context(), a, a.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.authService.ClearJWTCookie(w)
	slog.Info("account deleted", "user_id", a.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// formImage reads one image from a multipart form field. The returned func
// closes the file.
func formImage(w http.ResponseWriter, r *http.Request, field string) (service.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil {
		return service.Upload{}, nil, model.Invalid(field, "upload must be a multipart form under 10 MB")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return service.Upload{}, nil, model.Invalid(field, "no file uploaded")
	}
	closeFile := func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close file", "error", closeErr)
		}
	}

	err = validation.ValidateUpload(header, validation.ImageConstraints)
	if err != nil {
		closeFile()
		return service.Upload{}, nil, err
	}

	return service.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, closeFile, nil
}
