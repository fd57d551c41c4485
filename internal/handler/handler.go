// Package handler binds the JSON HTTP surface to the application services.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/templui/skillfolio/internal/ctxkeys"
	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/service"
)

const (
	maxBodyBytes    = 1 << 20
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Field    string   `json:"field,omitempty"`
	Problems []string `json:"problems,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Invalid("body", "request body is empty")
		}
		return model.Invalid("body", "request body is not valid JSON", err.Error())
	}

	err = validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fe.Field()+" "+describe(fe))
	}
	return model.Invalid(verrs[0].Field(), "request is invalid", problems...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url", "http_url":
		return "must be a valid URL"
	case "eqfield":
		return "does not match"
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid (" + fe.Tag() + ")"
}

// handleError maps service errors onto status codes. Unexpected errors are
// logged with their cause and answered with a generic message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    verr.Message,
			Field:    verr.Field,
			Problems: verr.Problems,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidResetToken):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Field: "current_password"})
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "you are not allowed to do that"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, model.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: conflictMessage(err)})
	default:
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", ctxkeys.RequestID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "something went wrong, please try again later"})
	}
}

// conflictMessage keeps the subject of a conflict ("email", `skill "Go"`)
// and drops any driver detail wrapped after it.
func conflictMessage(err error) string {
	subject, _, found := strings.Cut(err.Error(), ": "+model.ErrConflict.Error())
	if !found || subject == "" {
		return model.ErrConflict.Error()
	}
	return subject + " " + model.ErrConflict.Error()
}

// actor returns the signed-in caller. Routes using it are behind RequireAuth.
func actor(r *http.Request) service.Actor {
	s, _ := ctxkeys.CurrentSession(r.Context())
	return service.Actor{UserID: s.UserID, Role: s.Role}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Invalid(name, name+" must be a positive integer")
	}
	return id, nil
}

// page reads ?limit= and ?offset=, defaulting to the first page.
func page(r *http.Request) (repository.Page, error) {
	p := repository.Page{Limit: defaultPageSize}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return p, model.Invalid("limit", fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		}
		p.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, model.Invalid("offset", "offset must not be negative")
		}
		p.Offset = n
	}
	return p, nil
}
