package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/identity"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/resources"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/table"
)

// serveTable answers a list request with the table adapter over resource.
// Fixed filters override whatever the caller sent under the same key.
func serveTable[T any](w http.ResponseWriter, r *http.Request, s *Server, resource *resources.Resource[T], fixed map[string]string) {
	query := table.ParseQuery(r.URL.Query(), s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	for key, value := range fixed {
		if query.Filters == nil {
			query.Filters = map[string]string{}
		}
		query.Filters[key] = value
	}
	writeJSON(w, http.StatusOK, resource.Table(s.logger)(r.Context(), query))
}

func callerID(r *http.Request) string {
	user := authContext(r).User()
	if user == nil {
		return ""
	}
	return strconv.FormatInt(user.ID, 10)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	serveTable(w, r, s, resources.Notes(authContext(r).Client()), nil)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	serveTable(w, r, s, resources.Users(authContext(r).Client()), nil)
}

func (s *Server) handleListAllCourses(w http.ResponseWriter, r *http.Request) {
	serveTable(w, r, s, resources.Courses(authContext(r).Client()), nil)
}

func (s *Server) handleListTeacherCourses(w http.ResponseWriter, r *http.Request) {
	serveTable(w, r, s, resources.Courses(authContext(r).Client()), map[string]string{"teacher": callerID(r)})
}

func (s *Server) handleListSellerNotes(w http.ResponseWriter, r *http.Request) {
	serveTable(w, r, s, resources.Notes(authContext(r).Client()), map[string]string{"seller": callerID(r)})
}

func (s *Server) handleListSellerOrders(w http.ResponseWriter, r *http.Request) {
	serveTable(w, r, s, resources.NoteOrders(authContext(r).Client()), map[string]string{"note__seller": callerID(r)})
}

type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

func (c createUserRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&c.FirstName, validation.Required),
		validation.Field(&c.Role, validation.Required, validation.In("student", "teacher", "seller", "admin")),
	)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request", "fields": err})
		return
	}
	user, err := resources.Users(authContext(r).Client()).Create(r.Context(), req)
	if err != nil {
		s.logUserAction("create", "", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	user, err := resources.Users(authContext(r).Client()).Get(r.Context(), userID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil || len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if raw, present := fields["role"]; present {
		role, _ := raw.(string)
		if _, valid := model.ParseRole(role); !valid {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
	}
	user, err := resources.Users(authContext(r).Client()).Update(r.Context(), userID, fields)
	if err != nil {
		s.logUserAction("update", userID, err)
		writeAPIError(w, err)
		return
	}
	s.invalidateProfile(r, userID)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if userID == callerID(r) {
		writeError(w, http.StatusBadRequest, "cannot_delete_self")
		return
	}
	if err := resources.Users(authContext(r).Client()).Delete(r.Context(), userID); err != nil {
		s.logUserAction("delete", userID, err)
		writeAPIError(w, err)
		return
	}
	s.invalidateProfile(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return "", false
	}
	if _, err := strconv.ParseInt(userID, 10, 64); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return "", false
	}
	return userID, true
}

// invalidateProfile drops the cached profile of a user an admin changed, so
// a demoted or deleted user loses access on their next request.
func (s *Server) invalidateProfile(r *http.Request, userID string) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return
	}
	if err := identity.Invalidate(r.Context(), s.profiles, id); err != nil {
		s.logger.Error("invalidate cached profile of user %d: %v", id, err)
	}
}

func (s *Server) logUserAction(action, userID string, err error) {
	if api.IsValidation(err) {
		return
	}
	s.logger.Error("admin %s user %q failed: %v", action, userID, err)
}
