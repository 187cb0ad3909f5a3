package http

import (
	"net/http"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/routing"
)

type viewResponse struct {
	View string      `json:"view"`
	User *model.User `json:"user,omitempty"`
	Next string      `json:"next,omitempty"`
}

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewResponse{
		View: "login",
		Next: routing.SafeNext(r.URL.Query().Get("next"), ""),
	})
}

func (s *Server) handleRegisterView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewResponse{View: "register"})
}

// handleHome sends callers to their area, or to the login view.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	user := authContext(r).User()
	if user == nil {
		http.Redirect(w, r, routing.LoginPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, s.gate.Home(user.Role), http.StatusSeeOther)
}

func (s *Server) handleAreaView(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, viewResponse{View: view, User: authContext(r).User()})
	}
}
