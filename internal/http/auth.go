package http

import (
	"encoding/json"
	"net/http"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/session"
)

const maxAvatarBytes = 5 << 20

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req session.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	writeResult(w, authContext(r).Login(r.Context(), req))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req session.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	writeResult(w, authContext(r).Register(r.Context(), req))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	authContext(r).Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authContext(r).State())
}

func (s *Server) handleRefreshUser(w http.ResponseWriter, r *http.Request) {
	writeResult(w, authContext(r).RefreshUser(r.Context()))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	// role, email and verification are managed by admins
	for _, key := range []string{"id", "role", "email", "is_email_verified", "date_joined"} {
		delete(fields, key)
	}
	writeResult(w, authContext(r).UpdateProfile(r.Context(), fields))
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+1<<20)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_avatar")
		return
	}
	defer file.Close()
	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar_too_large")
		return
	}
	writeResult(w, authContext(r).UploadAvatar(r.Context(), header.Filename, file))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req session.PasswordChange
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	writeResult(w, authContext(r).ChangePassword(r.Context(), req))
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	writeResult(w, authContext(r).RequestPasswordReset(r.Context(), req.Email))
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req session.PasswordResetConfirm
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	writeResult(w, authContext(r).ConfirmPasswordReset(r.Context(), req))
}

type verifyEmailRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	writeResult(w, authContext(r).VerifyEmail(r.Context(), req.Key))
}
