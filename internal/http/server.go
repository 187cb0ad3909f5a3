package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/cache"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/config"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/identity"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/routing"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/session"
)

type Server struct {
	cfg      config.Config
	api      *api.Client
	profiles cache.Store
	gate     *routing.Gate
	logger   logging.Logger
}

// NewServer wires the portal. profiles may be nil, in which case every
// request identifies its caller against the API.
func NewServer(cfg config.Config, client *api.Client, profiles cache.Store, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		cfg:      cfg,
		api:      client,
		profiles: profiles,
		gate:     routing.NewGate(routing.DefaultTable()),
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.identityMiddleware)

		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Post("/password/reset", s.handlePasswordReset)
			r.Post("/password/reset/confirm", s.handlePasswordResetConfirm)
			r.Post("/verify-email", s.handleVerifyEmail)

			r.With(s.gate.RequireUser).Post("/refresh", s.handleRefreshUser)
			r.With(s.gate.RequireUser).Patch("/profile", s.handleUpdateProfile)
			r.With(s.gate.RequireUser).Post("/avatar", s.handleUploadAvatar)
			r.With(s.gate.RequireUser).Post("/change-password", s.handleChangePassword)
		})

		r.With(s.gate.RedirectIfAuthenticated).Get("/login", s.handleLoginView)
		r.With(s.gate.RedirectIfAuthenticated).Get("/register", s.handleRegisterView)
		r.Get("/", s.handleHome)
		r.With(s.gate.RequireArea(routing.DefaultArea)).Get(routing.DefaultArea, s.handleAreaView("dashboard"))
		r.With(s.gate.RequireArea("/admin")).Get("/admin", s.handleAreaView("admin"))
		r.With(s.gate.RequireArea("/teacher")).Get("/teacher", s.handleAreaView("teacher"))
		r.With(s.gate.RequireArea("/seller")).Get("/seller", s.handleAreaView("seller"))

		r.With(s.gate.RequireUser).Get("/api/notes", s.handleListNotes)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(s.gate.RequireRole(model.RoleAdmin))
			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Get("/users/{userID}", s.handleGetUser)
			r.Patch("/users/{userID}", s.handleUpdateUser)
			r.Delete("/users/{userID}", s.handleDeleteUser)
			r.Get("/courses", s.handleListAllCourses)
		})

		r.With(s.gate.RequireRole(model.RoleTeacher)).Get("/api/teacher/courses", s.handleListTeacherCourses)

		r.Route("/api/seller", func(r chi.Router) {
			r.Use(s.gate.RequireRole(model.RoleSeller))
			r.Get("/notes", s.handleListSellerNotes)
			r.Get("/orders", s.handleListSellerOrders)
		})
	})

	return r
}

// identityMiddleware gives every request its own session and auth context,
// hydrated before the handler runs and closed after it returns.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens := session.NewCookieStore(w, r, s.cookieConfig())
		store := session.New(s.api, tokens,
			session.WithLogger(s.logger),
			session.WithRefreshLeeway(s.cfg.RefreshLeeway),
		)
		opts := []identity.Option{identity.WithLogger(s.logger)}
		if s.profiles != nil {
			opts = append(opts, identity.WithCache(s.profiles))
		}
		ic := identity.New(store, opts...)
		defer ic.Close()

		ic.Hydrate(r.Context())
		next.ServeHTTP(w, r.WithContext(identity.WithContext(r.Context(), ic)))
	})
}

func (s *Server) cookieConfig() session.CookieConfig {
	return session.CookieConfig{
		AccessTTL:  s.cfg.AccessTokenTTL,
		RefreshTTL: s.cfg.RefreshTokenTTL,
		Secure:     s.cfg.CookieSecure,
		Domain:     s.cfg.CookieDomain,
	}
}

func authContext(r *http.Request) *identity.Context {
	ic, _ := identity.FromContext(r.Context())
	return ic
}

// writeResult renders an action result with the status its code maps to.
func writeResult(w http.ResponseWriter, res identity.Result) {
	status := http.StatusOK
	switch {
	case res.Success:
	case res.Code == identity.CodeInvalid:
		status = http.StatusBadRequest
	case res.Code == identity.CodeUnauthorized:
		status = http.StatusUnauthorized
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// writeAPIError maps a failed API call on behalf of the caller.
func writeAPIError(w http.ResponseWriter, err error) {
	var validationErr *api.ValidationError
	switch {
	case errors.As(err, &validationErr):
		status := validationErr.Status
		if status < 400 || status >= 500 {
			writeError(w, http.StatusBadGateway, "backend_error")
			return
		}
		writeJSON(w, status, map[string]any{
			"error":  validationErr.Error(),
			"fields": validationErr.Fields,
		})
	case api.IsAuth(err):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, http.StatusBadGateway, "backend_unavailable")
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
