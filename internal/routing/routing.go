package routing

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/identity"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
)

const (
	LoginPath   = "/login"
	DefaultArea = "/dashboard"
)

// Table maps each role to the area it lands in after login.
type Table map[model.Role]string

func DefaultTable() Table {
	return Table{
		model.RoleAdmin:   "/admin",
		model.RoleSeller:  "/seller",
		model.RoleTeacher: "/teacher",
		model.RoleStudent: DefaultArea,
	}
}

// Home is the landing path for role. Unknown roles land in the default area.
func (t Table) Home(role model.Role) string {
	if path, ok := t[role]; ok && path != "" {
		return path
	}
	return DefaultArea
}

// Gate holds the routing table used by the gating middleware.
type Gate struct {
	table Table
}

func NewGate(table Table) *Gate {
	if table == nil {
		table = DefaultTable()
	}
	return &Gate{table: table}
}

func (g *Gate) Home(role model.Role) string {
	return g.table.Home(role)
}

// RequireUser lets identified callers through. Page requests of anonymous
// callers are sent to the login view, API requests get 401.
func (g *Gate) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(r); !ok {
			deny(w, r, http.StatusUnauthorized, "unauthorized", loginURL(r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets identified callers of the listed roles through. Others
// go back to their own area, or get 403 on API routes.
func (g *Gate) RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := currentUser(r)
			if !ok {
				deny(w, r, http.StatusUnauthorized, "unauthorized", loginURL(r))
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				deny(w, r, http.StatusForbidden, "forbidden", g.Home(user.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireArea lets identified callers through when area is their home in the
// table, so roles without an entry of their own are admitted to the default
// area. Everyone else is sent to their own home, or gets 403 on API routes.
func (g *Gate) RequireArea(area string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := currentUser(r)
			if !ok {
				deny(w, r, http.StatusUnauthorized, "unauthorized", loginURL(r))
				return
			}
			if home := g.Home(user.Role); home != area {
				deny(w, r, http.StatusForbidden, "forbidden", home)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectIfAuthenticated keeps identified callers away from the auth views.
func (g *Gate) RedirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := currentUser(r); ok {
			http.Redirect(w, r, g.Home(user.Role), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) (*model.User, bool) {
	ic, ok := identity.FromContext(r.Context())
	if !ok {
		return nil, false
	}
	state := ic.State()
	if state.Loading || state.User == nil {
		return nil, false
	}
	return state.User, true
}

func loginURL(r *http.Request) string {
	next := r.URL.RequestURI()
	if next == "" || next == "/" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

func deny(w http.ResponseWriter, r *http.Request, status int, code, location string) {
	if IsAPI(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// IsAPI reports whether r targets the JSON API rather than a view.
func IsAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// SafeNext returns next when it is a local path, fallback otherwise.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	return next
}
