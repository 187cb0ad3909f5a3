package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// TokenStore persists the session's token pair.
type TokenStore interface {
	Load() model.Tokens
	Save(tokens model.Tokens)
	Clear()
}

type CookieConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
	Domain     string
}

// DefaultCookieConfig holds the lifetimes the LMS API issues tokens with.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{AccessTTL: 24 * time.Hour, RefreshTTL: 30 * 24 * time.Hour}
}

// CookieStore reads tokens from the incoming request and writes changes to
// the response. Later reads in the same request see the written values.
type CookieStore struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	r      *http.Request
	cfg    CookieConfig
	tokens model.Tokens
	loaded bool
	now    func() time.Time
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *CookieStore {
	defaults := DefaultCookieConfig()
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaults.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaults.RefreshTTL
	}
	return &CookieStore{w: w, r: r, cfg: cfg, now: time.Now}
}

func (c *CookieStore) Load() model.Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *CookieStore) loadLocked() model.Tokens {
	if !c.loaded {
		c.tokens = model.Tokens{Access: cookieValue(c.r, AccessCookie), Refresh: cookieValue(c.r, RefreshCookie)}
		c.loaded = true
	}
	return c.tokens
}

func (c *CookieStore) Save(tokens model.Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	http.SetCookie(c.w, c.cookie(AccessCookie, tokens.Access, now, c.cfg.AccessTTL))
	if tokens.Refresh != "" {
		http.SetCookie(c.w, c.cookie(RefreshCookie, tokens.Refresh, now, c.cfg.RefreshTTL))
	}
	if tokens.Refresh == "" {
		tokens.Refresh = c.loadLocked().Refresh
	}
	c.tokens = tokens
	c.loaded = true
}

func (c *CookieStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range []string{AccessCookie, RefreshCookie} {
		cookie := c.cookie(name, "", c.now(), 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(c.w, cookie)
	}
	c.tokens = model.Tokens{}
	c.loaded = true
}

func (c *CookieStore) cookie(name, value string, now time.Time, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.cfg.Domain,
		Expires:  now.Add(ttl),
		MaxAge:   int(ttl / time.Second),
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// MemoryStore keeps tokens in process; used by tooling and tests.
type MemoryStore struct {
	mu     sync.Mutex
	tokens model.Tokens
}

func NewMemoryStore(tokens model.Tokens) *MemoryStore {
	return &MemoryStore{tokens: tokens}
}

func (m *MemoryStore) Load() model.Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

func (m *MemoryStore) Save(tokens model.Tokens) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tokens.Refresh == "" {
		tokens.Refresh = m.tokens.Refresh
	}
	m.tokens = tokens
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = model.Tokens{}
}
