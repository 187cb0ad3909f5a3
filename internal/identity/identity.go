package identity

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/cache"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/crypto"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/session"
)

// State is what views need to know about the caller. Loading stays true
// until the first Hydrate completes.
type State struct {
	Loading bool        `json:"loading"`
	User    *model.User `json:"user"`
}

// Context is the auth context of a single browser request. It is created
// by middleware, hydrated once and closed when the request ends.
type Context struct {
	store  *session.Store
	cache  cache.Store
	logger logging.Logger

	hydrate sync.Once

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
	closed bool
}

type Option func(*Context)

func WithCache(store cache.Store) Option {
	return func(c *Context) { c.cache = store }
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(store *session.Store, opts ...Option) *Context {
	c := &Context{
		store:  store,
		logger: logging.Nop(),
		state:  State{Loading: true},
		subs:   map[int]func(State){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) User() *model.User {
	return c.State().User
}

// Client is the API client acting as the caller.
func (c *Context) Client() *api.Client {
	return c.store.Client()
}

// Subscribe registers fn for every later state change. The returned func
// removes it.
func (c *Context) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || fn == nil {
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close drops every subscriber. State stays readable.
func (c *Context) Close() {
	c.mu.Lock()
	c.closed = true
	c.subs = map[int]func(State){}
	c.mu.Unlock()
}

func (c *Context) setState(state State) {
	c.mu.Lock()
	c.state = state
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// Hydrate resolves the caller from the persisted tokens. Only the first call
// does any work.
func (c *Context) Hydrate(ctx context.Context) State {
	c.hydrate.Do(func() {
		c.setState(State{User: c.resolve(ctx)})
	})
	return c.State()
}

func (c *Context) resolve(ctx context.Context) *model.User {
	if !c.store.IsAuthenticated() {
		hydrations.WithLabelValues("anonymous").Inc()
		return nil
	}
	if user := c.cached(ctx); user != nil {
		hydrations.WithLabelValues("cache_hit").Inc()
		c.store.Identify(user)
		return user
	}
	user, err := c.store.CurrentUser(ctx)
	switch {
	case err == nil:
		hydrations.WithLabelValues("fetched").Inc()
		c.remember(ctx, user)
		return user
	case api.IsAuth(err):
		hydrations.WithLabelValues("expired").Inc()
		c.logger.Debug("session rejected, clearing tokens: %v", err)
		c.store.Discard()
	default:
		hydrations.WithLabelValues("unavailable").Inc()
		c.logger.Error("identify caller: %v", err)
	}
	return nil
}

// cachedProfile is a profile as stored in the cache, stamped with the
// owner's generation at the time it was stored.
type cachedProfile struct {
	User       model.User `json:"user"`
	Generation string     `json:"generation,omitempty"`
}

func (c *Context) cached(ctx context.Context) *model.User {
	key := c.cacheKey()
	if key == "" {
		return nil
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Debug("profile cache get: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	var entry cachedProfile
	if err := json.Unmarshal(raw, &entry); err != nil || entry.User.ID == 0 {
		_ = c.cache.Delete(ctx, key)
		return nil
	}
	current, err := generation(ctx, c.cache, entry.User.ID)
	if err != nil {
		c.logger.Debug("profile generation get: %v", err)
		return nil
	}
	if current != entry.Generation {
		_ = c.cache.Delete(ctx, key)
		return nil
	}
	return &entry.User
}

func (c *Context) remember(ctx context.Context, user *model.User) {
	key := c.cacheKey()
	if key == "" || user == nil {
		return
	}
	current, err := generation(ctx, c.cache, user.ID)
	if err != nil {
		c.logger.Debug("profile generation get: %v", err)
		return
	}
	raw, err := json.Marshal(cachedProfile{User: *user, Generation: current})
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw); err != nil {
		c.logger.Debug("profile cache set: %v", err)
	}
}

func (c *Context) forget(ctx context.Context) {
	key := c.cacheKey()
	if key == "" {
		return
	}
	if err := c.cache.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotConfigured) {
		c.logger.Debug("profile cache delete: %v", err)
	}
}

func (c *Context) cacheKey() string {
	if c.cache == nil {
		return ""
	}
	access := c.store.AccessToken()
	if access == "" {
		return ""
	}
	return "profile:" + crypto.HashToken(access)
}

// Invalidate makes every cached profile of userID stale, whichever session
// stored it. The generation key lives as long as the entries it outdates.
func Invalidate(ctx context.Context, store cache.Store, userID int64) error {
	if store == nil {
		return nil
	}
	return store.Set(ctx, generationKey(userID), []byte(uuid.NewString()))
}

func generation(ctx context.Context, store cache.Store, userID int64) (string, error) {
	raw, ok, err := store.Get(ctx, generationKey(userID))
	if err != nil || !ok {
		return "", err
	}
	return string(raw), nil
}

func generationKey(userID int64) string {
	return "profile-gen:" + strconv.FormatInt(userID, 10)
}

type ctxKey struct{}

func WithContext(ctx context.Context, ic *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ic)
}

func FromContext(ctx context.Context) (*Context, bool) {
	ic, ok := ctx.Value(ctxKey{}).(*Context)
	return ic, ok && ic != nil
}
