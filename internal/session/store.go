package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/auth"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
)

const (
	pathRegister             = "/api/auth/registration/"
	pathVerifyEmail          = "/api/auth/registration/verify-email/"
	pathLogin                = "/api/auth/login/"
	pathLogout               = "/api/auth/logout/"
	pathRefresh              = "/api/auth/token/refresh/"
	pathProfile              = "/api/auth/profile/"
	pathChangePassword       = "/api/auth/change-password/"
	pathPasswordReset        = "/api/auth/password/reset/"
	pathPasswordResetConfirm = "/api/auth/password/reset/confirm/"

	avatarField = "profile_image"
)

var (
	ErrNoSession            = errors.New("no_session")
	ErrMissingTokens        = errors.New("missing_tokens")
	ErrVerificationRequired = errors.New("verification_required")
)

type State int

const (
	Anonymous State = iota
	Authenticated
	Identified
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Identified:
		return "identified"
	default:
		return "anonymous"
	}
}

// Store owns one client's session: its persisted tokens and, once fetched,
// the user they belong to.
type Store struct {
	api    *api.Client
	bound  *api.Client
	tokens TokenStore
	logger logging.Logger
	leeway time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	user *model.User
}

type Option func(*Store)

func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRefreshLeeway makes CurrentUser refresh access tokens that expire
// within d before using them.
func WithRefreshLeeway(d time.Duration) Option {
	return func(s *Store) { s.leeway = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a store on top of an unauthenticated API client.
func New(client *api.Client, tokens TokenStore, opts ...Option) *Store {
	s := &Store{
		api:    client,
		tokens: tokens,
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bound = client.WithTokens(s)
	return s
}

// Client returns an API client that authenticates as this session and
// refreshes it on 401.
func (s *Store) Client() *api.Client {
	return s.bound
}

func (s *Store) AccessToken() string {
	return s.tokens.Load().Access
}

func (s *Store) IsAuthenticated() bool {
	return !s.tokens.Load().Empty()
}

func (s *Store) State() State {
	if !s.IsAuthenticated() {
		return Anonymous
	}
	if s.User() != nil {
		return Identified
	}
	return Authenticated
}

func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Identify records user as the owner of the session when it was resolved
// without CurrentUser, e.g. from a profile cache.
func (s *Store) Identify(user *model.User) {
	s.setUser(user)
}

func (s *Store) setUser(user *model.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

type tokenResponse struct {
	Access       string      `json:"access"`
	Refresh      string      `json:"refresh"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

func (t tokenResponse) tokens() model.Tokens {
	tokens := model.Tokens{Access: t.Access, Refresh: t.Refresh}
	if tokens.Access == "" {
		tokens.Access = t.AccessToken
	}
	if tokens.Refresh == "" {
		tokens.Refresh = t.RefreshToken
	}
	return tokens
}

// Login exchanges credentials for tokens. The returned user is nil when the
// API did not include one; CurrentUser fetches it.
func (s *Store) Login(ctx context.Context, creds Credentials) (*model.User, error) {
	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	if err := creds.Validate(); err != nil {
		return nil, invalid(err)
	}
	resp, err := s.api.Post(ctx, pathLogin, creds)
	if err != nil {
		return nil, err
	}
	return s.establish(resp, true)
}

// Register creates an account. When the API withholds tokens until the email
// is verified, the error is ErrVerificationRequired and the session stays
// anonymous.
func (s *Store) Register(ctx context.Context, reg Registration) (*model.User, error) {
	reg.Email = strings.TrimSpace(strings.ToLower(reg.Email))
	if err := reg.Validate(); err != nil {
		return nil, invalid(err)
	}
	if reg.Phone != "" {
		reg.Phone, _ = normalizePhone(reg.Phone)
	}
	resp, err := s.api.Post(ctx, pathRegister, reg)
	if err != nil {
		return nil, err
	}
	return s.establish(resp, false)
}

func (s *Store) establish(resp *api.Response, tokensRequired bool) (*model.User, error) {
	var payload tokenResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}
	tokens := payload.tokens()
	if tokens.Access == "" {
		if tokensRequired {
			return nil, &api.NetworkError{Method: http.MethodPost, Path: pathLogin, Err: ErrMissingTokens}
		}
		return nil, ErrVerificationRequired
	}
	s.tokens.Save(tokens)
	s.setUser(payload.User)
	return payload.User, nil
}

// CurrentUser fetches the profile behind the stored tokens. It fails with an
// *api.AuthError when there is no usable session; clearing the tokens is up
// to the caller.
func (s *Store) CurrentUser(ctx context.Context) (*model.User, error) {
	tokens := s.tokens.Load()
	if tokens.Empty() {
		return nil, noSession()
	}
	if tokens.Refresh != "" && (tokens.Access == "" || auth.ExpiresWithin(tokens.Access, s.now(), s.leeway)) {
		if _, err := s.Refresh(ctx); err != nil {
			if api.IsAuth(err) || tokens.Access == "" {
				return nil, err
			}
			s.logger.Debug("proactive refresh failed, using current access token: %v", err)
		}
	}

	resp, err := s.Client().Get(ctx, pathProfile, nil)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	s.setUser(&user)
	return &user, nil
}

// Refresh trades the refresh token for a new access token and persists the
// pair. It satisfies api.TokenSource.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	current := s.tokens.Load()
	if current.Refresh == "" {
		return "", noSession()
	}
	resp, err := s.api.Post(ctx, pathRefresh, map[string]string{"refresh": current.Refresh})
	if err != nil {
		if refreshRejected(err) {
			return "", &api.AuthError{Status: http.StatusUnauthorized, Detail: "session expired", Err: err}
		}
		return "", err
	}
	var payload tokenResponse
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	next := payload.tokens()
	if next.Access == "" {
		return "", &api.NetworkError{Method: http.MethodPost, Path: pathRefresh, Err: ErrMissingTokens}
	}
	if next.Refresh == "" {
		next.Refresh = current.Refresh
	}
	s.tokens.Save(next)
	return next.Access, nil
}

// Logout always ends anonymous. The remote call is best effort.
func (s *Store) Logout(ctx context.Context) {
	tokens := s.tokens.Load()
	defer s.Discard()
	if tokens.Empty() {
		return
	}
	body := map[string]string{}
	if tokens.Refresh != "" {
		body["refresh"] = tokens.Refresh
	}
	if _, err := s.Client().Post(ctx, pathLogout, body); err != nil {
		s.logger.Debug("remote logout failed: %v", err)
	}
}

// Discard drops the session locally without telling the API.
func (s *Store) Discard() {
	s.tokens.Clear()
	s.setUser(nil)
}

func (s *Store) UpdateProfile(ctx context.Context, fields map[string]any) (*model.User, error) {
	if len(fields) == 0 {
		return nil, api.NewValidationError(http.StatusBadRequest, map[string][]string{"non_field_errors": {"Nothing to update."}})
	}
	patch := make(map[string]any, len(fields))
	for key, value := range fields {
		patch[key] = value
	}
	if raw, ok := patch["phone"].(string); ok && strings.TrimSpace(raw) != "" {
		phone, err := normalizePhone(raw)
		if err != nil {
			return nil, api.NewValidationError(http.StatusBadRequest, map[string][]string{"phone": {err.Error()}})
		}
		patch["phone"] = phone
	}
	resp, err := s.Client().Patch(ctx, pathProfile, patch)
	if err != nil {
		return nil, err
	}
	return s.decodeUser(resp)
}

func (s *Store) ChangePassword(ctx context.Context, change PasswordChange) error {
	if err := change.Validate(); err != nil {
		return invalid(err)
	}
	_, err := s.Client().Post(ctx, pathChangePassword, change)
	return err
}

func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	req := passwordResetRequest{Email: strings.TrimSpace(strings.ToLower(email))}
	if err := req.Validate(); err != nil {
		return invalid(err)
	}
	_, err := s.api.Post(ctx, pathPasswordReset, req)
	return err
}

func (s *Store) ConfirmPasswordReset(ctx context.Context, confirm PasswordResetConfirm) error {
	if err := confirm.Validate(); err != nil {
		return invalid(err)
	}
	_, err := s.api.Post(ctx, pathPasswordResetConfirm, confirm)
	return err
}

func (s *Store) UploadAvatar(ctx context.Context, filename string, content io.Reader) (*model.User, error) {
	if content == nil || strings.TrimSpace(filename) == "" {
		return nil, api.NewValidationError(http.StatusBadRequest, map[string][]string{avatarField: {"No file was submitted."}})
	}
	resp, err := s.Client().Upload(ctx, http.MethodPatch, pathProfile, api.Multipart{
		Field:    avatarField,
		Filename: filename,
		Content:  content,
	})
	if err != nil {
		return nil, err
	}
	return s.decodeUser(resp)
}

func (s *Store) VerifyEmail(ctx context.Context, key string) error {
	req := emailVerification{Key: strings.TrimSpace(key)}
	if err := req.Validate(); err != nil {
		return invalid(err)
	}
	_, err := s.api.Post(ctx, pathVerifyEmail, req)
	return err
}

func (s *Store) decodeUser(resp *api.Response) (*model.User, error) {
	var user model.User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	s.setUser(&user)
	return &user, nil
}

// refreshRejected tells a refresh token the API turned down from a refresh
// that never got an answer.
func refreshRejected(err error) bool {
	if api.IsAuth(err) {
		return true
	}
	var validationErr *api.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Status == http.StatusBadRequest || validationErr.Status == http.StatusForbidden
	}
	return false
}

func noSession() error {
	return &api.AuthError{Status: http.StatusUnauthorized, Detail: "no session", Err: ErrNoSession}
}
