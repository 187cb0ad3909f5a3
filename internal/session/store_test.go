package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
)

type backend struct {
	mu sync.Mutex

	calls   []string
	bodies  map[string]map[string]any
	profile model.User
	// access token the profile endpoint accepts
	validAccess string
	handlers    map[string]http.HandlerFunc
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{
		bodies:      map[string]map[string]any{},
		profile:     model.User{ID: 7, Email: "ada@example.com", FirstName: "Ada", Role: model.RoleTeacher},
		validAccess: "access-1",
		handlers:    map[string]http.HandlerFunc{},
	}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.calls = append(b.calls, key)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.bodies[key] = body
	}
	handler := b.handlers[key]
	b.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	switch key {
	case "GET " + pathProfile:
		if r.Header.Get("Authorization") != "Bearer "+b.validAccess {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(b.profile)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *backend) on(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method+" "+path] = h
}

func (b *backend) called(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == method+" "+path {
			n++
		}
	}
	return n
}

func (b *backend) body(method, path string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[method+" "+path]
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newStore(srv *httptest.Server, tokens model.Tokens, opts ...Option) (*Store, *MemoryStore) {
	mem := NewMemoryStore(tokens)
	return New(api.New(srv.URL, 5*time.Second), mem, opts...), mem
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7, "exp": exp.Unix()})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestLoginPersistsTokensAndReturnsUser(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathLogin, jsonReply(http.StatusOK,
		`{"access":"access-1","refresh":"refresh-1","user":{"id":7,"email":"ada@example.com","role":"teacher"}}`))
	store, mem := newStore(srv, model.Tokens{})

	user, err := store.Login(context.Background(), Credentials{Email: " Ada@Example.com ", Password: "pw"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, model.RoleTeacher, user.Role)
	assert.Equal(t, model.Tokens{Access: "access-1", Refresh: "refresh-1"}, mem.Load())
	assert.Equal(t, Identified, store.State())
	assert.Equal(t, "ada@example.com", b.body(http.MethodPost, pathLogin)["email"])
}

func TestLoginWithoutUserLeavesSessionAuthenticated(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathLogin, jsonReply(http.StatusOK, `{"access_token":"access-1","refresh_token":"refresh-1"}`))
	store, _ := newStore(srv, model.Tokens{})

	user, err := store.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, Authenticated, store.State())

	user, err = store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, Identified, store.State())
}

func TestLoginRejectedCredentialsKeepsAnonymous(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathLogin, jsonReply(http.StatusBadRequest,
		`{"non_field_errors":["Unable to log in with provided credentials."]}`))
	store, _ := newStore(srv, model.Tokens{})

	_, err := store.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "bad"})
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))
	assert.Equal(t, "Unable to log in with provided credentials.", err.Error())
	assert.Equal(t, Anonymous, store.State())
}

func TestLoginValidatesBeforeCallingBackend(t *testing.T) {
	b, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{})

	_, err := store.Login(context.Background(), Credentials{Email: "not-an-email"})
	require.Error(t, err)
	fields := api.FieldErrors(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Zero(t, b.called(http.MethodPost, pathLogin))
}

func TestRegisterRequiresMatchingPasswords(t *testing.T) {
	b, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{})

	_, err := store.Register(context.Background(), Registration{
		Email: "new@example.com", FirstName: "New", Password1: "longenough", Password2: "different1",
	})
	require.Error(t, err)
	assert.Contains(t, api.FieldErrors(err), "password2")
	assert.Zero(t, b.called(http.MethodPost, pathRegister))
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	_, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{})

	_, err := store.Register(context.Background(), Registration{
		Email: "new@example.com", FirstName: "New", Password1: "longenough", Password2: "longenough", Role: "admin",
	})
	require.Error(t, err)
	assert.Contains(t, api.FieldErrors(err), "role")
}

func TestRegisterWithoutTokensNeedsVerification(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathRegister, jsonReply(http.StatusCreated, `{"detail":"Verification e-mail sent."}`))
	store, mem := newStore(srv, model.Tokens{})

	_, err := store.Register(context.Background(), Registration{
		Email: "new@example.com", FirstName: "New", Password1: "longenough", Password2: "longenough", Role: "student",
	})
	require.ErrorIs(t, err, ErrVerificationRequired)
	assert.True(t, mem.Load().Empty())
	assert.Equal(t, "student", b.body(http.MethodPost, pathRegister)["role"])
}

func TestCurrentUserWithoutTokensIsNoSession(t *testing.T) {
	b, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{})

	_, err := store.CurrentUser(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	assert.True(t, api.IsAuth(err))
	assert.Zero(t, b.called(http.MethodGet, pathProfile))
}

func TestCurrentUserRefreshesOnUnauthorized(t *testing.T) {
	b, srv := newBackend(t)
	b.validAccess = "access-2"
	b.on(http.MethodPost, pathRefresh, jsonReply(http.StatusOK, `{"access":"access-2"}`))
	store, mem := newStore(srv, model.Tokens{Access: "stale", Refresh: "refresh-1"})

	user, err := store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.Tokens{Access: "access-2", Refresh: "refresh-1"}, mem.Load())
	assert.Equal(t, "refresh-1", b.body(http.MethodPost, pathRefresh)["refresh"])
	assert.Equal(t, 2, b.called(http.MethodGet, pathProfile))
}

func TestCurrentUserFailsWhenRefreshRejected(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathRefresh, jsonReply(http.StatusUnauthorized, `{"detail":"Token is blacklisted"}`))
	store, mem := newStore(srv, model.Tokens{Access: "stale", Refresh: "revoked"})

	_, err := store.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsAuth(err))
	// the store leaves clearing to its caller
	assert.False(t, mem.Load().Empty())
}

func TestCurrentUserRefreshOutageIsNotRejection(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathRefresh, jsonReply(http.StatusServiceUnavailable, `{"detail":"maintenance"}`))
	store, mem := newStore(srv, model.Tokens{Access: "stale", Refresh: "refresh-1"})

	_, err := store.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsNetwork(err))
	assert.False(t, api.IsAuth(err))
	assert.Equal(t, model.Tokens{Access: "stale", Refresh: "refresh-1"}, mem.Load())

	_, err = store.Refresh(context.Background())
	assert.False(t, api.IsAuth(err))
}

func TestRefreshRejectedWithBadRequestIsAuthError(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathRefresh, jsonReply(http.StatusBadRequest, `{"refresh":["This field may not be blank."]}`))
	store, _ := newStore(srv, model.Tokens{Refresh: "garbled"})

	_, err := store.Refresh(context.Background())
	assert.True(t, api.IsAuth(err))
}

func TestCurrentUserRefreshesExpiringTokenFirst(t *testing.T) {
	b, srv := newBackend(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiring := signedToken(t, now.Add(20*time.Second))
	fresh := signedToken(t, now.Add(time.Hour))
	b.validAccess = fresh
	b.on(http.MethodPost, pathRefresh, jsonReply(http.StatusOK, `{"access":"`+fresh+`","refresh":"refresh-2"}`))
	store, mem := newStore(srv, model.Tokens{Access: expiring, Refresh: "refresh-1"},
		WithRefreshLeeway(time.Minute), WithClock(func() time.Time { return now }))

	_, err := store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.called(http.MethodGet, pathProfile))
	assert.Equal(t, model.Tokens{Access: fresh, Refresh: "refresh-2"}, mem.Load())
}

func TestCurrentUserWithOnlyRefreshToken(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathRefresh, jsonReply(http.StatusOK, `{"access":"access-1"}`))
	store, _ := newStore(srv, model.Tokens{Refresh: "refresh-1"})

	require.True(t, store.IsAuthenticated())
	user, err := store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	_, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{Access: "access-1"})

	_, err := store.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathLogout, jsonReply(http.StatusInternalServerError, `{"detail":"boom"}`))
	store, mem := newStore(srv, model.Tokens{Access: "access-1", Refresh: "refresh-1"})
	_, err := store.CurrentUser(context.Background())
	require.NoError(t, err)

	store.Logout(context.Background())

	assert.True(t, mem.Load().Empty())
	assert.Nil(t, store.User())
	assert.Equal(t, Anonymous, store.State())
	assert.Equal(t, "refresh-1", b.body(http.MethodPost, pathLogout)["refresh"])
}

func TestLogoutWithoutSessionSkipsBackend(t *testing.T) {
	b, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{})

	store.Logout(context.Background())
	assert.Zero(t, b.called(http.MethodPost, pathLogout))
}

func TestUpdateProfileReplacesCachedUser(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPatch, pathProfile, jsonReply(http.StatusOK, `{"id":7,"email":"ada@example.com","first_name":"Augusta","role":"teacher"}`))
	store, _ := newStore(srv, model.Tokens{Access: "access-1", Refresh: "refresh-1"})

	user, err := store.UpdateProfile(context.Background(), map[string]any{"first_name": "Augusta"})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Augusta", store.User().FirstName)
	assert.Equal(t, "Augusta", b.body(http.MethodPatch, pathProfile)["first_name"])

	_, err = store.UpdateProfile(context.Background(), nil)
	assert.True(t, api.IsValidation(err))
}

func TestChangePasswordValidatesConfirmation(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathChangePassword, jsonReply(http.StatusOK, `{"detail":"New password has been saved."}`))
	store, _ := newStore(srv, model.Tokens{Access: "access-1"})

	err := store.ChangePassword(context.Background(), PasswordChange{OldPassword: "old", NewPassword: "newpassword", ConfirmPassword: "other"})
	require.Error(t, err)
	assert.Contains(t, api.FieldErrors(err), "confirm_password")

	err = store.ChangePassword(context.Background(), PasswordChange{OldPassword: "old", NewPassword: "newpassword", ConfirmPassword: "newpassword"})
	require.NoError(t, err)
	assert.Equal(t, "old", b.body(http.MethodPost, pathChangePassword)["old_password"])
}

func TestPasswordResetFlow(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathPasswordReset, jsonReply(http.StatusOK, `{"detail":"Password reset e-mail has been sent."}`))
	b.on(http.MethodPost, pathPasswordResetConfirm, jsonReply(http.StatusBadRequest, `{"token":["Invalid value"]}`))
	store, _ := newStore(srv, model.Tokens{})

	require.NoError(t, store.RequestPasswordReset(context.Background(), "ADA@example.com"))
	assert.Equal(t, "ada@example.com", b.body(http.MethodPost, pathPasswordReset)["email"])

	err := store.ConfirmPasswordReset(context.Background(), PasswordResetConfirm{
		UID: "MQ", Token: "bad", NewPassword1: "longenough", NewPassword2: "longenough",
	})
	require.Error(t, err)
	assert.Equal(t, []string{"Invalid value"}, api.FieldErrors(err)["token"])
}

func TestUploadAvatarSendsMultipart(t *testing.T) {
	b, srv := newBackend(t)
	var filename, content string
	b.on(http.MethodPatch, pathProfile, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile(avatarField)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		filename, content = header.Filename, string(raw)
		_, _ = w.Write([]byte(`{"id":7,"profile_image":"/media/profiles/me.png"}`))
	})
	store, _ := newStore(srv, model.Tokens{Access: "access-1"})

	user, err := store.UploadAvatar(context.Background(), "me.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/media/profiles/me.png", user.ProfileImage)
	assert.Equal(t, "me.png", filename)
	assert.Equal(t, "png-bytes", content)

	_, err = store.UploadAvatar(context.Background(), "", nil)
	assert.True(t, api.IsValidation(err))
}

func TestVerifyEmail(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathVerifyEmail, jsonReply(http.StatusOK, `{"detail":"ok"}`))
	store, _ := newStore(srv, model.Tokens{})

	require.NoError(t, store.VerifyEmail(context.Background(), " key-1 "))
	assert.Equal(t, "key-1", b.body(http.MethodPost, pathVerifyEmail)["key"])

	err := store.VerifyEmail(context.Background(), "")
	assert.True(t, api.IsValidation(err))
}

func TestNetworkFailureSurfacesAsNetworkError(t *testing.T) {
	store := New(api.New("http://127.0.0.1:1", 200*time.Millisecond), NewMemoryStore(model.Tokens{}))

	_, err := store.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "pw"})
	require.Error(t, err)
	assert.True(t, api.IsNetwork(err))
	assert.False(t, errors.Is(err, ErrNoSession))
}

func TestRegisterNormalizesPhone(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, pathRegister, jsonReply(http.StatusCreated, `{"access":"access-1","refresh":"refresh-1"}`))
	store, _ := newStore(srv, model.Tokens{})

	_, err := store.Register(context.Background(), Registration{
		Email: "new@example.com", FirstName: "New", Password1: "longenough", Password2: "longenough", Phone: "98765 43210",
	})
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", b.body(http.MethodPost, pathRegister)["phone"])

	_, err = store.Register(context.Background(), Registration{
		Email: "new@example.com", FirstName: "New", Password1: "longenough", Password2: "longenough", Phone: "12345",
	})
	require.Error(t, err)
	assert.Contains(t, api.FieldErrors(err), "phone")
}

func TestUpdateProfileRejectsInvalidPhone(t *testing.T) {
	b, srv := newBackend(t)
	store, _ := newStore(srv, model.Tokens{Access: "access-1"})

	_, err := store.UpdateProfile(context.Background(), map[string]any{"phone": "not a phone"})
	require.Error(t, err)
	assert.Equal(t, []string{"must be a valid phone number"}, api.FieldErrors(err)["phone"])
	assert.Zero(t, b.called(http.MethodPatch, pathProfile))
}
