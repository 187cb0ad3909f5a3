package identity

import (
	"context"
	"errors"
	"io"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/session"
)

const (
	CodeInvalid              = "invalid_request"
	CodeUnauthorized         = "unauthorized"
	CodeUnavailable          = "backend_unavailable"
	CodeVerificationRequired = "verification_required"
)

const unavailableMessage = "Unable to reach the server. Please try again."

// Result is what every action hands back to a view. Failures are data.
type Result struct {
	Success bool                `json:"success"`
	User    *model.User         `json:"user,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    string              `json:"code,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func succeeded(user *model.User, message string) Result {
	return Result{Success: true, User: user, Message: message}
}

func failure(err error) Result {
	var validationErr *api.ValidationError
	var authErr *api.AuthError
	switch {
	case errors.As(err, &validationErr):
		return Result{Error: validationErr.Error(), Code: CodeInvalid, Fields: validationErr.Fields}
	case errors.As(err, &authErr):
		return Result{Error: authErr.Error(), Code: CodeUnauthorized}
	default:
		return Result{Error: unavailableMessage, Code: CodeUnavailable}
	}
}

func (c *Context) Login(ctx context.Context, creds session.Credentials) Result {
	user, err := c.store.Login(ctx, creds)
	if err != nil {
		c.logger.Debug("login failed: %v", err)
		return failure(err)
	}
	return c.identified(ctx, user, "")
}

func (c *Context) Register(ctx context.Context, reg session.Registration) Result {
	user, err := c.store.Register(ctx, reg)
	if errors.Is(err, session.ErrVerificationRequired) {
		return Result{
			Success: true,
			Code:    CodeVerificationRequired,
			Message: "Account created. Check your email to verify it before logging in.",
		}
	}
	if err != nil {
		return failure(err)
	}
	return c.identified(ctx, user, "Account created.")
}

// identified finishes a login: it fetches the user when the API left it out
// and publishes the new state.
func (c *Context) identified(ctx context.Context, user *model.User, message string) Result {
	if user == nil {
		fetched, err := c.store.CurrentUser(ctx)
		if err != nil {
			c.logger.Error("fetch user after login: %v", err)
			return failure(err)
		}
		user = fetched
	}
	c.remember(ctx, user)
	c.setState(State{User: user})
	return succeeded(user, message)
}

// Logout always succeeds from the caller's point of view.
func (c *Context) Logout(ctx context.Context) {
	c.forget(ctx)
	c.store.Logout(ctx)
	c.setState(State{})
}

func (c *Context) RefreshUser(ctx context.Context) Result {
	c.forget(ctx)
	user, err := c.store.CurrentUser(ctx)
	if err != nil {
		if api.IsAuth(err) {
			c.store.Discard()
			c.setState(State{})
		}
		return failure(err)
	}
	c.remember(ctx, user)
	c.setState(State{User: user})
	return succeeded(user, "")
}

func (c *Context) UpdateProfile(ctx context.Context, fields map[string]any) Result {
	user, err := c.store.UpdateProfile(ctx, fields)
	if err != nil {
		return c.actionFailed(err)
	}
	c.invalidate(ctx, user)
	c.remember(ctx, user)
	c.setState(State{User: user})
	return succeeded(user, "Profile updated.")
}

func (c *Context) UploadAvatar(ctx context.Context, filename string, content io.Reader) Result {
	user, err := c.store.UploadAvatar(ctx, filename, content)
	if err != nil {
		return c.actionFailed(err)
	}
	c.invalidate(ctx, user)
	c.remember(ctx, user)
	c.setState(State{User: user})
	return succeeded(user, "Profile picture updated.")
}

func (c *Context) ChangePassword(ctx context.Context, change session.PasswordChange) Result {
	if err := c.store.ChangePassword(ctx, change); err != nil {
		return c.actionFailed(err)
	}
	return succeeded(c.User(), "Password changed.")
}

func (c *Context) RequestPasswordReset(ctx context.Context, email string) Result {
	if err := c.store.RequestPasswordReset(ctx, email); err != nil {
		return failure(err)
	}
	return succeeded(nil, "If an account exists for that email, a reset link is on its way.")
}

func (c *Context) ConfirmPasswordReset(ctx context.Context, confirm session.PasswordResetConfirm) Result {
	if err := c.store.ConfirmPasswordReset(ctx, confirm); err != nil {
		return failure(err)
	}
	return succeeded(nil, "Password has been reset. You can log in now.")
}

func (c *Context) VerifyEmail(ctx context.Context, key string) Result {
	if err := c.store.VerifyEmail(ctx, key); err != nil {
		return failure(err)
	}
	return succeeded(nil, "Email verified.")
}

// actionFailed handles failures of actions that need a session. A rejected
// session ends it.
func (c *Context) actionFailed(err error) Result {
	if api.IsAuth(err) {
		c.store.Discard()
		c.setState(State{})
	}
	return failure(err)
}

// invalidate outdates the caller's profile in other sessions after a change.
func (c *Context) invalidate(ctx context.Context, user *model.User) {
	if c.cache == nil || user == nil {
		return
	}
	if err := Invalidate(ctx, c.cache, user.ID); err != nil {
		c.logger.Debug("profile invalidate: %v", err)
	}
}
