package session

import (
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/model"
)

const (
	minPasswordLength = 8
	// numbers without a country code are read as Indian
	defaultPhoneRegion = "IN"
)

var errInvalidPhone = errors.New("must be a valid phone number")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

type Registration struct {
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 150)),
		validation.Field(&r.LastName, validation.Length(0, 150)),
		validation.Field(&r.Phone, validation.By(validPhone)),
		validation.Field(&r.Password1, validation.Required, validation.Length(minPasswordLength, 128)),
		validation.Field(&r.Password2, validation.Required, validation.By(equals(r.Password1, "The two password fields didn't match."))),
		validation.Field(&r.Role, validation.By(selfServiceRole)),
	)
}

type PasswordChange struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (p PasswordChange) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.OldPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(minPasswordLength, 128)),
		validation.Field(&p.ConfirmPassword, validation.Required, validation.By(equals(p.NewPassword, "Passwords do not match."))),
	)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (p passwordResetRequest) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

type PasswordResetConfirm struct {
	UID          string `json:"uid"`
	Token        string `json:"token"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

func (p PasswordResetConfirm) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.UID, validation.Required),
		validation.Field(&p.Token, validation.Required),
		validation.Field(&p.NewPassword1, validation.Required, validation.Length(minPasswordLength, 128)),
		validation.Field(&p.NewPassword2, validation.Required, validation.By(equals(p.NewPassword1, "The two password fields didn't match."))),
	)
}

type emailVerification struct {
	Key string `json:"key"`
}

func (e emailVerification) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Key, validation.Required),
	)
}

func equals(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != expected {
			return errors.New(message)
		}
		return nil
	}
}

func validPhone(value interface{}) error {
	raw, _ := value.(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	_, err := normalizePhone(raw)
	return err
}

// normalizePhone returns raw in E.164 form.
func normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Admins are provisioned by other admins, never through sign-up.
func selfServiceRole(value interface{}) error {
	raw, _ := value.(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	role, ok := model.ParseRole(raw)
	if !ok || role == model.RoleAdmin {
		return errors.New("must be one of student, teacher or seller")
	}
	return nil
}

// invalid turns an ozzo validation failure into the same error callers get
// when the API rejects input.
func invalid(err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string][]string, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			fields[field] = []string{fieldErr.Error()}
		}
		return api.NewValidationError(http.StatusBadRequest, fields)
	}
	return api.NewValidationError(http.StatusBadRequest, map[string][]string{"non_field_errors": {err.Error()}})
}
