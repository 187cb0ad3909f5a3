package model

import "strings"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleSeller  Role = "seller"
	RoleAdmin   Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(value)))
	return role, role.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            Role   `json:"role"`
	Phone           string `json:"phone,omitempty"`
	ProfileImage    string `json:"profile_image,omitempty"`
	IsEmailVerified bool   `json:"is_email_verified"`
	DateJoined      string `json:"date_joined,omitempty"`
}

// Tokens is the persisted half of a session. Both values are opaque.
type Tokens struct {
	Access  string
	Refresh string
}

func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}
