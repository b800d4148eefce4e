package user

import (
	"time"

	"todo_auth/internal/apperror"
	"todo_auth/internal/todo"
)

// Role is the closed set of authorization tags a user can carry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts the known roles; an empty value means RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleUser, nil
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", apperror.Validation("Invalid role!")
	}
}

type User struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Password  string       `json:"-"` // Never expose password in JSON
	Role      Role         `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
	Todos     []*todo.Todo `json:"todos,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile is the public view returned by login and session checks.
type Profile struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u *User) Profile() Profile {
	return Profile{Username: u.Username, Role: u.Role}
}
