package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // "user" or "admin"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPrivileged reports whether the account is exempt from the IP guard.
func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}
