package domain

import (
	"fmt"
	"net/mail"
	"time"
)

// UserRole grants administrative rights.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// UserStatus gates whether a user's keys are accepted.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User owns indexed content, chat sessions and API keys.
type User struct {
	ID        string
	Email     string
	Role      UserRole
	Status    UserStatus
	CreatedAt time.Time
}

// NewUser creates a new User instance
func NewUser(id, email string, role UserRole, status UserStatus, createdAt time.Time) *User {
	return &User{
		ID:        id,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: createdAt,
	}
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// ValidateUser validates a User instance
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	if u.Email == "" {
		return fmt.Errorf("user Email is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("user Email is invalid: %s", u.Email)
	}

	if !IsValidUserRole(u.Role) {
		return fmt.Errorf("user Role is invalid: %s", u.Role)
	}

	if !IsValidUserStatus(u.Status) {
		return fmt.Errorf("user Status is invalid: %s", u.Status)
	}

	return nil
}

func IsValidUserRole(r UserRole) bool {
	return r == UserRoleAdmin || r == UserRoleUser
}

func IsValidUserStatus(s UserStatus) bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusDisabled:
		return true
	}
	return false
}
