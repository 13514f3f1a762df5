package model

import (
	"time"
)

// Role is the coarse permission level of a user account
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
	RoleViewer  Role = "viewer"
)

var roleRanks = map[Role]int{
	RoleViewer:  1,
	RoleUser:    2,
	RoleManager: 3,
	RoleAdmin:   4,
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of other
func (r Role) AtLeast(other Role) bool {
	return roleRanks[r] >= roleRanks[other]
}

// User is a local account
type User struct {
	ID                  string     `gorm:"column:id;primaryKey" json:"id"`
	Username            string     `gorm:"column:username" json:"username"`
	Email               string     `gorm:"column:email" json:"email"`
	PasswordHash        string     `gorm:"column:password_hash" json:"-"`
	FullName            string     `gorm:"column:full_name" json:"full_name"`
	Role                Role       `gorm:"column:role" json:"role"`
	IsActive            bool       `gorm:"column:is_active" json:"is_active"`
	IsVerified          bool       `gorm:"column:is_verified" json:"is_verified"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts" json:"failed_login_attempts"`
	LockedUntil         *time.Time `gorm:"column:locked_until" json:"locked_until,omitempty"`
	LastLoginAt         *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	PasswordChangedAt   *time.Time `gorm:"column:password_changed_at" json:"password_changed_at,omitempty"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsLocked reports whether the account is locked at the given instant
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
