package models

import (
	"time"
)

const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

// ValidRole reports whether role is one of the fixed roles.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                  uint       `json:"user_id" gorm:"primaryKey"`
	Username            string     `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email               string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash        string     `json:"-" gorm:"type:varchar(255);not null"`
	Role                string     `json:"role" gorm:"type:varchar(20);not null;default:'student'"` // student, staff, admin
	IsActive            bool       `json:"is_active" gorm:"not null;default:true"`
	FailedLoginAttempts int        `json:"failed_login_attempts" gorm:"not null;default:0"`
	LockoutUntil        *time.Time `json:"lockout_until"`
	LastLogin           *time.Time `json:"last_login"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Session is server-side session state. ID is the SHA-256 of the opaque
// session identifier handed to the client, so a database dump cannot be
// replayed as cookies. A session with a nil UserID is anonymous: it exists
// only to carry the CSRF secret before login.
type Session struct {
	ID        string     `json:"-" gorm:"type:varchar(64);primaryKey"`
	UserID    *uint      `json:"user_id" gorm:"index"`
	Username  string     `json:"username" gorm:"type:varchar(50)"`
	Role      string     `json:"role" gorm:"type:varchar(20)"`
	LoginTime *time.Time `json:"login_time"`
	CSRFToken string     `json:"-" gorm:"type:varchar(64);not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time  `json:"created_at"`
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != nil && s.Username != ""
}

// RateLimitCounter backs the shared login attempt store.
type RateLimitCounter struct {
	Key          string    `gorm:"column:counter_key;type:varchar(191);primaryKey"`
	Count        int       `gorm:"not null"`
	FirstAttempt time.Time `gorm:"not null"`
}
