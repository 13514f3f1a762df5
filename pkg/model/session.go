package model

import "time"

// UserSession is a login session. Access and refresh tokens are bound to it.
type UserSession struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	UserID         string     `gorm:"column:user_id" json:"user_id"`
	IPAddress      string     `gorm:"column:ip_address" json:"ip_address"`
	UserAgent      string     `gorm:"column:user_agent" json:"user_agent"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	LastActivityAt time.Time  `gorm:"column:last_activity_at" json:"last_activity_at"`
	ExpiresAt      time.Time  `gorm:"column:expires_at" json:"expires_at"`
	RevokedAt      *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

// Active reports whether the session is neither revoked nor expired
func (s *UserSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
