package model

import "time"

// AuthEventType names the kinds of authentication events that are logged
type AuthEventType string

const (
	AuthEventRegister        AuthEventType = "register"
	AuthEventLogin           AuthEventType = "login"
	AuthEventLoginFailed     AuthEventType = "login_failed"
	AuthEventAccountLocked   AuthEventType = "account_locked"
	AuthEventAccountUnlocked AuthEventType = "account_unlocked"
	AuthEventLogout          AuthEventType = "logout"
	AuthEventTokenRefresh    AuthEventType = "token_refresh"
	AuthEventTokenReuse      AuthEventType = "token_reuse"
	AuthEventPasswordChange  AuthEventType = "password_change"
	AuthEventPasswordReset   AuthEventType = "password_reset"
	AuthEventResetRequested  AuthEventType = "password_reset_requested"
	AuthEventMFAEnabled      AuthEventType = "mfa_enabled"
	AuthEventMFADisabled     AuthEventType = "mfa_disabled"
	AuthEventMFAFailed       AuthEventType = "mfa_failed"
	AuthEventMFAChallenge    AuthEventType = "mfa_challenge"
	AuthEventBackupCodeUsed  AuthEventType = "mfa_backup_code_used"
	AuthEventSessionRevoked  AuthEventType = "session_revoked"
	AuthEventOAuthLinked     AuthEventType = "oauth_linked"
	AuthEventOAuthUnlinked   AuthEventType = "oauth_unlinked"
	AuthEventOAuthLogin      AuthEventType = "oauth_login"
	AuthEventAccountDisabled AuthEventType = "account_disabled"
	AuthEventAccountEnabled  AuthEventType = "account_enabled"
	AuthEventRoleChanged     AuthEventType = "role_changed"
)

// AuthLog is one row of the authentication history
type AuthLog struct {
	ID        string        `gorm:"column:id;primaryKey" json:"id"`
	UserID    *string       `gorm:"column:user_id" json:"user_id,omitempty"`
	Username  string        `gorm:"column:username" json:"username"`
	EventType AuthEventType `gorm:"column:event_type" json:"event_type"`
	IPAddress string        `gorm:"column:ip_address" json:"ip_address"`
	UserAgent string        `gorm:"column:user_agent" json:"user_agent"`
	Success   bool          `gorm:"column:success" json:"success"`
	Details   string        `gorm:"column:details" json:"details,omitempty"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
}

func (AuthLog) TableName() string {
	return "auth_logs"
}
