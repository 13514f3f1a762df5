package audit

import "fmt"

// AuthenticateEvent represents a login attempt. Method is "password",
// "mfa", "refresh" or "oauth/<provider>".
type AuthenticateEvent struct {
	UserID       string
	Username     string
	ClientIP     string
	Method       string
	Success      bool
	ErrorMessage string
}

func (e AuthenticateEvent) MessageID() string {
	return "authn"
}

func (e AuthenticateEvent) who() string {
	if e.Username != "" {
		return e.Username
	}
	return e.UserID
}

func (e AuthenticateEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s successfully authenticated with %s", e.who(), e.Method)
	}
	msg := fmt.Sprintf("%s failed to authenticate with %s", e.who(), e.Method)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e AuthenticateEvent) Severity() Severity {
	return severity(e.Success)
}

func (e AuthenticateEvent) Facility() int {
	return FacilityAuthPriv
}

func (e AuthenticateEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"method": e.Method,
			"user":   e.who(),
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "authenticate",
			"result":    result(e.Success),
		},
	}
	if e.UserID != "" {
		sd[SDIDAuth]["user_id"] = e.UserID
	}
	return sd
}
