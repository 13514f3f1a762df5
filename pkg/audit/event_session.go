package audit

import "fmt"

// SessionEvent represents a session lifecycle change: create, refresh,
// revoke, logout or reuse-detected
type SessionEvent struct {
	UserID    string
	SessionID string
	ClientIP  string
	Operation string
	Success   bool
}

func (e SessionEvent) MessageID() string {
	return "session"
}

func (e SessionEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s session %s: %s", e.UserID, e.SessionID, e.Operation)
	}
	return fmt.Sprintf("%s session %s: %s failed", e.UserID, e.SessionID, e.Operation)
}

func (e SessionEvent) Severity() Severity {
	if e.Operation == "reuse-detected" {
		return SeverityAlert
	}
	return severity(e.Success)
}

func (e SessionEvent) Facility() int {
	return FacilityAuthPriv
}

func (e SessionEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"session": e.SessionID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    result(e.Success),
		},
	}
}
