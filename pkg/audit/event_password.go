package audit

import "fmt"

// PasswordEvent represents a password change, reset request or reset
type PasswordEvent struct {
	UserID       string
	ClientIP     string
	Operation    string
	Success      bool
	ErrorMessage string
}

func (e PasswordEvent) MessageID() string {
	return "password"
}

func (e PasswordEvent) Message() string {
	op := e.Operation
	if op == "" {
		op = "change"
	}
	if e.Success {
		return fmt.Sprintf("%s password %s succeeded", e.UserID, op)
	}
	msg := fmt.Sprintf("%s password %s failed", e.UserID, op)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e PasswordEvent) Severity() Severity {
	return severity(e.Success)
}

func (e PasswordEvent) Facility() int {
	return FacilityAuthPriv
}

func (e PasswordEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "password-" + e.Operation,
			"result":    result(e.Success),
		},
	}
}
