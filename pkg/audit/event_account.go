package audit

import "fmt"

// AccountEvent represents an administrative change to a user account
type AccountEvent struct {
	ActorID   string
	UserID    string
	ClientIP  string
	Operation string
	Detail    string
	Success   bool
}

func (e AccountEvent) MessageID() string {
	return "account"
}

func (e AccountEvent) Message() string {
	msg := fmt.Sprintf("%s %s %s", e.ActorID, e.Operation, e.UserID)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if !e.Success {
		msg += " failed"
	}
	return msg
}

func (e AccountEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityWarning
}

func (e AccountEvent) Facility() int {
	return FacilityAuth
}

func (e AccountEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.ActorID,
		},
		SDIDSubject: {
			"account": e.UserID,
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
