package audit

import "fmt"

// MFAEvent represents setup, enablement, verification or removal of a
// second factor
type MFAEvent struct {
	UserID       string
	ClientIP     string
	Operation    string
	Success      bool
	ErrorMessage string
}

func (e MFAEvent) MessageID() string {
	return "mfa"
}

func (e MFAEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s mfa %s succeeded", e.UserID, e.Operation)
	}
	msg := fmt.Sprintf("%s mfa %s failed", e.UserID, e.Operation)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e MFAEvent) Severity() Severity {
	return severity(e.Success)
}

func (e MFAEvent) Facility() int {
	return FacilityAuthPriv
}

func (e MFAEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "mfa-" + e.Operation,
			"result":    result(e.Success),
		},
	}
}
