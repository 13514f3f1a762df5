package audit

import "fmt"

// MemoryAccessEvent represents an access decision on a memory
type MemoryAccessEvent struct {
	UserID   string
	ClientIP string
	MemoryID string
	Action   string
	Success  bool
}

func (e MemoryAccessEvent) MessageID() string {
	return "memory"
}

func (e MemoryAccessEvent) Message() string {
	user := e.UserID
	if user == "" {
		user = "anonymous"
	}
	if e.Success {
		return fmt.Sprintf("%s %s memory %s", user, e.Action, e.MemoryID)
	}
	return fmt.Sprintf("%s was denied %s on memory %s", user, e.Action, e.MemoryID)
}

func (e MemoryAccessEvent) Severity() Severity {
	return severity(e.Success)
}

func (e MemoryAccessEvent) Facility() int {
	return FacilityLocal0
}

func (e MemoryAccessEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"memory": e.MemoryID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Action,
			"result":    result(e.Success),
		},
	}
}
