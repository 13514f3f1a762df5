package audit

import "fmt"

// PaymentOrderEvent represents a payment order state change
type PaymentOrderEvent struct {
	UserID       string
	ClientIP     string
	OrderID      string
	OrderNumber  string
	Operation    string
	FromStatus   string
	ToStatus     string
	Success      bool
	ErrorMessage string
}

func (e PaymentOrderEvent) MessageID() string {
	return "payment-order"
}

func (e PaymentOrderEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s %s payment order %s (%s -> %s)", e.UserID, e.Operation, e.OrderNumber, e.FromStatus, e.ToStatus)
	}
	msg := fmt.Sprintf("%s failed to %s payment order %s", e.UserID, e.Operation, e.OrderNumber)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e PaymentOrderEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityWarning
}

func (e PaymentOrderEvent) Facility() int {
	return FacilityLocal0
}

func (e PaymentOrderEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"order":  e.OrderID,
			"number": e.OrderNumber,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    result(e.Success),
		},
	}
	if e.FromStatus != "" {
		sd[SDIDAction]["from"] = e.FromStatus
	}
	if e.ToStatus != "" {
		sd[SDIDAction]["to"] = e.ToStatus
	}
	return sd
}
