package model

import "time"

// PaymentOrderStatus is a state of the payment order workflow
type PaymentOrderStatus string

const (
	OrderDraft           PaymentOrderStatus = "draft"
	OrderPendingApproval PaymentOrderStatus = "pending_approval"
	OrderApproved        PaymentOrderStatus = "approved"
	OrderRejected        PaymentOrderStatus = "rejected"
	OrderPaid            PaymentOrderStatus = "paid"
	OrderCancelled       PaymentOrderStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s PaymentOrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderPendingApproval, OrderApproved, OrderRejected, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

// PaymentMethod is how a payment is settled
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
	MethodCard         PaymentMethod = "card"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheque, MethodCard:
		return true
	}
	return false
}

// PaymentOrder is a request to pay a supplier or other payee. Amount is in
// minor units of Currency.
type PaymentOrder struct {
	ID              string             `gorm:"column:id;primaryKey" json:"id"`
	OrderNumber     string             `gorm:"column:order_number" json:"order_number"`
	Payee           string             `gorm:"column:payee" json:"payee"`
	Description     string             `gorm:"column:description" json:"description,omitempty"`
	Amount          int64              `gorm:"column:amount" json:"amount"`
	Currency        string             `gorm:"column:currency" json:"currency"`
	PaymentMethod   PaymentMethod      `gorm:"column:payment_method" json:"payment_method"`
	Status          PaymentOrderStatus `gorm:"column:status" json:"status"`
	DueDate         *time.Time         `gorm:"column:due_date" json:"due_date,omitempty"`
	Reference       string             `gorm:"column:reference" json:"reference,omitempty"`
	CreatedBy       string             `gorm:"column:created_by" json:"created_by"`
	ApprovedBy      *string            `gorm:"column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time         `gorm:"column:approved_at" json:"approved_at,omitempty"`
	PaidAt          *time.Time         `gorm:"column:paid_at" json:"paid_at,omitempty"`
	RejectionReason string             `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}
