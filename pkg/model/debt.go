package model

import "time"

// DebtDirection says whether money is owed to us or by us
type DebtDirection string

const (
	DebtReceivable DebtDirection = "receivable"
	DebtPayable    DebtDirection = "payable"
)

// PartyType is the kind of counterparty on a debt
type PartyType string

const (
	PartyCustomer PartyType = "customer"
	PartySupplier PartyType = "supplier"
)

// DebtStatus is the settlement state of a debt
type DebtStatus string

const (
	DebtOpen          DebtStatus = "open"
	DebtPartiallyPaid DebtStatus = "partially_paid"
	DebtSettled       DebtStatus = "settled"
	DebtWrittenOff    DebtStatus = "written_off"
)

// DebtRecord tracks money owed to or by a counterparty, in minor units
type DebtRecord struct {
	ID        string        `gorm:"column:id;primaryKey" json:"id"`
	PartyName string        `gorm:"column:party_name" json:"party_name"`
	PartyType PartyType     `gorm:"column:party_type" json:"party_type"`
	Direction DebtDirection `gorm:"column:direction" json:"direction"`
	Principal int64         `gorm:"column:principal" json:"principal"`
	Paid      int64         `gorm:"column:paid" json:"paid"`
	Currency  string        `gorm:"column:currency" json:"currency"`
	Status    DebtStatus    `gorm:"column:status" json:"status"`
	DueDate   *time.Time    `gorm:"column:due_date" json:"due_date,omitempty"`
	Notes     string        `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy string        `gorm:"column:created_by" json:"created_by"`
	CreatedAt time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (DebtRecord) TableName() string {
	return "debt_records"
}

// Outstanding is the unpaid part of the principal
func (d *DebtRecord) Outstanding() int64 {
	return d.Principal - d.Paid
}

// Closed reports whether no further payments may be recorded
func (d *DebtRecord) Closed() bool {
	return d.Status == DebtSettled || d.Status == DebtWrittenOff
}

// DebtPayment is a single installment against a debt
type DebtPayment struct {
	ID         string        `gorm:"column:id;primaryKey" json:"id"`
	DebtID     string        `gorm:"column:debt_id" json:"debt_id"`
	Amount     int64         `gorm:"column:amount" json:"amount"`
	Method     PaymentMethod `gorm:"column:method" json:"method"`
	Reference  string        `gorm:"column:reference" json:"reference,omitempty"`
	RecordedBy string        `gorm:"column:recorded_by" json:"recorded_by"`
	PaidAt     time.Time     `gorm:"column:paid_at" json:"paid_at"`
}

func (DebtPayment) TableName() string {
	return "debt_payments"
}

// DebtBalance is an outstanding total for one direction and currency
type DebtBalance struct {
	Direction   DebtDirection `gorm:"column:direction" json:"direction"`
	Currency    string        `gorm:"column:currency" json:"currency"`
	Outstanding int64         `gorm:"column:outstanding" json:"outstanding"`
	Count       int64         `gorm:"column:count" json:"count"`
}
