package store

import (
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
)

// PaymentOrderFilter narrows ListPaymentOrders
type PaymentOrderFilter struct {
	Status    model.PaymentOrderStatus
	CreatedBy string
	Limit     int
	Offset    int
}

// DebtFilter narrows ListDebts
type DebtFilter struct {
	Direction model.DebtDirection
	Status    model.DebtStatus
	Party     string
	// OpenOnly limits results to open and partially paid debts
	OpenOnly bool
	// DueBefore limits results to debts due strictly before the instant
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// LedgerStore abstracts payment orders and debts
type LedgerStore interface {
	// CreatePaymentOrder returns ErrConflict on a duplicate order number
	CreatePaymentOrder(o *model.PaymentOrder) error
	GetPaymentOrder(id string) (*model.PaymentOrder, error)

	// UpdatePaymentOrder saves the order if its status is still
	// expectedStatus, otherwise it returns ErrConflict
	UpdatePaymentOrder(o *model.PaymentOrder, expectedStatus model.PaymentOrderStatus) error

	// ListPaymentOrders returns the newest orders first
	ListPaymentOrders(f PaymentOrderFilter) ([]model.PaymentOrder, error)

	// CountOrderNumbers counts orders whose number starts with prefix
	CountOrderNumbers(prefix string) (int64, error)

	CreateDebt(d *model.DebtRecord) error
	GetDebt(id string) (*model.DebtRecord, error)

	// UpdateDebt saves the debt if paid still equals previousPaid and the
	// debt is not closed, otherwise it returns ErrConflict
	UpdateDebt(d *model.DebtRecord, previousPaid int64) error

	// RecordDebtPayment inserts the payment and saves the updated debt in
	// one transaction, with the same concurrency check as UpdateDebt
	RecordDebtPayment(p *model.DebtPayment, d *model.DebtRecord, previousPaid int64) error

	// ListDebts returns debts ordered by due date, undated last
	ListDebts(f DebtFilter) ([]model.DebtRecord, error)
	ListDebtPayments(debtID string) ([]model.DebtPayment, error)

	// DebtBalances sums outstanding amounts of open debts by direction and
	// currency
	DebtBalances() ([]model.DebtBalance, error)
}
