package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// DebtInput is a new debt
type DebtInput struct {
	PartyName string              `json:"party_name" validate:"required,max=255"`
	PartyType model.PartyType     `json:"party_type" validate:"required,oneof=customer supplier"`
	Direction model.DebtDirection `json:"direction" validate:"required,oneof=receivable payable"`
	Principal int64               `json:"principal" validate:"gt=0"`
	Currency  string              `json:"currency,omitempty" validate:"omitempty,iso4217"`
	DueDate   *time.Time          `json:"due_date,omitempty"`
	Notes     string              `json:"notes,omitempty" validate:"max=2000"`
}

// PaymentInput is an installment against a debt
type PaymentInput struct {
	Amount    int64               `json:"amount" validate:"gt=0"`
	Method    model.PaymentMethod `json:"method" validate:"required"`
	Reference string              `json:"reference,omitempty" validate:"max=255"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
}

// CreateDebt records a new open debt
func (s *Service) CreateDebt(ctx context.Context, id *identity.Identity, in DebtInput) (*model.DebtRecord, error) {
	if !canWrite(id) {
		return nil, ErrForbidden
	}
	in.Currency = currency(in.Currency)
	if err := s.check(in); err != nil {
		return nil, err
	}

	now := s.now()
	d := &model.DebtRecord{
		ID:        uuid.NewString(),
		PartyName: strings.TrimSpace(in.PartyName),
		PartyType: in.PartyType,
		Direction: in.Direction,
		Principal: in.Principal,
		Currency:  in.Currency,
		Status:    model.DebtOpen,
		DueDate:   in.DueDate,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedBy: id.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateDebt(d); err != nil {
		return nil, fmt.Errorf("failed to create debt: %w", err)
	}
	return d, nil
}

// GetDebt returns a debt with its payments
func (s *Service) GetDebt(ctx context.Context, id *identity.Identity, debtID string) (*model.DebtRecord, []model.DebtPayment, error) {
	if !id.Authenticated() {
		return nil, nil, ErrForbidden
	}
	d, err := s.store.GetDebt(debtID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.store.ListDebtPayments(debtID)
	if err != nil {
		return nil, nil, err
	}
	return d, payments, nil
}

// RecordDebtPayment applies a payment of at most the outstanding balance.
// The debt becomes partially paid, or settled when nothing is left.
func (s *Service) RecordDebtPayment(ctx context.Context, id *identity.Identity, debtID string, in PaymentInput) (*model.DebtRecord, *model.DebtPayment, error) {
	if !canWrite(id) {
		return nil, nil, ErrForbidden
	}
	if err := s.check(in); err != nil {
		return nil, nil, err
	}
	if !in.Method.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.Method)
	}

	d, err := s.store.GetDebt(debtID)
	if err != nil {
		return nil, nil, err
	}
	if d.Closed() {
		return nil, nil, ErrDebtClosed
	}
	if in.Amount > d.Outstanding() {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrOverpayment, in.Amount, d.Outstanding())
	}

	now := s.now()
	p := &model.DebtPayment{
		ID:         uuid.NewString(),
		DebtID:     d.ID,
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  strings.TrimSpace(in.Reference),
		RecordedBy: id.UserID,
		PaidAt:     now,
	}
	if in.PaidAt != nil {
		p.PaidAt = in.PaidAt.UTC()
	}

	previous := d.Paid
	d.Paid += in.Amount
	d.Status = model.DebtPartiallyPaid
	if d.Outstanding() == 0 {
		d.Status = model.DebtSettled
	}
	d.UpdatedAt = now

	if err := s.store.RecordDebtPayment(p, d, previous); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil, fmt.Errorf("%w: debt changed, retry the payment", ErrConflict)
		}
		return nil, nil, err
	}
	return d, p, nil
}

// WriteOffDebt closes a debt without further payment. Managers only.
func (s *Service) WriteOffDebt(ctx context.Context, id *identity.Identity, debtID, reason string) (*model.DebtRecord, error) {
	if !isManager(id) {
		return nil, ErrForbidden
	}
	d, err := s.store.GetDebt(debtID)
	if err != nil {
		return nil, err
	}
	if d.Closed() {
		return nil, ErrDebtClosed
	}
	d.Status = model.DebtWrittenOff
	if reason = strings.TrimSpace(reason); reason != "" {
		if d.Notes != "" {
			d.Notes += "\n"
		}
		d.Notes += "Written off: " + reason
	}
	d.UpdatedAt = s.now()
	if err := s.store.UpdateDebt(d, d.Paid); err != nil {
		return nil, err
	}
	return d, nil
}

// DebtFilter narrows ListDebts
type DebtFilter struct {
	Direction model.DebtDirection
	Status    model.DebtStatus
	Party     string
	OpenOnly  bool
	Limit     int
	Offset    int
}

// ListDebts returns debts ordered by due date, undated last
func (s *Service) ListDebts(ctx context.Context, id *identity.Identity, f DebtFilter) ([]model.DebtRecord, error) {
	if !id.Authenticated() {
		return nil, ErrForbidden
	}
	return s.store.ListDebts(store.DebtFilter{
		Direction: f.Direction,
		Status:    f.Status,
		Party:     strings.TrimSpace(f.Party),
		OpenOnly:  f.OpenOnly,
		Limit:     s.clampLimit(f.Limit),
		Offset:    f.Offset,
	})
}

// OverdueDebts returns open debts due before now
func (s *Service) OverdueDebts(ctx context.Context, id *identity.Identity, now time.Time) ([]model.DebtRecord, error) {
	if !id.Authenticated() {
		return nil, ErrForbidden
	}
	return s.store.ListDebts(store.DebtFilter{
		OpenOnly:  true,
		DueBefore: &now,
		Limit:     s.cfg.APIListLimitMax,
	})
}

// DebtSummary returns outstanding totals per direction and currency
func (s *Service) DebtSummary(ctx context.Context, id *identity.Identity) ([]model.DebtBalance, error) {
	if !id.Authenticated() {
		return nil, ErrForbidden
	}
	return s.store.DebtBalances()
}
