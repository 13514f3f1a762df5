package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// orderNumberAttempts bounds retries when two orders race for a number
const orderNumberAttempts = 3

// transitions lists the statuses each status may move to
var transitions = map[model.PaymentOrderStatus][]model.PaymentOrderStatus{
	model.OrderDraft:           {model.OrderPendingApproval, model.OrderCancelled},
	model.OrderPendingApproval: {model.OrderApproved, model.OrderRejected, model.OrderCancelled},
	model.OrderApproved:        {model.OrderPaid, model.OrderCancelled},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to model.PaymentOrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderInput is a new payment order, or the full replacement of a draft
type OrderInput struct {
	Payee         string              `json:"payee" validate:"required,max=255"`
	Description   string              `json:"description,omitempty" validate:"max=2000"`
	Amount        int64               `json:"amount" validate:"gt=0"`
	Currency      string              `json:"currency,omitempty" validate:"omitempty,iso4217"`
	PaymentMethod model.PaymentMethod `json:"payment_method" validate:"required"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
	Reference     string              `json:"reference,omitempty" validate:"max=255"`
}

func (s *Service) checkOrder(in *OrderInput) error {
	in.Currency = currency(in.Currency)
	if err := s.check(in); err != nil {
		return err
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.PaymentMethod)
	}
	return nil
}

// OrderNumberPrefix is the prefix of order numbers issued on day t
func OrderNumberPrefix(t time.Time) string {
	return "PO-" + t.Format("20060102") + "-"
}

// CreatePaymentOrder creates a draft order with the next order number of
// the day
func (s *Service) CreatePaymentOrder(ctx context.Context, id *identity.Identity, in OrderInput) (*model.PaymentOrder, error) {
	if !canWrite(id) {
		return nil, ErrForbidden
	}
	if err := s.checkOrder(&in); err != nil {
		return nil, err
	}

	now := s.now()
	o := &model.PaymentOrder{
		ID:            uuid.NewString(),
		Payee:         strings.TrimSpace(in.Payee),
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		Currency:      in.Currency,
		PaymentMethod: in.PaymentMethod,
		Status:        model.OrderDraft,
		DueDate:       in.DueDate,
		Reference:     strings.TrimSpace(in.Reference),
		CreatedBy:     id.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	prefix := OrderNumberPrefix(now)
	n, err := s.store.CountOrderNumbers(prefix)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		n++
		o.OrderNumber = fmt.Sprintf("%s%04d", prefix, n)
		if err = s.store.CreatePaymentOrder(o); !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}

	s.event(id, o, "create", "", model.OrderDraft, nil)
	return o, nil
}

// GetPaymentOrder returns an order
func (s *Service) GetPaymentOrder(ctx context.Context, id *identity.Identity, orderID string) (*model.PaymentOrder, error) {
	if !id.Authenticated() {
		return nil, ErrForbidden
	}
	return s.store.GetPaymentOrder(orderID)
}

// OrderFilter narrows ListPaymentOrders
type OrderFilter struct {
	Status    model.PaymentOrderStatus
	CreatedBy string
	Limit     int
	Offset    int
}

// ListPaymentOrders returns orders, newest first
func (s *Service) ListPaymentOrders(ctx context.Context, id *identity.Identity, f OrderFilter) ([]model.PaymentOrder, error) {
	if !id.Authenticated() {
		return nil, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.store.ListPaymentOrders(store.PaymentOrderFilter{
		Status:    f.Status,
		CreatedBy: f.CreatedBy,
		Limit:     s.clampLimit(f.Limit),
		Offset:    f.Offset,
	})
}

// UpdatePaymentOrder replaces the details of a draft order. Only its
// creator or a manager may edit it.
func (s *Service) UpdatePaymentOrder(ctx context.Context, id *identity.Identity, orderID string, in OrderInput) (*model.PaymentOrder, error) {
	if err := s.checkOrder(&in); err != nil {
		return nil, err
	}
	o, err := s.store.GetPaymentOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !s.isCreatorOrManager(id, o) {
		return nil, ErrForbidden
	}
	if o.Status != model.OrderDraft {
		return nil, fmt.Errorf("%w: only draft orders can be edited", ErrInvalidTransition)
	}

	o.Payee = strings.TrimSpace(in.Payee)
	o.Description = strings.TrimSpace(in.Description)
	o.Amount = in.Amount
	o.Currency = in.Currency
	o.PaymentMethod = in.PaymentMethod
	o.DueDate = in.DueDate
	o.Reference = strings.TrimSpace(in.Reference)
	o.UpdatedAt = s.now()

	if err := s.store.UpdatePaymentOrder(o, model.OrderDraft); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: order changed status", ErrInvalidTransition)
		}
		return nil, err
	}
	s.event(id, o, "update", model.OrderDraft, model.OrderDraft, nil)
	return o, nil
}

// SubmitPaymentOrder sends a draft for approval
func (s *Service) SubmitPaymentOrder(ctx context.Context, id *identity.Identity, orderID string) (*model.PaymentOrder, error) {
	return s.transition(id, orderID, "submit", model.OrderPendingApproval, func(o *model.PaymentOrder) error {
		if !s.isCreatorOrManager(id, o) {
			return ErrForbidden
		}
		return nil
	})
}

// ApprovePaymentOrder approves a pending order. The approver must be a
// manager and must not have created the order.
func (s *Service) ApprovePaymentOrder(ctx context.Context, id *identity.Identity, orderID string) (*model.PaymentOrder, error) {
	return s.transition(id, orderID, "approve", model.OrderApproved, func(o *model.PaymentOrder) error {
		if err := s.checkApprover(id, o); err != nil {
			return err
		}
		now := s.now()
		approver := id.UserID
		o.ApprovedBy = &approver
		o.ApprovedAt = &now
		return nil
	})
}

// RejectPaymentOrder rejects a pending order with a reason
func (s *Service) RejectPaymentOrder(ctx context.Context, id *identity.Identity, orderID, reason string) (*model.PaymentOrder, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", ErrInvalidInput)
	}
	return s.transition(id, orderID, "reject", model.OrderRejected, func(o *model.PaymentOrder) error {
		if err := s.checkApprover(id, o); err != nil {
			return err
		}
		o.RejectionReason = reason
		return nil
	})
}

// MarkPaymentOrderPaid records that an approved order was paid
func (s *Service) MarkPaymentOrderPaid(ctx context.Context, id *identity.Identity, orderID, reference string) (*model.PaymentOrder, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: a payment reference is required", ErrInvalidInput)
	}
	return s.transition(id, orderID, "pay", model.OrderPaid, func(o *model.PaymentOrder) error {
		if !isManager(id) {
			return ErrForbidden
		}
		now := s.now()
		o.PaidAt = &now
		o.Reference = reference
		return nil
	})
}

// CancelPaymentOrder cancels an order that has not been paid, rejected or
// cancelled
func (s *Service) CancelPaymentOrder(ctx context.Context, id *identity.Identity, orderID string) (*model.PaymentOrder, error) {
	return s.transition(id, orderID, "cancel", model.OrderCancelled, func(o *model.PaymentOrder) error {
		// Approved orders are committed funds
		if o.Status == model.OrderApproved && !isManager(id) {
			return ErrForbidden
		}
		if !s.isCreatorOrManager(id, o) {
			return ErrForbidden
		}
		return nil
	})
}

// transition moves an order to status `to`. allow checks permissions and
// may set fields on the order before it is saved.
func (s *Service) transition(id *identity.Identity, orderID, op string, to model.PaymentOrderStatus, allow func(o *model.PaymentOrder) error) (*model.PaymentOrder, error) {
	if !id.Authenticated() {
		return nil, ErrForbidden
	}
	o, err := s.store.GetPaymentOrder(orderID)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if !CanTransition(from, to) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		s.event(id, o, op, from, to, err)
		return nil, err
	}
	if err := allow(o); err != nil {
		s.event(id, o, op, from, to, err)
		return nil, err
	}

	o.Status = to
	o.UpdatedAt = s.now()
	if err := s.store.UpdatePaymentOrder(o, from); err != nil {
		if errors.Is(err, store.ErrConflict) {
			err = fmt.Errorf("%w: order changed status", ErrInvalidTransition)
		}
		s.event(id, o, op, from, to, err)
		return nil, err
	}
	s.event(id, o, op, from, to, nil)
	return o, nil
}

func (s *Service) checkApprover(id *identity.Identity, o *model.PaymentOrder) error {
	if !isManager(id) {
		return ErrForbidden
	}
	if o.CreatedBy == id.UserID {
		return ErrSelfApproval
	}
	return nil
}

func (s *Service) isCreatorOrManager(id *identity.Identity, o *model.PaymentOrder) bool {
	return isManager(id) || (canWrite(id) && o.CreatedBy == id.UserID)
}

func (s *Service) event(id *identity.Identity, o *model.PaymentOrder, op string, from, to model.PaymentOrderStatus, err error) {
	e := audit.PaymentOrderEvent{
		ClientIP:    id.IP(),
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Operation:   op,
		FromStatus:  string(from),
		ToStatus:    string(to),
		Success:     err == nil,
	}
	if id.Authenticated() {
		e.UserID = id.UserID
	}
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	audit.Log(e)
}
