package memstore

import (
	"sort"
	"strings"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

func (s *Store) CreatePaymentOrder(o *model.PaymentOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.ID == o.ID || existing.OrderNumber == o.OrderNumber {
			return store.ErrConflict
		}
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *Store) GetPaymentOrder(id string) (*model.PaymentOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (s *Store) UpdatePaymentOrder(o *model.PaymentOrder, expectedStatus model.PaymentOrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.ID]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Status != expectedStatus {
		return store.ErrConflict
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *Store) ListPaymentOrders(f store.PaymentOrderFilter) ([]model.PaymentOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.PaymentOrder{}
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.CreatedBy != "" && o.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].OrderNumber > out[j].OrderNumber
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) CountOrderNumbers(prefix string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, o := range s.orders {
		if strings.HasPrefix(o.OrderNumber, prefix) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateDebt(d *model.DebtRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.debts[d.ID]; ok {
		return store.ErrConflict
	}
	s.debts[d.ID] = *d
	return nil
}

func (s *Store) GetDebt(id string) (*model.DebtRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.debts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *Store) checkDebt(id string, previousPaid int64) error {
	existing, ok := s.debts[id]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Paid != previousPaid || existing.Closed() {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) UpdateDebt(d *model.DebtRecord, previousPaid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDebt(d.ID, previousPaid); err != nil {
		return err
	}
	s.debts[d.ID] = *d
	return nil
}

func (s *Store) RecordDebtPayment(p *model.DebtPayment, d *model.DebtRecord, previousPaid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDebt(d.ID, previousPaid); err != nil {
		return err
	}
	s.payments = append(s.payments, *p)
	s.debts[d.ID] = *d
	return nil
}

func (s *Store) ListDebts(f store.DebtFilter) ([]model.DebtRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	party := strings.ToLower(f.Party)
	out := []model.DebtRecord{}
	for _, d := range s.debts {
		if f.Direction != "" && d.Direction != f.Direction {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.OpenOnly && d.Closed() {
			continue
		}
		if party != "" && !strings.Contains(strings.ToLower(d.PartyName), party) {
			continue
		}
		if f.DueBefore != nil && (d.DueDate == nil || !d.DueDate.Before(*f.DueBefore)) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) ListDebtPayments(debtID string) ([]model.DebtPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.DebtPayment{}
	for _, p := range s.payments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (s *Store) DebtBalances() ([]model.DebtBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		direction model.DebtDirection
		currency  string
	}
	sums := map[key]*model.DebtBalance{}
	for _, d := range s.debts {
		if d.Closed() {
			continue
		}
		k := key{d.Direction, d.Currency}
		b, ok := sums[k]
		if !ok {
			b = &model.DebtBalance{Direction: d.Direction, Currency: d.Currency}
			sums[k] = b
		}
		b.Outstanding += d.Outstanding()
		b.Count++
	}
	out := make([]model.DebtBalance, 0, len(sums))
	for _, b := range sums {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction < out[j].Direction
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}
