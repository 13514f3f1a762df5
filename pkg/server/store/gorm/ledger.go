package gorm

import (
	"strings"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure LedgerStore implements store.LedgerStore
var _ store.LedgerStore = (*LedgerStore)(nil)

// LedgerStore implements store.LedgerStore using GORM
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore creates a new LedgerStore
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) CreatePaymentOrder(o *model.PaymentOrder) error {
	return translate(s.db.Create(o).Error)
}

func (s *LedgerStore) GetPaymentOrder(id string) (*model.PaymentOrder, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var o model.PaymentOrder
	if err := s.db.Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// UpdatePaymentOrder is a compare-and-set on the status column. A miss is
// reported as ErrConflict when the order exists and ErrNotFound otherwise.
func (s *LedgerStore) UpdatePaymentOrder(o *model.PaymentOrder, expectedStatus model.PaymentOrderStatus) error {
	if !validID(o.ID) {
		return store.ErrNotFound
	}
	tx := s.db.Exec(`
		UPDATE payment_orders SET
			payee = ?, description = ?, amount = ?, currency = ?, payment_method = ?, status = ?,
			due_date = ?, reference = ?, approved_by = ?, approved_at = ?, paid_at = ?,
			rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		o.Payee, o.Description, o.Amount, o.Currency, o.PaymentMethod, o.Status,
		o.DueDate, o.Reference, o.ApprovedBy, o.ApprovedAt, o.PaidAt,
		o.RejectionReason, o.UpdatedAt,
		o.ID, expectedStatus,
	)
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		if _, err := s.GetPaymentOrder(o.ID); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (s *LedgerStore) ListPaymentOrders(f store.PaymentOrderFilter) ([]model.PaymentOrder, error) {
	tx := s.db.Order("created_at DESC, order_number DESC")
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.CreatedBy != "" {
		if !validID(f.CreatedBy) {
			return nil, nil
		}
		tx = tx.Where("created_by = ?", f.CreatedBy)
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	if f.Offset > 0 {
		tx = tx.Offset(f.Offset)
	}
	var orders []model.PaymentOrder
	if err := tx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *LedgerStore) CountOrderNumbers(prefix string) (int64, error) {
	var n int64
	err := s.db.Model(&model.PaymentOrder{}).Where("order_number LIKE ?", escapeLike(prefix)+"%").Count(&n).Error
	return n, err
}

func (s *LedgerStore) CreateDebt(d *model.DebtRecord) error {
	return translate(s.db.Create(d).Error)
}

func (s *LedgerStore) GetDebt(id string) (*model.DebtRecord, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var d model.DebtRecord
	if err := s.db.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func updateDebt(tx *gorm.DB, d *model.DebtRecord, previousPaid int64) error {
	res := tx.Exec(`
		UPDATE debt_records SET
			party_name = ?, party_type = ?, principal = ?, paid = ?, currency = ?, status = ?,
			due_date = ?, notes = ?, updated_at = ?
		WHERE id = ? AND paid = ? AND status IN ('open', 'partially_paid')`,
		d.PartyName, d.PartyType, d.Principal, d.Paid, d.Currency, d.Status,
		d.DueDate, d.Notes, d.UpdatedAt,
		d.ID, previousPaid,
	)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&model.DebtRecord{}).Where("id = ?", d.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	return nil
}

func (s *LedgerStore) UpdateDebt(d *model.DebtRecord, previousPaid int64) error {
	if !validID(d.ID) {
		return store.ErrNotFound
	}
	return updateDebt(s.db, d, previousPaid)
}

func (s *LedgerStore) RecordDebtPayment(p *model.DebtPayment, d *model.DebtRecord, previousPaid int64) error {
	if !validID(d.ID) {
		return store.ErrNotFound
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := updateDebt(tx, d, previousPaid); err != nil {
			return err
		}
		return translate(tx.Create(p).Error)
	})
}

func (s *LedgerStore) ListDebts(f store.DebtFilter) ([]model.DebtRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, f.Direction)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.OpenOnly {
		conds = append(conds, "status IN ('open', 'partially_paid')")
	}
	if f.Party != "" {
		conds = append(conds, "party_name ILIKE ?")
		args = append(args, "%"+escapeLike(f.Party)+"%")
	}
	if f.DueBefore != nil {
		conds = append(conds, "due_date < ?")
		args = append(args, *f.DueBefore)
	}

	query := "SELECT * FROM debt_records"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit, limitArgs := pageClause(f.Limit, f.Offset)
	query += " ORDER BY due_date ASC NULLS LAST, created_at" + limit

	var debts []model.DebtRecord
	err := s.db.Raw(query, append(args, limitArgs...)...).Scan(&debts).Error
	return debts, err
}

func (s *LedgerStore) ListDebtPayments(debtID string) ([]model.DebtPayment, error) {
	if !validID(debtID) {
		return nil, nil
	}
	var payments []model.DebtPayment
	if err := s.db.Where("debt_id = ?", debtID).Order("paid_at").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *LedgerStore) DebtBalances() ([]model.DebtBalance, error) {
	var balances []model.DebtBalance
	err := s.db.Raw(`
		SELECT direction, currency, sum(principal - paid) AS outstanding, count(*) AS count
		FROM debt_records
		WHERE status IN ('open', 'partially_paid')
		GROUP BY direction, currency
		ORDER BY direction, currency`,
	).Scan(&balances).Error
	return balances, err
}
