package ledger

import (
	"errors"

	"github.com/hasad-erp/hasad/pkg/server/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
	ErrForbidden         = errors.New("operation not permitted")
	ErrInvalidInput      = errors.New("invalid ledger input")
	ErrInvalidTransition = errors.New("invalid payment order transition")
	ErrSelfApproval      = errors.New("payment orders cannot be approved by their creator")
	ErrOverpayment       = errors.New("payment exceeds the outstanding balance")
	ErrDebtClosed        = errors.New("debt is settled or written off")
)
