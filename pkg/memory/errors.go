package memory

import (
	"errors"

	"github.com/hasad-erp/hasad/pkg/server/store"
)

var (
	ErrNotFound     = store.ErrNotFound
	ErrConflict     = store.ErrConflict
	ErrForbidden    = errors.New("access to memory denied")
	ErrInvalidInput = errors.New("invalid memory input")
)
