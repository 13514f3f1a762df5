package gorm

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/server/store"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// translate maps driver errors onto the store sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return store.ErrConflict
		case foreignKeyViolation:
			return store.ErrNotFound
		}
	}
	return err
}

// validID reports whether id can be compared against a uuid column. Lookups
// with anything else are answered with ErrNotFound without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// affected turns a zero-row write into ErrNotFound
func affected(tx *gorm.DB) error {
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func pageClause(limit, offset int) (string, []interface{}) {
	var (
		clause string
		args   []interface{}
	)
	if limit > 0 {
		clause += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		clause += " OFFSET ?"
		args = append(args, offset)
	}
	return clause, args
}
