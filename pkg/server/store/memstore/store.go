// Package memstore implements the store interfaces in process memory.
//
// It backs the service tests and "hasadctl server --in-memory". Records are
// copied on the way in and out, so callers never share state with the store.
package memstore

import (
	"sync"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

var (
	_ store.HealthStore    = (*Store)(nil)
	_ store.UserStore      = (*Store)(nil)
	_ store.TokenStore     = (*Store)(nil)
	_ store.SessionStore   = (*Store)(nil)
	_ store.MFAStore       = (*Store)(nil)
	_ store.AuthLogStore   = (*Store)(nil)
	_ store.OAuthStore     = (*Store)(nil)
	_ store.KnowledgeStore = (*Store)(nil)
	_ store.LedgerStore    = (*Store)(nil)
	_ store.TaxonomyStore  = (*Store)(nil)
)

type memoryTagKey struct {
	memoryID string
	tagID    string
}

type memoryEntityKey struct {
	memoryID string
	entityID string
}

type grantKey struct {
	memoryID string
	userID   string
}

// Store holds every table in maps guarded by a single lock
type Store struct {
	mu sync.RWMutex

	users      map[string]model.User
	tokens     map[string]model.Token
	sessions   map[string]model.UserSession
	mfa        map[string]model.MFAConfiguration
	authLogs   []model.AuthLog
	oauth      map[string]model.OAuthAccount
	memories   map[string]model.Memory
	tags       map[string]model.Tag
	memoryTags map[memoryTagKey]struct{}
	entities   map[string]model.Entity
	links      map[memoryEntityKey]float64
	grants     map[grantKey]model.MemoryGrant
	accessLogs []model.MemoryAccessLog
	orders     map[string]model.PaymentOrder
	debts      map[string]model.DebtRecord
	payments   []model.DebtPayment
	taxa       map[string]model.CropTaxon
}

// New returns an empty store
func New() *Store {
	return &Store{
		users:      make(map[string]model.User),
		tokens:     make(map[string]model.Token),
		sessions:   make(map[string]model.UserSession),
		mfa:        make(map[string]model.MFAConfiguration),
		oauth:      make(map[string]model.OAuthAccount),
		memories:   make(map[string]model.Memory),
		tags:       make(map[string]model.Tag),
		memoryTags: make(map[memoryTagKey]struct{}),
		entities:   make(map[string]model.Entity),
		links:      make(map[memoryEntityKey]float64),
		grants:     make(map[grantKey]model.MemoryGrant),
		orders:     make(map[string]model.PaymentOrder),
		debts:      make(map[string]model.DebtRecord),
		taxa:       make(map[string]model.CropTaxon),
	}
}

// CheckConnectivity always succeeds
func (s *Store) CheckConnectivity() error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
