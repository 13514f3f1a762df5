// Package store provides storage abstractions for the Hasad server.
//
// This package defines interfaces for database operations so services and
// endpoints stay decoupled from the database. Two implementations exist:
//
//   - store/gorm: PostgreSQL through GORM, used in production
//   - store/memstore: process memory, used by tests and "hasadctl server --in-memory"
//
// # Errors
//
// Implementations return ErrNotFound for missing records and ErrConflict for
// uniqueness or optimistic concurrency violations:
//
//	user, err := users.GetUser(id)
//	if errors.Is(err, store.ErrNotFound) {
//	    // Handle not found
//	}
package store
