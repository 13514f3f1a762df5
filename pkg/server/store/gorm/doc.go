// Package gorm provides GORM-based implementations of the store interfaces
// defined in the parent store package.
//
// Queries that need joins, conditional updates or RETURNING are written as
// raw SQL and scanned into the model types; simple lookups use the GORM query
// builder. Postgres unique violations surface as store.ErrConflict and
// missing rows as store.ErrNotFound.
package gorm
