package store

import "github.com/hasad-erp/hasad/pkg/model"

// AuthLogStore abstracts the authentication history
type AuthLogStore interface {
	CreateAuthLog(l *model.AuthLog) error

	// ListAuthLogs returns the newest entries first. An empty userID lists
	// entries for all users.
	ListAuthLogs(userID string, limit int) ([]model.AuthLog, error)
}
