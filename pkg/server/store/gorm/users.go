package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

// Ensure UserStore implements store.UserStore
var _ store.UserStore = (*UserStore)(nil)

// UserStore implements store.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new UserStore
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(user *model.User) error {
	return translate(s.db.Create(user).Error)
}

func (s *UserStore) GetUser(id string) (*model.User, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var user model.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByLogin matches the username or email case-insensitively.
func (s *UserStore) GetUserByLogin(login string) (*model.User, error) {
	var user model.User
	err := s.db.Where("lower(username) = lower(?) OR lower(email) = lower(?)", login, login).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *UserStore) UpdateUser(u *model.User) error {
	return affected(s.db.Exec(`
		UPDATE users SET
			username = ?, email = ?, password_hash = ?, full_name = ?, role = ?,
			is_active = ?, is_verified = ?, failed_login_attempts = ?, locked_until = ?,
			last_login_at = ?, password_changed_at = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.Role,
		u.IsActive, u.IsVerified, u.FailedLoginAttempts, u.LockedUntil,
		u.LastLoginAt, u.PasswordChangedAt, u.UpdatedAt,
		u.ID,
	))
}

func (s *UserStore) ListUsers(limit, offset int) ([]model.User, error) {
	var users []model.User
	tx := s.db.Order("username")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// RecordFailedLogin increments the counter in a single statement so
// concurrent failures cannot lose updates.
func (s *UserStore) RecordFailedLogin(userID string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	if !validID(userID) {
		return 0, nil, store.ErrNotFound
	}
	var row struct {
		FailedLoginAttempts int        `gorm:"column:failed_login_attempts"`
		LockedUntil         *time.Time `gorm:"column:locked_until"`
	}
	tx := s.db.Raw(`
		UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END
		WHERE id = ?
		RETURNING failed_login_attempts, locked_until`,
		threshold, lockUntil, userID,
	).Scan(&row)
	if tx.Error != nil {
		return 0, nil, translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return 0, nil, store.ErrNotFound
	}
	return row.FailedLoginAttempts, row.LockedUntil, nil
}

func (s *UserStore) RecordSuccessfulLogin(userID string, at time.Time) error {
	if !validID(userID) {
		return store.ErrNotFound
	}
	return affected(s.db.Exec(
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login_at = ? WHERE id = ?`,
		at, userID,
	))
}
