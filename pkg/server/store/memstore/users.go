package memstore

import (
	"sort"
	"strings"
	"time"

	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
)

func (s *Store) CreateUser(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == user.ID || strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return store.ErrConflict
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByLogin(login string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	for _, u := range s.users {
		if u.ID != user.ID && (strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email)) {
			return store.ErrConflict
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) ListUsers(limit, offset int) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return page(users, limit, offset), nil
}

func (s *Store) RecordFailedLogin(userID string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, nil, store.ErrNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		until := lockUntil
		u.LockedUntil = &until
	}
	s.users[userID] = u
	return u.FailedLoginAttempts, u.LockedUntil, nil
}

func (s *Store) RecordSuccessfulLogin(userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	s.users[userID] = u
	return nil
}
