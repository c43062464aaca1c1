package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fashionlens/fashion-lens-be/internal/models"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
)

var _ storage.UserStore = (*memStore)(nil)

// memStore is an in-memory UserStore for handler tests.
type memStore struct {
	mu      sync.Mutex
	byID    map[string]models.User
	byEmail map[string]string
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]models.User{}, byEmail: map[string]string{}}
}

func (m *memStore) CreateUser(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	if _, ok := m.byEmail[user.Email]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
	return user, nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memStore) FindByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (m *memStore) DebitCoins(_ context.Context, id string, amount int64) (models.User, error) {
	if amount <= 0 {
		return models.User{}, storage.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if u.Coins < amount {
		return models.User{}, storage.ErrInsufficientCoins
	}
	u.Coins -= amount
	m.byID[id] = u
	return u, nil
}

func (m *memStore) Close() {}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
