package users

import (
	"context"
	"sync"
	"time"

	"github.com/include-portal/users-api/internal/models"
)

// MemoryUserRepository is an in-memory repository used for unit tests and
// local runs without a database. Stored records are copied on every access.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID uint
	store  map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{store: make(map[string]*models.User)}
}

func (m *MemoryUserRepository) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[u.KeycloakID]; ok {
		return nil, alreadyExists()
	}
	m.nextID++
	u.ID = m.nextID
	m.store[u.KeycloakID] = u.Clone()
	return u, nil
}

func (m *MemoryUserRepository) GetBySub(_ context.Context, sub string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[sub]
	if !ok || u.Deleted {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (m *MemoryUserRepository) UpdateBySub(_ context.Context, sub string, mutate MutateFunc) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[sub]
	if !ok || cur.Deleted {
		return nil, ErrNotFound
	}
	u := cur.Clone()
	if err := mutate(u); err != nil {
		return nil, err
	}
	m.store[sub] = u.Clone()
	return u, nil
}

func (m *MemoryUserRepository) DeleteBySub(_ context.Context, sub string, soft bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[sub]
	if !ok || u.Deleted {
		return ErrNotFound
	}
	if soft {
		u.Deleted = true
		u.UpdatedDate = at
		return nil
	}
	delete(m.store, sub)
	return nil
}

func (m *MemoryUserRepository) Ping(context.Context) error { return nil }
