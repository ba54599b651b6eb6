package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avasiliev/accountkeeper/internal/common"
	"github.com/avasiliev/accountkeeper/internal/server/models"
)

// MemoryRepository is an in-memory credential store with the same observable
// semantics as the Postgres one, including uniqueness enforcement that is
// atomic relative to concurrent writers. Used in tests and local tooling.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byID: make(map[int64]*models.User)}
}

func (m *MemoryRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findBy(func(u *models.User) bool { return u.Username == username })
}

func (m *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findBy(func(u *models.User) bool { return u.Email == email })
}

func (m *MemoryRepository) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(offset, limit)
}

func (m *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(user)
}

func (m *MemoryRepository) Update(ctx context.Context, id int64, upd *models.UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(id, upd)
}

func (m *MemoryRepository) Delete(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delete(id)
}

// WithTx holds the store lock for the duration of fn, which makes the whole
// callback atomic. Rollback is not emulated: like the real store, callers
// are expected to rely on per-statement constraint failures.
func (m *MemoryRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryTxView{m: m})
}

// --- unlocked internals, callers must hold m.mu ---

func (m *MemoryRepository) get(id int64) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryRepository) findBy(match func(*models.User) bool) (*models.User, error) {
	for _, u := range m.byID {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *MemoryRepository) list(offset, limit int) ([]*models.User, error) {
	ids := make([]int64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := []*models.User{}
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(result) >= limit {
			break
		}
		result = append(result, copyUser(m.byID[id]))
	}
	return result, nil
}

func (m *MemoryRepository) create(user *models.User) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == user.Email {
			return nil, &common.ConflictError{Field: "email"}
		}
		if u.Username == user.Username {
			return nil, &common.ConflictError{Field: "username"}
		}
	}

	now := time.Now()
	stored := copyUser(user)
	stored.ID = m.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.nextID++
	m.byID[stored.ID] = stored

	return copyUser(stored), nil
}

func (m *MemoryRepository) update(id int64, upd *models.UserUpdate) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	for otherID, other := range m.byID {
		if otherID == id {
			continue
		}
		if upd.Email != nil && other.Email == *upd.Email {
			return nil, &common.ConflictError{Field: "email"}
		}
		if upd.Username != nil && other.Username == *upd.Username {
			return nil, &common.ConflictError{Field: "username"}
		}
	}

	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.EncryptedSecret != nil {
		u.EncryptedSecret = *upd.EncryptedSecret
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = time.Now()

	return copyUser(u), nil
}

func (m *MemoryRepository) delete(id int64) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(m.byID, id)
	return copyUser(u), nil
}

// memoryTxView exposes the unlocked internals while the parent holds the
// lock. Nested WithTx is not supported.
type memoryTxView struct {
	m *MemoryRepository
}

func (v *memoryTxView) Get(ctx context.Context, id int64) (*models.User, error) {
	return v.m.get(id)
}

func (v *memoryTxView) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return v.m.findBy(func(u *models.User) bool { return u.Username == username })
}

func (v *memoryTxView) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return v.m.findBy(func(u *models.User) bool { return u.Email == email })
}

func (v *memoryTxView) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	return v.m.list(offset, limit)
}

func (v *memoryTxView) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return v.m.create(user)
}

func (v *memoryTxView) Update(ctx context.Context, id int64, upd *models.UserUpdate) (*models.User, error) {
	return v.m.update(id, upd)
}

func (v *memoryTxView) Delete(ctx context.Context, id int64) (*models.User, error) {
	return v.m.delete(id)
}

func (v *memoryTxView) WithTx(ctx context.Context, fn func(Repository) error) error {
	return fn(v)
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}
