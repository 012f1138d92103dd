package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/eventhub/internal/model"
)

// MemoryUserRepo is an in-process identity store. It backs the service tests
// and STORAGE_DRIVER=memory; it is safe for concurrent use.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]model.User
	byEmail map[string]string // email -> id
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{byID: map[string]model.User{}, byEmail: map[string]string{}}
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) FindAll(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	out := make([]model.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Save mirrors UserRepo.Save, including the email uniqueness check, under a
// single lock.
func (r *MemoryUserRepo) Save(_ context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.byEmail[u.Email]; taken && owner != u.ID {
		return ErrEmailExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if prev, ok := r.byID[u.ID]; ok {
		delete(r.byEmail, prev.Email)
	} else {
		return ErrNotFound
	}
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryUserRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.Status != model.StatusActive {
		return ErrNotFound
	}
	t := at
	u.LastLoginAt = &t
	u.UpdatedAt = at
	r.byID[id] = u
	return nil
}

func (r *MemoryUserRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	return nil
}

// MemoryTokenRepo is an in-process session ledger. All conditional updates
// run under one mutex, which gives them the same single-winner behaviour as
// the SQL `revoked_at IS NULL` guard.
type MemoryTokenRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.RefreshToken
	byHash map[string]string // token hash -> id
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{byID: map[string]*model.RefreshToken{}, byHash: map[string]string{}}
}

func (r *MemoryTokenRepo) FindByTokenHash(_ context.Context, hash string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[hash]
	if !ok {
		return model.RefreshToken{}, ErrNotFound
	}
	return cloneToken(r.byID[id]), nil
}

func (r *MemoryTokenRepo) FindByID(_ context.Context, id string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return model.RefreshToken{}, ErrNotFound
	}
	return cloneToken(t), nil
}

func (r *MemoryTokenRepo) ListByUserID(_ context.Context, userID string) ([]model.RefreshToken, error) {
	r.mu.Lock()
	var out []model.RefreshToken
	for _, t := range r.byID {
		if t.UserID == userID {
			out = append(out, cloneToken(t))
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

func (r *MemoryTokenRepo) Save(_ context.Context, t *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, taken := r.byHash[t.TokenHash]; taken && owner != t.ID {
		return ErrConflict
	}
	if prev, ok := r.byID[t.ID]; ok {
		delete(r.byHash, prev.TokenHash)
	}
	c := cloneToken(t)
	r.byID[t.ID] = &c
	r.byHash[t.TokenHash] = t.ID
	return nil
}

func (r *MemoryTokenRepo) Rotate(_ context.Context, id string, at time.Time, replacedByID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	revokedAt, usedAt, next := at, at, replacedByID
	t.RevokedAt, t.LastUsedAt, t.ReplacedByTokenID = &revokedAt, &usedAt, &next
	return true, nil
}

func (r *MemoryTokenRepo) RevokeByID(_ context.Context, id string, at time.Time) (int64, error) {
	return r.revoke(func(t *model.RefreshToken) bool { return t.ID == id }, at), nil
}

func (r *MemoryTokenRepo) RevokeByFamilyID(_ context.Context, familyID string, at time.Time) (int64, error) {
	return r.revoke(func(t *model.RefreshToken) bool { return t.FamilyID == familyID }, at), nil
}

func (r *MemoryTokenRepo) RevokeByUserID(_ context.Context, userID string, at time.Time) (int64, error) {
	return r.revoke(func(t *model.RefreshToken) bool { return t.UserID == userID }, at), nil
}

func (r *MemoryTokenRepo) revoke(match func(*model.RefreshToken) bool, at time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byID {
		if t.RevokedAt == nil && match(t) {
			revokedAt := at
			t.RevokedAt = &revokedAt
			n++
		}
	}
	return n
}

func cloneToken(t *model.RefreshToken) model.RefreshToken {
	c := *t
	c.LastUsedAt = clonePtr(t.LastUsedAt)
	c.RevokedAt = clonePtr(t.RevokedAt)
	c.ReplacedByTokenID = clonePtr(t.ReplacedByTokenID)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
