package memory

import (
	"context"
	"time"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/errors"
)

type userRepository struct {
	users *table[model.User]
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{users: newTable[model.User]()}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()

	email := model.NormalizeEmail(user.Email)
	for _, u := range r.users.items {
		if u.Email == email {
			return errors.Conflict("Email already registered")
		}
	}
	user.Email = email
	stamp(&user.Base, time.Now().UTC())
	r.users.items[user.ID] = *user
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := r.users.get(id)
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == model.NormalizeEmail(email) })
}

func (r *userRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*model.User, error) {
	return r.find(func(u model.User) bool { return uniqueID != "" && u.UniqueID == uniqueID })
}

func (r *userRepository) find(match func(model.User) bool) (*model.User, error) {
	r.users.mu.RLock()
	defer r.users.mu.RUnlock()
	for _, u := range r.users.items {
		if match(u) {
			return &u, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	existing, ok := r.users.get(user.ID)
	if !ok {
		return errors.NotFound("user", nil)
	}
	user.Email = existing.Email
	user.PasswordHash = existing.PasswordHash
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users.put(user.ID, *user)
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	u, ok := r.users.items[id]
	if !ok {
		return errors.NotFound("user", nil)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users.items[id] = u
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	if !r.users.remove(id) {
		return errors.NotFound("user", nil)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, q model.ListQuery) ([]*model.User, int, error) {
	matches := r.users.snapshot(func(u model.User) bool {
		if q.Role != "" && string(u.Role) != q.Role {
			return false
		}
		if q.Status != "" && u.StatusLabel() != q.Status {
			return false
		}
		return contains(q.Search, u.Name, u.Email, u.UniqueID)
	}, func(u model.User) time.Time { return u.CreatedAt })

	page, total := paginate(matches, q)
	return pointers(page), total, nil
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
