package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/errors"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (
			id, name, email, password_hash, role, unique_id, age,
			gender, phone, address, is_verified, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.UniqueID,
		user.Age,
		user.Gender,
		user.Phone,
		user.Address,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.Conflict("Email already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", model.NormalizeEmail(email))
}

func (r *userRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*model.User, error) {
	return r.getBy(ctx, "unique_id", uniqueID)
}

func (r *userRepository) getBy(ctx context.Context, col, value string) (*model.User, error) {
	query := r.db.Rebind(`SELECT * FROM users WHERE ` + col + ` = ?`)

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		return nil, notFound(err, "user", "get user")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := r.db.Rebind(`
		UPDATE users SET
			name = ?, role = ?, unique_id = ?, age = ?, gender = ?,
			phone = ?, address = ?, is_verified = ?, updated_at = ?
		WHERE id = ?
	`)
	user.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Role,
		user.UniqueID,
		user.Age,
		user.Gender,
		user.Phone,
		user.Address,
		user.IsVerified,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOne(res, "user")
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectOne(res, "user")
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOne(res, "user")
}

func (r *userRepository) List(ctx context.Context, q model.ListQuery) ([]*model.User, int, error) {
	f := &filter{}
	if q.Role != "" {
		f.add("role = ?", q.Role)
	}
	switch q.Status {
	case "verified":
		f.add("is_verified = ?", true)
	case "unverified":
		f.add("is_verified = ?", false)
	}
	f.search(q.Search, "name", "email", "unique_id")
	return page[model.User](ctx, r.db, "users", f, q)
}
