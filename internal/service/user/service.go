package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/security"
)

type UserServicer interface {
	ListUsers(ctx context.Context, q model.ListQuery) (model.Page[model.User], error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	FindPatient(ctx context.Context, uniqueID string) (*model.User, error)
}

// Sessions drops cached session state for a user whose account changed.
type Sessions interface {
	Forget(userID string)
}

type Service struct {
	repo     repository.UserRepository
	sessions Sessions
}

func NewService(repo repository.UserRepository, sessions Sessions) *Service {
	return &Service{repo: repo, sessions: sessions}
}

func (s *Service) ListUsers(ctx context.Context, q model.ListQuery) (model.Page[model.User], error) {
	q = q.Normalize()
	users, total, err := s.repo.List(ctx, q)
	if err != nil {
		return model.Page[model.User]{}, fmt.Errorf("failed to list users: %w", err)
	}

	records := make([]model.User, len(users))
	for i, u := range users {
		records[i] = *u
	}
	return model.Page[model.User]{
		Records:    records,
		Pagination: model.NewPagination(q.Page, q.Limit, total),
	}, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUser applies an admin edit. Promoting an account to patient gives
// it a unique ID if it has none.
func (s *Service) UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	req.Apply(user)
	if user.Role == model.RolePatient && user.UniqueID == "" {
		if user.UniqueID, err = security.ReadableID("PAT-", 6); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.forget(id)
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.forget(id)
	return nil
}

// FindPatient looks up a patient by the ID printed on their card.
func (s *Service) FindPatient(ctx context.Context, uniqueID string) (*model.User, error) {
	uniqueID = strings.ToUpper(strings.TrimSpace(uniqueID))
	if uniqueID == "" {
		return nil, errors.BadRequest("Patient ID is required", nil)
	}

	user, err := s.repo.GetByUniqueID(ctx, uniqueID)
	if errors.IsNotFound(err) || (err == nil && user.Role != model.RolePatient) {
		return nil, errors.NotFound("Patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}
	return user, nil
}

func (s *Service) forget(id string) {
	if s.sessions != nil {
		s.sessions.Forget(id)
	}
}
