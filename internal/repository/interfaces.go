package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/hms/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository persists staff and patient accounts
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id string) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByUniqueID(ctx context.Context, uniqueID string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdatePassword(ctx context.Context, id, passwordHash string) error
		Delete(ctx context.Context, id string) error
		List(ctx context.Context, q model.ListQuery) ([]*model.User, int, error)
	}

	LabRepository interface {
		Create(ctx context.Context, record *model.LabRecord) error
		Get(ctx context.Context, id string) (*model.LabRecord, error)
		Update(ctx context.Context, record *model.LabRecord) error
		Delete(ctx context.Context, id string) error
		List(ctx context.Context, q model.ListQuery) ([]*model.LabRecord, int, error)
	}

	XrayRepository interface {
		Create(ctx context.Context, record *model.XrayRecord) error
		Get(ctx context.Context, id string) (*model.XrayRecord, error)
		Update(ctx context.Context, record *model.XrayRecord) error
		Delete(ctx context.Context, id string) error
		List(ctx context.Context, q model.ListQuery) ([]*model.XrayRecord, int, error)
		// ListWalkIns returns every walk-in record, newest first.
		ListWalkIns(ctx context.Context) ([]*model.XrayRecord, error)
	}

	// TokenRepository holds short-lived auth secrets: emailed codes,
	// password reset tokens and revoked session IDs.
	TokenRepository interface {
		StoreCode(ctx context.Context, purpose, email, code string, ttl time.Duration) error
		// ConsumeCode reports whether code matches and deletes it on a match.
		ConsumeCode(ctx context.Context, purpose, email, code string) (bool, error)
		StoreResetToken(ctx context.Context, email, token string, ttl time.Duration) error
		ConsumeResetToken(ctx context.Context, email, token string) (bool, error)
		Revoke(ctx context.Context, tokenID string, until time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)

// Code purposes
const (
	PurposeVerifyEmail = "verify"
	PurposeReset       = "reset"
)
