package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/hms/internal/email"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/auth"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/metrics"
	"github.com/jwalitptl/hms/pkg/security"
)

const (
	codeLength      = 6
	defaultCodeTTL  = 10 * time.Minute
	resetTokenTTL   = 15 * time.Minute
	sessionCacheTTL = 30 * time.Second
	uniqueIDPrefix  = "PAT-"
	uniqueIDLength  = 6
)

// Messages returned to API callers
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgNotVerified        = "Please verify your email before logging in"
	MsgInvalidCode        = "Invalid or expired verification code"
	MsgInvalidResetCode   = "Invalid or expired reset code"
	MsgInvalidResetToken  = "Invalid or expired reset token"
	MsgSessionExpired     = "Session expired, please log in again"
)

type Config struct {
	CodeTTL time.Duration
	// AdminEmails register as admin instead of patient.
	AdminEmails []string
}

type Service struct {
	users    repository.UserRepository
	tokens   repository.TokenRepository
	hasher   security.PasswordHasher
	jwtSvc   auth.JWTService
	emailSvc email.Service
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	sessions *cache.Cache
	codeTTL  time.Duration
	admins   map[string]bool
}

func NewService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	emailSvc email.Service,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg Config,
) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = defaultCodeTTL
	}
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		admins[model.NormalizeEmail(e)] = true
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		jwtSvc:   jwtSvc,
		emailSvc: emailSvc,
		metrics:  m,
		logger:   logger,
		sessions: cache.New(sessionCacheTTL, time.Minute),
		codeTTL:  cfg.CodeTTL,
		admins:   admins,
	}
}

func (s *Service) record(event string, err error) {
	if s.metrics != nil {
		s.metrics.AuthEvents.WithLabelValues(event, metrics.Result(err)).Inc()
	}
}

// Register creates an unverified patient account and mails a verification
// code. Staff roles are granted by an admin afterwards; addresses listed in
// Config.AdminEmails register as admin.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (user *model.User, err error) {
	defer func() { s.record("register", err) }()

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if stderrors.Is(err, security.ErrPasswordTooShort) || stderrors.Is(err, security.ErrPasswordTooLong) {
			return nil, errors.Validation([]string{err.Error()})
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	email := model.NormalizeEmail(req.Email)
	role := model.RolePatient
	if s.admins[email] {
		role = model.RoleAdmin
	}

	user = &model.User{
		Base:         model.Base{ID: uuid.NewString()},
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Age:          req.Age,
		Gender:       req.Gender,
		Phone:        req.Phone,
		Address:      req.Address,
	}
	if role == model.RolePatient {
		if user.UniqueID, err = s.newUniqueID(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.sendCode(ctx, user); err != nil {
		// the account exists; the code can be re-sent
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to send verification email")
	}
	return user, nil
}

func (s *Service) newUniqueID(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		id, err := security.ReadableID(uniqueIDPrefix, uniqueIDLength)
		if err != nil {
			return "", err
		}
		if _, err := s.users.GetByUniqueID(ctx, id); errors.IsNotFound(err) {
			return id, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to check unique id: %w", err)
		}
	}
	return "", errors.Internal(fmt.Errorf("could not allocate a unique patient id"))
}

func (s *Service) sendCode(ctx context.Context, user *model.User) error {
	code, err := security.NumericCode(codeLength)
	if err != nil {
		return err
	}
	if err := s.tokens.StoreCode(ctx, repository.PurposeVerifyEmail, user.Email, code, s.codeTTL); err != nil {
		return err
	}
	return s.emailSvc.SendVerification(ctx, user.Email, user.Name, code)
}

// ResendVerification mails a fresh code to an unverified account.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return errors.BadRequest("Email already verified", nil)
	}
	if err := s.sendCode(ctx, user); err != nil {
		return fmt.Errorf("failed to resend verification: %w", err)
	}
	return nil
}

// VerifyEmail marks the account verified when code matches.
func (s *Service) VerifyEmail(ctx context.Context, req *model.VerifyEmailRequest) (user *model.User, err error) {
	defer func() { s.record("verify_email", err) }()

	user, err = s.users.GetByEmail(ctx, req.Email)
	if errors.IsNotFound(err) {
		return nil, errors.BadRequest(MsgInvalidCode, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return user, nil
	}

	ok, err := s.tokens.ConsumeCode(ctx, repository.PurposeVerifyEmail, user.Email, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		return nil, errors.BadRequest(MsgInvalidCode, nil)
	}

	user.IsVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}
	if err := s.emailSvc.SendWelcome(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to send welcome email")
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (user *model.User, token string, claims *auth.Claims, err error) {
	defer func() { s.record("login", err) }()

	user, err = s.users.GetByEmail(ctx, req.Email)
	if errors.IsNotFound(err) {
		return nil, "", nil, errors.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, "", nil, errors.Unauthorized(MsgInvalidCredentials)
	}
	if !user.IsVerified {
		return nil, "", nil, errors.Forbidden(MsgNotVerified)
	}

	token, claims, err = s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	s.sessions.Set(user.ID, *user, cache.DefaultExpiration)
	return user, token, claims, nil
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, *auth.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, nil, errors.Unauthorized(MsgSessionExpired)
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return nil, nil, errors.Unauthorized(MsgSessionExpired)
	}

	if cached, ok := s.sessions.Get(claims.UserID); ok {
		u := cached.(model.User)
		return &u, claims, nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.IsNotFound(err) {
		return nil, nil, errors.Unauthorized(MsgSessionExpired)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session user: %w", err)
	}
	s.sessions.Set(user.ID, *user, cache.DefaultExpiration)
	return user, claims, nil
}

// Forget drops any cached session user for id.
func (s *Service) Forget(id string) {
	s.sessions.Delete(id)
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) (err error) {
	defer func() { s.record("logout", err) }()

	until := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.tokens.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.Forget(claims.UserID)
	return nil
}

// Forgot mails a reset code. Unknown addresses succeed silently.
func (s *Service) Forgot(ctx context.Context, req *model.ForgotRequest) (err error) {
	defer func() { s.record("forgot", err) }()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	code, err := security.NumericCode(codeLength)
	if err != nil {
		return err
	}
	if err := s.tokens.StoreCode(ctx, repository.PurposeReset, user.Email, code, s.codeTTL); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}
	if err := s.emailSvc.SendPasswordReset(ctx, user.Email, code); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// VerifyForgot exchanges a reset code for a one-time reset token.
func (s *Service) VerifyForgot(ctx context.Context, req *model.VerifyForgotRequest) (ticket *model.ResetTicket, err error) {
	defer func() { s.record("verify_forgot", err) }()

	email := model.NormalizeEmail(req.Email)
	ok, err := s.tokens.ConsumeCode(ctx, repository.PurposeReset, email, req.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		return nil, errors.BadRequest(MsgInvalidResetCode, nil)
	}

	token := uuid.NewString()
	if err := s.tokens.StoreResetToken(ctx, email, token, resetTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}
	return &model.ResetTicket{Email: email, Token: token}, nil
}

// NewPassword consumes a reset token and replaces the password.
func (s *Service) NewPassword(ctx context.Context, req *model.NewPasswordRequest) (err error) {
	defer func() { s.record("new_password", err) }()

	email := model.NormalizeEmail(req.Email)
	ok, err := s.tokens.ConsumeResetToken(ctx, email, req.Token)
	if err != nil {
		return fmt.Errorf("failed to check reset token: %w", err)
	}
	if !ok {
		return errors.BadRequest(MsgInvalidResetToken, nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return errors.BadRequest(err.Error(), err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateProfile applies a partial update to the caller's own account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	req.Apply(user)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.Forget(userID)
	return user, nil
}
