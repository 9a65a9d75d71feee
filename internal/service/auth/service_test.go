package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/hms/internal/email"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/internal/repository/memory"
	"github.com/jwalitptl/hms/pkg/auth"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/security"
)

type fixture struct {
	svc    *Service
	users  repository.UserRepository
	tokens repository.TokenRepository
	mail   *email.Recorder
}

func newFixture(t *testing.T, admins ...string) *fixture {
	t.Helper()
	f := &fixture{
		users:  memory.NewUserRepository(),
		tokens: memory.NewTokenRepository(),
		mail:   email.NewRecorder(),
	}
	f.svc = NewService(
		f.users,
		f.tokens,
		security.NewBcryptHasher(bcrypt.MinCost),
		auth.NewJWTService("test-secret", "hms-test", time.Hour),
		f.mail,
		nil,
		zerolog.Nop(),
		Config{AdminEmails: admins},
	)
	return f
}

func (f *fixture) register(t *testing.T, addr string) *model.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Asha Rao",
		Email:    addr,
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) verify(t *testing.T, addr string) {
	t.Helper()
	msg, ok := f.mail.Last(addr)
	require.True(t, ok)
	_, err := f.svc.VerifyEmail(context.Background(), &model.VerifyEmailRequest{Email: addr, Code: msg.Code})
	require.NoError(t, err)
}

func TestRegister_CreatesUnverifiedPatient(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, " Asha@Example.com ")

	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, model.RolePatient, user.Role)
	assert.Regexp(t, `^PAT-[A-Z2-9]{6}$`, user.UniqueID)
	assert.False(t, user.IsVerified)
	assert.NotEmpty(t, user.PasswordHash)

	msg, ok := f.mail.Last("asha@example.com")
	require.True(t, ok)
	assert.Len(t, msg.Code, 6)
}

func TestRegister_BootstrapAdmin(t *testing.T) {
	f := newFixture(t, "Chief@Example.com")

	user, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Name: "Chief", Email: "chief@example.com", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.Empty(t, user.UniqueID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "asha@example.com")

	_, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Name: "Other", Email: "ASHA@example.com", Password: "password123",
	})
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrConflict, appErr.Code)
}

func TestLogin_RequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "asha@example.com")

	_, _, _, err := f.svc.Login(ctx, &model.LoginRequest{Email: "asha@example.com", Password: "password123"})
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrForbidden, appErr.Code)
	assert.Equal(t, MsgNotVerified, appErr.Message)

	f.verify(t, "asha@example.com")

	user, token, claims, err := f.svc.Login(ctx, &model.LoginRequest{Email: "asha@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "asha@example.com")
	f.verify(t, "asha@example.com")

	for _, req := range []*model.LoginRequest{
		{Email: "asha@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "password123"},
	} {
		_, _, _, err := f.svc.Login(ctx, req)
		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrUnauthorized, appErr.Code)
		assert.Equal(t, MsgInvalidCredentials, appErr.Message)
	}
}

func TestVerifyEmail_WrongCodeKeepsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "asha@example.com")

	_, err := f.svc.VerifyEmail(ctx, &model.VerifyEmailRequest{Email: "asha@example.com", Code: "000000x"})
	require.Error(t, err)

	f.verify(t, "asha@example.com")

	// already verified is not an error
	user, err := f.svc.VerifyEmail(ctx, &model.VerifyEmailRequest{Email: "asha@example.com", Code: "123456"})
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	welcome, ok := f.mail.Last("asha@example.com")
	require.True(t, ok)
	assert.Equal(t, "welcome", welcome.Template)
}

func TestAuthenticateAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "asha@example.com")
	f.verify(t, "asha@example.com")

	_, token, _, err := f.svc.Login(ctx, &model.LoginRequest{Email: "asha@example.com", Password: "password123"})
	require.NoError(t, err)

	user, claims, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)

	require.NoError(t, f.svc.Logout(ctx, claims))

	_, _, err = f.svc.Authenticate(ctx, token)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)

	_, _, err = f.svc.Authenticate(ctx, "not-a-token")
	require.Error(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "asha@example.com")
	f.verify(t, "asha@example.com")

	require.NoError(t, f.svc.Forgot(ctx, &model.ForgotRequest{Email: "asha@example.com"}))
	// unknown addresses are not disclosed
	require.NoError(t, f.svc.Forgot(ctx, &model.ForgotRequest{Email: "nobody@example.com"}))

	msg, ok := f.mail.Last("asha@example.com")
	require.True(t, ok)
	require.Equal(t, "password_reset", msg.Template)

	_, err := f.svc.VerifyForgot(ctx, &model.VerifyForgotRequest{Email: "asha@example.com", Code: "bad"})
	require.Error(t, err)

	ticket, err := f.svc.VerifyForgot(ctx, &model.VerifyForgotRequest{Email: "asha@example.com", Code: msg.Code})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.Token)

	// the code is single use
	_, err = f.svc.VerifyForgot(ctx, &model.VerifyForgotRequest{Email: "asha@example.com", Code: msg.Code})
	require.Error(t, err)

	require.NoError(t, f.svc.NewPassword(ctx, &model.NewPasswordRequest{
		Email: "asha@example.com", Token: ticket.Token, Password: "new-password",
	}))
	err = f.svc.NewPassword(ctx, &model.NewPasswordRequest{
		Email: "asha@example.com", Token: ticket.Token, Password: "another-password",
	})
	require.Error(t, err)

	_, _, _, err = f.svc.Login(ctx, &model.LoginRequest{Email: "asha@example.com", Password: "new-password"})
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "asha@example.com")

	name, age := "Asha R.", 34
	updated, err := f.svc.UpdateProfile(ctx, user.ID, &model.UpdateProfileRequest{Name: &name, Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", updated.Name)
	assert.Equal(t, 34, updated.Age)
	assert.Equal(t, user.UniqueID, updated.UniqueID)
}
