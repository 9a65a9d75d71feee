package store

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/client"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/notify"
	"github.com/jwalitptl/hms/internal/session"
	"github.com/jwalitptl/hms/pkg/errors"
)

// UserRecords is the user collection store.
type UserRecords = Store[model.User, model.RegisterRequest, model.UpdateUserRequest]

// UserStore adds the account lifecycle and the patient lookup to the user
// collection.
type UserStore struct {
	*UserRecords
	api *client.Client

	mu      sync.Mutex
	session *model.User
	patient *model.User
}

func newUserStore(api *client.Client, notifier notify.Notifier, logger *zap.Logger) *UserStore {
	return &UserStore{
		UserRecords: New[model.User, model.RegisterRequest, model.UpdateUserRequest]("User", api.Users(), notifier, logger),
		api:         api,
	}
}

// Session returns the signed-in user, or nil.
func (u *UserStore) Session() *model.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	return clone(u.session)
}

// Patient returns the patient selected by FindPatient, or nil.
func (u *UserStore) Patient() *model.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	return clone(u.patient)
}

func (u *UserStore) ClearPatient() {
	u.setPatient(nil)
}

func (u *UserStore) setSession(user *model.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session = clone(user)
}

func (u *UserStore) setPatient(user *model.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.patient = clone(user)
}

// CheckSession asks the API who is signed in and remembers the answer.
// Being signed out is not an error and is not notified.
func (u *UserStore) CheckSession(ctx context.Context) session.Session {
	s := session.Check(ctx, u.api)
	u.setSession(s.User)
	return s
}

func (u *UserStore) Register(ctx context.Context, req model.RegisterRequest) Result[model.User] {
	return u.account(ctx, req, func() (*model.User, string, error) {
		return u.api.Register(ctx, req)
	})
}

// Login signs in and records the session user.
func (u *UserStore) Login(ctx context.Context, req model.LoginRequest) Result[model.User] {
	res := u.account(ctx, req, func() (*model.User, string, error) {
		return u.api.Login(ctx, req)
	})
	if res.Success {
		u.setSession(res.Data)
	}
	return res
}

func (u *UserStore) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) Result[model.User] {
	return u.account(ctx, req, func() (*model.User, string, error) {
		return u.api.VerifyEmail(ctx, req)
	})
}

func (u *UserStore) ResendVerification(ctx context.Context, email string) Result[string] {
	req := model.ForgotRequest{Email: email}
	return message(u, req, func() (string, error) {
		return u.api.ResendVerification(ctx, email)
	})
}

// Forgot starts a password reset. The API answers the same way whether or
// not the address is known.
func (u *UserStore) Forgot(ctx context.Context, req model.ForgotRequest) Result[string] {
	return message(u, req, func() (string, error) {
		return u.api.Forgot(ctx, req)
	})
}

// VerifyForgot exchanges the mailed code for a one-time reset token.
func (u *UserStore) VerifyForgot(ctx context.Context, req model.VerifyForgotRequest) Result[model.ResetTicket] {
	var ticket *model.ResetTicket
	res := message(u, req, func() (string, error) {
		t, msg, err := u.api.VerifyForgot(ctx, req)
		ticket = t
		return msg, err
	})
	return Result[model.ResetTicket]{Success: res.Success, Data: ticket, Error: res.Error, Fields: res.Fields}
}

func (u *UserStore) NewPassword(ctx context.Context, req model.NewPasswordRequest) Result[string] {
	return message(u, req, func() (string, error) {
		return u.api.NewPassword(ctx, req)
	})
}

// UpdateProfile changes the signed-in user's own profile.
func (u *UserStore) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) Result[model.User] {
	res := u.account(ctx, req, func() (*model.User, string, error) {
		return u.api.UpdateProfile(ctx, req)
	})
	if res.Success && res.Data != nil {
		u.setSession(res.Data)
		u.UserRecords.mu.Lock()
		u.UserRecords.state.Records, _ = replace(u.UserRecords.state.Records, *res.Data)
		u.UserRecords.mu.Unlock()
	}
	return res
}

// Logout ends the session and forgets the session user and the selected
// patient, even when the API call fails.
func (u *UserStore) Logout(ctx context.Context) Result[string] {
	res := message(u, struct{}{}, func() (string, error) {
		return u.api.Logout(ctx)
	})
	u.setSession(nil)
	u.setPatient(nil)
	u.Reset()
	return res
}

// FindPatient looks a patient up by unique ID and selects it for new lab
// and x-ray records. It returns nil and clears the selection on failure.
func (u *UserStore) FindPatient(ctx context.Context, uniqueID string) *model.User {
	uniqueID = strings.ToUpper(strings.TrimSpace(uniqueID))
	if uniqueID == "" {
		u.setPatient(nil)
		u.fail(errors.BadRequest("Please enter a patient ID", nil))
		return nil
	}

	u.UserRecords.mu.Lock()
	u.begin()
	u.UserRecords.mu.Unlock()

	patient, err := u.api.FindPatient(ctx, uniqueID)

	u.UserRecords.mu.Lock()
	u.end()
	u.UserRecords.mu.Unlock()

	if err != nil {
		u.setPatient(nil)
		u.fail(err)
		return nil
	}
	u.setPatient(patient)
	return patient
}

// account runs one single-flight account call that answers with a user.
func (u *UserStore) account(ctx context.Context, req interface{}, call func() (*model.User, string, error)) Result[model.User] {
	var user *model.User
	res := message(u, req, func() (string, error) {
		got, msg, err := call()
		user = got
		return msg, err
	})
	return Result[model.User]{Success: res.Success, Data: user, Error: res.Error, Fields: res.Fields}
}

// message validates req, runs call single-flight and shows the server's
// message on success.
func message(u *UserStore, req interface{}, call func() (string, error)) Result[string] {
	s := u.UserRecords
	if err := s.validate.Validate(req); err != nil {
		return rejectMessage(s, err)
	}
	if !s.acquire() {
		return rejectMessage(s, ErrBusy)
	}

	msg, err := call()
	s.release()
	if err != nil {
		return rejectMessage(s, err)
	}

	if msg != "" {
		s.notifier.Notify(notify.Notice{Level: notify.LevelSuccess, Message: msg})
	}
	return Result[string]{Success: true, Data: &msg}
}

func rejectMessage(s *UserRecords, err error) Result[string] {
	return Result[string]{Error: s.fail(err), Fields: Fields(err)}
}

func clone(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
