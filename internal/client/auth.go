package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jwalitptl/hms/internal/model"
)

// userEnvelope is the data shape of the account endpoints.
type userEnvelope struct {
	User *model.User `json:"user"`
}

func (c *Client) userCall(ctx context.Context, method, path string, body interface{}) (*model.User, string, error) {
	var out userEnvelope
	msg, err := c.send(ctx, method, path, body, &out)
	if err != nil {
		return nil, "", err
	}
	return out.User, msg, nil
}

// Me asks the API who the current session belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out userEnvelope
	if _, err := c.get(ctx, "/user/me", nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "Not authenticated"}
	}
	return out.User, nil
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.User, string, error) {
	return c.userCall(ctx, http.MethodPost, "/user/register", req)
}

// Login stores the session cookie in the client's jar on success.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.User, string, error) {
	return c.userCall(ctx, http.MethodPost, "/user/login", req)
}

func (c *Client) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) (*model.User, string, error) {
	return c.userCall(ctx, http.MethodPost, "/user/verifyEmail", req)
}

func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	return c.send(ctx, http.MethodPost, "/user/resendVerification", model.ForgotRequest{Email: email}, nil)
}

func (c *Client) Forgot(ctx context.Context, req model.ForgotRequest) (string, error) {
	return c.send(ctx, http.MethodPost, "/user/forgot", req, nil)
}

func (c *Client) VerifyForgot(ctx context.Context, req model.VerifyForgotRequest) (*model.ResetTicket, string, error) {
	var ticket model.ResetTicket
	msg, err := c.send(ctx, http.MethodPost, "/user/verifyForgot", req, &ticket)
	if err != nil {
		return nil, "", err
	}
	return &ticket, msg, nil
}

func (c *Client) NewPassword(ctx context.Context, req model.NewPasswordRequest) (string, error) {
	return c.send(ctx, http.MethodPost, "/user/newPassword", req, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) (*model.User, string, error) {
	return c.userCall(ctx, http.MethodPut, "/user/update-profile", req)
}

func (c *Client) Logout(ctx context.Context) (string, error) {
	env, err := c.call(c.request(ctx), http.MethodGet, "/user/logout")
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// FindPatient looks a patient up by the human-readable unique ID.
func (c *Client) FindPatient(ctx context.Context, uniqueID string) (*model.User, error) {
	var out userEnvelope
	if _, err := c.get(ctx, "/user/patient/"+url.PathEscape(uniqueID), nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &APIError{Status: http.StatusNotFound, Message: "Patient not found"}
	}
	return out.User, nil
}

// Users is the admin user directory.
type Users struct {
	c *Client
}

func (c *Client) Users() Users {
	return Users{c: c}
}

func (u Users) List(ctx context.Context, q model.ListQuery) (model.Page[model.User], error) {
	return fetchPage[model.User](ctx, u.c, "/user/all", q)
}

func (u Users) Search(ctx context.Context, q model.ListQuery) (model.Page[model.User], error) {
	return u.List(ctx, q)
}

func (u Users) Get(ctx context.Context, id string) (*model.User, error) {
	var out userEnvelope
	if _, err := u.c.get(ctx, "/user/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Create registers a new account. It does not log the caller in.
func (u Users) Create(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	user, _, err := u.c.Register(ctx, req)
	return user, err
}

func (u Users) Update(ctx context.Context, id string, req model.UpdateUserRequest) (*model.User, error) {
	user, _, err := u.c.userCall(ctx, http.MethodPut, "/user/"+url.PathEscape(id), req)
	return user, err
}

func (u Users) Delete(ctx context.Context, id string) error {
	_, err := u.c.send(ctx, http.MethodDelete, "/user/"+url.PathEscape(id), nil, nil)
	return err
}
