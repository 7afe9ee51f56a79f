package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/erazemk/lofoph/internal/model"
)

type userResponse struct {
	Data struct {
		User *model.User `json:"user"`
		Doc  *model.User `json:"doc"`
	} `json:"data"`
}

// user returns whichever of the two user fields the API populated.
func (r *userResponse) user() *model.User {
	if r.Data.User != nil {
		return r.Data.User
	}
	return r.Data.Doc
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Me returns the user owning the current credential. A missing or expired
// credential yields an error matching ErrUnauthorized.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "users/me", nil)
	if err != nil {
		return nil, err
	}
	return c.doUser(req, "checking session")
}

// Login authenticates with email and password. On success the API's
// credential cookie is stored in the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "users/login", loginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return c.doUser(req, "logging in")
}

// Signup registers a new account and logs it in.
func (c *Client) Signup(ctx context.Context, name, email, password, passwordConfirm string) (*model.User, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "users/signup", signupRequest{
		Name:            name,
		Email:           email,
		Password:        password,
		PasswordConfirm: passwordConfirm,
	})
	if err != nil {
		return nil, err
	}
	return c.doUser(req, "signing up")
}

// Logout asks the API to invalidate the current credential. The response
// body is ignored.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "users/logout", nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

func (c *Client) doUser(req *http.Request, op string) (*model.User, error) {
	var resp userResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u := resp.user()
	if u == nil || u.ID == "" {
		return nil, fmt.Errorf("%s: %w: no user in response", op, ErrMalformedResponse)
	}
	return u, nil
}
