package api

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/suqaba/suqaba-cli/internal/models"
)

// Login exchanges email and password for an access token.
// The endpoint takes an OAuth2 password form, so the email goes in "username".
// Any 4xx is reported as *AuthError carrying the server's message.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out models.AuthResponse
	err := c.doJSON(ctx, request{
		op:          "login",
		method:      nethttp.MethodPost,
		path:        "/auth/login",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, nil, &out)
	if err != nil {
		return nil, asAuthFailure("login", err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, &AuthError{Op: "login", Message: "server returned no access token"}
	}
	return &out, nil
}

// Register creates an account and returns its first access token.
func (c *Client) Register(ctx context.Context, email, password, name string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.doJSON(ctx, request{
		op:     "register",
		method: nethttp.MethodPost,
		path:   "/auth/register",
	}, models.RegisterRequest{Email: email, Password: password, Name: name}, &out)
	if err != nil {
		return nil, asAuthFailure("register", err)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, &AuthError{Op: "register", Message: "server returned no access token"}
	}
	return &out, nil
}

// Me returns the identity and job counters for cred.
func (c *Client) Me(ctx context.Context, cred Credential) (*models.User, error) {
	var user models.User
	err := c.doJSON(ctx, request{
		op:        "get current user",
		method:    nethttp.MethodGet,
		path:      "/auth/me",
		cred:      cred,
		protected: true,
	}, nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// asAuthFailure turns client-side rejections of a credential exchange
// (bad password, email taken, malformed input) into *AuthError.
// Network errors and 5xx keep their own types.
func asAuthFailure(op string, err error) error {
	var se *ServerError
	if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
		msg := se.Message
		if msg == genericServerMessage {
			msg = genericAuthMessage
		}
		return &AuthError{Op: op, Message: msg}
	}
	return err
}
