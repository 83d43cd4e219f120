package apisvc

import (
	"context"
	"net/http"

	"github.com/trezcool/cems/core/auth"
)

var _ auth.Backend = (*Client)(nil)

func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	var res auth.LoginResult
	err := c.Send(ctx, "/auth/login/", RequestOptions{Method: http.MethodPost, Body: req}, &res)
	return res, err
}

func (c *Client) RegisterStudent(ctx context.Context, req auth.StudentRegistration) (auth.RegistrationResult, error) {
	var res auth.RegistrationResult
	err := c.Send(ctx, "/auth/register/student/", RequestOptions{Method: http.MethodPost, Body: req}, &res)
	return res, err
}

func (c *Client) CurrentUser(ctx context.Context, authz auth.Authorization) (auth.CurrentUser, error) {
	var res auth.CurrentUser
	err := c.Send(ctx, "/auth/me/", RequestOptions{}.Authorized(authz), &res)
	return res, err
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body := auth.PasswordResetRequest{Email: email}
	return c.Send(ctx, "/auth/password-reset/", RequestOptions{Method: http.MethodPost, Body: body}, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, req auth.PasswordResetConfirm) error {
	return c.Send(ctx, "/auth/password-reset/confirm/", RequestOptions{Method: http.MethodPost, Body: req}, nil)
}
