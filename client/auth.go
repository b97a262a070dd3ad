package client

import (
	"context"
	"encoding/json"
	"net/http"

	session "github.com/goliatone/go-auth-session"
)

// authEnvelope covers the token carrying shapes the backends answer with:
// token or access_token, with the identity flat or nested under user.
type authEnvelope struct {
	Token       string            `json:"token"`
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	User        *session.Identity `json:"user"`
}

func (e authEnvelope) token() string {
	if e.Token != "" {
		return e.Token
	}
	return e.AccessToken
}

// decodeAuthBody extracts token and identity from body. Either may be empty.
func decodeAuthBody(operation string, body []byte) (authEnvelope, *session.Identity, error) {
	var env authEnvelope
	if err := decodeJSON(operation, body, &env); err != nil {
		return env, nil, err
	}

	if !env.User.IsZero() {
		return env, env.User.Normalize(), nil
	}

	flat := &session.Identity{}
	if err := json.Unmarshal(body, flat); err != nil {
		return env, nil, session.NewTransientError(operation+": malformed identity", err)
	}
	if flat.IsZero() {
		return env, nil, nil
	}
	return env, flat, nil
}

// SignIn exchanges credentials for a token
func (c *Client) SignIn(ctx context.Context, form session.SignInForm) (*session.SignInResult, error) {
	body, err := c.doRequest(ctx, call{
		operation: "signin",
		method:    http.MethodPost,
		path:      c.endpoints.SignIn,
		body:      form,
	})
	if err != nil {
		return nil, err
	}

	env, identity, err := decodeAuthBody("signin", body)
	if err != nil {
		return nil, err
	}
	if env.token() == "" {
		return nil, session.NewTransientError("signin: response did not include a token", nil)
	}

	return &session.SignInResult{
		Token:     env.token(),
		TokenType: env.TokenType,
		Identity:  identity,
	}, nil
}

// SignUp registers an account. Depending on the backend the answer carries
// only the new identity or a token as well.
func (c *Client) SignUp(ctx context.Context, form session.SignUpForm) (*session.SignUpResponse, error) {
	body, err := c.doRequest(ctx, call{
		operation: "signup",
		method:    http.MethodPost,
		path:      c.endpoints.SignUp,
		body:      form,
	})
	if err != nil {
		return nil, err
	}

	env, identity, err := decodeAuthBody("signup", body)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, session.NewTransientError("signup: response did not include an identity", session.ErrIdentityNotFound)
	}

	return &session.SignUpResponse{
		Token:    env.token(),
		Identity: identity,
	}, nil
}

// Resolve fetches the identity token belongs to with a single request
func (c *Client) Resolve(ctx context.Context, token string) (*session.Identity, error) {
	if token == "" {
		return nil, session.NewUnauthorizedError("resolve: empty token", session.ErrNoToken)
	}

	body, err := c.doRequest(ctx, call{
		operation: "resolve",
		method:    http.MethodGet,
		path:      c.endpoints.Me,
		token:     token,
		resolving: true,
	})
	if err != nil {
		return nil, err
	}

	_, identity, err := decodeAuthBody("resolve", body)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, session.NewTransientError("resolve: response did not include an identity", session.ErrIdentityNotFound)
	}
	return identity, nil
}

// UpdateProfile sends the profile form. The returned identity may be nil
// when the backend answers without a body.
func (c *Client) UpdateProfile(ctx context.Context, token string, form session.UpdateProfileForm) (*session.Identity, error) {
	body, err := c.doRequest(ctx, call{
		operation: "update_profile",
		method:    http.MethodPut,
		path:      c.endpoints.Profile,
		token:     token,
		body:      form,
	})
	if err != nil {
		return nil, err
	}

	if len(body) == 0 {
		return nil, nil
	}

	_, identity, err := decodeAuthBody("update_profile", body)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// UpdatePassword changes the account password
func (c *Client) UpdatePassword(ctx context.Context, token string, form session.UpdatePasswordForm) error {
	_, err := c.doRequest(ctx, call{
		operation: "update_password",
		method:    http.MethodPut,
		path:      c.endpoints.Password,
		token:     token,
		body:      form,
	})
	return err
}
