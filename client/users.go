package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	session "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
)

// UsersService holds the admin user management operations. The backend
// authorizes every call; the client only forwards the token.
type UsersService struct {
	client *Client
}

// ListOptions pages the user list
type ListOptions struct {
	Skip  int
	Limit int
}

// AddUserRequest creates an account on behalf of an admin
type AddUserRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     session.UserRole `json:"role,omitempty"`
}

// Validate will run validation rules
func (r AddUserRequest) Validate() *goerrors.Error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.By(func(value any) error {
			role, _ := value.(session.UserRole)
			if role == "" || role.IsValid() {
				return nil
			}
			return errors.New("must be one of pending, user or admin")
		})),
	)
	if err != nil {
		return session.NewValidationError("Invalid user", err)
	}
	return nil
}

// List returns the registered accounts
func (s *UsersService) List(ctx context.Context, token string, opts *ListOptions) ([]session.Identity, error) {
	query := url.Values{}
	if opts != nil {
		if opts.Skip > 0 {
			query.Set("skip", strconv.Itoa(opts.Skip))
		}
		if opts.Limit > 0 {
			query.Set("limit", strconv.Itoa(opts.Limit))
		}
	}

	body, err := s.client.doRequest(ctx, call{
		operation: "list_users",
		method:    http.MethodGet,
		path:      s.client.endpoints.Users,
		token:     token,
		query:     query,
	})
	if err != nil {
		return nil, err
	}

	var users []session.Identity
	if isJSONArray(body) {
		err = decodeJSON("list_users", body, &users)
	} else {
		var wrapped struct {
			Users []session.Identity `json:"users"`
			Data  []session.Identity `json:"data"`
		}
		err = decodeJSON("list_users", body, &wrapped)
		users = wrapped.Users
		if users == nil {
			users = wrapped.Data
		}
	}
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateRole changes the role of the account id. The role is sent both as a
// query parameter and as a JSON body, the two forms backends accept.
func (s *UsersService) UpdateRole(ctx context.Context, token, id string, role session.UserRole) (*session.Identity, error) {
	if !role.IsValid() {
		return nil, session.NewValidationError("Invalid role", nil).
			WithMetadata(map[string]any{"role": string(role)})
	}

	body, err := s.client.doRequest(ctx, call{
		operation: "update_user_role",
		method:    http.MethodPut,
		path:      userPath(s.client.endpoints.UserRole, id),
		token:     token,
		query:     url.Values{"role": []string{string(role)}},
		body:      map[string]string{"role": string(role)},
	})
	if err != nil {
		return nil, err
	}

	identity := &session.Identity{}
	if err := decodeJSON("update_user_role", body, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Delete removes the account id
func (s *UsersService) Delete(ctx context.Context, token, id string) error {
	_, err := s.client.doRequest(ctx, call{
		operation: "delete_user",
		method:    http.MethodDelete,
		path:      userPath(s.client.endpoints.User, id),
		token:     token,
	})
	return err
}

// Add creates an account
func (s *UsersService) Add(ctx context.Context, token string, req AddUserRequest) (*session.Identity, error) {
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	body, err := s.client.doRequest(ctx, call{
		operation: "add_user",
		method:    http.MethodPost,
		path:      s.client.endpoints.Users,
		token:     token,
		body:      req,
	})
	if err != nil {
		return nil, err
	}

	identity := &session.Identity{}
	if err := json.Unmarshal(body, identity); err != nil {
		return nil, session.NewTransientError("add_user: malformed response", err)
	}
	return identity, nil
}
