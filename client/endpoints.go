package client

import (
	"net/url"
	"strings"
)

// Endpoints are the paths of the auth API, relative to the base URL
type Endpoints struct {
	SignIn   string `json:"sign_in" yaml:"sign_in" mapstructure:"sign_in"`
	SignUp   string `json:"sign_up" yaml:"sign_up" mapstructure:"sign_up"`
	Me       string `json:"me" yaml:"me" mapstructure:"me"`
	Profile  string `json:"profile" yaml:"profile" mapstructure:"profile"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	Users    string `json:"users" yaml:"users" mapstructure:"users"`
	UserRole string `json:"user_role" yaml:"user_role" mapstructure:"user_role"`
	User     string `json:"user" yaml:"user" mapstructure:"user"`
}

// DefaultEndpoints returns the paths served by the reference backend
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SignIn:   "/auth/login",
		SignUp:   "/auth/signup",
		Me:       "/users/me",
		Profile:  "/users/profile",
		Password: "/users/password",
		Users:    "/users",
		UserRole: "/users/{id}/role",
		User:     "/users/{id}",
	}
}

// withDefaults fills empty paths with the default ones
func (e Endpoints) withDefaults() Endpoints {
	def := DefaultEndpoints()
	if e.SignIn == "" {
		e.SignIn = def.SignIn
	}
	if e.SignUp == "" {
		e.SignUp = def.SignUp
	}
	if e.Me == "" {
		e.Me = def.Me
	}
	if e.Profile == "" {
		e.Profile = def.Profile
	}
	if e.Password == "" {
		e.Password = def.Password
	}
	if e.Users == "" {
		e.Users = def.Users
	}
	if e.UserRole == "" {
		e.UserRole = def.UserRole
	}
	if e.User == "" {
		e.User = def.User
	}
	return e
}

// userPath expands the {id} placeholder of tpl
func userPath(tpl, id string) string {
	return strings.ReplaceAll(tpl, "{id}", url.PathEscape(id))
}
