package session

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// SignInForm payload
type SignInForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignInForm) Validate() *goerrors.Error {
	return validateForm("Invalid sign in request", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Email,
				validation.Required,
				is.Email,
			),
			validation.Field(
				&r.Password,
				validation.Required,
			),
		)
	})
}

// SignUpForm payload
type SignUpForm struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ProfileImageURL string `form:"profile_image_url" json:"profile_image_url,omitempty"`
}

// Validate will run validation rules
func (r SignUpForm) Validate() *goerrors.Error {
	return validateForm("Invalid sign up request", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Name,
				validation.Required,
				validation.Length(1, 128),
			),
			validation.Field(
				&r.Email,
				validation.Required,
				is.Email,
			),
			validation.Field(
				&r.Password,
				validation.Required,
			),
		)
	})
}

// WithDefaults fills optional fields the backend expects
func (r SignUpForm) WithDefaults() SignUpForm {
	if strings.TrimSpace(r.ProfileImageURL) == "" {
		r.ProfileImageURL = DefaultProfileImage
	}
	return r
}

// UpdateProfileForm payload
type UpdateProfileForm struct {
	Name            string `form:"name" json:"name"`
	ProfileImageURL string `form:"profile_image_url" json:"profile_image_url"`
}

// Validate will run validation rules
func (r UpdateProfileForm) Validate() *goerrors.Error {
	return validateForm("Invalid profile update", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Name,
				validation.Required,
				validation.Length(1, 128),
			),
		)
	})
}

// UpdatePasswordForm payload
type UpdatePasswordForm struct {
	Password    string `form:"password" json:"password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r UpdatePasswordForm) Validate() *goerrors.Error {
	return validateForm("Invalid password update", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(
				&r.Password,
				validation.Required,
			),
			validation.Field(
				&r.NewPassword,
				validation.Required,
			),
		)
	})
}

func validateForm(message string, rules func() error) *goerrors.Error {
	err := rules()
	if err == nil {
		return nil
	}

	richErr := NewValidationError(message, err)

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for field := range fieldErrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			richErr.ValidationErrors = append(richErr.ValidationErrors, goerrors.FieldError{
				Field:   field,
				Message: strings.TrimSpace(fieldErrs[field].Error()),
			})
		}
	}

	return richErr
}
