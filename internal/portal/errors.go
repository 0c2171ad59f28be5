package portal

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidCredentials is the only login failure shown to users. It does not
// reveal whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is raised before any backend call is made.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

// FieldMap returns field name to message.
func (err ValidationError) FieldMap() map[string]string {
	out := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		out[f.Field] = f.Error
	}
	return out
}

func invalid(field, msg string) error {
	return NewValidationError(fmt.Errorf("%s: %s", field, msg), FieldError{Field: field, Error: msg})
}
