package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// CodeNoRows is the PostgREST code for a single-row request that matched nothing.
const CodeNoRows = "PGRST116"

// TransportError wraps any failure reported by, or on the way to, the
// remote service.
type TransportError struct {
	Op      string
	Table   string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	target := e.Op
	if e.Table != "" {
		target += " " + e.Table
	}
	switch {
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("remote: %s: %s (%s)", target, e.Message, e.Code)
	case e.Message != "":
		return fmt.Sprintf("remote: %s: %s", target, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote: %s: %v", target, e.Err)
	default:
		return fmt.Sprintf("remote: %s failed (%d)", target, e.Status)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFound reports that a single-row read matched nothing.
func NotFound(op, table string) error {
	return &TransportError{Op: op, Table: table, Status: http.StatusNotAcceptable, Code: CodeNoRows, Message: "no rows returned"}
}

// Wrap turns err into a TransportError unless it already is one.
func Wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Table: table, Err: err}
}

// IsNotFound reports whether err is a no-rows TransportError.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Code == CodeNoRows
}

// ErrBadCredentials is returned by Auth.SignInWithPassword on a wrong email
// or password.
var ErrBadCredentials = errors.New("invalid login credentials")
