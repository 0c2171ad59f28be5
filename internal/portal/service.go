// Package portal holds the domain access functions: one operation per entity
// and verb, each calling the remote service and mapping rows to the client
// model. Operations that touch several backend tables run as sagas with
// explicit compensations.
package portal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"schoolportal/internal/authevents"
	"schoolportal/internal/mapping"
	"schoolportal/internal/metrics"
	"schoolportal/internal/remote"
)

// Options configures a Service.
type Options struct {
	// AdminUsername is the login alias resolved to AdminEmail.
	AdminUsername string
	AdminEmail    string
	// Location is used to split and stamp dates.
	Location *time.Location
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Service implements the domain access functions against one backend.
type Service struct {
	backend remote.Backend
	opts    Options
}

// NewService creates a Service, filling unset options with defaults.
func NewService(backend remote.Backend, opts Options) *Service {
	if opts.AdminUsername == "" {
		opts.AdminUsername = "principal"
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = "principal@mmps"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{backend: backend, opts: opts}
}

// Location returns the zone event dates are read in.
func (s *Service) Location() *time.Location { return s.opts.Location }

// AuthEvents streams sign-in and sign-out events until ctx is done.
func (s *Service) AuthEvents(ctx context.Context) (<-chan authevents.Event, error) {
	return s.backend.OnAuthStateChange(ctx)
}

func (s *Service) today() string {
	return s.opts.Now().In(s.opts.Location).Format(mapping.DateLayout)
}

func (s *Service) newSaga(op string, steps ...Step) saga {
	return saga{op: op, steps: steps, onCompensated: s.opts.Metrics.Compensated}
}

func byID(id string) remote.Filter { return remote.Eq("id", id) }

// single returns the one row of a write that targets a single record.
func single(rows []remote.Row, op, table string) (remote.Row, error) {
	if len(rows) == 0 {
		return nil, remote.NotFound(op, table)
	}
	return rows[0], nil
}

func requireID(id string) error {
	if id == "" {
		return invalid("id", "id is required")
	}
	return nil
}

// patchRow validates a client patch against cols and returns the backend
// row. into receives the decoded patch so typed rules can be checked.
func patchRow(p mapping.Patch, cols mapping.ColumnSet, into any) (remote.Row, error) {
	p = p.Defined()
	delete(p, "id")
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, NewValidationError(errors.Wrap(err, "encode patch"))
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return nil, NewValidationError(errors.Wrap(err, "decode patch"))
	}
	row, _ := mapping.ToBackendShape(p).(map[string]any)
	if unknown := cols.Unknown(row); len(unknown) > 0 {
		fields := make([]FieldError, 0, len(unknown))
		for _, k := range unknown {
			fields = append(fields, FieldError{Field: mapping.CamelCase(k), Error: "unknown field"})
		}
		return nil, NewValidationError(errors.Errorf("unknown field %s", fields[0].Field), fields...)
	}
	return row, nil
}

// present keeps only the field errors for keys in p; a patch is checked
// against the rules of the fields it sets.
func present(p mapping.Patch, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var kept []FieldError
	for _, f := range verr.Fields {
		root := f.Field
		for i, r := range root {
			if r == '.' || r == '[' {
				root = root[:i]
				break
			}
		}
		if _, ok := p[root]; ok {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return NewValidationError(errors.Errorf("invalid %s", kept[0].Field), kept...)
}
