// Package remote defines the contract of the hosted data and authentication
// service the portal talks to. Adapters live in the subpackages.
package remote

import (
	"context"
	"time"

	"schoolportal/internal/authevents"
	"schoolportal/internal/mapping"
)

// Row is one table row keyed by snake_case column name.
type Row = mapping.Row

// FilterOp is the comparison applied by a Filter.
type FilterOp string

const (
	OpEq FilterOp = "eq"
	OpIn FilterOp = "in"
)

// Filter restricts a query or mutation to matching rows.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// In matches rows whose column is one of values.
func In(column string, values ...string) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Order sorts query results.
type Order struct {
	Column    string
	Ascending bool
}

// Embed joins the child rows of a one-to-many relation under Alias, e.g.
// a route's bus_stops under "stops".
type Embed struct {
	Alias      string
	Table      string
	ForeignKey string
	OrderBy    string
}

// Query describes a select.
type Query struct {
	Columns []string
	Filters []Filter
	Order   []Order
	Embed   []Embed
	Limit   int
}

// Tables is row-level CRUD on named tables.
type Tables interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	Update(ctx context.Context, table string, patch Row, filters ...Filter) ([]Row, error)
	Delete(ctx context.Context, table string, filters ...Filter) error
	// Upsert inserts rows, replacing existing rows that collide on the
	// onConflict columns.
	Upsert(ctx context.Context, table string, onConflict []string, rows ...Row) ([]Row, error)
}

// AuthUser is an identity held by the authentication subsystem.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is issued on a successful sign-in.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        AuthUser  `json:"user"`
}

// Auth signs users in and out and reports those transitions as events.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(ctx context.Context) (<-chan authevents.Event, error)
}

// Admin is the elevated-privilege channel for managing identities.
type Admin interface {
	CreateUser(ctx context.Context, email, password string) (AuthUser, error)
	// UpdateUser changes only the non-empty fields.
	UpdateUser(ctx context.Context, id, email, password string) (AuthUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// Backend bundles the three channels of one remote service.
type Backend interface {
	Tables
	Auth
	Admin
}

// SelectOne returns the single row matching q or a not-found TransportError.
func SelectOne(ctx context.Context, t Tables, table string, q Query) (Row, error) {
	q.Limit = 1
	rows, err := t.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, NotFound("select", table)
	}
	return rows[0], nil
}

// SessionEvent builds the event published for a sign-in.
func SessionEvent(s Session) authevents.Event {
	return authevents.Event{
		Type:        authevents.SignedIn,
		UserID:      s.User.ID,
		Email:       s.User.Email,
		AccessToken: s.AccessToken,
		At:          time.Now().UTC(),
	}
}
