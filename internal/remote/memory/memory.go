// Package memory is an in-process remote.Backend. It backs local development
// (BACKEND=memory) and the tests of the packages above it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolportal/internal/authevents"
	"schoolportal/internal/remote"
)

// Call records one operation received by the backend.
type Call struct {
	Op    string
	Table string
	ID    string
}

type identity struct {
	user     remote.AuthUser
	password string
}

type failure struct {
	op    string
	table string
	err   error
}

// Backend keeps tables, identities and the session in memory.
type Backend struct {
	mu         sync.Mutex
	tables     map[string][]remote.Row
	unique     map[string][][]string
	identities map[string]*identity
	session    *remote.Session
	failures   []failure
	calls      []Call
	bus        authevents.Bus
	sessionTTL time.Duration
}

// New returns an empty backend publishing auth events on bus. A nil bus gets
// an in-memory one.
func New(bus authevents.Bus) *Backend {
	if bus == nil {
		bus = authevents.NewInMemory(16)
	}
	return &Backend{
		tables:     make(map[string][]remote.Row),
		unique:     make(map[string][][]string),
		identities: make(map[string]*identity),
		bus:        bus,
		sessionTTL: time.Hour,
	}
}

// Unique makes inserts into table fail when cols collide with an existing row.
func (b *Backend) Unique(table string, cols ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unique[table] = append(b.unique[table], cols)
}

// FailOn makes the next call of op ("select", "insert", "update", "delete",
// "upsert", "sign_in", "create_user", "update_user", "delete_user") on
// table fail with err. Identity operations use an empty table.
func (b *Backend) FailOn(op, table string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{op: op, table: table, err: err})
}

// Calls returns the operations received so far, in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount counts received calls of op on table.
func (b *Backend) CallCount(op, table string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Op == op && c.Table == table {
			n++
		}
	}
	return n
}

// Rows returns a copy of every row of table.
func (b *Backend) Rows(table string) []remote.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyRows(b.tables[table])
}

// Seed inserts rows without recording calls or checking failures.
func (b *Backend) Seed(table string, rows ...remote.Row) []remote.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyRow(b.insertLocked(table, r)))
	}
	return out
}

// Identity returns the identity registered for email.
func (b *Backend) Identity(email string) (remote.AuthUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.identities {
		if strings.EqualFold(id.user.Email, email) {
			return id.user, true
		}
	}
	return remote.AuthUser{}, false
}

// IdentityCount returns the number of registered identities.
func (b *Backend) IdentityCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.identities)
}

// Session returns the current session, if any.
func (b *Backend) Session() (remote.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return remote.Session{}, false
	}
	return *b.session, true
}

func (b *Backend) enter(op, table, id string) error {
	b.calls = append(b.calls, Call{Op: op, Table: table, ID: id})
	for i, f := range b.failures {
		if f.op == op && f.table == table {
			b.failures = append(b.failures[:i], b.failures[i+1:]...)
			return remote.Wrap(op, table, f.err)
		}
	}
	return nil
}

// Tables

func (b *Backend) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("select", table, ""); err != nil {
		return nil, err
	}
	var out []remote.Row
	for _, r := range b.tables[table] {
		if matches(r, q.Filters) {
			out = append(out, project(r, q.Columns))
		}
	}
	sortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for _, e := range q.Embed {
		for _, r := range out {
			var children []remote.Row
			for _, c := range b.tables[e.Table] {
				if fmt.Sprint(c[e.ForeignKey]) == fmt.Sprint(r["id"]) {
					children = append(children, copyRow(c))
				}
			}
			if e.OrderBy != "" {
				sortRows(children, []remote.Order{{Column: e.OrderBy, Ascending: true}})
			}
			if children == nil {
				children = []remote.Row{}
			}
			r[e.Alias] = children
		}
	}
	if out == nil {
		out = []remote.Row{}
	}
	return out, nil
}

func (b *Backend) Insert(ctx context.Context, table string, rows ...remote.Row) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("insert", table, ""); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if cols := b.conflict(table, r, ""); cols != nil {
			return nil, &remote.TransportError{Op: "insert", Table: table, Status: 409, Code: "23505",
				Message: fmt.Sprintf("duplicate key value violates unique constraint on (%s)", strings.Join(cols, ", "))}
		}
	}
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyRow(b.insertLocked(table, r)))
	}
	return out, nil
}

func (b *Backend) insertLocked(table string, r remote.Row) remote.Row {
	row := copyRow(r)
	if s, _ := row["id"].(string); s == "" {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC()
	}
	b.tables[table] = append(b.tables[table], row)
	return row
}

func (b *Backend) conflict(table string, r remote.Row, skipID string) []string {
	for _, cols := range b.unique[table] {
		for _, existing := range b.tables[table] {
			if skipID != "" && fmt.Sprint(existing["id"]) == skipID {
				continue
			}
			if sameKey(existing, r, cols) {
				return cols
			}
		}
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, table string, patch remote.Row, filters ...remote.Filter) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("update", table, filterID(filters)); err != nil {
		return nil, err
	}
	out := []remote.Row{}
	for _, r := range b.tables[table] {
		if !matches(r, filters) {
			continue
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			r[k] = v
		}
		out = append(out, copyRow(r))
	}
	return out, nil
}

func (b *Backend) Delete(ctx context.Context, table string, filters ...remote.Filter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("delete", table, filterID(filters)); err != nil {
		return err
	}
	kept := b.tables[table][:0]
	for _, r := range b.tables[table] {
		if !matches(r, filters) {
			kept = append(kept, r)
		}
	}
	b.tables[table] = kept
	return nil
}

func (b *Backend) Upsert(ctx context.Context, table string, onConflict []string, rows ...remote.Row) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("upsert", table, ""); err != nil {
		return nil, err
	}
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		var target remote.Row
		for _, existing := range b.tables[table] {
			if sameKey(existing, r, onConflict) {
				target = existing
				break
			}
		}
		if target == nil {
			out = append(out, copyRow(b.insertLocked(table, r)))
			continue
		}
		for k, v := range r {
			if k == "id" {
				continue
			}
			target[k] = v
		}
		out = append(out, copyRow(target))
	}
	return out, nil
}

// Auth

// AddIdentity registers an identity directly, bypassing call recording.
func (b *Backend) AddIdentity(email, password string) remote.AuthUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := remote.AuthUser{ID: uuid.NewString(), Email: strings.ToLower(email)}
	b.identities[u.ID] = &identity{user: u, password: password}
	return u
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (remote.Session, error) {
	b.mu.Lock()
	if err := b.enter("sign_in", "", email); err != nil {
		b.mu.Unlock()
		return remote.Session{}, err
	}
	var found *identity
	for _, id := range b.identities {
		if strings.EqualFold(id.user.Email, email) {
			found = id
			break
		}
	}
	if found == nil || found.password != password {
		b.mu.Unlock()
		return remote.Session{}, remote.ErrBadCredentials
	}
	s := remote.Session{
		AccessToken: uuid.NewString(),
		ExpiresAt:   time.Now().Add(b.sessionTTL).UTC(),
		User:        found.user,
	}
	b.session = &s
	b.mu.Unlock()

	if err := b.bus.Publish(ctx, remote.SessionEvent(s)); err != nil {
		return remote.Session{}, err
	}
	return s, nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	if err := b.enter("sign_out", "", ""); err != nil {
		b.mu.Unlock()
		return err
	}
	b.session = nil
	b.mu.Unlock()
	return b.bus.Publish(ctx, authevents.Event{Type: authevents.SignedOut, At: time.Now().UTC()})
}

func (b *Backend) OnAuthStateChange(ctx context.Context) (<-chan authevents.Event, error) {
	return b.bus.Subscribe(ctx)
}

// Admin

func (b *Backend) CreateUser(ctx context.Context, email, password string) (remote.AuthUser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("create_user", "", email); err != nil {
		return remote.AuthUser{}, err
	}
	if email == "" || password == "" {
		return remote.AuthUser{}, &remote.TransportError{Op: "create_user", Status: 400, Message: "email and password are required"}
	}
	for _, id := range b.identities {
		if strings.EqualFold(id.user.Email, email) {
			return remote.AuthUser{}, &remote.TransportError{Op: "create_user", Status: 422,
				Message: "a user with this email address has already been registered"}
		}
	}
	u := remote.AuthUser{ID: uuid.NewString(), Email: strings.ToLower(email)}
	b.identities[u.ID] = &identity{user: u, password: password}
	return u, nil
}

func (b *Backend) UpdateUser(ctx context.Context, id, email, password string) (remote.AuthUser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("update_user", "", id); err != nil {
		return remote.AuthUser{}, err
	}
	ident, ok := b.identities[id]
	if !ok {
		return remote.AuthUser{}, &remote.TransportError{Op: "update_user", Status: 404, Message: "user not found"}
	}
	if email != "" {
		ident.user.Email = strings.ToLower(email)
	}
	if password != "" {
		ident.password = password
	}
	return ident.user, nil
}

func (b *Backend) DeleteUser(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("delete_user", "", id); err != nil {
		return err
	}
	if _, ok := b.identities[id]; !ok {
		return &remote.TransportError{Op: "delete_user", Status: 404, Message: "user not found"}
	}
	delete(b.identities, id)
	return nil
}

// helpers

func matches(r remote.Row, filters []remote.Filter) bool {
	for _, f := range filters {
		got := fmt.Sprint(r[f.Column])
		switch f.Op {
		case remote.OpIn:
			values, _ := f.Value.([]string)
			found := false
			for _, v := range values {
				if v == got {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if r[f.Column] == nil && f.Value == nil {
				continue
			}
			if r[f.Column] == nil || got != fmt.Sprint(f.Value) {
				return false
			}
		}
	}
	return true
}

func sameKey(a, b remote.Row, cols []string) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if fmt.Sprint(a[c]) != fmt.Sprint(b[c]) {
			return false
		}
	}
	return true
}

func filterID(filters []remote.Filter) string {
	for _, f := range filters {
		if f.Column == "id" && f.Op == remote.OpEq {
			return fmt.Sprint(f.Value)
		}
	}
	return ""
}

func sortRows(rows []remote.Row, order []remote.Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compare(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func project(r remote.Row, cols []string) remote.Row {
	if len(cols) == 0 || (len(cols) == 1 && cols[0] == "*") {
		return copyRow(r)
	}
	out := make(remote.Row, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func copyRow(r remote.Row) remote.Row {
	out := make(remote.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func copyRows(rows []remote.Row) []remote.Row {
	out := make([]remote.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyRow(r))
	}
	return out
}

var _ remote.Backend = (*Backend)(nil)
