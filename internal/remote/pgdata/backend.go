// Package pgdata is a self-hosted remote.Backend on PostgreSQL. Tables are
// plain SQL tables; identities live in auth_users with bcrypt hashes and
// sessions are signed JWTs.
package pgdata

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"schoolportal/internal/auth"
	"schoolportal/internal/authevents"
	"schoolportal/internal/remote"
)

//go:embed schema.sql
var schema string

// Options configures session issuance.
type Options struct {
	Issuer     string
	SigningKey string
	SessionTTL time.Duration
}

// Backend implements remote.Backend on a *sql.DB opened with the pgx driver.
type Backend struct {
	db   *sql.DB
	bus  authevents.Bus
	opts Options

	mu      sync.RWMutex
	session *remote.Session
}

// New creates a backend. A nil bus gets an in-memory one.
func New(db *sql.DB, bus authevents.Bus, opts Options) *Backend {
	if bus == nil {
		bus = authevents.NewInMemory(16)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	return &Backend{db: db, bus: bus, opts: opts}
}

// Migrate creates the tables if they do not exist.
func (b *Backend) Migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "apply schema")
}

// Session returns the session of the last successful sign-in.
func (b *Backend) Session() (remote.Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return remote.Session{}, false
	}
	return *b.session, true
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRows(ctx context.Context, q queryer, stmt string, args []any) ([]remote.Row, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []remote.Row{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		row := remote.Row{}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// wrap keeps the SQLSTATE of Postgres errors as the TransportError code.
func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &remote.TransportError{Op: op, Table: table, Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}
	return remote.Wrap(op, table, err)
}

// Tables

func (b *Backend) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	stmt, args := selectSQL(table, q)
	rows, err := queryRows(ctx, b.db, stmt, args)
	if err != nil {
		return nil, wrap("select", table, err)
	}
	if len(q.Columns) > 0 {
		for i, r := range rows {
			rows[i] = project(r, q.Columns, q.Embed)
		}
	}
	return rows, nil
}

func project(r remote.Row, cols []string, embeds []remote.Embed) remote.Row {
	out := remote.Row{}
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	for _, e := range embeds {
		out[e.Alias] = r[e.Alias]
	}
	return out
}

// inTx runs fn in one transaction so multi-row writes are all-or-nothing.
func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (b *Backend) Insert(ctx context.Context, table string, rows ...remote.Row) ([]remote.Row, error) {
	out := []remote.Row{}
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			stmt, args := insertSQL(table, r)
			inserted, err := queryRows(ctx, tx, stmt, args)
			if err != nil {
				return err
			}
			out = append(out, inserted...)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("insert", table, err)
	}
	return out, nil
}

func (b *Backend) Update(ctx context.Context, table string, patch remote.Row, filters ...remote.Filter) ([]remote.Row, error) {
	if len(patch) == 0 {
		return b.Select(ctx, table, remote.Query{Filters: filters})
	}
	stmt, args := updateSQL(table, patch, filters)
	rows, err := queryRows(ctx, b.db, stmt, args)
	if err != nil {
		return nil, wrap("update", table, err)
	}
	return rows, nil
}

func (b *Backend) Delete(ctx context.Context, table string, filters ...remote.Filter) error {
	stmt, args := deleteSQL(table, filters)
	if _, err := b.db.ExecContext(ctx, stmt, args...); err != nil {
		return wrap("delete", table, err)
	}
	return nil
}

func (b *Backend) Upsert(ctx context.Context, table string, onConflict []string, rows ...remote.Row) ([]remote.Row, error) {
	out := []remote.Row{}
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			stmt, args := upsertSQL(table, onConflict, r)
			upserted, err := queryRows(ctx, tx, stmt, args)
			if err != nil {
				return err
			}
			out = append(out, upserted...)
		}
		return nil
	})
	if err != nil {
		return nil, wrap("upsert", table, err)
	}
	return out, nil
}

// Auth

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (remote.Session, error) {
	var (
		id, stored, hash string
	)
	err := b.db.QueryRowContext(ctx, `
		SELECT id::text, email, password_hash
		FROM auth_users
		WHERE lower(email) = lower($1)
	`, email).Scan(&id, &stored, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Session{}, remote.ErrBadCredentials
	}
	if err != nil {
		return remote.Session{}, wrap("sign_in", "auth_users", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return remote.Session{}, remote.ErrBadCredentials
	}

	pair, err := auth.Issue(auth.Identity{Subject: id, Email: stored, Role: "authenticated"},
		b.opts.Issuer, b.opts.SigningKey, b.opts.SessionTTL, b.opts.SessionTTL)
	if err != nil {
		return remote.Session{}, errors.Wrap(err, "issue session")
	}
	s := remote.Session{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExp.UTC(),
		User:        remote.AuthUser{ID: id, Email: stored},
	}
	b.mu.Lock()
	b.session = &s
	b.mu.Unlock()

	if err := b.bus.Publish(ctx, remote.SessionEvent(s)); err != nil {
		return remote.Session{}, errors.Wrap(err, "publish sign-in")
	}
	return s, nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	return b.bus.Publish(ctx, authevents.Event{Type: authevents.SignedOut, At: time.Now().UTC()})
}

func (b *Backend) OnAuthStateChange(ctx context.Context) (<-chan authevents.Event, error) {
	return b.bus.Subscribe(ctx)
}

// Admin

func (b *Backend) CreateUser(ctx context.Context, email, password string) (remote.AuthUser, error) {
	if email == "" || password == "" {
		return remote.AuthUser{}, &remote.TransportError{Op: "create_user", Status: 400, Message: "email and password are required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return remote.AuthUser{}, errors.Wrap(err, "hash password")
	}
	u := remote.AuthUser{ID: uuid.NewString(), Email: strings.ToLower(email)}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO auth_users (id, email, password_hash)
		VALUES ($1, $2, $3)
	`, u.ID, u.Email, string(hash))
	if err != nil {
		return remote.AuthUser{}, wrap("create_user", "auth_users", err)
	}
	return u, nil
}

func (b *Backend) UpdateUser(ctx context.Context, id, email, password string) (remote.AuthUser, error) {
	var hash *string
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return remote.AuthUser{}, errors.Wrap(err, "hash password")
		}
		s := string(h)
		hash = &s
	}
	var mail *string
	if email != "" {
		m := strings.ToLower(email)
		mail = &m
	}

	var u remote.AuthUser
	err := b.db.QueryRowContext(ctx, `
		UPDATE auth_users
		SET email = COALESCE($2, email), password_hash = COALESCE($3, password_hash), updated_at = NOW()
		WHERE id = $1
		RETURNING id::text, email
	`, id, mail, hash).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.AuthUser{}, &remote.TransportError{Op: "update_user", Table: "auth_users", Status: 404, Message: "user not found"}
	}
	if err != nil {
		return remote.AuthUser{}, wrap("update_user", "auth_users", err)
	}
	return u, nil
}

func (b *Backend) DeleteUser(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM auth_users WHERE id = $1`, id)
	if err != nil {
		return wrap("delete_user", "auth_users", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &remote.TransportError{Op: "delete_user", Table: "auth_users", Status: 404, Message: "user not found"}
	}
	return nil
}

var _ remote.Backend = (*Backend)(nil)
