// Package supabase talks to a hosted Supabase project over its REST
// surfaces: PostgREST for tables, GoTrue for sign-in, and the manage-user
// edge function for privileged identity changes.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"schoolportal/internal/authevents"
	"schoolportal/internal/remote"
)

// Client implements remote.Backend against one project.
type Client struct {
	BaseURL string
	AnonKey string
	HTTP    *http.Client

	bus     authevents.Bus
	mu      sync.RWMutex
	session *remote.Session
}

// New creates a client. A nil bus gets an in-memory one. A zero timeout
// leaves requests bounded only by their context.
func New(baseURL, anonKey string, bus authevents.Bus, timeout time.Duration) *Client {
	if bus == nil {
		bus = authevents.NewInMemory(16)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AnonKey: anonKey,
		bus:     bus,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Session returns the session of the last successful sign-in.
func (c *Client) Session() (remote.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return remote.Session{}, false
	}
	return *c.session, true
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && time.Now().Before(c.session.ExpiresAt) {
		return c.session.AccessToken
	}
	return c.AnonKey
}

type apiError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Details          string `json:"details"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.ErrorDescription, e.Msg, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// do sends one request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, op, table, method, path string, query url.Values, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return remote.Wrap(op, table, err)
		}
		reader = bytes.NewReader(payload)
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return remote.Wrap(op, table, err)
	}
	req.Header.Set("apikey", c.AnonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return remote.Wrap(op, table, errors.Wrap(err, "request failed"))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		te := &remote.TransportError{Op: op, Table: table, Status: resp.StatusCode, Code: ae.Code, Message: ae.text()}
		if te.Code == "" && ae.Error != te.Message {
			te.Code = ae.Error
		}
		if te.Message == "" {
			te.Message = strings.TrimSpace(string(raw))
		}
		return te
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return remote.Wrap(op, table, errors.Wrap(err, "failed to decode response"))
	}
	return nil
}

// Tables

func (c *Client) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	params := url.Values{}
	params.Set("select", selectClause(q))
	addFilters(params, q.Filters)
	if len(q.Order) > 0 {
		params.Set("order", orderClause(q.Order))
	}
	for _, e := range q.Embed {
		if e.OrderBy != "" {
			params.Set(e.Alias+".order", e.OrderBy+".asc")
		}
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}
	rows := []remote.Row{}
	if err := c.do(ctx, "select", table, http.MethodGet, "/rest/v1/"+table, params, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table string, rows ...remote.Row) ([]remote.Row, error) {
	out := []remote.Row{}
	err := c.do(ctx, "insert", table, http.MethodPost, "/rest/v1/"+table, nil,
		map[string]string{"Prefer": "return=representation"}, rows, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, table string, patch remote.Row, filters ...remote.Filter) ([]remote.Row, error) {
	params := url.Values{}
	addFilters(params, filters)
	out := []remote.Row{}
	err := c.do(ctx, "update", table, http.MethodPatch, "/rest/v1/"+table, params,
		map[string]string{"Prefer": "return=representation"}, patch, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, table string, filters ...remote.Filter) error {
	params := url.Values{}
	addFilters(params, filters)
	return c.do(ctx, "delete", table, http.MethodDelete, "/rest/v1/"+table, params, nil, nil, nil)
}

func (c *Client) Upsert(ctx context.Context, table string, onConflict []string, rows ...remote.Row) ([]remote.Row, error) {
	params := url.Values{}
	if len(onConflict) > 0 {
		params.Set("on_conflict", strings.Join(onConflict, ","))
	}
	out := []remote.Row{}
	err := c.do(ctx, "upsert", table, http.MethodPost, "/rest/v1/"+table, params,
		map[string]string{"Prefer": "resolution=merge-duplicates,return=representation"}, rows, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func selectClause(q remote.Query) string {
	parts := []string{"*"}
	if len(q.Columns) > 0 {
		parts = append([]string(nil), q.Columns...)
	}
	for _, e := range q.Embed {
		parts = append(parts, fmt.Sprintf("%s:%s(*)", e.Alias, e.Table))
	}
	return strings.Join(parts, ",")
}

func orderClause(order []remote.Order) string {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		dir := "desc"
		if o.Ascending {
			dir = "asc"
		}
		parts = append(parts, o.Column+"."+dir)
	}
	return strings.Join(parts, ",")
}

func addFilters(params url.Values, filters []remote.Filter) {
	for _, f := range filters {
		switch f.Op {
		case remote.OpIn:
			values, _ := f.Value.([]string)
			quoted := make([]string, 0, len(values))
			for _, v := range values {
				quoted = append(quoted, quoteValue(v))
			}
			params.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		default:
			if f.Value == nil {
				params.Add(f.Column, "is.null")
				continue
			}
			params.Add(f.Column, "eq."+fmt.Sprint(f.Value))
		}
	}
}

func quoteValue(v string) string {
	if !strings.ContainsAny(v, `,()" `) {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// Auth

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int             `json:"expires_in"`
	User        remote.AuthUser `json:"user"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (remote.Session, error) {
	params := url.Values{"grant_type": {"password"}}
	var tok tokenResponse
	err := c.do(ctx, "sign_in", "", http.MethodPost, "/auth/v1/token", params, nil,
		map[string]string{"email": email, "password": password}, &tok)
	if err != nil {
		var te *remote.TransportError
		if errors.As(err, &te) && (te.Status == http.StatusBadRequest || te.Status == http.StatusUnauthorized) {
			return remote.Session{}, remote.ErrBadCredentials
		}
		return remote.Session{}, err
	}
	s := remote.Session{
		AccessToken: tok.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).UTC(),
		User:        tok.User,
	}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()

	if err := c.bus.Publish(ctx, remote.SessionEvent(s)); err != nil {
		return remote.Session{}, err
	}
	return s, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	active := c.session != nil
	c.mu.RUnlock()
	if active {
		if err := c.do(ctx, "sign_out", "", http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return c.bus.Publish(ctx, authevents.Event{Type: authevents.SignedOut, At: time.Now().UTC()})
}

func (c *Client) OnAuthStateChange(ctx context.Context) (<-chan authevents.Event, error) {
	return c.bus.Subscribe(ctx)
}

// Admin

// Actions accepted by the manage-user function.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

type userData struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type manageUserRequest struct {
	Action   string   `json:"action"`
	UserData userData `json:"userData"`
}

func (c *Client) manageUser(ctx context.Context, op string, req manageUserRequest, out any) error {
	return c.do(ctx, op, "", http.MethodPost, "/functions/v1/manage-user", nil, nil, req, out)
}

func (c *Client) CreateUser(ctx context.Context, email, password string) (remote.AuthUser, error) {
	var u remote.AuthUser
	err := c.manageUser(ctx, "create_user", manageUserRequest{
		Action:   ActionCreate,
		UserData: userData{Email: email, Password: password},
	}, &u)
	return u, err
}

func (c *Client) UpdateUser(ctx context.Context, id, email, password string) (remote.AuthUser, error) {
	var u remote.AuthUser
	err := c.manageUser(ctx, "update_user", manageUserRequest{
		Action:   ActionUpdate,
		UserData: userData{ID: id, Email: email, Password: password},
	}, &u)
	return u, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.manageUser(ctx, "delete_user", manageUserRequest{
		Action:   ActionDelete,
		UserData: userData{ID: id},
	}, nil)
}

var _ remote.Backend = (*Client)(nil)
