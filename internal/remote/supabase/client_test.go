package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/authevents"
	"schoolportal/internal/remote"
)

func TestSelectBuildsPostgrestQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"r1","route_name":"North","stops":[{"stop_name":"Gate"}]}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "anon", nil, 0)
	rows, err := c.Select(context.Background(), "transport_routes", remote.Query{
		Filters: []remote.Filter{remote.Eq("status", "active"), remote.In("id", "a", "b c")},
		Order:   []remote.Order{{Column: "route_number", Ascending: true}},
		Embed:   []remote.Embed{{Alias: "stops", Table: "bus_stops", ForeignKey: "route_id", OrderBy: "stop_time"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "North", rows[0]["route_name"])

	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/rest/v1/transport_routes", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "*,stops:bus_stops(*)", q.Get("select"))
	assert.Equal(t, "eq.active", q.Get("status"))
	assert.Equal(t, `in.(a,"b c")`, q.Get("id"))
	assert.Equal(t, "route_number.asc", q.Get("order"))
	assert.Equal(t, "stop_time.asc", q.Get("stops.order"))
	assert.Equal(t, "anon", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon", got.Header.Get("Authorization"))
}

func TestUpsertSendsConflictTarget(t *testing.T) {
	var got *http.Request
	var body []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "anon", nil, 0)
	_, err := c.Upsert(context.Background(), "results", []string{"student_id", "exam_id"},
		remote.Row{"student_id": "s1", "exam_id": "e1", "marks_obtained": 42})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "student_id,exam_id", got.URL.Query().Get("on_conflict"))
	assert.Contains(t, got.Header.Get("Prefer"), "resolution=merge-duplicates")
	assert.Contains(t, got.Header.Get("Prefer"), "return=representation")
	require.Len(t, body, 1)
	assert.Equal(t, "s1", body[0]["student_id"])
}

func TestErrorBodyBecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "anon", nil, 0).Insert(context.Background(), "students", remote.Row{"roll_number": "R1"})
	var te *remote.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusConflict, te.Status)
	assert.Equal(t, "23505", te.Code)
	assert.Equal(t, "duplicate key value", te.Message)
	assert.Equal(t, "students", te.Table)
}

func TestSignInStoresSessionAndPublishes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["password"] != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600,"user":{"id":"u1","email":"principal@mmps"}}`))
		case "/rest/v1/profiles":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[]`))
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	bus := authevents.NewInMemory(4)
	c := New(srv.URL, "anon", bus, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := c.OnAuthStateChange(ctx)
	require.NoError(t, err)

	_, err = c.SignInWithPassword(ctx, "principal@mmps", "nope")
	assert.ErrorIs(t, err, remote.ErrBadCredentials)

	s, err := c.SignInWithPassword(ctx, "principal@mmps", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.User.ID)
	evt := <-events
	assert.Equal(t, authevents.SignedIn, evt.Type)
	assert.Equal(t, "tok", evt.AccessToken)

	_, err = c.Select(ctx, "profiles", remote.Query{})
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, authevents.SignedOut, (<-events).Type)
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestManageUserActions(t *testing.T) {
	var reqs []manageUserRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/manage-user", r.URL.Path)
		var req manageUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reqs = append(reqs, req)
		if req.Action == ActionDelete {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"User not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u9","email":"t@mmps"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "anon", nil, 0)
	ctx := context.Background()

	u, err := c.CreateUser(ctx, "t@mmps", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u9", u.ID)

	_, err = c.UpdateUser(ctx, "u9", "", "new")
	require.NoError(t, err)

	err = c.DeleteUser(ctx, "u9")
	var te *remote.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "User not found", te.Message)

	require.Len(t, reqs, 3)
	assert.Equal(t, manageUserRequest{Action: ActionCreate, UserData: userData{Email: "t@mmps", Password: "pw"}}, reqs[0])
	assert.Equal(t, manageUserRequest{Action: ActionUpdate, UserData: userData{ID: "u9", Password: "new"}}, reqs[1])
	assert.Equal(t, ActionDelete, reqs[2].Action)
}

func TestTimeoutIsOptional(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	assert.Zero(t, New(srv.URL, "anon", nil, 0).HTTP.Timeout)

	_, err := New(srv.URL, "anon", nil, 50*time.Millisecond).Select(context.Background(), "students", remote.Query{})
	var te *remote.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "students", te.Table)
}
