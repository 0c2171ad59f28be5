package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/authevents"
	"schoolportal/internal/remote"
)

func TestSelectFiltersOrdersAndEmbeds(t *testing.T) {
	b := New(nil)
	ctx := context.Background()
	routes := b.Seed("transport_routes", remote.Row{"route_name": "B"}, remote.Row{"route_name": "A"})
	b.Seed("bus_stops",
		remote.Row{"route_id": routes[0]["id"], "stop_name": "Late", "stop_time": "08:00"},
		remote.Row{"route_id": routes[0]["id"], "stop_name": "Early", "stop_time": "07:00"},
	)

	rows, err := b.Select(ctx, "transport_routes", remote.Query{
		Order: []remote.Order{{Column: "route_name", Ascending: true}},
		Embed: []remote.Embed{{Alias: "stops", Table: "bus_stops", ForeignKey: "route_id", OrderBy: "stop_time"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0]["route_name"])
	assert.Empty(t, rows[0]["stops"])

	stops := rows[1]["stops"].([]remote.Row)
	require.Len(t, stops, 2)
	assert.Equal(t, "Early", stops[0]["stop_name"])

	rows, err = b.Select(ctx, "transport_routes", remote.Query{Filters: []remote.Filter{remote.Eq("route_name", "B")}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpsertReplacesOnConflict(t *testing.T) {
	b := New(nil)
	ctx := context.Background()
	_, err := b.Upsert(ctx, "results", []string{"student_id", "exam_id"},
		remote.Row{"student_id": "s1", "exam_id": "e1", "marks_obtained": 40.0})
	require.NoError(t, err)
	_, err = b.Upsert(ctx, "results", []string{"student_id", "exam_id"},
		remote.Row{"student_id": "s1", "exam_id": "e1", "marks_obtained": 55.0},
		remote.Row{"student_id": "s2", "exam_id": "e1", "marks_obtained": 70.0})
	require.NoError(t, err)

	rows := b.Rows("results")
	require.Len(t, rows, 2)
	assert.Equal(t, 55.0, rows[0]["marks_obtained"])
}

func TestUniqueConstraint(t *testing.T) {
	b := New(nil)
	b.Unique("students", "roll_number")
	ctx := context.Background()
	_, err := b.Insert(ctx, "students", remote.Row{"roll_number": "R1"})
	require.NoError(t, err)
	_, err = b.Insert(ctx, "students", remote.Row{"roll_number": "R1"})

	var te *remote.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "23505", te.Code)
	assert.Len(t, b.Rows("students"), 1)
}

func TestFailOnIsConsumedOnce(t *testing.T) {
	b := New(nil)
	ctx := context.Background()
	boom := errors.New("boom")
	b.FailOn("insert", "students", boom)

	_, err := b.Insert(ctx, "students", remote.Row{"full_name": "x"})
	assert.ErrorIs(t, err, boom)
	_, err = b.Insert(ctx, "students", remote.Row{"full_name": "x"})
	assert.NoError(t, err)
	assert.Equal(t, 2, b.CallCount("insert", "students"))
}

func TestSignInPublishesEvents(t *testing.T) {
	bus := authevents.NewInMemory(4)
	b := New(bus)
	u := b.AddIdentity("Teacher@MMPS", "pw")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := b.OnAuthStateChange(ctx)
	require.NoError(t, err)

	_, err = b.SignInWithPassword(ctx, "teacher@mmps", "wrong")
	assert.ErrorIs(t, err, remote.ErrBadCredentials)

	s, err := b.SignInWithPassword(ctx, "teacher@mmps", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.User.ID)

	evt := <-events
	assert.Equal(t, authevents.SignedIn, evt.Type)
	assert.Equal(t, u.ID, evt.UserID)

	require.NoError(t, b.SignOut(ctx))
	assert.Equal(t, authevents.SignedOut, (<-events).Type)
	_, ok := b.Session()
	assert.False(t, ok)
}

func TestAdminLifecycle(t *testing.T) {
	b := New(nil)
	ctx := context.Background()
	u, err := b.CreateUser(ctx, "a@mmps", "pw")
	require.NoError(t, err)

	_, err = b.CreateUser(ctx, "A@mmps", "pw2")
	assert.Error(t, err)

	_, err = b.UpdateUser(ctx, u.ID, "", "new")
	require.NoError(t, err)
	_, err = b.SignInWithPassword(ctx, "a@mmps", "new")
	require.NoError(t, err)

	require.NoError(t, b.DeleteUser(ctx, u.ID))
	assert.Equal(t, 0, b.IdentityCount())
	assert.Error(t, b.DeleteUser(ctx, u.ID))
}
