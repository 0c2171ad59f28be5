package state

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/authevents"
	"schoolportal/internal/model"
)

type fakeSource struct {
	calls atomic.Int32
	fail  map[string]bool
}

func (f *fakeSource) result(name string) error {
	f.calls.Add(1)
	if f.fail[name] {
		return errors.New(name + " unavailable")
	}
	return nil
}

func (f *fakeSource) ListStudents(context.Context) ([]model.Student, error) {
	return []model.Student{{ID: "s1"}}, f.result("students")
}

func (f *fakeSource) ListTeachers(context.Context) ([]model.Teacher, error) {
	return []model.Teacher{{ID: "t1"}}, f.result("teachers")
}

func (f *fakeSource) ListAnnouncements(context.Context) ([]model.Announcement, error) {
	return []model.Announcement{{ID: "a1"}}, f.result("announcements")
}

func (f *fakeSource) ListEvents(context.Context) ([]model.SchoolEvent, error) {
	return []model.SchoolEvent{{ID: "e1"}}, f.result("events")
}

func (f *fakeSource) ListRoutes(context.Context) ([]model.TransportRoute, error) {
	return []model.TransportRoute{{ID: "r1"}}, f.result("routes")
}

func (f *fakeSource) ListExams(context.Context) ([]model.Exam, error) {
	return []model.Exam{{ID: "x1"}}, f.result("exams")
}

func (f *fakeSource) ListResults(context.Context) ([]model.Result, error) {
	return []model.Result{{ID: "res1"}}, f.result("results")
}

func countDispatches(ctx context.Context, s *Store, typ ActionType) func() int {
	var n atomic.Int32
	changes := s.Subscribe(ctx)
	go func() {
		for c := range changes {
			if c.Action.Type() == typ {
				n.Add(1)
			}
		}
	}()
	return func() int { return int(n.Load()) }
}

func TestInitPartialFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := New()
	dispatched := countDispatches(ctx, store, TypeSetInitialData)
	src := &fakeSource{fail: map[string]bool{"teachers": true, "events": true, "exams": true, "results": true}}

	err := store.Init(ctx, src)
	require.Error(t, err)
	assert.EqualValues(t, 7, src.calls.Load())

	s := store.State()
	assert.True(t, s.AppReady)
	assert.Len(t, s.Students, 1)
	assert.Len(t, s.Announcements, 1)
	assert.Len(t, s.TransportRoutes, 1)
	for _, n := range []int{len(s.Teachers), len(s.Events), len(s.Exams), len(s.Results)} {
		assert.Zero(t, n)
	}
	assert.NotNil(t, s.Teachers)
	require.Eventually(t, func() bool { return dispatched() == 1 }, time.Second, 5*time.Millisecond)
}

func TestInitAllLoaded(t *testing.T) {
	store := New()
	require.NoError(t, store.Init(context.Background(), &fakeSource{}))
	s := store.State()
	assert.True(t, s.AppReady)
	assert.Len(t, s.Results, 1)
	assert.Len(t, s.Exams, 1)
}

func TestRestoreDispatchesPersistedUser(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	require.NoError(t, p.Save(ctx, model.User{ID: "u1", Name: "Principal", Role: model.RoleAdmin}))

	store := New(WithPersister(p))
	u, err := store.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotNil(t, store.State().User)
	assert.Equal(t, model.RoleAdmin, store.State().User.Role)
	assert.False(t, store.State().AppReady)
}

func TestRestoreWithNothingStored(t *testing.T) {
	store := New(WithPersister(NewMemoryPersister()))
	u, err := store.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Nil(t, store.State().User)
}

func TestDispatchPersistsUser(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	store := New(WithPersister(p))

	store.Dispatch(ctx, Login{User: model.User{ID: "u2", Role: model.RoleTeacher}})
	got, err := p.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u2", got.ID)

	store.Dispatch(ctx, Logout{})
	got, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

type profileMap map[string]model.User

func (m profileMap) GetProfile(_ context.Context, id string) (model.User, error) {
	u, ok := m[id]
	if !ok {
		return model.User{}, errors.New("no profile")
	}
	return u, nil
}

func TestWatchAuth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := authevents.NewInMemory(8)
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	store := New()
	done := make(chan error, 1)
	go func() {
		done <- store.WatchAuth(ctx, events, profileMap{"u1": {ID: "u1", Name: "M. Das", Role: model.RoleTeacher}})
	}()

	require.NoError(t, bus.Publish(ctx, authevents.Event{Type: authevents.SignedIn, UserID: "ghost"}))
	require.NoError(t, bus.Publish(ctx, authevents.Event{Type: authevents.SignedIn, UserID: "u1"}))
	require.Eventually(t, func() bool {
		u := store.State().User
		return u != nil && u.ID == "u1"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, authevents.Event{Type: authevents.SignedOut}))
	require.Eventually(t, func() bool { return store.State().User == nil }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("WatchAuth did not return")
	}
}

func TestSubscribeClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := New()
	changes := store.Subscribe(ctx)

	store.Dispatch(context.Background(), AddExam{Exam: model.Exam{ID: "x"}})
	c := <-changes
	assert.Equal(t, TypeAddExam, c.Action.Type())
	assert.Len(t, c.State.Exams, 1)

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-changes
		return !open
	}, time.Second, 5*time.Millisecond)
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	p := NewFilePersister(filepath.Join(t.TempDir(), "session", DefaultKey+".json"))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	perms := model.PermissionSet{ManageEvents: true}
	require.NoError(t, p.Save(ctx, model.User{ID: "u3", Role: model.RoleTeacher, Permissions: &perms}))
	got, err = p.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Permissions)
	assert.True(t, got.Permissions.ManageEvents)

	require.NoError(t, p.Clear(ctx))
	require.NoError(t, p.Clear(ctx))
	got, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
