package state

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"schoolportal/internal/authevents"
	"schoolportal/internal/model"
)

// Source lists every collection loaded at start-up.
type Source interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	ListTeachers(ctx context.Context) ([]model.Teacher, error)
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	ListEvents(ctx context.Context) ([]model.SchoolEvent, error)
	ListRoutes(ctx context.Context) ([]model.TransportRoute, error)
	ListExams(ctx context.Context) ([]model.Exam, error)
	ListResults(ctx context.Context) ([]model.Result, error)
}

// ProfileSource resolves an identity id to a user.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (model.User, error)
}

// Init lists every collection concurrently and dispatches SET_INITIAL_DATA
// once all calls have returned. A failed list leaves its collection empty
// and does not stop the others; the first failure is returned after the
// dispatch.
func (s *Store) Init(ctx context.Context, src Source) error {
	var (
		g    errgroup.Group
		data SetInitialData
	)
	load(ctx, &g, "students", &data.Students, src.ListStudents)
	load(ctx, &g, "teachers", &data.Teachers, src.ListTeachers)
	load(ctx, &g, "announcements", &data.Announcements, src.ListAnnouncements)
	load(ctx, &g, "events", &data.Events, src.ListEvents)
	load(ctx, &g, "routes", &data.TransportRoutes, src.ListRoutes)
	load(ctx, &g, "exams", &data.Exams, src.ListExams)
	load(ctx, &g, "results", &data.Results, src.ListResults)
	err := g.Wait()

	s.Dispatch(ctx, data)
	return err
}

func load[T any](ctx context.Context, g *errgroup.Group, name string, dst *[]T, list func(context.Context) ([]T, error)) {
	g.Go(func() error {
		items, err := list(ctx)
		if err != nil {
			log.Printf("state: load %s: %v", name, err)
			return err
		}
		*dst = items
		return nil
	})
}

// Restore dispatches LOGIN for the persisted user, if any, without
// checking that the backend session is still valid.
func (s *Store) Restore(ctx context.Context) (*model.User, error) {
	if s.persister == nil {
		return nil, nil
	}
	u, err := s.persister.Load(ctx)
	if err != nil || u == nil {
		return nil, err
	}
	s.Dispatch(ctx, Login{User: *u})
	return u, nil
}

// WatchAuth follows the authentication event stream until ctx is done or
// events is closed. SIGNED_IN loads the profile and dispatches LOGIN;
// SIGNED_OUT dispatches LOGOUT. A failed profile lookup is logged and the
// event skipped.
func (s *Store) WatchAuth(ctx context.Context, events <-chan authevents.Event, profiles ProfileSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Type {
			case authevents.SignedIn:
				u, err := profiles.GetProfile(ctx, ev.UserID)
				if err != nil {
					log.Printf("state: profile for %s: %v", ev.UserID, err)
					continue
				}
				s.Dispatch(ctx, Login{User: u})
			case authevents.SignedOut:
				s.Dispatch(ctx, Logout{})
			}
		}
	}
}
