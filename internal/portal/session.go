package portal

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

// resolveEmail maps a login username to the identity email: the admin
// alias first, then teacher usernames, then student roll numbers.
func (s *Service) resolveEmail(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", ErrInvalidCredentials
	}
	if username == s.opts.AdminUsername {
		return s.opts.AdminEmail, nil
	}
	lookups := []struct {
		table, column string
	}{
		{mapping.TableTeachers, "username"},
		{mapping.TableStudents, "roll_number"},
	}
	for _, l := range lookups {
		row, err := remote.SelectOne(ctx, s.backend, l.table, remote.Query{
			Columns: []string{"email"},
			Filters: []remote.Filter{remote.Eq(l.column, username)},
		})
		if remote.IsNotFound(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if email := mapping.String(row, "email"); email != "" {
			return email, nil
		}
	}
	return "", ErrInvalidCredentials
}

// Login resolves username to an email, signs in and returns the profile of
// the signed-in user. An unknown username makes no sign-in attempt.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, error) {
	email, err := s.resolveEmail(ctx, username)
	if err != nil {
		s.opts.Metrics.Login(loginOutcome(err))
		return model.User{}, err
	}
	session, err := s.backend.SignInWithPassword(ctx, email, password)
	if errors.Is(err, remote.ErrBadCredentials) {
		s.opts.Metrics.Login("invalid")
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		s.opts.Metrics.Login("error")
		return model.User{}, err
	}
	user, err := s.GetProfile(ctx, session.User.ID)
	if err != nil {
		s.opts.Metrics.Login("error")
		return model.User{}, errors.Wrap(err, "load profile")
	}
	s.opts.Metrics.Login("ok")
	return user, nil
}

func loginOutcome(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return "invalid"
	}
	return "error"
}

func (s *Service) Logout(ctx context.Context) error {
	return s.backend.SignOut(ctx)
}

// GetProfile loads the user for an identity id. Teachers also carry their
// permission set.
func (s *Service) GetProfile(ctx context.Context, userID string) (model.User, error) {
	row, err := remote.SelectOne(ctx, s.backend, mapping.TableProfiles, remote.Query{
		Filters: []remote.Filter{byID(userID)},
	})
	if err != nil {
		return model.User{}, err
	}
	user := mapping.UserFromProfile(row)
	if user.Role != model.RoleTeacher {
		return user, nil
	}

	trow, err := remote.SelectOne(ctx, s.backend, mapping.TableTeachers, remote.Query{
		Filters: []remote.Filter{remote.Eq("user_id", userID)},
	})
	switch {
	case remote.IsNotFound(err):
		log.Printf("portal: teacher profile %s has no teacher record", userID)
	case err != nil:
		return model.User{}, err
	default:
		perms := mapping.NestPermissions(trow)
		user.Permissions = &perms
	}
	return user, nil
}

// ProvisionAdmin creates the admin identity under the configured admin email
// and its profile. The identity is removed again if the profile insert fails.
func (s *Service) ProvisionAdmin(ctx context.Context, fullName, password string) (model.User, error) {
	if password == "" {
		return model.User{}, invalid("password", "password is required")
	}
	if fullName == "" {
		fullName = "Principal"
	}
	var identity remote.AuthUser
	_, err := s.newSaga("provision admin",
		Step{
			Name: "create_identity",
			Run: func(ctx context.Context) (err error) {
				identity, err = s.backend.CreateUser(ctx, s.opts.AdminEmail, password)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.backend.DeleteUser(ctx, identity.ID)
			},
		},
		Step{
			Name: "insert_profile",
			Run: func(ctx context.Context) error {
				_, err := s.backend.Insert(ctx, mapping.TableProfiles,
					mapping.ProfileRow(identity.ID, s.opts.AdminUsername, fullName, model.RoleAdmin))
				return err
			},
		},
	).run(ctx)
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: identity.ID, Name: fullName, Role: model.RoleAdmin, Username: s.opts.AdminUsername}, nil
}
