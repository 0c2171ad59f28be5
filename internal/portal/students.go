package portal

import (
	"context"

	"github.com/pkg/errors"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

// StudentInput is a student record plus the login password. The password is
// only sent to the identity service, never stored with the record.
type StudentInput struct {
	model.Student
	Password string `json:"password,omitempty"`
}

func (s *Service) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.backend.Select(ctx, mapping.TableStudents, remote.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Student, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.StudentFromRow(r))
	}
	return out, nil
}

// CreateStudent provisions the login identity, inserts the student record
// and the profile. The identity is deleted again when the record insert fails.
func (s *Service) CreateStudent(ctx context.Context, in StudentInput) (model.Student, error) {
	var extra []FieldError
	if in.Email == "" {
		extra = append(extra, FieldError{Field: "email", Error: "email is required to create a login"})
	}
	if in.Password == "" {
		extra = append(extra, FieldError{Field: "password", Error: "password is required to create a login"})
	}
	if err := check(in, extra...); err != nil {
		return model.Student{}, err
	}
	if in.Status == "" {
		in.Status = model.StatusActive
	}

	var (
		identity remote.AuthUser
		created  model.Student
	)
	_, err := s.newSaga("create student",
		Step{
			Name: "create_identity",
			Run: func(ctx context.Context) (err error) {
				identity, err = s.backend.CreateUser(ctx, in.Email, in.Password)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.backend.DeleteUser(ctx, identity.ID)
			},
		},
		Step{
			Name: "insert_record",
			Run: func(ctx context.Context) error {
				st := in.Student
				st.ID = ""
				st.UserID = identity.ID
				rows, err := s.backend.Insert(ctx, mapping.TableStudents, mapping.StudentToRow(st))
				if err != nil {
					return err
				}
				row, err := single(rows, "insert", mapping.TableStudents)
				if err != nil {
					return err
				}
				created = mapping.StudentFromRow(row)
				return nil
			},
		},
		Step{
			Name:     "insert_profile",
			Optional: true,
			Run: func(ctx context.Context) error {
				_, err := s.backend.Insert(ctx, mapping.TableProfiles,
					mapping.ProfileRow(identity.ID, in.RollNumber, in.FullName, model.RoleStudent))
				return err
			},
		},
	).run(ctx)
	if err != nil {
		return model.Student{}, err
	}
	return created, nil
}

// UpdateStudent updates the login identity when credentials are given, then
// the record, then the profile when the roll number or name changed.
func (s *Service) UpdateStudent(ctx context.Context, in StudentInput) (model.Student, error) {
	if err := requireID(in.ID); err != nil {
		return model.Student{}, err
	}
	var extra []FieldError
	if in.Password != "" && in.UserID == "" {
		extra = append(extra, FieldError{Field: "password", Error: "student has no login to update"})
	}
	if err := check(in, extra...); err != nil {
		return model.Student{}, err
	}

	var updated model.Student
	_, err := s.newSaga("update student",
		s.updateIdentityStep(in.UserID, in.Email, in.Password),
		Step{
			Name: "update_record",
			Run: func(ctx context.Context) error {
				row := mapping.StudentToRow(in.Student)
				delete(row, "id")
				rows, err := s.backend.Update(ctx, mapping.TableStudents, row, byID(in.ID))
				if err != nil {
					return err
				}
				r, err := single(rows, "update", mapping.TableStudents)
				if err != nil {
					return err
				}
				updated = mapping.StudentFromRow(r)
				return nil
			},
		},
		s.updateProfileStep(in.UserID, in.RollNumber, in.FullName),
	).run(ctx)
	if err != nil {
		return model.Student{}, err
	}
	return updated, nil
}

// DeleteStudent removes the record, then its login identity. When st carries
// no UserID the stored record is read for it. A failed identity delete leaves
// the credential behind; the returned SagaError reports the record as deleted.
func (s *Service) DeleteStudent(ctx context.Context, st model.Student) error {
	if err := requireID(st.ID); err != nil {
		return err
	}
	userID, err := s.linkedIdentity(ctx, mapping.TableStudents, st.ID, st.UserID)
	if err != nil {
		return err
	}
	_, err = s.newSaga("delete student", s.deleteSteps(mapping.TableStudents, st.ID, userID)...).run(ctx)
	return err
}

// Shared steps for records that own a login identity.

func (s *Service) updateIdentityStep(userID, email, password string) Step {
	return Step{
		Name: "update_identity",
		Run: func(ctx context.Context) error {
			if userID == "" || (email == "" && password == "") {
				return nil
			}
			_, err := s.backend.UpdateUser(ctx, userID, email, password)
			return err
		},
	}
}

func (s *Service) updateProfileStep(userID, username, fullName string) Step {
	return Step{
		Name:     "update_profile",
		Optional: true,
		Run: func(ctx context.Context) error {
			if userID == "" {
				return nil
			}
			current, err := remote.SelectOne(ctx, s.backend, mapping.TableProfiles, remote.Query{
				Filters: []remote.Filter{byID(userID)},
			})
			if remote.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if mapping.String(current, "username") == username && mapping.String(current, "full_name") == fullName {
				return nil
			}
			_, err = s.backend.Update(ctx, mapping.TableProfiles,
				remote.Row{"username": username, "full_name": fullName}, byID(userID))
			return errors.Wrap(err, "update profile")
		},
	}
}

// linkedIdentity returns known, or else the user_id stored on the record.
// A record that no longer exists has no identity to remove.
func (s *Service) linkedIdentity(ctx context.Context, table, id, known string) (string, error) {
	if known != "" {
		return known, nil
	}
	row, err := remote.SelectOne(ctx, s.backend, table, remote.Query{
		Columns: []string{"user_id"},
		Filters: []remote.Filter{byID(id)},
	})
	if remote.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return mapping.String(row, "user_id"), nil
}

func (s *Service) deleteSteps(table, id, userID string) []Step {
	return []Step{
		{
			Name: "delete_record",
			Run: func(ctx context.Context) error {
				return s.backend.Delete(ctx, table, byID(id))
			},
		},
		{
			Name: "delete_identity",
			Run: func(ctx context.Context) error {
				if userID == "" {
					return nil
				}
				return s.backend.DeleteUser(ctx, userID)
			},
		},
	}
}
