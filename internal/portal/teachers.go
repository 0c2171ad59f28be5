package portal

import (
	"context"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

// TeacherInput is a teacher record plus the login password.
type TeacherInput struct {
	model.Teacher
	Password string `json:"password,omitempty"`
}

func (s *Service) ListTeachers(ctx context.Context) ([]model.Teacher, error) {
	rows, err := s.backend.Select(ctx, mapping.TableTeachers, remote.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Teacher, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.TeacherFromRow(r))
	}
	return out, nil
}

// CreateTeacher provisions the login identity, inserts the teacher record
// with its flattened permissions and the profile. The identity is deleted
// again when the record insert fails.
func (s *Service) CreateTeacher(ctx context.Context, in TeacherInput) (model.Teacher, error) {
	var extra []FieldError
	if in.Email == "" {
		extra = append(extra, FieldError{Field: "email", Error: "email is required to create a login"})
	}
	if in.Password == "" {
		extra = append(extra, FieldError{Field: "password", Error: "password is required to create a login"})
	}
	if err := check(in, extra...); err != nil {
		return model.Teacher{}, err
	}
	if in.Status == "" {
		in.Status = model.StatusActive
	}

	var (
		identity remote.AuthUser
		created  model.Teacher
	)
	_, err := s.newSaga("create teacher",
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
				t := in.Teacher
				t.ID = ""
				t.UserID = identity.ID
				rows, err := s.backend.Insert(ctx, mapping.TableTeachers, mapping.TeacherToRow(t))
				if err != nil {
					return err
				}
				row, err := single(rows, "insert", mapping.TableTeachers)
				if err != nil {
					return err
				}
				created = mapping.TeacherFromRow(row)
				return nil
			},
		},
		Step{
			Name:     "insert_profile",
			Optional: true,
			Run: func(ctx context.Context) error {
				_, err := s.backend.Insert(ctx, mapping.TableProfiles,
					mapping.ProfileRow(identity.ID, in.Username, in.FullName, model.RoleTeacher))
				return err
			},
		},
	).run(ctx)
	if err != nil {
		return model.Teacher{}, err
	}
	return created, nil
}

// UpdateTeacher follows the same order as UpdateStudent.
func (s *Service) UpdateTeacher(ctx context.Context, in TeacherInput) (model.Teacher, error) {
	if err := requireID(in.ID); err != nil {
		return model.Teacher{}, err
	}
	var extra []FieldError
	if in.Password != "" && in.UserID == "" {
		extra = append(extra, FieldError{Field: "password", Error: "teacher has no login to update"})
	}
	if err := check(in, extra...); err != nil {
		return model.Teacher{}, err
	}

	var updated model.Teacher
	_, err := s.newSaga("update teacher",
		s.updateIdentityStep(in.UserID, in.Email, in.Password),
		Step{
			Name: "update_record",
			Run: func(ctx context.Context) error {
				row := mapping.TeacherToRow(in.Teacher)
				delete(row, "id")
				rows, err := s.backend.Update(ctx, mapping.TableTeachers, row, byID(in.ID))
				if err != nil {
					return err
				}
				r, err := single(rows, "update", mapping.TableTeachers)
				if err != nil {
					return err
				}
				updated = mapping.TeacherFromRow(r)
				return nil
			},
		},
		s.updateProfileStep(in.UserID, in.Username, in.FullName),
	).run(ctx)
	if err != nil {
		return model.Teacher{}, err
	}
	return updated, nil
}

// DeleteTeacher removes the record, then its login identity.
func (s *Service) DeleteTeacher(ctx context.Context, t model.Teacher) error {
	if err := requireID(t.ID); err != nil {
		return err
	}
	userID, err := s.linkedIdentity(ctx, mapping.TableTeachers, t.ID, t.UserID)
	if err != nil {
		return err
	}
	_, err = s.newSaga("delete teacher", s.deleteSteps(mapping.TableTeachers, t.ID, userID)...).run(ctx)
	return err
}
