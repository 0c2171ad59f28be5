package portal

import (
	"context"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

func (s *Service) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.backend.Select(ctx, mapping.TableExams, remote.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Exam, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.ExamFromRow(r))
	}
	return out, nil
}

func (s *Service) CreateExam(ctx context.Context, e model.Exam) (model.Exam, error) {
	if err := check(e); err != nil {
		return model.Exam{}, err
	}
	e.ID = ""
	rows, err := s.backend.Insert(ctx, mapping.TableExams, mapping.ExamToRow(e))
	if err != nil {
		return model.Exam{}, err
	}
	row, err := single(rows, "insert", mapping.TableExams)
	if err != nil {
		return model.Exam{}, err
	}
	return mapping.ExamFromRow(row), nil
}

func (s *Service) UpdateExam(ctx context.Context, id string, p mapping.Patch) (model.Exam, error) {
	if err := requireID(id); err != nil {
		return model.Exam{}, err
	}
	p = p.Defined()
	var e model.Exam
	row, err := patchRow(p, mapping.ExamColumns, &e)
	if err != nil {
		return model.Exam{}, err
	}
	if err := present(p, check(e)); err != nil {
		return model.Exam{}, err
	}
	updated, err := s.patch(ctx, mapping.TableExams, id, row, remote.Query{})
	if err != nil {
		return model.Exam{}, err
	}
	return mapping.ExamFromRow(updated), nil
}

func (s *Service) DeleteExam(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.backend.Delete(ctx, mapping.TableExams, byID(id))
}
