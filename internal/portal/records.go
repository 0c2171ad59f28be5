package portal

import (
	"context"
	"time"

	"schoolportal/internal/mapping"
	"schoolportal/internal/model"
	"schoolportal/internal/remote"
)

// Natural keys used for upserts.
var (
	AttendanceKey = []string{"student_id", "date"}
	ResultKey     = []string{"student_id", "exam_id"}
)

func checkDate(date string) error {
	if _, err := time.Parse(mapping.DateLayout, date); err != nil {
		return invalid("date", "date must be YYYY-MM-DD")
	}
	return nil
}

// GetAttendance returns the records of date for the given students. An empty
// id list makes no backend call.
func (s *Service) GetAttendance(ctx context.Context, date string, studentIDs []string) ([]model.AttendanceRecord, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return []model.AttendanceRecord{}, nil
	}
	rows, err := s.backend.Select(ctx, mapping.TableAttendance, remote.Query{
		Columns: []string{"student_id", "status", "remarks"},
		Filters: []remote.Filter{remote.Eq("date", date), remote.In("student_id", studentIDs...)},
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.AttendanceFromRow(r))
	}
	return out, nil
}

// SaveAttendance upserts the records of date keyed on (student, date).
func (s *Service) SaveAttendance(ctx context.Context, date string, records []model.AttendanceRecord) ([]model.AttendanceRecord, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	rows := make([]remote.Row, 0, len(records))
	for _, rec := range records {
		if err := check(rec); err != nil {
			return nil, err
		}
		rows = append(rows, mapping.AttendanceToRow(date, rec))
	}
	if len(rows) == 0 {
		return []model.AttendanceRecord{}, nil
	}
	saved, err := s.backend.Upsert(ctx, mapping.TableAttendance, AttendanceKey, rows...)
	if err != nil {
		return nil, err
	}
	out := make([]model.AttendanceRecord, 0, len(saved))
	for _, r := range saved {
		out = append(out, mapping.AttendanceFromRow(r))
	}
	return out, nil
}

func (s *Service) ListResults(ctx context.Context) ([]model.Result, error) {
	rows, err := s.backend.Select(ctx, mapping.TableResults, remote.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapping.ResultFromRow(r))
	}
	return out, nil
}

// SaveResults upserts results keyed on (student, exam). Marks are not
// checked against the exam's maximum.
func (s *Service) SaveResults(ctx context.Context, results []model.Result) ([]model.Result, error) {
	rows := make([]remote.Row, 0, len(results))
	for _, res := range results {
		if err := check(res); err != nil {
			return nil, err
		}
		res.ID = ""
		rows = append(rows, mapping.ResultToRow(res))
	}
	if len(rows) == 0 {
		return []model.Result{}, nil
	}
	saved, err := s.backend.Upsert(ctx, mapping.TableResults, ResultKey, rows...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Result, 0, len(saved))
	for _, r := range saved {
		out = append(out, mapping.ResultFromRow(r))
	}
	return out, nil
}
