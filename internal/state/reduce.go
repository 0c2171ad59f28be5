package state

import "schoolportal/internal/model"

// Reduce returns the state after applying a to s. It performs no I/O and
// never modifies s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetInitialData:
		s.Students = orEmpty(a.Students)
		s.Teachers = orEmpty(a.Teachers)
		s.Announcements = orEmpty(a.Announcements)
		s.Events = orEmpty(a.Events)
		s.TransportRoutes = orEmpty(a.TransportRoutes)
		s.Exams = orEmpty(a.Exams)
		s.Results = orEmpty(a.Results)
		s.AppReady = true
	case Login:
		u := a.User
		s.User = &u
	case Logout:
		s.User = nil

	case AddStudent:
		s.Students = appended(s.Students, a.Student)
	case UpdateStudent:
		s.Students = replaced(s.Students, a.Student, studentID)
	case DeleteStudent:
		s.Students = removed(s.Students, a.ID, studentID)

	case AddTeacher:
		s.Teachers = appended(s.Teachers, a.Teacher)
	case UpdateTeacher:
		s.Teachers = replaced(s.Teachers, a.Teacher, teacherID)
	case DeleteTeacher:
		s.Teachers = removed(s.Teachers, a.ID, teacherID)

	case AddAnnouncement:
		s.Announcements = prepended(s.Announcements, a.Announcement)
	case UpdateAnnouncement:
		s.Announcements = replaced(s.Announcements, a.Announcement, announcementID)
	case DeleteAnnouncement:
		s.Announcements = removed(s.Announcements, a.ID, announcementID)

	case AddEvent:
		s.Events = prepended(s.Events, a.Event)
	case UpdateEvent:
		s.Events = replaced(s.Events, a.Event, eventID)
	case DeleteEvent:
		s.Events = removed(s.Events, a.ID, eventID)

	case AddRoute:
		s.TransportRoutes = appended(s.TransportRoutes, a.Route)
	case UpdateRoute:
		s.TransportRoutes = replaced(s.TransportRoutes, a.Route, routeID)
	case DeleteRoute:
		s.TransportRoutes = removed(s.TransportRoutes, a.ID, routeID)

	case AddExam:
		s.Exams = appended(s.Exams, a.Exam)
	case UpdateExam:
		s.Exams = replaced(s.Exams, a.Exam, examID)
	case DeleteExam:
		s.Exams = removed(s.Exams, a.ID, examID)

	case SaveAttendance:
		next := make(map[string][]model.AttendanceRecord, len(s.Attendance)+1)
		for d, recs := range s.Attendance {
			next[d] = recs
		}
		next[a.Date] = append([]model.AttendanceRecord{}, a.Records...)
		s.Attendance = next
	case SaveResults:
		kept := make([]model.Result, 0, len(s.Results)+len(a.Results))
		for _, old := range s.Results {
			if !sharesKey(old, a.Results) {
				kept = append(kept, old)
			}
		}
		s.Results = append(kept, a.Results...)
	}
	return s
}

func sharesKey(r model.Result, incoming []model.Result) bool {
	for _, in := range incoming {
		if r.SameKey(in) {
			return true
		}
	}
	return false
}

func studentID(v model.Student) string           { return v.ID }
func teacherID(v model.Teacher) string           { return v.ID }
func announcementID(v model.Announcement) string { return v.ID }
func eventID(v model.SchoolEvent) string         { return v.ID }
func routeID(v model.TransportRoute) string      { return v.ID }
func examID(v model.Exam) string                 { return v.ID }

func orEmpty[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func appended[T any](xs []T, x T) []T {
	out := make([]T, 0, len(xs)+1)
	out = append(out, xs...)
	return append(out, x)
}

func prepended[T any](xs []T, x T) []T {
	out := make([]T, 0, len(xs)+1)
	out = append(out, x)
	return append(out, xs...)
}

// replaced swaps in x for the element with the same id. The input is
// returned as is when no element matches.
func replaced[T any](xs []T, x T, id func(T) string) []T {
	want := id(x)
	for i, v := range xs {
		if id(v) != want {
			continue
		}
		out := make([]T, len(xs))
		copy(out, xs)
		out[i] = x
		return out
	}
	return xs
}

func removed[T any](xs []T, target string, id func(T) string) []T {
	out := make([]T, 0, len(xs))
	for _, v := range xs {
		if id(v) != target {
			out = append(out, v)
		}
	}
	return out
}
