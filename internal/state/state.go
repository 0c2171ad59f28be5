// Package state is the application state store: one in-memory snapshot of
// the signed-in user and every entity collection, changed only by
// dispatching one of a closed set of actions.
package state

import "schoolportal/internal/model"

// State is an immutable snapshot. Reduce never modifies the slices or the
// map of a previous State, so snapshots may be shared between goroutines
// as long as readers do not modify them either.
type State struct {
	User            *model.User                         `json:"user"`
	AppReady        bool                                `json:"appReady"`
	Students        []model.Student                     `json:"students"`
	Teachers        []model.Teacher                     `json:"teachers"`
	Announcements   []model.Announcement                `json:"announcements"`
	Events          []model.SchoolEvent                 `json:"events"`
	TransportRoutes []model.TransportRoute              `json:"transportRoutes"`
	Exams           []model.Exam                        `json:"exams"`
	Attendance      map[string][]model.AttendanceRecord `json:"attendance"`
	Results         []model.Result                      `json:"results"`
}

// Initial returns the state before the first load: no user, not ready and
// every collection empty.
func Initial() State {
	return State{
		Students:        []model.Student{},
		Teachers:        []model.Teacher{},
		Announcements:   []model.Announcement{},
		Events:          []model.SchoolEvent{},
		TransportRoutes: []model.TransportRoute{},
		Exams:           []model.Exam{},
		Attendance:      map[string][]model.AttendanceRecord{},
		Results:         []model.Result{},
	}
}
