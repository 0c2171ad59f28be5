package state

import "schoolportal/internal/model"

// ActionType names an action.
type ActionType string

const (
	TypeSetInitialData     ActionType = "SET_INITIAL_DATA"
	TypeLogin              ActionType = "LOGIN"
	TypeLogout             ActionType = "LOGOUT"
	TypeAddStudent         ActionType = "ADD_STUDENT"
	TypeUpdateStudent      ActionType = "UPDATE_STUDENT"
	TypeDeleteStudent      ActionType = "DELETE_STUDENT"
	TypeAddTeacher         ActionType = "ADD_TEACHER"
	TypeUpdateTeacher      ActionType = "UPDATE_TEACHER"
	TypeDeleteTeacher      ActionType = "DELETE_TEACHER"
	TypeAddAnnouncement    ActionType = "ADD_ANNOUNCEMENT"
	TypeUpdateAnnouncement ActionType = "UPDATE_ANNOUNCEMENT"
	TypeDeleteAnnouncement ActionType = "DELETE_ANNOUNCEMENT"
	TypeAddEvent           ActionType = "ADD_EVENT"
	TypeUpdateEvent        ActionType = "UPDATE_EVENT"
	TypeDeleteEvent        ActionType = "DELETE_EVENT"
	TypeAddRoute           ActionType = "ADD_ROUTE"
	TypeUpdateRoute        ActionType = "UPDATE_ROUTE"
	TypeDeleteRoute        ActionType = "DELETE_ROUTE"
	TypeAddExam            ActionType = "ADD_EXAM"
	TypeUpdateExam         ActionType = "UPDATE_EXAM"
	TypeDeleteExam         ActionType = "DELETE_EXAM"
	TypeSaveAttendance     ActionType = "SAVE_ATTENDANCE"
	TypeSaveResults        ActionType = "SAVE_RESULTS"
)

// Action is one of the action types declared in this package. The set is
// closed: only this package can implement it.
type Action interface {
	Type() ActionType
	sealed()
}

type base struct{}

func (base) sealed() {}

// SetInitialData replaces the loaded collections and marks the store ready.
type SetInitialData struct {
	base
	Students        []model.Student
	Teachers        []model.Teacher
	Announcements   []model.Announcement
	Events          []model.SchoolEvent
	TransportRoutes []model.TransportRoute
	Exams           []model.Exam
	Results         []model.Result
}

type Login struct {
	base
	User model.User
}

type Logout struct{ base }

type AddStudent struct {
	base
	Student model.Student
}

type UpdateStudent struct {
	base
	Student model.Student
}

type DeleteStudent struct {
	base
	ID string
}

type AddTeacher struct {
	base
	Teacher model.Teacher
}

type UpdateTeacher struct {
	base
	Teacher model.Teacher
}

type DeleteTeacher struct {
	base
	ID string
}

type AddAnnouncement struct {
	base
	Announcement model.Announcement
}

type UpdateAnnouncement struct {
	base
	Announcement model.Announcement
}

type DeleteAnnouncement struct {
	base
	ID string
}

type AddEvent struct {
	base
	Event model.SchoolEvent
}

type UpdateEvent struct {
	base
	Event model.SchoolEvent
}

type DeleteEvent struct {
	base
	ID string
}

type AddRoute struct {
	base
	Route model.TransportRoute
}

type UpdateRoute struct {
	base
	Route model.TransportRoute
}

type DeleteRoute struct {
	base
	ID string
}

type AddExam struct {
	base
	Exam model.Exam
}

type UpdateExam struct {
	base
	Exam model.Exam
}

type DeleteExam struct {
	base
	ID string
}

// SaveAttendance replaces the whole record list of Date.
type SaveAttendance struct {
	base
	Date    string
	Records []model.AttendanceRecord
}

// SaveResults replaces results sharing a (student, exam) pair with an
// incoming one and appends the rest.
type SaveResults struct {
	base
	Results []model.Result
}

func (SetInitialData) Type() ActionType     { return TypeSetInitialData }
func (Login) Type() ActionType              { return TypeLogin }
func (Logout) Type() ActionType             { return TypeLogout }
func (AddStudent) Type() ActionType         { return TypeAddStudent }
func (UpdateStudent) Type() ActionType      { return TypeUpdateStudent }
func (DeleteStudent) Type() ActionType      { return TypeDeleteStudent }
func (AddTeacher) Type() ActionType         { return TypeAddTeacher }
func (UpdateTeacher) Type() ActionType      { return TypeUpdateTeacher }
func (DeleteTeacher) Type() ActionType      { return TypeDeleteTeacher }
func (AddAnnouncement) Type() ActionType    { return TypeAddAnnouncement }
func (UpdateAnnouncement) Type() ActionType { return TypeUpdateAnnouncement }
func (DeleteAnnouncement) Type() ActionType { return TypeDeleteAnnouncement }
func (AddEvent) Type() ActionType           { return TypeAddEvent }
func (UpdateEvent) Type() ActionType        { return TypeUpdateEvent }
func (DeleteEvent) Type() ActionType        { return TypeDeleteEvent }
func (AddRoute) Type() ActionType           { return TypeAddRoute }
func (UpdateRoute) Type() ActionType        { return TypeUpdateRoute }
func (DeleteRoute) Type() ActionType        { return TypeDeleteRoute }
func (AddExam) Type() ActionType            { return TypeAddExam }
func (UpdateExam) Type() ActionType         { return TypeUpdateExam }
func (DeleteExam) Type() ActionType         { return TypeDeleteExam }
func (SaveAttendance) Type() ActionType     { return TypeSaveAttendance }
func (SaveResults) Type() ActionType        { return TypeSaveResults }
