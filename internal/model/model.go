package model

// Role is the portal a user signs in to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid returns true when the role is one of the three portals.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Status marks a record as active or inactive.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// User is the authenticated identity held by the state store.
type User struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Role        Role           `json:"role"`
	Username    string         `json:"username"`
	Avatar      string         `json:"avatar,omitempty"`
	Permissions *PermissionSet `json:"permissions,omitempty"`
}

// PermissionSet holds the capability flags attached to a teacher.
type PermissionSet struct {
	ManageStudents      bool `json:"manageStudents"`
	ManageTeachers      bool `json:"manageTeachers"`
	ManageAnnouncements bool `json:"manageAnnouncements"`
	ManageEvents        bool `json:"manageEvents"`
	ManageExams         bool `json:"manageExams"`
	ManageAttendance    bool `json:"manageAttendance"`
	ViewAllResults      bool `json:"viewAllResults"`
	FullAdminAccess     bool `json:"fullAdminAccess"`
}

// Student is a pupil record. RollNumber doubles as the login identifier.
type Student struct {
	ID            string `json:"id"`
	RollNumber    string `json:"rollNumber" validate:"required"`
	FullName      string `json:"fullName" validate:"required"`
	Class         string `json:"class"`
	Section       string `json:"section"`
	ParentName    string `json:"parentName"`
	ParentPhone   string `json:"parentPhone"`
	Address       string `json:"address"`
	DateOfBirth   string `json:"dateOfBirth" validate:"omitempty,datestr"`
	AdmissionDate string `json:"admissionDate" validate:"omitempty,datestr"`
	Status        Status `json:"status" validate:"omitempty,valid"`
	Email         string `json:"email,omitempty" validate:"omitempty,contains=@"`
	UserID        string `json:"userId,omitempty"`
}

// Teacher is a staff record with its permission set.
type Teacher struct {
	ID            string        `json:"id"`
	EmployeeID    string        `json:"employeeId"`
	FullName      string        `json:"fullName" validate:"required"`
	Subject       string        `json:"subject"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email" validate:"omitempty,contains=@"`
	Qualification string        `json:"qualification"`
	Experience    int           `json:"experience" validate:"min=0"`
	JoiningDate   string        `json:"joiningDate" validate:"omitempty,datestr"`
	Username      string        `json:"username" validate:"required"`
	Status        Status        `json:"status" validate:"omitempty,valid"`
	Permissions   PermissionSet `json:"permissions"`
	UserID        string        `json:"userId,omitempty"`
}

// AnnouncementCategory is the closed set of announcement categories.
type AnnouncementCategory string

const (
	CategoryGeneral  AnnouncementCategory = "General"
	CategoryAcademic AnnouncementCategory = "Academic"
	CategoryFees     AnnouncementCategory = "Fees"
	CategoryEvent    AnnouncementCategory = "Event"
	CategoryHoliday  AnnouncementCategory = "Holiday"
	CategoryUrgent   AnnouncementCategory = "Urgent"
)

func (c AnnouncementCategory) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryAcademic, CategoryFees, CategoryEvent, CategoryHoliday, CategoryUrgent:
		return true
	default:
		return false
	}
}

// Priority orders announcements.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Audience is who an announcement targets.
type Audience string

const (
	AudienceAll      Audience = "All"
	AudienceParents  Audience = "Parents"
	AudienceTeachers Audience = "Teachers"
	AudienceStudents Audience = "Students"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudienceParents, AudienceTeachers, AudienceStudents:
		return true
	default:
		return false
	}
}

type Announcement struct {
	ID             string               `json:"id"`
	Title          string               `json:"title" validate:"required"`
	Content        string               `json:"content"`
	Date           string               `json:"date" validate:"omitempty,datestr"`
	Category       AnnouncementCategory `json:"category" validate:"valid"`
	Priority       Priority             `json:"priority" validate:"valid"`
	TargetAudience Audience             `json:"targetAudience" validate:"valid"`
}

// SchoolEvent exposes separate date (YYYY-MM-DD) and time (HH:MM) strings.
type SchoolEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date" validate:"required,datestr"`
	Time        string `json:"time" validate:"required,clock"`
	Venue       string `json:"venue"`
	Status      Status `json:"status" validate:"omitempty,valid"`
}

// BusStop belongs to exactly one route.
type BusStop struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	Time string `json:"time" validate:"required,clock"`
}

type TransportRoute struct {
	ID            string    `json:"id"`
	RouteNumber   string    `json:"routeNumber" validate:"required"`
	RouteName     string    `json:"routeName" validate:"required"`
	DriverName    string    `json:"driverName"`
	DriverPhone   string    `json:"driverPhone"`
	VehicleNumber string    `json:"vehicleNumber"`
	MonthlyFee    float64   `json:"monthlyFee" validate:"min=0"`
	Status        Status    `json:"status" validate:"omitempty,valid"`
	Stops         []BusStop `json:"stops" validate:"dive"`
}

// ExamType is the closed set of exam kinds.
type ExamType string

const (
	ExamWeeklyTest  ExamType = "Weekly Test"
	ExamMonthlyTest ExamType = "Monthly Test"
	ExamUnitTest    ExamType = "Unit Test"
	ExamQuarterly   ExamType = "Quarterly Exam"
	ExamHalfYearly  ExamType = "Half Yearly Exam"
	ExamAnnual      ExamType = "Annual Exam"
)

func (t ExamType) Valid() bool {
	switch t {
	case ExamWeeklyTest, ExamMonthlyTest, ExamUnitTest, ExamQuarterly, ExamHalfYearly, ExamAnnual:
		return true
	default:
		return false
	}
}

type Exam struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" validate:"required"`
	Subject   string   `json:"subject"`
	Class     string   `json:"class"`
	Section   string   `json:"section"`
	Date      string   `json:"date" validate:"omitempty,datestr"`
	MaxMarks  int      `json:"maxMarks" validate:"gt=0"`
	Type      ExamType `json:"type" validate:"valid"`
	CreatedBy string   `json:"createdBy,omitempty"`
}

// AttendanceStatus is the mark recorded for a student on a date.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceLate    AttendanceStatus = "Late"
	AttendanceExcused AttendanceStatus = "Excused"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is keyed by (date, student). The date lives on the
// collection key in the state store.
type AttendanceRecord struct {
	StudentID string           `json:"studentId" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"valid"`
	Remarks   string           `json:"remarks"`
}

// Result is unique per (StudentID, ExamID).
type Result struct {
	ID            string  `json:"id,omitempty"`
	StudentID     string  `json:"studentId" validate:"required"`
	ExamID        string  `json:"examId" validate:"required"`
	MarksObtained float64 `json:"marksObtained" validate:"min=0"`
}

// SameKey reports whether two results share the (student, exam) pair.
func (r Result) SameKey(o Result) bool {
	return r.StudentID == o.StudentID && r.ExamID == o.ExamID
}
