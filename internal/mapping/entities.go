package mapping

import (
	"fmt"
	"time"

	"schoolportal/internal/model"
)

// Backend table names.
const (
	TableStudents      = "students"
	TableTeachers      = "teachers"
	TableProfiles      = "profiles"
	TableAnnouncements = "announcements"
	TableEvents        = "events"
	TableRoutes        = "transport_routes"
	TableStops         = "bus_stops"
	TableExams         = "exams"
	TableAttendance    = "attendance"
	TableResults       = "results"
)

// Permission columns on the teachers table, in PermissionSet field order.
const (
	ColCanManageStudents      = "can_manage_students"
	ColCanManageTeachers      = "can_manage_teachers"
	ColCanManageAnnouncements = "can_manage_announcements"
	ColCanManageEvents        = "can_manage_events"
	ColCanCreateExams         = "can_create_exams"
	ColCanManageAttendance    = "can_manage_attendance"
	ColCanViewAllResults      = "can_view_all_results"
	ColFullAdminAccess        = "full_admin_access"
)

var PermissionColumns = []string{
	ColCanManageStudents,
	ColCanManageTeachers,
	ColCanManageAnnouncements,
	ColCanManageEvents,
	ColCanCreateExams,
	ColCanManageAttendance,
	ColCanViewAllResults,
	ColFullAdminAccess,
}

// Writable column sets, used to reject unknown keys in client patches.
var (
	StudentColumns = NewColumnSet("roll_number", "full_name", "class", "section", "parent_name",
		"parent_phone", "address", "date_of_birth", "admission_date", "status", "email", "user_id")
	TeacherColumns = NewColumnSet(append([]string{"employee_id", "full_name", "subject", "phone", "email",
		"qualification", "experience", "joining_date", "username", "status", "user_id"}, PermissionColumns...)...)
	AnnouncementColumns = NewColumnSet("title", "content", "date", "category", "priority", "target_audience")
	EventColumns        = NewColumnSet("title", "description", "category", "date_time", "venue", "status")
	RouteColumns        = NewColumnSet("route_number", "route_name", "driver_name", "driver_phone",
		"vehicle_number", "monthly_fee", "status")
	ExamColumns = NewColumnSet("name", "subject", "class", "section", "date", "max_marks", "type", "created_by")
)

func withID(row Row, id string) Row {
	if id != "" {
		row["id"] = id
	}
	return row
}

// Students

func StudentToRow(s model.Student) Row {
	return withID(Row{
		"roll_number":    s.RollNumber,
		"full_name":      s.FullName,
		"class":          s.Class,
		"section":        s.Section,
		"parent_name":    s.ParentName,
		"parent_phone":   s.ParentPhone,
		"address":        s.Address,
		"date_of_birth":  optional(s.DateOfBirth),
		"admission_date": optional(s.AdmissionDate),
		"status":         string(s.Status),
		"email":          s.Email,
		"user_id":        optional(s.UserID),
	}, s.ID)
}

func StudentFromRow(r Row) model.Student {
	return model.Student{
		ID:            String(r, "id"),
		RollNumber:    String(r, "roll_number"),
		FullName:      String(r, "full_name"),
		Class:         String(r, "class"),
		Section:       String(r, "section"),
		ParentName:    String(r, "parent_name"),
		ParentPhone:   String(r, "parent_phone"),
		Address:       String(r, "address"),
		DateOfBirth:   Date(r, "date_of_birth"),
		AdmissionDate: Date(r, "admission_date"),
		Status:        model.Status(String(r, "status")),
		Email:         String(r, "email"),
		UserID:        String(r, "user_id"),
	}
}

// Teachers

// FlattenPermissions writes all eight flags as backend columns.
func FlattenPermissions(p model.PermissionSet) Row {
	return Row{
		ColCanManageStudents:      p.ManageStudents,
		ColCanManageTeachers:      p.ManageTeachers,
		ColCanManageAnnouncements: p.ManageAnnouncements,
		ColCanManageEvents:        p.ManageEvents,
		ColCanCreateExams:         p.ManageExams,
		ColCanManageAttendance:    p.ManageAttendance,
		ColCanViewAllResults:      p.ViewAllResults,
		ColFullAdminAccess:        p.FullAdminAccess,
	}
}

// NestPermissions reads the flags back; an absent or null column is false.
func NestPermissions(r Row) model.PermissionSet {
	return model.PermissionSet{
		ManageStudents:      Bool(r, ColCanManageStudents),
		ManageTeachers:      Bool(r, ColCanManageTeachers),
		ManageAnnouncements: Bool(r, ColCanManageAnnouncements),
		ManageEvents:        Bool(r, ColCanManageEvents),
		ManageExams:         Bool(r, ColCanCreateExams),
		ManageAttendance:    Bool(r, ColCanManageAttendance),
		ViewAllResults:      Bool(r, ColCanViewAllResults),
		FullAdminAccess:     Bool(r, ColFullAdminAccess),
	}
}

func TeacherToRow(t model.Teacher) Row {
	row := withID(Row{
		"employee_id":   t.EmployeeID,
		"full_name":     t.FullName,
		"subject":       t.Subject,
		"phone":         t.Phone,
		"email":         t.Email,
		"qualification": t.Qualification,
		"experience":    t.Experience,
		"joining_date":  optional(t.JoiningDate),
		"username":      t.Username,
		"status":        string(t.Status),
		"user_id":       optional(t.UserID),
	}, t.ID)
	for k, v := range FlattenPermissions(t.Permissions) {
		row[k] = v
	}
	return row
}

func TeacherFromRow(r Row) model.Teacher {
	return model.Teacher{
		ID:            String(r, "id"),
		EmployeeID:    String(r, "employee_id"),
		FullName:      String(r, "full_name"),
		Subject:       String(r, "subject"),
		Phone:         String(r, "phone"),
		Email:         String(r, "email"),
		Qualification: String(r, "qualification"),
		Experience:    Int(r, "experience"),
		JoiningDate:   Date(r, "joining_date"),
		Username:      String(r, "username"),
		Status:        model.Status(String(r, "status")),
		Permissions:   NestPermissions(r),
		UserID:        String(r, "user_id"),
	}
}

// Profiles

func ProfileRow(id, username, fullName string, role model.Role) Row {
	return Row{"id": id, "username": username, "full_name": fullName, "role": string(role)}
}

func UserFromProfile(r Row) model.User {
	return model.User{
		ID:       String(r, "id"),
		Name:     String(r, "full_name"),
		Role:     model.Role(String(r, "role")),
		Username: String(r, "username"),
		Avatar:   String(r, "avatar_url"),
	}
}

// Announcements

func AnnouncementToRow(a model.Announcement) Row {
	return withID(Row{
		"title":           a.Title,
		"content":         a.Content,
		"date":            a.Date,
		"category":        string(a.Category),
		"priority":        string(a.Priority),
		"target_audience": string(a.TargetAudience),
	}, a.ID)
}

func AnnouncementFromRow(r Row) model.Announcement {
	return model.Announcement{
		ID:             String(r, "id"),
		Title:          String(r, "title"),
		Content:        String(r, "content"),
		Date:           Date(r, "date"),
		Category:       model.AnnouncementCategory(String(r, "category")),
		Priority:       model.Priority(String(r, "priority")),
		TargetAudience: model.Audience(String(r, "target_audience")),
	}
}

// Events

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// CombineDateTime joins a YYYY-MM-DD date and an HH:MM time into the value
// stored in events.date_time.
func CombineDateTime(date, clock string) (string, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid event date %q", date)
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return "", fmt.Errorf("invalid event time %q", clock)
	}
	return date + "T" + clock + ":00", nil
}

// SplitDateTime separates a stored date_time into date and zero-padded
// 24-hour time, both read in loc. Values without an offset are taken as
// already being in loc.
func SplitDateTime(v any, loc *time.Location) (string, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case string:
		var err error
		t, err = parseDateTime(val, loc)
		if err != nil {
			return "", "", err
		}
	case nil:
		return "", "", nil
	default:
		return "", "", fmt.Errorf("unsupported date_time value %T", v)
	}
	t = t.In(loc)
	return t.Format(DateLayout), t.Format(TimeLayout), nil
}

func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date_time %q", s)
}

func EventToRow(e model.SchoolEvent) (Row, error) {
	row := withID(Row{
		"title":       e.Title,
		"description": e.Description,
		"category":    e.Category,
		"venue":       e.Venue,
		"status":      string(e.Status),
	}, e.ID)
	if e.Date != "" || e.Time != "" {
		dt, err := CombineDateTime(e.Date, e.Time)
		if err != nil {
			return nil, err
		}
		row["date_time"] = dt
	}
	return row, nil
}

func EventFromRow(r Row, loc *time.Location) (model.SchoolEvent, error) {
	date, clock, err := SplitDateTime(r["date_time"], loc)
	if err != nil {
		return model.SchoolEvent{}, err
	}
	return model.SchoolEvent{
		ID:          String(r, "id"),
		Title:       String(r, "title"),
		Description: String(r, "description"),
		Category:    String(r, "category"),
		Date:        date,
		Time:        clock,
		Venue:       String(r, "venue"),
		Status:      model.Status(String(r, "status")),
	}, nil
}

// Transport routes

// StopsEmbed is the alias under which a route's bus_stops are joined.
const StopsEmbed = "stops"

func RouteToRow(t model.TransportRoute) Row {
	return withID(Row{
		"route_number":   t.RouteNumber,
		"route_name":     t.RouteName,
		"driver_name":    t.DriverName,
		"driver_phone":   t.DriverPhone,
		"vehicle_number": t.VehicleNumber,
		"monthly_fee":    t.MonthlyFee,
		"status":         string(t.Status),
	}, t.ID)
}

// StopRows builds bus_stops rows for routeID in list order.
func StopRows(routeID string, stops []model.BusStop) []Row {
	rows := make([]Row, 0, len(stops))
	for _, s := range stops {
		rows = append(rows, Row{"route_id": routeID, "stop_name": s.Name, "stop_time": s.Time})
	}
	return rows
}

func RouteFromRow(r Row) model.TransportRoute {
	stopRows := Rows(r[StopsEmbed])
	stops := make([]model.BusStop, 0, len(stopRows))
	for _, sr := range stopRows {
		stops = append(stops, model.BusStop{
			ID:   String(sr, "id"),
			Name: String(sr, "stop_name"),
			Time: String(sr, "stop_time"),
		})
	}
	return model.TransportRoute{
		ID:            String(r, "id"),
		RouteNumber:   String(r, "route_number"),
		RouteName:     String(r, "route_name"),
		DriverName:    String(r, "driver_name"),
		DriverPhone:   String(r, "driver_phone"),
		VehicleNumber: String(r, "vehicle_number"),
		MonthlyFee:    Float(r, "monthly_fee"),
		Status:        model.Status(String(r, "status")),
		Stops:         stops,
	}
}

// Exams

func ExamToRow(e model.Exam) Row {
	return withID(Row{
		"name":       e.Name,
		"subject":    e.Subject,
		"class":      e.Class,
		"section":    e.Section,
		"date":       optional(e.Date),
		"max_marks":  e.MaxMarks,
		"type":       string(e.Type),
		"created_by": optional(e.CreatedBy),
	}, e.ID)
}

func ExamFromRow(r Row) model.Exam {
	return model.Exam{
		ID:        String(r, "id"),
		Name:      String(r, "name"),
		Subject:   String(r, "subject"),
		Class:     String(r, "class"),
		Section:   String(r, "section"),
		Date:      Date(r, "date"),
		MaxMarks:  Int(r, "max_marks"),
		Type:      model.ExamType(String(r, "type")),
		CreatedBy: String(r, "created_by"),
	}
}

// Attendance

func AttendanceToRow(date string, a model.AttendanceRecord) Row {
	return Row{
		"date":       date,
		"student_id": a.StudentID,
		"status":     string(a.Status),
		"remarks":    a.Remarks,
	}
}

func AttendanceFromRow(r Row) model.AttendanceRecord {
	return model.AttendanceRecord{
		StudentID: String(r, "student_id"),
		Status:    model.AttendanceStatus(String(r, "status")),
		Remarks:   String(r, "remarks"),
	}
}

// Results

func ResultToRow(res model.Result) Row {
	return withID(Row{
		"student_id":     res.StudentID,
		"exam_id":        res.ExamID,
		"marks_obtained": res.MarksObtained,
	}, res.ID)
}

func ResultFromRow(r Row) model.Result {
	return model.Result{
		ID:            String(r, "id"),
		StudentID:     String(r, "student_id"),
		ExamID:        String(r, "exam_id"),
		MarksObtained: Float(r, "marks_obtained"),
	}
}
