package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/model"
)

func TestSetInitialDataIsOnlyReadySwitch(t *testing.T) {
	s := Initial()
	for _, a := range []Action{
		Login{User: model.User{ID: "u1", Role: model.RoleAdmin}},
		AddStudent{Student: model.Student{ID: "s1"}},
		SaveResults{Results: []model.Result{{StudentID: "s1", ExamID: "e1"}}},
		Logout{},
	} {
		s = Reduce(s, a)
		assert.False(t, s.AppReady, a.Type())
	}

	s = Reduce(s, SetInitialData{Students: []model.Student{{ID: "s2"}}})
	assert.True(t, s.AppReady)
	assert.Equal(t, []model.Student{{ID: "s2"}}, s.Students)
	assert.NotNil(t, s.Teachers)
	assert.Empty(t, s.Teachers)
}

func TestLoginLogoutLeaveCollections(t *testing.T) {
	s := Reduce(Initial(), SetInitialData{Exams: []model.Exam{{ID: "e1"}}})
	in := Reduce(s, Login{User: model.User{ID: "u1", Role: model.RoleTeacher}})
	require.NotNil(t, in.User)
	assert.Equal(t, "u1", in.User.ID)
	assert.Equal(t, s.Exams, in.Exams)

	out := Reduce(in, Logout{})
	assert.Nil(t, out.User)
	assert.Equal(t, s.Exams, out.Exams)
	assert.True(t, out.AppReady)
}

func TestAddOrdering(t *testing.T) {
	s := Initial()
	s = Reduce(s, AddStudent{Student: model.Student{ID: "a"}})
	s = Reduce(s, AddStudent{Student: model.Student{ID: "b"}})
	s = Reduce(s, AddAnnouncement{Announcement: model.Announcement{ID: "old"}})
	s = Reduce(s, AddAnnouncement{Announcement: model.Announcement{ID: "new"}})
	s = Reduce(s, AddEvent{Event: model.SchoolEvent{ID: "e1"}})
	s = Reduce(s, AddEvent{Event: model.SchoolEvent{ID: "e2"}})

	assert.Equal(t, []model.Student{{ID: "a"}, {ID: "b"}}, s.Students)
	assert.Equal(t, "new", s.Announcements[0].ID)
	assert.Equal(t, "e2", s.Events[0].ID)
}

func TestUpdateAndDelete(t *testing.T) {
	s := Reduce(Initial(), SetInitialData{
		Teachers:        []model.Teacher{{ID: "t1", FullName: "A"}, {ID: "t2", FullName: "B"}},
		TransportRoutes: []model.TransportRoute{{ID: "r1"}},
	})

	tests := []struct {
		name   string
		action Action
		check  func(t *testing.T, next State)
	}{
		{
			name:   "update matching teacher",
			action: UpdateTeacher{Teacher: model.Teacher{ID: "t2", FullName: "B2"}},
			check: func(t *testing.T, next State) {
				assert.Equal(t, []model.Teacher{{ID: "t1", FullName: "A"}, {ID: "t2", FullName: "B2"}}, next.Teachers)
			},
		},
		{
			name:   "update unknown teacher is a no-op",
			action: UpdateTeacher{Teacher: model.Teacher{ID: "t9", FullName: "Z"}},
			check: func(t *testing.T, next State) {
				assert.Equal(t, s.Teachers, next.Teachers)
			},
		},
		{
			name:   "delete unknown student is a no-op",
			action: DeleteStudent{ID: "missing"},
			check: func(t *testing.T, next State) {
				assert.Equal(t, s.Students, next.Students)
			},
		},
		{
			name:   "delete route",
			action: DeleteRoute{ID: "r1"},
			check: func(t *testing.T, next State) {
				assert.Empty(t, next.TransportRoutes)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Reduce(s, tt.action))
		})
	}
	assert.Equal(t, "B", s.Teachers[1].FullName)
	assert.Len(t, s.TransportRoutes, 1)
}

func TestSaveAttendanceReplacesOneDate(t *testing.T) {
	s := Initial()
	s = Reduce(s, SaveAttendance{Date: "2024-07-01", Records: []model.AttendanceRecord{{StudentID: "s1", Status: model.AttendancePresent}}})
	s = Reduce(s, SaveAttendance{Date: "2024-07-02", Records: []model.AttendanceRecord{{StudentID: "s1", Status: model.AttendanceAbsent}}})
	before := s

	s = Reduce(s, SaveAttendance{Date: "2024-07-01", Records: []model.AttendanceRecord{{StudentID: "s2", Status: model.AttendanceLate}}})

	assert.Equal(t, []model.AttendanceRecord{{StudentID: "s2", Status: model.AttendanceLate}}, s.Attendance["2024-07-01"])
	assert.Equal(t, before.Attendance["2024-07-02"], s.Attendance["2024-07-02"])
	assert.Equal(t, model.AttendancePresent, before.Attendance["2024-07-01"][0].Status)
}

func TestSaveResultsReplacesSameKey(t *testing.T) {
	s := Reduce(Initial(), SetInitialData{Results: []model.Result{
		{StudentID: "s", ExamID: "e", MarksObtained: 40},
		{StudentID: "s", ExamID: "other", MarksObtained: 20},
	}})

	s = Reduce(s, SaveResults{Results: []model.Result{{StudentID: "s", ExamID: "e", MarksObtained: 55}}})

	var forPair []model.Result
	for _, r := range s.Results {
		if r.StudentID == "s" && r.ExamID == "e" {
			forPair = append(forPair, r)
		}
	}
	require.Len(t, forPair, 1)
	assert.Equal(t, 55.0, forPair[0].MarksObtained)
	assert.Len(t, s.Results, 2)
}
