package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/model"
)

func TestPermissionsRoundTrip(t *testing.T) {
	perms := model.PermissionSet{
		ManageStudents:   true,
		ManageExams:      true,
		ViewAllResults:   true,
		ManageAttendance: false,
	}
	row := FlattenPermissions(perms)
	assert.Len(t, row, len(PermissionColumns))
	assert.Equal(t, true, row[ColCanCreateExams])
	assert.Equal(t, perms, NestPermissions(row))
}

func TestNestPermissionsDefaultsMissingFlags(t *testing.T) {
	row := Row{
		"id":                 "t1",
		ColCanManageEvents:   true,
		ColCanManageStudents: nil,
		ColCanViewAllResults: "yes",
	}
	got := TeacherFromRow(row)
	assert.Equal(t, model.PermissionSet{ManageEvents: true}, got.Permissions)
}

func TestTeacherRowHasNoClientPermissionKeys(t *testing.T) {
	row := TeacherToRow(model.Teacher{ID: "t1", Username: "mr.das", Permissions: model.PermissionSet{FullAdminAccess: true}})
	for _, k := range []string{"permissions", "manageStudents", "manage_students", "fullAdminAccess"} {
		assert.NotContains(t, row, k)
	}
	assert.Equal(t, true, row[ColFullAdminAccess])
	assert.Empty(t, TeacherColumns.Unknown(withoutID(row)))
}

func withoutID(r Row) Row {
	out := Row{}
	for k, v := range r {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}

func TestEventDateTimeRoundTrip(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*60*60+30*60)

	tests := []struct {
		name string
		date string
		time string
		loc  *time.Location
	}{
		{name: "morning utc", date: "2024-03-05", time: "09:05", loc: time.UTC},
		{name: "midnight", date: "2024-12-31", time: "00:00", loc: time.UTC},
		{name: "late evening local zone", date: "2024-01-01", time: "23:45", loc: kolkata},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			combined, err := CombineDateTime(tt.date, tt.time)
			require.NoError(t, err)

			date, clock, err := SplitDateTime(combined, tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.date, date)
			assert.Equal(t, tt.time, clock)
		})
	}
}

func TestSplitDateTimeFromBackendValues(t *testing.T) {
	date, clock, err := SplitDateTime("2024-06-10T14:30:00+00:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", date)
	assert.Equal(t, "14:30", clock)

	date, clock, err = SplitDateTime(time.Date(2024, 6, 10, 8, 3, 0, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", date)
	assert.Equal(t, "08:03", clock)

	_, _, err = SplitDateTime("tomorrow", time.UTC)
	assert.Error(t, err)
}

func TestCombineDateTimeRejectsBadInput(t *testing.T) {
	_, err := CombineDateTime("2024-13-01", "10:00")
	assert.Error(t, err)
	_, err = CombineDateTime("2024-01-01", "7pm")
	assert.Error(t, err)
}

func TestEventRowRoundTrip(t *testing.T) {
	ev := model.SchoolEvent{
		ID:       "ev1",
		Title:    "Sports Day",
		Category: "Sports",
		Date:     "2024-11-14",
		Time:     "08:30",
		Venue:    "Main Ground",
		Status:   model.StatusActive,
	}
	row, err := EventToRow(ev)
	require.NoError(t, err)
	assert.NotContains(t, row, "date")
	assert.NotContains(t, row, "time")

	got, err := EventFromRow(row, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestRouteFromRowWithEmbeddedStops(t *testing.T) {
	row := Row{
		"id":          "r1",
		"route_name":  "East",
		"monthly_fee": float64(900),
		StopsEmbed: []any{
			map[string]any{"id": "s1", "stop_name": "Temple", "stop_time": "07:00"},
			map[string]any{"id": "s2", "stop_name": "School", "stop_time": "07:40"},
		},
	}
	got := RouteFromRow(row)
	assert.Equal(t, 900.0, got.MonthlyFee)
	assert.Equal(t, []model.BusStop{{ID: "s1", Name: "Temple", Time: "07:00"}, {ID: "s2", Name: "School", Time: "07:40"}}, got.Stops)
}

func TestStudentRowRoundTrip(t *testing.T) {
	s := model.Student{
		ID:            "st1",
		RollNumber:    "R-7",
		FullName:      "Meera",
		Class:         "5",
		Section:       "A",
		DateOfBirth:   "2014-02-09",
		AdmissionDate: "2019-04-01",
		Status:        model.StatusActive,
		Email:         "r7@mmps",
		UserID:        "u7",
	}
	assert.Equal(t, s, StudentFromRow(StudentToRow(s)))
}
