package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseConversion(t *testing.T) {
	tests := []struct {
		camel string
		snake string
	}{
		{camel: "id", snake: "id"},
		{camel: "rollNumber", snake: "roll_number"},
		{camel: "targetAudience", snake: "target_audience"},
		{camel: "canViewAllResults", snake: "can_view_all_results"},
		{camel: "dateTime", snake: "date_time"},
	}
	for _, tt := range tests {
		t.Run(tt.camel, func(t *testing.T) {
			assert.Equal(t, tt.snake, SnakeCase(tt.camel))
			assert.Equal(t, tt.camel, CamelCase(tt.snake))
		})
	}
}

func TestShapeRoundTrip(t *testing.T) {
	records := []map[string]any{
		{
			"id":            "s1",
			"rollNumber":    "R-101",
			"fullName":      "Asha Verma",
			"status":        "active",
			"admissionDate": "2023-04-01",
		},
		{
			"id":         "r1",
			"routeName":  "North Loop",
			"monthlyFee": 1200.5,
			"stops": []any{
				map[string]any{"stopName": "Gate", "stopTime": "07:10"},
				map[string]any{"stopName": "Market", "stopTime": "07:25"},
			},
		},
		{
			"id":        "e1",
			"maxMarks":  100,
			"createdBy": nil,
		},
	}
	for _, rec := range records {
		backend := ToBackendShape(rec)
		assert.Equal(t, rec, ToClientShape(backend))
	}
}

func TestToBackendShape(t *testing.T) {
	in := Patch{
		"fullName":    "Ravi",
		"parentPhone": Undefined,
		"userId":      nil,
		"nested":      map[string]any{"innerKey": []any{map[string]any{"deepKey": 1}}},
	}
	want := map[string]any{
		"full_name": "Ravi",
		"user_id":   nil,
		"nested":    map[string]any{"inner_key": []any{map[string]any{"deep_key": 1}}},
	}
	assert.Equal(t, want, ToBackendShape(in))
}

func TestShapePrimitivesPassThrough(t *testing.T) {
	for _, v := range []any{nil, 3, "text", true, 2.5} {
		assert.Equal(t, v, ToBackendShape(v))
		assert.Equal(t, v, ToClientShape(v))
	}
}

func TestColumnSetUnknown(t *testing.T) {
	unknown := AnnouncementColumns.Unknown(Row{"title": "x", "secret": 1})
	assert.Equal(t, []string{"secret"}, unknown)
}
