package pgdata

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"schoolportal/internal/remote"
)

func TestSelectSQL(t *testing.T) {
	stmt, args := selectSQL("announcements", remote.Query{
		Filters: []remote.Filter{remote.Eq("category", "Fees")},
		Order:   []remote.Order{{Column: "date", Ascending: false}},
		Limit:   5,
	})
	assert.Equal(t, `SELECT to_jsonb(t) FROM "announcements" t WHERE t."category"::text = $1 ORDER BY t."date" DESC LIMIT 5`, stmt)
	assert.Equal(t, []any{"Fees"}, args)
}

func TestSelectSQLWithEmbedAndIn(t *testing.T) {
	stmt, args := selectSQL("transport_routes", remote.Query{
		Filters: []remote.Filter{remote.In("id", "a", "b")},
		Embed:   []remote.Embed{{Alias: "stops", Table: "bus_stops", ForeignKey: "route_id", OrderBy: "stop_time"}},
	})
	assert.Equal(t, `SELECT to_jsonb(t) || jsonb_build_object('stops', COALESCE((SELECT jsonb_agg(to_jsonb(c) ORDER BY c."stop_time") FROM "bus_stops" c WHERE c."route_id" = t.id), '[]'::jsonb)) FROM "transport_routes" t WHERE t."id"::text = ANY($1)`, stmt)
	assert.Equal(t, []any{[]string{"a", "b"}}, args)
}

func TestInsertSQLOrdersColumns(t *testing.T) {
	stmt, args := insertSQL("students", remote.Row{"roll_number": "R1", "full_name": "Asha", "user_id": nil})
	assert.Equal(t, `INSERT INTO "students" AS t ("full_name", "roll_number", "user_id") VALUES ($1, $2, $3) RETURNING to_jsonb(t)`, stmt)
	assert.Equal(t, []any{"Asha", "R1", nil}, args)
}

func TestUpsertSQL(t *testing.T) {
	stmt, args := upsertSQL("results", []string{"student_id", "exam_id"},
		remote.Row{"student_id": "s1", "exam_id": "e1", "marks_obtained": 88.5})
	assert.Equal(t, `INSERT INTO "results" AS t ("exam_id", "marks_obtained", "student_id") VALUES ($1, $2, $3)`+
		` ON CONFLICT ("student_id", "exam_id") DO UPDATE SET "marks_obtained" = EXCLUDED."marks_obtained" RETURNING to_jsonb(t)`, stmt)
	assert.Equal(t, []any{"e1", 88.5, "s1"}, args)
}

func TestUpdateAndDeleteSQL(t *testing.T) {
	stmt, args := updateSQL("exams", remote.Row{"id": "x", "name": "Mid", "max_marks": 50}, []remote.Filter{remote.Eq("id", "e1")})
	assert.Equal(t, `UPDATE "exams" AS t SET "max_marks" = $1, "name" = $2 WHERE t."id"::text = $3 RETURNING to_jsonb(t)`, stmt)
	assert.Equal(t, []any{50, "Mid", "e1"}, args)

	stmt, args = deleteSQL("bus_stops", []remote.Filter{remote.Eq("route_id", "r1")})
	assert.Equal(t, `DELETE FROM "bus_stops" AS t WHERE t."route_id"::text = $1`, stmt)
	assert.Equal(t, []any{"r1"}, args)
}

func TestNullFilter(t *testing.T) {
	stmt, args := deleteSQL("profiles", []remote.Filter{remote.Eq("role", nil)})
	assert.Equal(t, `DELETE FROM "profiles" AS t WHERE t."role" IS NULL`, stmt)
	assert.Empty(t, args)
}

func TestWrapKeepsSQLState(t *testing.T) {
	err := wrap("insert", "students", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	var te *remote.TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, "23505", te.Code)
	assert.Equal(t, "students", te.Table)

	assert.NoError(t, wrap("insert", "students", nil))
}
