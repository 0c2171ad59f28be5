package pgdata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"schoolportal/internal/remote"
)

// Every statement reads and returns rows as jsonb so results have the same
// shape as the hosted REST service: dates as YYYY-MM-DD, numbers as JSON
// numbers, embedded relations as arrays.

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func where(filters []remote.Filter, a *args) string {
	if len(filters) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		col := "t." + ident(f.Column)
		switch {
		case f.Op == remote.OpIn:
			values, _ := f.Value.([]string)
			clauses = append(clauses, col+"::text = ANY("+a.add(values)+")")
		case f.Value == nil:
			clauses = append(clauses, col+" IS NULL")
		default:
			clauses = append(clauses, col+"::text = "+a.add(fmt.Sprint(f.Value)))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func selectSQL(table string, q remote.Query) (string, []any) {
	var a args
	var b strings.Builder
	b.WriteString("SELECT to_jsonb(t)")
	for _, e := range q.Embed {
		order := ""
		if e.OrderBy != "" {
			order = " ORDER BY c." + ident(e.OrderBy)
		}
		fmt.Fprintf(&b, " || jsonb_build_object('%s', COALESCE((SELECT jsonb_agg(to_jsonb(c)%s) FROM %s c WHERE c.%s = t.id), '[]'::jsonb))",
			strings.ReplaceAll(e.Alias, "'", ""), order, ident(e.Table), ident(e.ForeignKey))
	}
	b.WriteString(" FROM " + ident(table) + " t")
	b.WriteString(where(q.Filters, &a))
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "DESC"
			if o.Ascending {
				dir = "ASC"
			}
			parts = append(parts, "t."+ident(o.Column)+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String(), a
}

func sortedKeys(r remote.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func insertSQL(table string, row remote.Row) (string, []any) {
	var a args
	keys := sortedKeys(row)
	if len(keys) == 0 {
		return "INSERT INTO " + ident(table) + " AS t DEFAULT VALUES RETURNING to_jsonb(t)", nil
	}
	cols := make([]string, 0, len(keys))
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, ident(k))
		vals = append(vals, a.add(row[k]))
	}
	return fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) RETURNING to_jsonb(t)",
		ident(table), strings.Join(cols, ", "), strings.Join(vals, ", ")), a
}

func upsertSQL(table string, onConflict []string, row remote.Row) (string, []any) {
	stmt, a := insertSQL(table, row)
	stmt = strings.TrimSuffix(stmt, " RETURNING to_jsonb(t)")
	if len(onConflict) == 0 {
		return stmt + " RETURNING to_jsonb(t)", a
	}
	conflict := make(map[string]bool, len(onConflict))
	targets := make([]string, 0, len(onConflict))
	for _, c := range onConflict {
		conflict[c] = true
		targets = append(targets, ident(c))
	}
	var sets []string
	for _, k := range sortedKeys(row) {
		if conflict[k] || k == "id" {
			continue
		}
		sets = append(sets, ident(k)+" = EXCLUDED."+ident(k))
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) %s RETURNING to_jsonb(t)", stmt, strings.Join(targets, ", "), action), a
}

func updateSQL(table string, patch remote.Row, filters []remote.Filter) (string, []any) {
	var a args
	var sets []string
	for _, k := range sortedKeys(patch) {
		if k == "id" {
			continue
		}
		sets = append(sets, ident(k)+" = "+a.add(patch[k]))
	}
	return fmt.Sprintf("UPDATE %s AS t SET %s%s RETURNING to_jsonb(t)",
		ident(table), strings.Join(sets, ", "), where(filters, &a)), a
}

func deleteSQL(table string, filters []remote.Filter) (string, []any) {
	var a args
	return "DELETE FROM " + ident(table) + " AS t" + where(filters, &a), a
}
