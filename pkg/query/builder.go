package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// binder hands out positional placeholders and collects their arguments.
type binder struct {
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

type condition func(b *binder) string

// SortField is one ORDER BY term. Field is a view field name resolved through
// the projection.
type SortField struct {
	Field      string
	Descending bool
}

// Builder accumulates conditions and ordering for a projection.
type Builder struct {
	projection        *ProjectionMap
	conditions        []condition
	orderByFields     []SortField
	defaultSortFields []SortField
}

func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:        projection,
		defaultSortFields: defaultSort,
	}
}

// ParseSortFields parses "title,-created_at" style input. A leading "-" sorts
// descending. Returns nil for empty input.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

func (b *Builder) Build() (string, []any) {
	var bd binder
	where := b.where(&bd)
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From() + where + b.orderBy(), bd.args
}

func (b *Builder) BuildCount() (string, []any) {
	var bd binder
	where := b.where(&bd)
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, bd.args
}

// BuildPage returns an ordered SELECT with LIMIT and OFFSET for a 1-based page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	offset := (page - 1) * pageSize
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, offset), args
}

// BuildSingle selects one record by the given id field, ignoring other conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(idField),
	)
	return sql, []any{id}
}

func (b *Builder) BuildSingleOrNull() (string, []any) {
	var bd binder
	where := b.where(&bd)
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From() + where + " LIMIT 1", bd.args
}

// OrderByFields overrides the default sort.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.orderByFields = fields
	return b
}

// WhereEquals adds field = value. No-op when value is nil or a nil pointer.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bd *binder) string {
		return col + " = " + bd.bind(value)
	})
	return b
}

// WhereContains adds a case-insensitive substring match. No-op for nil or empty.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.WhereSearch(value, field)
}

// WhereIn adds field IN (...). No-op for an empty list.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bd *binder) string {
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = bd.bind(v)
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")"
	})
	return b
}

// WhereNullable adds field = value, or field IS NULL when value is nil.
func (b *Builder) WhereNullable(field string, value any) *Builder {
	if isNil(value) {
		col := b.projection.Column(field)
		b.conditions = append(b.conditions, func(*binder) string {
			return col + " IS NULL"
		})
		return b
	}
	return b.WhereEquals(field, value)
}

// WhereSearch ORs an ILIKE match of search across fields.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.Column(f)
	}
	b.conditions = append(b.conditions, func(bd *binder) string {
		clauses := make([]string, len(cols))
		for i, col := range cols {
			clauses[i] = col + " ILIKE " + bd.bind(pattern)
		}
		if len(clauses) == 1 {
			return clauses[0]
		}
		return "(" + strings.Join(clauses, " OR ") + ")"
	})
	return b
}

// WhereRaw adds a hand-written clause. Each "?" is replaced in order by a
// positional placeholder bound to the matching arg.
func (b *Builder) WhereRaw(clause string, args ...any) *Builder {
	if strings.Count(clause, "?") != len(args) {
		panic(fmt.Sprintf("query: WhereRaw %q expects %d args, got %d", clause, strings.Count(clause, "?"), len(args)))
	}
	b.conditions = append(b.conditions, func(bd *binder) string {
		var sb strings.Builder
		i := 0
		for _, r := range clause {
			if r == '?' {
				sb.WriteString(bd.bind(args[i]))
				i++
				continue
			}
			sb.WriteRune(r)
		}
		return sb.String()
	})
	return b
}

func (b *Builder) orderBy() string {
	fields := b.orderByFields
	if len(fields) == 0 {
		fields = b.defaultSortFields
	}
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (b *Builder) where(bd *binder) string {
	if len(b.conditions) == 0 {
		return ""
	}
	clauses := make([]string, len(b.conditions))
	for i, c := range b.conditions {
		clauses[i] = c(bd)
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
