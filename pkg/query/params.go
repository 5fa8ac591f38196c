package query

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Op is a filter operator.
type Op string

const (
	OpEq  Op = "eq"
	OpIn  Op = "in"
	OpGte Op = "gte"
	OpGt  Op = "gt"
	OpLte Op = "lte"
	OpLt  Op = "lt"
)

var reservedKeys = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var filterKeyPattern = regexp.MustCompile(`^([A-Za-z0-9_.]+)(?:\[(gte|gt|lte|lt)\])?$`)

// Filter is one condition on one field.
type Filter struct {
	Field  Field
	Op     Op
	Values []any
}

// SortKey orders by one field.
type SortKey struct {
	Field Field
	Desc  bool
}

// Params is the parsed, typed form of a list query string.
type Params struct {
	Filters []Filter
	Sort    []SortKey
	// Include lists the projected fields when the client asked for specific
	// ones; Exclude lists fields dropped from the default projection.
	Include []string
	Exclude []string
	Page    pagination.Params
}

// Offset is the number of rows skipped before the requested page.
func (p Params) Offset() int { return p.Page.Offset() }

// Limit is the page size.
func (p Params) Limit() int { return p.Page.Limit }

// Parse applies the filter, sort, field-limiting and paginate steps to the
// raw query values. Unknown or mistyped fields fail with a validation error
// listing every problem.
func Parse(values url.Values, schema Schema) (Params, error) {
	var (
		params   Params
		problems []string
	)

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reservedKeys[key] {
			continue
		}
		filter, err := parseFilter(key, values[key], schema)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		params.Filters = append(params.Filters, filter)
	}

	sortKeys, errs := parseSort(joinValues(values["sort"]), schema)
	params.Sort = sortKeys
	problems = append(problems, errs...)

	include, exclude, errs := parseFields(joinValues(values["fields"]), schema)
	params.Include, params.Exclude = include, exclude
	problems = append(problems, errs...)

	params.Page = pagination.Parse(values.Get("page"), values.Get("limit"))

	if len(problems) > 0 {
		return Params{}, pkgerrors.New(pkgerrors.CodeValidation, "Invalid query parameters").WithDetails(problems)
	}
	return params, nil
}

func parseFilter(key string, raw []string, schema Schema) (Filter, error) {
	m := filterKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return Filter{}, fmt.Errorf("unsupported query parameter %q", key)
	}
	field, ok := schema.Lookup(m[1])
	if !ok || field.Kind == KindVirtual {
		return Filter{}, fmt.Errorf("cannot filter by %q", m[1])
	}

	op := OpEq
	if m[2] != "" {
		op = Op(m[2])
		if !field.Kind.comparable() {
			return Filter{}, fmt.Errorf("operator %s is not supported for %q", op, field.Name)
		}
		if len(raw) != 1 {
			return Filter{}, fmt.Errorf("%s accepts a single value", key)
		}
	}

	typed := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := convert(field, r)
		if err != nil {
			return Filter{}, err
		}
		typed = append(typed, v)
	}
	if op == OpEq && len(typed) > 1 {
		op = OpIn
	}
	return Filter{Field: field, Op: op, Values: typed}, nil
}

func convert(field Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch field.Kind {
	case KindNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", field.Name)
		}
		return v, nil
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", field.Name)
		}
		return v, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if v, err := time.Parse(layout, raw); err == nil {
				return v.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD or RFC3339)", field.Name)
	case KindID:
		v, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a valid id", field.Name)
		}
		return v, nil
	default:
		return raw, nil
	}
}

func parseSort(raw string, schema Schema) ([]SortKey, []string) {
	if strings.TrimSpace(raw) == "" {
		raw = schema.defaultSort
	}

	var (
		keys     []SortKey
		problems []string
		seenID   bool
	)
	for _, token := range splitList(raw) {
		desc := strings.HasPrefix(token, "-")
		name := strings.TrimPrefix(token, "-")
		field, ok := schema.Lookup(name)
		if !ok || field.Kind == KindVirtual {
			problems = append(problems, fmt.Sprintf("cannot sort by %q", name))
			continue
		}
		if field.Name == schema.idField {
			seenID = true
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	if !seenID && schema.idField != "" {
		idField, _ := schema.Lookup(schema.idField)
		keys = append(keys, SortKey{Field: idField})
	}
	return keys, problems
}

func parseFields(raw string, schema Schema) ([]string, []string, []string) {
	var include, exclude, problems []string
	for _, token := range splitList(raw) {
		name := strings.TrimPrefix(token, "-")
		if _, ok := schema.Lookup(name); !ok {
			problems = append(problems, fmt.Sprintf("unknown field %q", name))
			continue
		}
		if strings.HasPrefix(token, "-") {
			exclude = append(exclude, name)
		} else {
			include = append(include, name)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		problems = append(problems, "fields cannot mix inclusion and exclusion")
	}
	return include, exclude, problems
}

func joinValues(values []string) string {
	return strings.Join(values, ",")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
