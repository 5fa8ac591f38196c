// Package query turns list-endpoint query strings into filtered, sorted,
// projected and paginated GORM queries.
package query

// Kind drives how raw query values are typed and which operators apply.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindTime
	KindID
	// KindVirtual fields exist only in serialized output (expansions,
	// computed values). They can be projected but not filtered or sorted.
	KindVirtual
)

func (k Kind) comparable() bool {
	return k == KindNumber || k == KindTime
}

// Field maps a public field name to its storage column.
type Field struct {
	Name   string
	Column string
	Kind   Kind
}

func String(name, column string) Field { return Field{Name: name, Column: column, Kind: KindString} }
func Number(name, column string) Field { return Field{Name: name, Column: column, Kind: KindNumber} }
func Bool(name, column string) Field   { return Field{Name: name, Column: column, Kind: KindBool} }
func Time(name, column string) Field   { return Field{Name: name, Column: column, Kind: KindTime} }
func ID(name, column string) Field     { return Field{Name: name, Column: column, Kind: KindID} }
func Virtual(name string) Field        { return Field{Name: name, Kind: KindVirtual} }

const createdAtField = "createdAt"

// Schema is the set of fields a resource exposes to query shaping.
type Schema struct {
	fields      map[string]Field
	hidden      map[string]bool
	idField     string
	defaultSort string
}

// NewSchema builds a schema. The first KindID field named "id" is used as
// the sort tiebreaker. "-createdAt" is the default sort when the schema has
// that field; otherwise only the tiebreaker orders rows.
func NewSchema(fields ...Field) Schema {
	s := Schema{
		fields: make(map[string]Field, len(fields)),
		hidden: map[string]bool{},
	}
	for _, f := range fields {
		s.fields[f.Name] = f
		if f.Kind == KindID && f.Name == "id" {
			s.idField = f.Name
		}
	}
	if f, ok := s.fields[createdAtField]; ok && f.Kind != KindVirtual {
		s.defaultSort = "-" + createdAtField
	}
	return s
}

// HideByDefault excludes bookkeeping fields from the default projection.
// They are still returned when explicitly requested.
func (s Schema) HideByDefault(names ...string) Schema {
	hidden := make(map[string]bool, len(s.hidden)+len(names))
	for k := range s.hidden {
		hidden[k] = true
	}
	for _, n := range names {
		hidden[n] = true
	}
	s.hidden = hidden
	return s
}

// WithDefaultSort overrides the sort used when none is requested.
func (s Schema) WithDefaultSort(sort string) Schema {
	s.defaultSort = sort
	return s
}

// Lookup returns the field registered under name.
func (s Schema) Lookup(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}
