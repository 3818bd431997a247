package cachetypes

// FieldDefinition names and types one position in a Schema.
type FieldDefinition struct {
	Name     string
	Type     FieldType
	Nullable bool
	// Source records where this field's value originates (e.g. the
	// upstream connector/column it was projected from). Informational
	// only; never consulted by codec, planner, or executor.
	Source string
}

// Schema is an ordered vector of field definitions plus the positions
// that make up the primary key.
type Schema struct {
	Fields []FieldDefinition

	// PrimaryIndex names zero or more positions whose values together
	// form the primary key. Empty means the cache synthesizes a
	// monotonic rowid (see SyntheticRowID).
	PrimaryIndex []int

	// SyntheticRowID is set when PrimaryIndex is empty: the writer
	// assigns and prepends a synthesized u64 id as the de facto primary
	// key instead of deriving one from field values.
	SyntheticRowID bool
}

// PrimaryKeyValues extracts the field values that make up r's primary
// key, in PrimaryIndex order.
func (s Schema) PrimaryKeyValues(r Record) []Field {
	vals := make([]Field, len(s.PrimaryIndex))
	for i, pos := range s.PrimaryIndex {
		vals[i] = r.Values[pos]
	}
	return vals
}

// FieldPosition returns the position of the named field, or -1.
func (s Schema) FieldPosition(name string) int {
	for i, fd := range s.Fields {
		if fd.Name == name {
			return i
		}
	}
	return -1
}

// IndexKind distinguishes the two supported secondary index shapes.
type IndexKind uint8

const (
	SortedInverted IndexKind = iota
	FullText
)

// Direction orders a SortedInverted field ascending or descending.
type Direction uint8

const (
	Asc Direction = iota
	Desc
)

// SortField is one (field_position, direction) pair of a SortedInverted
// index definition.
type SortField struct {
	FieldPosition int
	Direction     Direction
}

// IndexDefinition is either a SortedInverted composite index or a
// FullText index over a single String/Text field.
type IndexDefinition struct {
	Kind IndexKind

	// SortFields is populated for Kind == SortedInverted.
	SortFields []SortField

	// TextField is the field position for Kind == FullText.
	TextField int
}

func NewSortedInverted(fields ...SortField) IndexDefinition {
	return IndexDefinition{Kind: SortedInverted, SortFields: fields}
}

func NewFullText(fieldPosition int) IndexDefinition {
	return IndexDefinition{Kind: FullText, TextField: fieldPosition}
}
