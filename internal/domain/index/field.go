package index

import "fmt"

// Type is the declared EDM type of an index field.
type Type string

// Field types understood by the service.
const (
	TypeString            Type = "Edm.String"
	TypeStringCollection  Type = "Collection(Edm.String)"
	TypeInt32             Type = "Edm.Int32"
	TypeDouble            Type = "Edm.Double"
	TypeBoolean           Type = "Edm.Boolean"
	TypeDateTimeOffset    Type = "Edm.DateTimeOffset"
	TypeComplex           Type = "Edm.ComplexType"
	TypeComplexCollection Type = "Collection(Edm.ComplexType)"
)

// IsValid reports whether t belongs to the field type vocabulary.
func (t Type) IsValid() bool {
	switch t {
	case TypeString, TypeStringCollection, TypeInt32, TypeDouble, TypeBoolean,
		TypeDateTimeOffset, TypeComplex, TypeComplexCollection:
		return true
	}
	return false
}

// IsComplex reports whether t holds nested fields.
func (t Type) IsComplex() bool { return t == TypeComplex || t == TypeComplexCollection }

// Field is an immutable description of one index field. Capability flags are
// tri-state: a flag that was never set is omitted from the wire and the service
// default applies.
type Field struct {
	name        string
	fieldType   Type
	analyzer    string
	searchable  *bool
	filterable  *bool
	retrievable *bool
	sortable    *bool
	facetable   *bool
	key         *bool
	fields      []Field
}

// FieldOption configures a simple field.
type FieldOption func(*Field)

// NewField creates a simple (scalar or string-collection) field.
func NewField(name string, t Type, opts ...FieldOption) Field {
	f := Field{name: name, fieldType: t}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// NewComplexField creates a field with nested sub-fields, optionally a collection of them.
func NewComplexField(name string, collection bool, fields ...Field) Field {
	t := TypeComplex
	if collection {
		t = TypeComplexCollection
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Field{name: name, fieldType: t, fields: cp}
}

func flag(v bool) *bool { return &v }

// Key marks the field as the document key.
func Key() FieldOption { return func(f *Field) { f.key = flag(true) } }

// Searchable enables full-text search on the field.
func Searchable() FieldOption { return func(f *Field) { f.searchable = flag(true) } }

// Filterable enables $filter on the field.
func Filterable() FieldOption { return func(f *Field) { f.filterable = flag(true) } }

// Sortable enables $orderby on the field.
func Sortable() FieldOption { return func(f *Field) { f.sortable = flag(true) } }

// Facetable enables facet requests on the field.
func Facetable() FieldOption { return func(f *Field) { f.facetable = flag(true) } }

// Hidden marks the field as not retrievable.
func Hidden() FieldOption { return func(f *Field) { f.retrievable = flag(false) } }

// WithAnalyzer sets the analyzer. Only meaningful for searchable fields.
func WithAnalyzer(name string) FieldOption { return func(f *Field) { f.analyzer = name } }

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the declared type.
func (f Field) FieldType() Type { return f.fieldType }

// Analyzer returns the analyzer name ("" when unset).
func (f Field) Analyzer() string { return f.analyzer }

// IsComplex reports whether the field has nested fields.
func (f Field) IsComplex() bool { return f.fieldType.IsComplex() }

// Fields returns the nested fields of a complex field.
func (f Field) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// IsKey reports whether the field is the document key.
func (f Field) IsKey() bool { return isSet(f.key) }

// IsSearchable reports the searchable flag.
func (f Field) IsSearchable() bool { return isSet(f.searchable) }

// IsFilterable reports the filterable flag.
func (f Field) IsFilterable() bool { return isSet(f.filterable) }

// IsSortable reports the sortable flag.
func (f Field) IsSortable() bool { return isSet(f.sortable) }

// IsFacetable reports the facetable flag.
func (f Field) IsFacetable() bool { return isSet(f.facetable) }

// IsRetrievable reports the retrievable flag. Defaults to true.
func (f Field) IsRetrievable() bool { return f.retrievable == nil || *f.retrievable }

func isSet(b *bool) bool { return b != nil && *b }

func (f Field) String() string { return fmt.Sprintf("%s %s", f.name, f.fieldType) }
