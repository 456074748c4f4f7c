package searchidx

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
)

const tagKey = "searchidx"

// DefaultSuggester names the suggester built from fields tagged "suggest".
const DefaultSuggester = "sg"

var timeType = reflect.TypeOf(time.Time{})

// schemaMeta holds parsed struct tag metadata, cached per TypedIndex.
type schemaMeta struct {
	typ     reflect.Type // struct type for reconstruction
	ptr     bool         // T is a pointer to typ
	keyName string
	keyIdx  int
	fields  []fieldMapping
	suggest []string
}

// fieldMapping ties a struct field to its index field.
type fieldMapping struct {
	structIdx int
	name      string
	field     domindex.Field
	children  []fieldMapping // nested struct fields, nil for scalars
}

// parseSchema reflects on T and extracts searchidx struct tag metadata.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("searchidx: type parameter must be a struct")
	}
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("searchidx: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, ptr: ptr, keyIdx: -1}
	fields, err := parseStruct(meta, t, "")
	if err != nil {
		return nil, err
	}
	meta.fields = fields
	if meta.keyIdx == -1 {
		return nil, fmt.Errorf("searchidx: no field with `searchidx:\"...,key\"` tag in %s", t)
	}
	if err := meta.definition("schema").Validate(); err != nil {
		return nil, fmt.Errorf("searchidx: %s: %w", t, err)
	}
	return meta, nil
}

func parseStruct(meta *schemaMeta, t reflect.Type, prefix string) ([]fieldMapping, error) {
	var out []fieldMapping
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get(tagKey)
		if tag == "" || tag == "-" || !sf.IsExported() {
			continue
		}
		m, err := parseField(meta, i, sf, tag, prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// parseField processes a single struct field's searchidx tag.
func parseField(meta *schemaMeta, idx int, sf reflect.StructField, tag, prefix string) (fieldMapping, error) {
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = sf.Name
	}
	path := prefix + name

	edm, elem, err := edmType(sf.Type)
	if err != nil {
		return fieldMapping{}, fmt.Errorf("searchidx: field %s: %w", sf.Name, err)
	}

	var opts []domindex.FieldOption
	for _, mod := range parts[1:] {
		switch {
		case mod == "key":
			if prefix != "" || edm != domindex.TypeString {
				return fieldMapping{}, fmt.Errorf("searchidx: key field %s must be a top-level string", sf.Name)
			}
			if meta.keyIdx != -1 {
				return fieldMapping{}, fmt.Errorf("searchidx: duplicate key tag on field %s", sf.Name)
			}
			meta.keyIdx = idx
			meta.keyName = name
			opts = append(opts, domindex.Key())
		case mod == "searchable":
			opts = append(opts, domindex.Searchable())
		case mod == "filterable":
			opts = append(opts, domindex.Filterable())
		case mod == "sortable":
			opts = append(opts, domindex.Sortable())
		case mod == "facetable":
			opts = append(opts, domindex.Facetable())
		case mod == "hidden":
			opts = append(opts, domindex.Hidden())
		case mod == "suggest":
			meta.suggest = append(meta.suggest, path)
		case strings.HasPrefix(mod, "analyzer="):
			opts = append(opts, domindex.WithAnalyzer(strings.TrimPrefix(mod, "analyzer=")))
		default:
			return fieldMapping{}, fmt.Errorf("searchidx: unknown modifier %q on field %s", mod, sf.Name)
		}
	}

	m := fieldMapping{structIdx: idx, name: name}
	if edm.IsComplex() {
		if len(opts) > 0 {
			return fieldMapping{}, fmt.Errorf("searchidx: complex field %s takes no capability modifiers", sf.Name)
		}
		children, err := parseStruct(meta, elem, path+"/")
		if err != nil {
			return fieldMapping{}, err
		}
		m.children = children
		nested := make([]domindex.Field, len(children))
		for i, c := range children {
			nested[i] = c.field
		}
		m.field = domindex.NewComplexField(name, edm == domindex.TypeComplexCollection, nested...)
		return m, nil
	}
	m.field = domindex.NewField(name, edm, opts...)
	return m, nil
}

// edmType maps a Go type onto the field type vocabulary. For complex types it
// also returns the struct type holding the nested fields.
func edmType(t reflect.Type) (domindex.Type, reflect.Type, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return domindex.TypeDateTimeOffset, nil, nil
	}
	switch t.Kind() {
	case reflect.String:
		return domindex.TypeString, nil, nil
	case reflect.Bool:
		return domindex.TypeBoolean, nil, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return domindex.TypeInt32, nil, nil
	case reflect.Float32, reflect.Float64:
		return domindex.TypeDouble, nil, nil
	case reflect.Struct:
		return domindex.TypeComplex, t, nil
	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		switch {
		case elem.Kind() == reflect.String:
			return domindex.TypeStringCollection, nil, nil
		case elem.Kind() == reflect.Struct && elem != timeType:
			return domindex.TypeComplexCollection, elem, nil
		}
	}
	return "", nil, fmt.Errorf("unsupported type %s", t)
}

// definition builds the index definition described by the struct tags.
func (m *schemaMeta) definition(name string) Definition {
	fields := make([]domindex.Field, len(m.fields))
	for i, f := range m.fields {
		fields[i] = f.field
	}
	var suggesters []domindex.Suggester
	if len(m.suggest) > 0 {
		suggesters = []domindex.Suggester{domindex.NewSuggester(DefaultSuggester, m.suggest...)}
	}
	return domindex.NewDefinition(name, fields, suggesters)
}

// toDocument converts a typed struct to a Document in struct field order.
func (m *schemaMeta) toDocument(item any) Document {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return encodeStruct(v, m.fields)
}

func encodeStruct(v reflect.Value, fields []fieldMapping) document.Document {
	pairs := make([]document.Field, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, document.Field{Key: f.name, Value: encodeValue(v.Field(f.structIdx), f)})
	}
	return document.New(pairs...)
}

func encodeValue(v reflect.Value, f fieldMapping) any {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if f.children == nil {
		return v.Interface()
	}
	if v.Kind() == reflect.Slice {
		if v.IsNil() {
			return nil
		}
		out := make([]any, v.Len())
		for i := range v.Len() {
			e := v.Index(i)
			if e.Kind() == reflect.Pointer {
				if e.IsNil() {
					continue
				}
				e = e.Elem()
			}
			out[i] = encodeStruct(e, f.children)
		}
		return out
	}
	return encodeStruct(v, f.children)
}

// fromDocument converts a Document back to a typed struct. Fields absent from
// the document keep their zero value.
func (m *schemaMeta) fromDocument(doc Document) (any, error) {
	v := reflect.New(m.typ).Elem()
	if err := decodeStruct(v, m.fields, doc.Map()); err != nil {
		return nil, err
	}
	if m.ptr {
		return v.Addr().Interface(), nil
	}
	return v.Interface(), nil
}

func decodeStruct(v reflect.Value, fields []fieldMapping, values map[string]any) error {
	for _, f := range fields {
		raw, ok := values[f.name]
		if !ok || raw == nil {
			continue
		}
		if err := decodeValue(v.Field(f.structIdx), f, raw); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

func decodeValue(dst reflect.Value, f fieldMapping, raw any) error {
	if f.children == nil {
		// Scalars take the JSON route so numbers, times and string slices
		// convert the way encoding/json would.
		data, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("re-encode: %w", err)
		}
		if err := json.Unmarshal(data, dst.Addr().Interface()); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		dst.Set(reflect.New(dst.Type().Elem()))
		dst = dst.Elem()
	}
	if dst.Kind() == reflect.Slice {
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", raw)
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			obj, ok := asObject(item)
			if !ok {
				return fmt.Errorf("element %d: expected object, got %T", i, item)
			}
			e := out.Index(i)
			if e.Kind() == reflect.Pointer {
				e.Set(reflect.New(e.Type().Elem()))
				e = e.Elem()
			}
			if err := decodeStruct(e, f.children, obj); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		dst.Set(out)
		return nil
	}
	obj, ok := asObject(raw)
	if !ok {
		return fmt.Errorf("expected object, got %T", raw)
	}
	return decodeStruct(dst, f.children, obj)
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case document.Document:
		return o.Map(), true
	}
	return nil, false
}
