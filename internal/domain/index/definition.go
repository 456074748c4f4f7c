package index

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/searchidx/internal/domain"
)

// Definition is the schema of a search index.
type Definition struct {
	name       string
	fields     []Field
	suggesters []Suggester
}

// NewDefinition creates an index definition. An empty name is filled in by the
// client with its bound index name before the definition is sent.
func NewDefinition(name string, fields []Field, suggesters []Suggester) Definition {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	ss := make([]Suggester, len(suggesters))
	copy(ss, suggesters)
	return Definition{name: name, fields: fs, suggesters: ss}
}

// Name returns the index name.
func (d Definition) Name() string { return d.name }

// WithName returns a copy of the definition carrying the given name.
func (d Definition) WithName(name string) Definition {
	return NewDefinition(name, d.fields, d.suggesters)
}

// Fields returns the top-level fields in order.
func (d Definition) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Suggesters returns the suggesters in order.
func (d Definition) Suggesters() []Suggester {
	out := make([]Suggester, len(d.suggesters))
	copy(out, d.suggesters)
	return out
}

// KeyField returns the field marked as key, searching nested fields too.
func (d Definition) KeyField() (Field, bool) {
	var found Field
	ok := false
	walk(d.fields, func(f Field) {
		if !ok && !f.IsComplex() && f.IsKey() {
			found, ok = f, true
		}
	})
	return found, ok
}

func walk(fields []Field, fn func(Field)) {
	for _, f := range fields {
		fn(f)
		walk(f.fields, fn)
	}
}

// Validate checks the schema invariants: exactly one simple key field, known field
// types, and unique field names within every nesting scope.
// The client does not call it before sending; the service is the authority.
func (d Definition) Validate() error {
	keys := 0
	walk(d.fields, func(f Field) {
		if !f.IsComplex() && f.IsKey() {
			keys++
		}
	})
	if keys != 1 {
		return fmt.Errorf("%w: want exactly one key field, got %d", domain.ErrInvalidDefinition, keys)
	}
	if err := validateScope(d.fields, ""); err != nil {
		return err
	}
	for _, s := range d.suggesters {
		if s.name == "" {
			return fmt.Errorf("%w: suggester name is required", domain.ErrInvalidDefinition)
		}
		if len(s.sourceFields) == 0 {
			return fmt.Errorf("%w: suggester %q has no source fields", domain.ErrInvalidDefinition, s.name)
		}
	}
	return nil
}

func validateScope(fields []Field, prefix string) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		path := prefix + f.name
		if f.name == "" {
			return fmt.Errorf("%w: field name is required (under %q)", domain.ErrInvalidDefinition, prefix)
		}
		if _, dup := seen[f.name]; dup {
			return fmt.Errorf("%w: duplicate field %q", domain.ErrInvalidDefinition, path)
		}
		seen[f.name] = struct{}{}
		if !f.fieldType.IsValid() {
			return fmt.Errorf("%w: field %q has unknown type %q", domain.ErrInvalidDefinition, path, f.fieldType)
		}
		if f.IsComplex() {
			if len(f.fields) == 0 {
				return fmt.Errorf("%w: complex field %q has no sub-fields", domain.ErrInvalidDefinition, path)
			}
			if err := validateScope(f.fields, path+"/"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Wire representation.

type fieldJSON struct {
	Name        string      `json:"name"`
	Type        Type        `json:"type"`
	Analyzer    string      `json:"analyzer,omitempty"`
	Searchable  *bool       `json:"searchable,omitempty"`
	Filterable  *bool       `json:"filterable,omitempty"`
	Retrievable *bool       `json:"retrievable,omitempty"`
	Sortable    *bool       `json:"sortable,omitempty"`
	Facetable   *bool       `json:"facetable,omitempty"`
	Key         *bool       `json:"key,omitempty"`
	Fields      []fieldJSON `json:"fields,omitempty"`
}

type suggesterJSON struct {
	Name         string   `json:"name"`
	SearchMode   string   `json:"searchMode"`
	SourceFields []string `json:"sourceFields"`
}

type definitionJSON struct {
	Name       string          `json:"name"`
	Fields     []fieldJSON     `json:"fields"`
	Suggesters []suggesterJSON `json:"suggesters"`
}

func toFieldJSON(fields []Field) []fieldJSON {
	if len(fields) == 0 {
		return nil
	}
	out := make([]fieldJSON, len(fields))
	for i, f := range fields {
		out[i] = fieldJSON{
			Name:        f.name,
			Type:        f.fieldType,
			Analyzer:    f.analyzer,
			Searchable:  f.searchable,
			Filterable:  f.filterable,
			Retrievable: f.retrievable,
			Sortable:    f.sortable,
			Facetable:   f.facetable,
			Key:         f.key,
			Fields:      toFieldJSON(f.fields),
		}
	}
	return out
}

func fromFieldJSON(fields []fieldJSON) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{
			name:        f.Name,
			fieldType:   f.Type,
			analyzer:    f.Analyzer,
			searchable:  f.Searchable,
			filterable:  f.Filterable,
			retrievable: f.Retrievable,
			sortable:    f.Sortable,
			facetable:   f.Facetable,
			key:         f.Key,
			fields:      fromFieldJSON(f.Fields),
		}
		if len(f.Fields) == 0 {
			out[i].fields = nil
		}
	}
	return out
}

// MarshalJSON encodes the definition in the service's wire vocabulary.
func (d Definition) MarshalJSON() ([]byte, error) {
	w := definitionJSON{
		Name:       d.name,
		Fields:     toFieldJSON(d.fields),
		Suggesters: make([]suggesterJSON, len(d.suggesters)),
	}
	if w.Fields == nil {
		w.Fields = []fieldJSON{}
	}
	for i, s := range d.suggesters {
		src := s.sourceFields
		if src == nil {
			src = []string{}
		}
		w.Suggesters[i] = suggesterJSON{Name: s.name, SearchMode: s.searchMode, SourceFields: src}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a definition returned by the service. Unknown keys
// (scoring profiles, CORS options, @odata annotations) are ignored.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var w definitionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode index definition: %w", err)
	}
	out := Definition{name: w.Name, fields: fromFieldJSON(w.Fields)}
	out.suggesters = make([]Suggester, len(w.Suggesters))
	for i, s := range w.Suggesters {
		out.suggesters[i] = Suggester{name: s.Name, searchMode: s.SearchMode, sourceFields: s.SourceFields}
	}
	*d = out
	return nil
}
