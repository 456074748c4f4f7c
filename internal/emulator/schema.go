package emulator

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
)

// keywordSuffix names the untokenized companion of a string field used for
// filters, facets and sorting.
const keywordSuffix = "__kw"

// schemaField is a flattened leaf of an index definition.
type schemaField struct {
	// wire path, "/"-separated ("address/city")
	name string
	// bleve path, "."-separated ("address.city")
	path         string
	typ          domindex.Type
	key          bool
	searchable   bool
	filterable   bool
	sortable     bool
	facetable    bool
	retrievable  bool
	analyzer     string
	inCollection bool
}

func (f schemaField) isString() bool {
	return f.typ == domindex.TypeString || f.typ == domindex.TypeStringCollection
}

func (f schemaField) keywordField() string { return f.path + keywordSuffix }

// schema indexes a definition for request validation and bleve mapping.
// Unset capability flags are treated as off; retrievable defaults to on.
type schema struct {
	def        domindex.Definition
	keyName    string
	leaves     []schemaField
	byName     map[string]schemaField
	topLevel   map[string]domindex.Field
	suggesters map[string]domindex.Suggester
}

func newSchema(def domindex.Definition) *schema {
	s := &schema{
		def:        def,
		byName:     make(map[string]schemaField),
		topLevel:   make(map[string]domindex.Field),
		suggesters: make(map[string]domindex.Suggester),
	}
	if key, ok := def.KeyField(); ok {
		s.keyName = key.Name()
	}
	for _, f := range def.Fields() {
		s.topLevel[f.Name()] = f
	}
	for _, sg := range def.Suggesters() {
		s.suggesters[sg.Name()] = sg
	}
	s.flatten(def.Fields(), "", false)
	return s
}

func (s *schema) flatten(fields []domindex.Field, prefix string, inCollection bool) {
	for _, f := range fields {
		name := f.Name()
		if prefix != "" {
			name = prefix + "/" + f.Name()
		}
		if f.IsComplex() {
			s.flatten(f.Fields(), name, inCollection || f.FieldType() == domindex.TypeComplexCollection)
			continue
		}
		leaf := schemaField{
			name:         name,
			path:         strings.ReplaceAll(name, "/", "."),
			typ:          f.FieldType(),
			key:          f.IsKey(),
			searchable:   f.IsSearchable(),
			filterable:   f.IsFilterable(),
			sortable:     f.IsSortable(),
			facetable:    f.IsFacetable(),
			retrievable:  f.IsRetrievable(),
			analyzer:     f.Analyzer(),
			inCollection: inCollection,
		}
		s.leaves = append(s.leaves, leaf)
		s.byName[name] = leaf
	}
}

func (s *schema) field(name string) (schemaField, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// searchable returns the leaves a free-text query runs against.
func (s *schema) searchable() []schemaField {
	var out []schemaField
	for _, f := range s.leaves {
		if f.searchable || s.isSuggestSource(f.name) {
			out = append(out, f)
		}
	}
	return out
}

func (s *schema) isSuggestSource(name string) bool {
	for _, sg := range s.suggesters {
		for _, src := range sg.SourceFields() {
			if src == name {
				return true
			}
		}
	}
	return false
}

// hidden reports top-level fields that are never returned.
func (s *schema) hidden(name string) bool {
	f, ok := s.topLevel[name]
	return ok && !f.IsRetrievable()
}

// mapping builds a static bleve mapping: only declared fields are indexed.
func (s *schema) mapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name
	root := bleve.NewDocumentStaticMapping()
	s.addFields(root, s.def.Fields(), "")
	im.DefaultMapping = root
	return im
}

func (s *schema) addFields(dm *mapping.DocumentMapping, fields []domindex.Field, prefix string) {
	for _, f := range fields {
		name := f.Name()
		if prefix != "" {
			name = prefix + "/" + f.Name()
		}
		if f.IsComplex() {
			sub := bleve.NewDocumentStaticMapping()
			s.addFields(sub, f.Fields(), name)
			dm.AddSubDocumentMapping(f.Name(), sub)
			continue
		}
		leaf := s.byName[name]
		var fms []*mapping.FieldMapping
		switch leaf.typ {
		case domindex.TypeString, domindex.TypeStringCollection:
			if leaf.searchable || s.isSuggestSource(name) {
				tm := bleve.NewTextFieldMapping()
				tm.Analyzer = analyzerFor(leaf.analyzer)
				tm.Store = true
				tm.IncludeTermVectors = true
				fms = append(fms, tm)
			}
			if leaf.filterable || leaf.facetable || leaf.sortable || leaf.key {
				km := bleve.NewKeywordFieldMapping()
				km.Name = f.Name() + keywordSuffix
				fms = append(fms, km)
			}
		case domindex.TypeInt32, domindex.TypeDouble:
			fms = append(fms, bleve.NewNumericFieldMapping())
		case domindex.TypeBoolean:
			fms = append(fms, bleve.NewBooleanFieldMapping())
		case domindex.TypeDateTimeOffset:
			fms = append(fms, bleve.NewDateTimeFieldMapping())
		}
		if len(fms) > 0 {
			dm.AddFieldMappingsAt(f.Name(), fms...)
		}
	}
}

// analyzerFor maps service analyzer names onto the bleve analyzers available.
func analyzerFor(name string) string {
	switch {
	case name == "":
		return standard.Name
	case name == "keyword":
		return keyword.Name
	case strings.HasPrefix(name, "en."):
		return en.AnalyzerName
	default:
		return standard.Name
	}
}
