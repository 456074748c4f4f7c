package index

// SearchModeAnalyzingInfix is the only suggester search mode the service supports.
const SearchModeAnalyzingInfix = "analyzingInfixMatching"

// Suggester is a named type-ahead configuration over a set of source fields.
type Suggester struct {
	name         string
	searchMode   string
	sourceFields []string
}

// NewSuggester creates a suggester. Source fields may address nested fields with "/" paths.
func NewSuggester(name string, sourceFields ...string) Suggester {
	cp := make([]string, len(sourceFields))
	copy(cp, sourceFields)
	return Suggester{name: name, searchMode: SearchModeAnalyzingInfix, sourceFields: cp}
}

// Name returns the suggester name.
func (s Suggester) Name() string { return s.name }

// SearchMode returns the suggester search mode.
func (s Suggester) SearchMode() string { return s.searchMode }

// SourceFields returns the source field paths.
func (s Suggester) SourceFields() []string {
	out := make([]string, len(s.sourceFields))
	copy(out, s.sourceFields)
	return out
}
