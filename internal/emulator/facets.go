package emulator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
)

const defaultFacetCount = 10

// facetSpec is one parsed facet expression: "field[,count:N][,sort:S][,values:a|b]".
type facetSpec struct {
	field  schemaField
	count  int
	sort   string
	bounds []any
}

func (s *indexStore) parseFacets(exprs []string) ([]facetSpec, error) {
	specs := make([]facetSpec, 0, len(exprs))
	for _, expr := range exprs {
		parts := strings.Split(expr, ",")
		name := strings.TrimSpace(parts[0])
		f, ok := s.schema.field(name)
		if !ok || !f.facetable {
			return nil, badRequestf("field '%s' is not facetable", name)
		}
		spec := facetSpec{field: f, count: defaultFacetCount, sort: "count"}
		for _, p := range parts[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), ":")
			if !ok {
				return nil, badRequestf("invalid facet parameter %q", p)
			}
			switch k {
			case "count":
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return nil, badRequestf("invalid facet count %q", v)
				}
				spec.count = n
			case "sort":
				switch v {
				case "count", "-count", "value", "-value":
					spec.sort = v
				default:
					return nil, badRequestf("invalid facet sort %q", v)
				}
			case "values":
				bounds, err := parseBounds(f, v)
				if err != nil {
					return nil, err
				}
				spec.bounds = bounds
			default:
				return nil, badRequestf("unsupported facet parameter %q", k)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseBounds(f schemaField, raw string) ([]any, error) {
	var out []any
	for _, b := range strings.Split(raw, "|") {
		switch f.typ {
		case domindex.TypeInt32, domindex.TypeDouble:
			v, err := strconv.ParseFloat(b, 64)
			if err != nil {
				return nil, badRequestf("facet boundary %q is not a number", b)
			}
			out = append(out, v)
		case domindex.TypeDateTimeOffset:
			if _, err := time.Parse(time.RFC3339, b); err != nil {
				return nil, badRequestf("facet boundary %q is not a date", b)
			}
			out = append(out, b)
		default:
			return nil, badRequestf("range facets need a numeric or date field, '%s' is %s", f.name, f.typ)
		}
	}
	for i := 1; i < len(out); i++ {
		if compareBound(out[i-1], out[i]) >= 0 {
			return nil, badRequestf("facet boundaries must be ascending")
		}
	}
	return out, nil
}

func compareBound(a, b any) int {
	if as, ok := a.(string); ok {
		ta, _ := time.Parse(time.RFC3339, as)
		tb, _ := time.Parse(time.RFC3339, b.(string))
		return ta.Compare(tb)
	}
	return compareValues(a, b)
}

func computeFacets(specs []facetSpec, matches []match) map[string][]document.Document {
	if len(specs) == 0 {
		return nil
	}
	out := make(map[string][]document.Document, len(specs))
	for _, spec := range specs {
		if len(spec.bounds) > 0 {
			out[spec.field.name] = rangeFacet(spec, matches)
		} else {
			out[spec.field.name] = termFacet(spec, matches)
		}
	}
	return out
}

func termFacet(spec facetSpec, matches []match) []document.Document {
	type bucket struct {
		value any
		count int
	}
	buckets := make(map[string]*bucket)
	for _, m := range matches {
		seen := make(map[string]struct{})
		for _, v := range valuesAt(m.doc, spec.field.name) {
			k := fmt.Sprint(v)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if b, ok := buckets[k]; ok {
				b.count++
			} else {
				buckets[k] = &bucket{value: v, count: 1}
			}
		}
	}
	list := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		byValue := compareValues(a.value, b.value)
		switch spec.sort {
		case "value":
			return byValue < 0
		case "-value":
			return byValue > 0
		case "-count":
			if a.count != b.count {
				return a.count < b.count
			}
		default:
			if a.count != b.count {
				return a.count > b.count
			}
		}
		return byValue < 0
	})
	if spec.count > 0 && len(list) > spec.count {
		list = list[:spec.count]
	}
	docs := make([]document.Document, 0, len(list))
	for _, b := range list {
		docs = append(docs, document.New(
			document.Field{Key: "count", Value: b.count},
			document.Field{Key: "value", Value: b.value},
		))
	}
	return docs
}

// rangeFacet buckets values as (<b0), [b0,b1), ..., (>=bn).
func rangeFacet(spec facetSpec, matches []match) []document.Document {
	counts := make([]int, len(spec.bounds)+1)
	for _, m := range matches {
		hit := make([]bool, len(counts))
		for _, v := range valuesAt(m.doc, spec.field.name) {
			hit[bucketOf(spec.bounds, v)] = true
		}
		for i, h := range hit {
			if h {
				counts[i]++
			}
		}
	}
	docs := make([]document.Document, 0, len(counts))
	for i, n := range counts {
		fields := []document.Field{{Key: "count", Value: n}}
		if i > 0 {
			fields = append(fields, document.Field{Key: "from", Value: spec.bounds[i-1]})
		}
		if i < len(spec.bounds) {
			fields = append(fields, document.Field{Key: "to", Value: spec.bounds[i]})
		}
		docs = append(docs, document.New(fields...))
	}
	return docs
}

func bucketOf(bounds []any, v any) int {
	for i, b := range bounds {
		var c int
		if bs, ok := b.(string); ok {
			vs, isStr := v.(string)
			if !isStr {
				return len(bounds)
			}
			tv, err := time.Parse(time.RFC3339, vs)
			if err != nil {
				return len(bounds)
			}
			tb, _ := time.Parse(time.RFC3339, bs)
			c = tv.Compare(tb)
		} else {
			c = compareValues(v, b)
		}
		if c < 0 {
			return i
		}
	}
	return len(bounds)
}
