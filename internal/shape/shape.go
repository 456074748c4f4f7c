// Package shape turns raw service responses into the typed result model. All
// knowledge of the service's JSON envelopes and annotation keys lives here.
package shape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/kailas-cloud/searchidx/internal/domain"
	"github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	"github.com/kailas-cloud/searchidx/internal/domain/index"
	"github.com/kailas-cloud/searchidx/internal/domain/search/result"
)

// Annotation keys the service mixes into payloads.
const (
	ScoreKey      = "@search.score"
	HighlightsKey = "@search.highlights"
	TextKey       = "@search.text"
	odataPrefix   = "@odata."
	searchPrefix  = "@search."
	typeSuffix    = "@odata.type"
)

// IsAnnotation reports whether key is service metadata rather than a document field.
func IsAnnotation(key string) bool {
	return strings.HasPrefix(key, odataPrefix) ||
		strings.HasPrefix(key, searchPrefix) ||
		strings.HasSuffix(key, typeSuffix)
}

// Document shapes a lookup response.
func Document(body []byte) (document.Document, error) {
	doc, err := document.Decode(body)
	if err != nil {
		return document.Document{}, domain.NewShapeError("$", "%v", err)
	}
	return clean(doc), nil
}

type searchEnvelope struct {
	Value    []json.RawMessage          `json:"value"`
	Count    *float64                   `json:"@odata.count"`
	NextLink string                     `json:"@odata.nextLink"`
	Coverage *float64                   `json:"@search.coverage"`
	Facets   map[string]json.RawMessage `json:"@search.facets"`
}

// Search shapes a search response.
func Search(body []byte) (result.Search, error) {
	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return result.Search{}, domain.NewShapeError("$", "%v", err)
	}
	if env.Value == nil {
		return result.Search{}, domain.NewShapeError("$.value", "missing")
	}

	parts := result.SearchParts{NextLink: env.NextLink, Coverage: env.Coverage}
	if env.Count != nil {
		c, err := integral("$.@odata.count", *env.Count)
		if err != nil {
			return result.Search{}, err
		}
		parts.Count = &c
	}

	parts.Hits = make([]result.Hit, 0, len(env.Value))
	for i, raw := range env.Value {
		hit, err := searchHit(fmt.Sprintf("$.value[%d]", i), raw)
		if err != nil {
			return result.Search{}, err
		}
		parts.Hits = append(parts.Hits, hit)
	}

	if env.Facets != nil {
		facets, err := Facets(env.Facets)
		if err != nil {
			return result.Search{}, err
		}
		parts.Facets = facets
	}
	return result.NewSearch(parts), nil
}

func searchHit(path string, raw json.RawMessage) (result.Hit, error) {
	doc, err := document.Decode(raw)
	if err != nil {
		return result.Hit{}, domain.NewShapeError(path, "%v", err)
	}
	rawScore, ok := doc.Get(ScoreKey)
	if !ok {
		return result.Hit{}, domain.NewShapeError(path+"."+ScoreKey, "missing")
	}
	score, ok := rawScore.(float64)
	if !ok {
		return result.Hit{}, domain.NewShapeError(path+"."+ScoreKey, "want number, got %T", rawScore)
	}

	var highlights map[string][]string
	if rawHL, ok := doc.Get(HighlightsKey); ok && rawHL != nil {
		highlights, err = parseHighlights(path+"."+HighlightsKey, rawHL)
		if err != nil {
			return result.Hit{}, err
		}
	}
	return result.NewHit(clean(doc.Without(ScoreKey, HighlightsKey)), score, highlights), nil
}

func parseHighlights(path string, raw any) (map[string][]string, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.NewShapeError(path, "want object, got %T", raw)
	}
	out := make(map[string][]string, len(m))
	for field, v := range m {
		if IsAnnotation(field) {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, domain.NewShapeError(path+"."+field, "want array, got %T", v)
		}
		snippets := make([]string, 0, len(list))
		for i, s := range list {
			str, ok := s.(string)
			if !ok {
				return nil, domain.NewShapeError(fmt.Sprintf("%s.%s[%d]", path, field, i), "want string, got %T", s)
			}
			snippets = append(snippets, str)
		}
		out[field] = snippets
	}
	return out, nil
}

// Facets normalizes the @search.facets object. Every bucket becomes one
// FacetValue; value, from and to stay absent unless the service sent them.
func Facets(raw map[string]json.RawMessage) (map[string][]result.FacetValue, error) {
	out := make(map[string][]result.FacetValue, len(raw))
	for field, data := range raw {
		if IsAnnotation(field) {
			continue
		}
		path := "$.@search.facets." + field
		var buckets []map[string]any
		if err := json.Unmarshal(data, &buckets); err != nil {
			return nil, domain.NewShapeError(path, "want array of buckets: %v", err)
		}
		values := make([]result.FacetValue, 0, len(buckets))
		for i, b := range buckets {
			bpath := fmt.Sprintf("%s[%d]", path, i)
			rawCount, ok := b["count"]
			if !ok {
				return nil, domain.NewShapeError(bpath+".count", "missing")
			}
			f, ok := rawCount.(float64)
			if !ok {
				return nil, domain.NewShapeError(bpath+".count", "want number, got %T", rawCount)
			}
			count, err := integral(bpath+".count", f)
			if err != nil {
				return nil, err
			}
			values = append(values, result.NewFacetValue(b["value"], b["from"], b["to"], count))
		}
		out[field] = values
	}
	return out, nil
}

type suggestEnvelope struct {
	Value    []json.RawMessage `json:"value"`
	Coverage *float64          `json:"@search.coverage"`
}

// Suggest shapes a suggest response.
func Suggest(body []byte) (result.Suggest, error) {
	var env suggestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return result.Suggest{}, domain.NewShapeError("$", "%v", err)
	}
	if env.Value == nil {
		return result.Suggest{}, domain.NewShapeError("$.value", "missing")
	}
	hits := make([]result.SuggestHit, 0, len(env.Value))
	for i, raw := range env.Value {
		path := fmt.Sprintf("$.value[%d]", i)
		doc, err := document.Decode(raw)
		if err != nil {
			return result.Suggest{}, domain.NewShapeError(path, "%v", err)
		}
		text, ok := doc.String(TextKey)
		if !ok {
			return result.Suggest{}, domain.NewShapeError(path+"."+TextKey, "missing or not a string")
		}
		hits = append(hits, result.NewSuggestHit(text, clean(doc.Without(TextKey))))
	}
	return result.NewSuggest(hits, env.Coverage), nil
}

type batchItem struct {
	Key          *string `json:"key"`
	Status       *bool   `json:"status"`
	ErrorMessage *string `json:"errorMessage"`
	StatusCode   *int    `json:"statusCode"`
}

// Batch shapes an indexing response. status is the HTTP status of the exchange
// (200 or 207) and is carried onto the result.
func Batch(status int, body []byte) (batch.Result, error) {
	var env struct {
		Value []batchItem `json:"value"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return batch.Result{}, domain.NewShapeError("$", "%v", err)
	}
	if env.Value == nil {
		return batch.Result{}, domain.NewShapeError("$.value", "missing")
	}
	items := make([]batch.ItemResult, 0, len(env.Value))
	for i, it := range env.Value {
		path := fmt.Sprintf("$.value[%d]", i)
		switch {
		case it.Key == nil:
			return batch.Result{}, domain.NewShapeError(path+".key", "missing")
		case it.Status == nil:
			return batch.Result{}, domain.NewShapeError(path+".status", "missing")
		case it.StatusCode == nil:
			return batch.Result{}, domain.NewShapeError(path+".statusCode", "missing")
		}
		items = append(items, batch.NewItemResult(*it.Key, *it.Status, *it.StatusCode, it.ErrorMessage))
	}
	if status == 0 {
		status = http.StatusOK
	}
	return batch.NewResult(status, items), nil
}

// Definition shapes an index definition response.
func Definition(body []byte) (index.Definition, error) {
	var def index.Definition
	if err := json.Unmarshal(body, &def); err != nil {
		return index.Definition{}, domain.NewShapeError("$", "%v", err)
	}
	if def.Name() == "" {
		return index.Definition{}, domain.NewShapeError("$.name", "missing")
	}
	return def, nil
}

var bom = []byte("\xef\xbb\xbf")

// Count shapes a $count response: a bare integer, optionally preceded by a BOM.
func Count(body []byte) (int64, error) {
	s := string(bytes.TrimSpace(bytes.TrimPrefix(body, bom)))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, domain.NewShapeError("$", "want integer count, got %q", s)
	}
	return n, nil
}

func integral(path string, f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, domain.NewShapeError(path, "want integer, got %v", f)
	}
	return int64(f), nil
}

// clean removes annotation keys from a document and from nested objects.
func clean(doc document.Document) document.Document {
	out := doc.Filter(func(k string) bool { return !IsAnnotation(k) })
	for _, k := range out.Keys() {
		v, _ := out.Get(k)
		if c, changed := cleanValue(v); changed {
			out = out.With(k, c)
		}
	}
	return out
}

func cleanValue(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		changed := false
		for k, inner := range t {
			if IsAnnotation(k) {
				changed = true
				continue
			}
			c, ch := cleanValue(inner)
			changed = changed || ch
			out[k] = c
		}
		if !changed {
			return v, false
		}
		return out, true
	case []any:
		var out []any
		for i, inner := range t {
			c, ch := cleanValue(inner)
			if ch && out == nil {
				out = make([]any, len(t))
				copy(out, t[:i])
			}
			if out != nil {
				out[i] = c
			}
		}
		if out == nil {
			return v, false
		}
		return out, true
	default:
		return v, false
	}
}
