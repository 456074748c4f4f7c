package shape

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/searchidx/internal/domain"
)

func TestFacets_ValueAndRangeBuckets(t *testing.T) {
	body := `{"value":[],"@search.facets":{"rating":[{"value":11,"count":3},{"from":12,"to":20,"count":5}]}}`
	res, err := Search([]byte(body))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	buckets, ok := res.Facet("rating")
	if !ok || len(buckets) != 2 {
		t.Fatalf("rating buckets = %v, %v", buckets, ok)
	}

	first := buckets[0]
	if v, ok := first.Value(); !ok || v != float64(11) {
		t.Errorf("first value = %v, %v", v, ok)
	}
	if first.Count() != 3 {
		t.Errorf("first count = %d", first.Count())
	}
	if _, ok := first.From(); ok {
		t.Error("first from should be empty")
	}
	if _, ok := first.To(); ok {
		t.Error("first to should be empty")
	}

	second := buckets[1]
	if _, ok := second.Value(); ok {
		t.Error("second value should be empty")
	}
	if f, ok := second.From(); !ok || f != float64(12) {
		t.Errorf("second from = %v, %v", f, ok)
	}
	if to, ok := second.To(); !ok || to != float64(20) {
		t.Errorf("second to = %v, %v", to, ok)
	}
	if second.Count() != 5 {
		t.Errorf("second count = %d", second.Count())
	}
}

func TestFacets_ZeroValueAndOpenRanges(t *testing.T) {
	raw := map[string]json.RawMessage{
		"price":            json.RawMessage(`[{"to":0,"count":1},{"from":100,"count":2},{"value":0,"count":4}]`),
		"price@odata.type": json.RawMessage(`"#Collection(Microsoft.Azure.Search.V2016_09_01.QueryResultFacet)"`),
		"category":         json.RawMessage(`[{"value":"Budget","count":7}]`),
	}
	facets, err := Facets(raw)
	if err != nil {
		t.Fatalf("Facets: %v", err)
	}
	if _, ok := facets["price@odata.type"]; ok {
		t.Error("annotation facet key leaked")
	}
	price := facets["price"]
	if to, ok := price[0].To(); !ok || to != float64(0) {
		t.Errorf("to = %v, %v (zero must be present)", to, ok)
	}
	if _, ok := price[0].From(); ok {
		t.Error("unbounded from reported present")
	}
	if _, ok := price[1].To(); ok {
		t.Error("unbounded to reported present")
	}
	if v, ok := price[2].Value(); !ok || v != float64(0) {
		t.Errorf("value = %v, %v", v, ok)
	}
	if v, _ := facets["category"][0].Value(); v != "Budget" {
		t.Errorf("category value = %v", v)
	}
}

func TestFacets_Errors(t *testing.T) {
	tests := map[string]string{
		"missing count":  `[{"value":1}]`,
		"string count":   `[{"value":1,"count":"3"}]`,
		"fraction count": `[{"value":1,"count":2.5}]`,
		"not an array":   `{"value":1}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Facets(map[string]json.RawMessage{"f": json.RawMessage(data)})
			if !errors.Is(err, domain.ErrShape) {
				t.Errorf("err = %v, want ErrShape", err)
			}
		})
	}
}

func TestSearch_HitScoreExtracted(t *testing.T) {
	body := `{"value":[{"@search.score":1.0,"id":"1","name":"x"}]}`
	res, err := Search([]byte(body))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	hits := res.Hits()
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].Score() != 1.0 {
		t.Errorf("score = %v", hits[0].Score())
	}
	doc := hits[0].Document()
	if !reflect.DeepEqual(doc.Keys(), []string{"id", "name"}) {
		t.Errorf("document keys = %v", doc.Keys())
	}
	if _, ok := doc.Get(ScoreKey); ok {
		t.Error("@search.score leaked into document")
	}
	if hits[0].Highlights() != nil {
		t.Error("highlights should be absent")
	}
}

func TestSearch_Envelope(t *testing.T) {
	body := `{
		"@odata.context": "https://svc/indexes('hotels')/$metadata#docs",
		"@odata.count": 12,
		"@search.coverage": 99.5,
		"@odata.nextLink": "https://svc/indexes/hotels/docs?$skip=50",
		"value": [
			{
				"@search.score": 0.5,
				"@search.highlights": {
					"description": ["a <em>quiet</em> place"],
					"description@odata.type": "#Collection(String)"
				},
				"id": "7",
				"tags@odata.type": "#Collection(String)",
				"tags": ["pool"],
				"address": {"city": "Rome", "geo@odata.type": "#GeographyPoint"}
			}
		]
	}`
	res, err := Search([]byte(body))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if c, ok := res.Count(); !ok || c != 12 {
		t.Errorf("count = %d, %v", c, ok)
	}
	if c, ok := res.Coverage(); !ok || c != 99.5 {
		t.Errorf("coverage = %v, %v", c, ok)
	}
	if l, ok := res.NextLink(); !ok || !strings.Contains(l, "$skip=50") {
		t.Errorf("nextLink = %q, %v", l, ok)
	}
	if res.Facets() != nil {
		t.Error("facets should be absent")
	}

	hit := res.Hits()[0]
	hl := hit.Highlights()
	if len(hl) != 1 || hl["description"][0] != "a <em>quiet</em> place" {
		t.Errorf("highlights = %v", hl)
	}
	doc := hit.Document()
	if !reflect.DeepEqual(doc.Keys(), []string{"id", "tags", "address"}) {
		t.Errorf("document keys = %v", doc.Keys())
	}
	addr, _ := doc.Get("address")
	if m := addr.(map[string]any); len(m) != 1 || m["city"] != "Rome" {
		t.Errorf("address = %v", addr)
	}
}

func TestSearch_CountAbsentWhenNotRequested(t *testing.T) {
	res, err := Search([]byte(`{"value":[]}`))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, ok := res.Count(); ok {
		t.Error("count should be absent")
	}
	if res.Len() != 0 {
		t.Errorf("len = %d", res.Len())
	}
}

func TestSearch_ShapeErrors(t *testing.T) {
	tests := map[string]string{
		"not json":          `<html>`,
		"missing value":     `{"@odata.count":1}`,
		"hit without score": `{"value":[{"id":"1"}]}`,
		"string score":      `{"value":[{"@search.score":"high","id":"1"}]}`,
		"hit not object":    `{"value":[42]}`,
		"bad highlights":    `{"value":[{"@search.score":1,"@search.highlights":["x"]}]}`,
		"bad snippet":       `{"value":[{"@search.score":1,"@search.highlights":{"f":[1]}}]}`,
		"fractional count":  `{"value":[],"@odata.count":1.5}`,
		"coverage string":   `{"value":[],"@search.coverage":"all"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Search([]byte(body))
			if !errors.Is(err, domain.ErrShape) {
				t.Errorf("err = %v, want ErrShape", err)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	body := `{"@search.coverage":100,"value":[{"@search.text":"Fancy Stay","hotelId":"1"},{"@search.text":"Fan Inn","hotelId":"2"}]}`
	res, err := Suggest([]byte(body))
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	hits := res.Hits()
	if len(hits) != 2 || hits[0].Text() != "Fancy Stay" || hits[1].Text() != "Fan Inn" {
		t.Fatalf("hits = %v", hits)
	}
	if _, ok := hits[0].Document().Get(TextKey); ok {
		t.Error("@search.text leaked into document")
	}
	if id, _ := hits[1].Document().String("hotelId"); id != "2" {
		t.Errorf("hotelId = %q", id)
	}
	if c, ok := res.Coverage(); !ok || c != 100 {
		t.Errorf("coverage = %v, %v", c, ok)
	}
}

func TestSuggest_MissingText(t *testing.T) {
	_, err := Suggest([]byte(`{"value":[{"hotelId":"1"}]}`))
	if !errors.Is(err, domain.ErrShape) {
		t.Errorf("err = %v, want ErrShape", err)
	}
	var se *domain.ShapeError
	if !errors.As(err, &se) || se.Path != "$.value[0].@search.text" {
		t.Errorf("shape error = %+v", se)
	}
}

func TestSearch_UnknownSearchAnnotationsStripped(t *testing.T) {
	body := `{"value":[{"@search.score":2.5,"@search.rerankerScore":3.1,"@search.captions":[{"text":"x"}],` +
		`"id":"1","address":{"city":"Oslo","@search.extra":1}}]}`
	res, err := Search([]byte(body))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	doc := res.Hits()[0].Document()
	if !reflect.DeepEqual(doc.Keys(), []string{"id", "address"}) {
		t.Errorf("document keys = %v", doc.Keys())
	}
	addr, _ := doc.Get("address")
	if !reflect.DeepEqual(addr, map[string]any{"city": "Oslo"}) {
		t.Errorf("address = %v", addr)
	}
}

func TestIsAnnotation(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"@odata.context", true},
		{"@search.rerankerScore", true},
		{"location@odata.type", true},
		{"name", false},
		{"search", false},
		{"email@domain", false},
	}
	for _, tt := range tests {
		if got := IsAnnotation(tt.key); got != tt.want {
			t.Errorf("IsAnnotation(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestDocument_StripsODataKeys(t *testing.T) {
	doc, err := Document([]byte(`{"@odata.context":"https://svc/$metadata#docs/$entity","hotelId":"1","name":"x"}`))
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if !reflect.DeepEqual(doc.Keys(), []string{"hotelId", "name"}) {
		t.Errorf("keys = %v", doc.Keys())
	}
	if _, err := Document([]byte(`[1]`)); !errors.Is(err, domain.ErrShape) {
		t.Errorf("array body err = %v", err)
	}
}

func TestBatch_Partial(t *testing.T) {
	body := `{"value":[
		{"key":"1","status":true,"errorMessage":null,"statusCode":201},
		{"key":"2","status":false,"errorMessage":"Document not found.","statusCode":404}
	]}`
	res, err := Batch(207, []byte(body))
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if !res.Partial() || res.Status() != 207 {
		t.Errorf("status = %d partial = %v", res.Status(), res.Partial())
	}
	items := res.Items()
	if len(items) != 2 || items[0].Key() != "1" || !items[0].Succeeded() || items[0].StatusCode() != 201 {
		t.Errorf("items[0] = %+v", items[0])
	}
	if _, ok := items[0].ErrorMessage(); ok {
		t.Error("null errorMessage should be absent")
	}
	failed := res.Failed()
	if len(failed) != 1 || failed[0].Key() != "2" {
		t.Fatalf("failed = %v", failed)
	}
	if msg, ok := failed[0].ErrorMessage(); !ok || msg != "Document not found." {
		t.Errorf("message = %q, %v", msg, ok)
	}
}

func TestBatch_Errors(t *testing.T) {
	for name, body := range map[string]string{
		"missing value":  `{}`,
		"missing key":    `{"value":[{"status":true,"statusCode":200}]}`,
		"missing status": `{"value":[{"key":"1","statusCode":200}]}`,
		"missing code":   `{"value":[{"key":"1","status":true}]}`,
		"bad status":     `{"value":[{"key":"1","status":"yes","statusCode":200}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Batch(200, []byte(body)); !errors.Is(err, domain.ErrShape) {
				t.Errorf("err = %v, want ErrShape", err)
			}
		})
	}
}

func TestDefinition(t *testing.T) {
	def, err := Definition([]byte(`{"@odata.context":"x","name":"hotels","fields":[{"name":"id","type":"Edm.String","key":true}],"suggesters":[]}`))
	if err != nil {
		t.Fatalf("Definition: %v", err)
	}
	if def.Name() != "hotels" || len(def.Fields()) != 1 {
		t.Errorf("def = %q with %d fields", def.Name(), len(def.Fields()))
	}
	if _, err := Definition([]byte(`{"fields":[]}`)); !errors.Is(err, domain.ErrShape) {
		t.Errorf("nameless err = %v", err)
	}
	if _, err := Definition([]byte(`{"name":1}`)); !errors.Is(err, domain.ErrShape) {
		t.Errorf("bad name err = %v", err)
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{"42", 42},
		{"\xef\xbb\xbf1017", 1017},
		{" 0\n", 0},
	}
	for _, tt := range tests {
		got, err := Count([]byte(tt.body))
		if err != nil || got != tt.want {
			t.Errorf("Count(%q) = %d, %v", tt.body, got, err)
		}
	}
	if _, err := Count([]byte(`{"count":1}`)); !errors.Is(err, domain.ErrShape) {
		t.Errorf("object err = %v", err)
	}
}
