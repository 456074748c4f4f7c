package emulator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

const apiVersion = "?api-version=2016-09-01"

const hotelsDefinition = `{"name":"hotels","fields":[
 {"name":"hotelId","type":"Edm.String","key":true,"filterable":true},
 {"name":"name","type":"Edm.String","searchable":true,"sortable":true},
 {"name":"description","type":"Edm.String","searchable":true},
 {"name":"category","type":"Edm.String","filterable":true,"facetable":true},
 {"name":"rating","type":"Edm.Int32","filterable":true,"sortable":true,"facetable":true},
 {"name":"tags","type":"Collection(Edm.String)","searchable":true,"filterable":true,"facetable":true},
 {"name":"parking","type":"Edm.Boolean","filterable":true},
 {"name":"secret","type":"Edm.String","retrievable":false},
 {"name":"address","type":"Edm.ComplexType","fields":[
  {"name":"city","type":"Edm.String","searchable":true,"filterable":true}]}],
 "suggesters":[{"name":"sg","searchMode":"analyzingInfixMatching","sourceFields":["name"]}]}`

const hotelsBatch = `{"value":[
 {"@search.action":"upload","hotelId":"1","name":"Grand Hotel","description":"A grand old hotel near the river",
  "category":"Luxury","rating":5,"tags":["pool","spa"],"parking":true,"secret":"x","address":{"city":"Rome"}},
 {"@search.action":"upload","hotelId":"2","name":"Budget Inn","description":"Cheap rooms close to the station",
  "category":"Budget","rating":2,"tags":["wifi"],"parking":false,"address":{"city":"Milan"}},
 {"@search.action":"upload","hotelId":"3","name":"Grand Budget Stay","description":"Good value",
  "category":"Budget","rating":3,"tags":["pool"],"parking":true,"address":{"city":"Rome"}},
 {"@search.action":"upload","hotelId":"o'neil place","name":"O'Neil Place","description":"Cozy rooms",
  "category":"Boutique","rating":4,"tags":["spa"],"parking":false,"address":{"city":"Dublin"}}]}`

type testServer struct {
	t   *testing.T
	emu *Emulator
	srv *httptest.Server
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	emu, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(emu.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = emu.Close()
	})
	return &testServer{t: t, emu: emu, srv: srv}
}

func seededServer(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t)
	ts.expect(http.MethodPost, "/indexes"+apiVersion, hotelsDefinition, http.StatusCreated)
	ts.expect(http.MethodPost, "/indexes/hotels/docs/index"+apiVersion, hotelsBatch, http.StatusOK)
	return ts
}

func (ts *testServer) do(method, path, body string, header ...string) (int, []byte) {
	ts.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	if err != nil {
		ts.t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func (ts *testServer) expect(method, path, body string, want int) []byte {
	ts.t.Helper()
	status, data := ts.do(method, path, body)
	if status != want {
		ts.t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, want, data)
	}
	return data
}

type searchBody struct {
	Count    *int                        `json:"@odata.count"`
	Coverage *float64                    `json:"@search.coverage"`
	Facets   map[string][]map[string]any `json:"@search.facets"`
	Value    []map[string]any            `json:"value"`
	NextLink string                      `json:"@odata.nextLink"`
}

func (ts *testServer) search(query string) searchBody {
	ts.t.Helper()
	data := ts.expect(http.MethodGet, "/indexes/hotels/docs"+apiVersion+"&"+query, "", http.StatusOK)
	var out searchBody
	if err := json.Unmarshal(data, &out); err != nil {
		ts.t.Fatalf("decode search: %v: %s", err, data)
	}
	return out
}

func keys(hits []map[string]any) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, fmt.Sprint(h["hotelId"]))
	}
	return out
}

func sortedKeys(hits []map[string]any) string {
	k := keys(hits)
	sort.Strings(k)
	return strings.Join(k, ",")
}

func TestIndexLifecycle(t *testing.T) {
	ts := newTestServer(t)

	ts.expect(http.MethodGet, "/indexes/hotels"+apiVersion, "", http.StatusNotFound)
	ts.expect(http.MethodPost, "/indexes"+apiVersion, hotelsDefinition, http.StatusCreated)
	ts.expect(http.MethodPost, "/indexes"+apiVersion, hotelsDefinition, http.StatusConflict)

	data := ts.expect(http.MethodGet, "/indexes/hotels"+apiVersion, "", http.StatusOK)
	if !strings.Contains(string(data), `"name":"hotels"`) || !strings.Contains(string(data), `"sourceFields":["name"]`) {
		t.Errorf("definition = %s", data)
	}

	data = ts.expect(http.MethodGet, "/indexes"+apiVersion+"&$select=name", "", http.StatusOK)
	if string(data) != `{"value":[{"name":"hotels"}]}`+"\n" {
		t.Errorf("list = %s", data)
	}

	ts.expect(http.MethodPut, "/indexes/hotels"+apiVersion, hotelsDefinition, http.StatusNoContent)
	other := strings.Replace(hotelsDefinition, `"name":"hotels"`, `"name":"motels"`, 1)
	ts.expect(http.MethodPut, "/indexes/motels"+apiVersion, other, http.StatusCreated)
	ts.expect(http.MethodPut, "/indexes/hotels"+apiVersion, other, http.StatusBadRequest)

	ts.expect(http.MethodDelete, "/indexes/motels"+apiVersion, "", http.StatusNoContent)
	ts.expect(http.MethodDelete, "/indexes/motels"+apiVersion, "", http.StatusNotFound)
}

func TestCreateIndex_Invalid(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no name", `{"fields":[{"name":"id","type":"Edm.String","key":true}]}`},
		{"no key", `{"name":"x","fields":[{"name":"id","type":"Edm.String"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := ts.do(http.MethodPost, "/indexes"+apiVersion, tt.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d: %s", status, data)
			}
			if !strings.Contains(string(data), `"error":{"code":"InvalidRequestParameter"`) {
				t.Errorf("error body = %s", data)
			}
		})
	}
}

func TestPutIndex_RejectsFieldRemoval(t *testing.T) {
	ts := seededServer(t)
	shrunk := `{"name":"hotels","fields":[{"name":"hotelId","type":"Edm.String","key":true}]}`
	ts.expect(http.MethodPut, "/indexes/hotels"+apiVersion, shrunk, http.StatusBadRequest)
}

func TestPutIndex_ReindexesDocuments(t *testing.T) {
	ts := seededServer(t)
	// description stops being searchable; documents must survive the rebuild.
	updated := strings.Replace(hotelsDefinition,
		`{"name":"description","type":"Edm.String","searchable":true}`,
		`{"name":"description","type":"Edm.String"}`, 1)
	ts.expect(http.MethodPut, "/indexes/hotels"+apiVersion, updated, http.StatusNoContent)

	if got := ts.search("search=river").Value; len(got) != 0 {
		t.Errorf("description still searchable: %v", keys(got))
	}
	if got := sortedKeys(ts.search("search=grand").Value); got != "1,3" {
		t.Errorf("hits after rebuild = %s", got)
	}
}

func TestAPIVersionRequired(t *testing.T) {
	ts := newTestServer(t)
	status, data := ts.do(http.MethodGet, "/indexes", "")
	if status != http.StatusBadRequest || !strings.Contains(string(data), "MissingApiVersionParameter") {
		t.Errorf("status = %d: %s", status, data)
	}
}

func TestAPIKey(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts := newTestServer(t, WithAPIKey("secret"), WithMetrics(reg, ""))

	if status, _ := ts.do(http.MethodGet, "/indexes"+apiVersion, ""); status != http.StatusForbidden {
		t.Errorf("missing key: status %d", status)
	}
	if status, _ := ts.do(http.MethodGet, "/indexes"+apiVersion, "", APIKeyHeader, "wrong"); status != http.StatusForbidden {
		t.Errorf("wrong key: status %d", status)
	}
	if status, _ := ts.do(http.MethodGet, "/indexes"+apiVersion, "", APIKeyHeader, "secret"); status != http.StatusOK {
		t.Errorf("valid key: status %d", status)
	}
	status, data := ts.do(http.MethodGet, DefaultMetricsPath, "")
	if status != http.StatusOK {
		t.Errorf("metrics: status %d", status)
	}
	if !strings.Contains(string(data), "searchidx_emulator_http_requests_total") {
		t.Errorf("metrics body missing request counter")
	}
}

func TestFailNext(t *testing.T) {
	ts := newTestServer(t)
	ts.emu.FailNext(2, http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		if status, _ := ts.do(http.MethodGet, "/indexes"+apiVersion, ""); status != http.StatusServiceUnavailable {
			t.Fatalf("request %d: status %d", i, status)
		}
	}
	if status, _ := ts.do(http.MethodGet, "/indexes"+apiVersion, ""); status != http.StatusOK {
		t.Errorf("after faults: status %d", status)
	}
}

func TestIndexBatch(t *testing.T) {
	ts := seededServer(t)

	data := ts.expect(http.MethodGet, "/indexes/hotels/docs/$count"+apiVersion, "", http.StatusOK)
	if string(data) != "\ufeff4" {
		t.Errorf("count = %q", data)
	}

	body := `{"value":[
	 {"@search.action":"merge","hotelId":"2","rating":3},
	 {"@search.action":"merge","hotelId":"99","rating":1},
	 {"@search.action":"delete","hotelId":"3"},
	 {"@search.action":"mergeOrUpload","hotelId":"5","name":"New"},
	 {"@search.action":"upload","name":"keyless"}]}`
	status, data := ts.do(http.MethodPost, "/indexes/hotels/docs/index"+apiVersion, body)
	if status != http.StatusMultiStatus {
		t.Fatalf("status = %d: %s", status, data)
	}
	var res struct {
		Value []batchItem `json:"value"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []struct {
		key    string
		ok     bool
		status int
	}{
		{"2", true, 200}, {"99", false, 404}, {"3", true, 200}, {"5", true, 201}, {"", false, 400},
	}
	if len(res.Value) != len(want) {
		t.Fatalf("items = %+v", res.Value)
	}
	for i, w := range want {
		it := res.Value[i]
		if it.Key != w.key || it.Status != w.ok || it.StatusCode != w.status {
			t.Errorf("item %d = %+v, want %+v", i, it, w)
		}
		if !w.ok && it.ErrorMessage == nil {
			t.Errorf("item %d: missing error message", i)
		}
	}

	data = ts.expect(http.MethodGet, "/indexes/hotels/docs('2')"+apiVersion, "", http.StatusOK)
	if !strings.Contains(string(data), `"rating":3`) || !strings.Contains(string(data), `"name":"Budget Inn"`) {
		t.Errorf("merged doc = %s", data)
	}
	ts.expect(http.MethodGet, "/indexes/hotels/docs('3')"+apiVersion, "", http.StatusNotFound)
}

func TestIndexBatch_WholeRequestErrors(t *testing.T) {
	ts := seededServer(t)
	ts.expect(http.MethodPost, "/indexes/hotels/docs/index"+apiVersion,
		`{"value":[{"hotelId":"9","unknown":1}]}`, http.StatusBadRequest)
	ts.expect(http.MethodPost, "/indexes/hotels/docs/index"+apiVersion, `{"value":[]}`, http.StatusBadRequest)

	var sb strings.Builder
	sb.WriteString(`{"value":[`)
	for i := 0; i <= MaxBatchSize; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{"hotelId":"%d"}`, i)
	}
	sb.WriteString(`]}`)
	ts.expect(http.MethodPost, "/indexes/hotels/docs/index"+apiVersion, sb.String(), http.StatusBadRequest)
	ts.expect(http.MethodPost, "/indexes/nope/docs/index"+apiVersion, `{"value":[{"hotelId":"1"}]}`, http.StatusNotFound)
}

func TestLookup(t *testing.T) {
	ts := seededServer(t)

	data := ts.expect(http.MethodGet, "/indexes/hotels/docs('o''neil%20place')"+apiVersion, "", http.StatusOK)
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["name"] != "O'Neil Place" {
		t.Errorf("doc = %v", doc)
	}
	if _, ok := doc["@odata.context"]; !ok {
		t.Error("missing @odata.context")
	}

	data = ts.expect(http.MethodGet, "/indexes/hotels/docs('1')"+apiVersion+"&$select=name", "", http.StatusOK)
	if strings.Contains(string(data), "rating") || strings.Contains(string(data), "secret") {
		t.Errorf("projection = %s", data)
	}
	data = ts.expect(http.MethodGet, "/indexes/hotels/docs('1')"+apiVersion, "", http.StatusOK)
	if strings.Contains(string(data), "secret") {
		t.Errorf("hidden field returned: %s", data)
	}

	ts.expect(http.MethodGet, "/indexes/hotels/docs('missing')"+apiVersion, "", http.StatusNotFound)
	ts.expect(http.MethodGet, "/indexes/hotels/docs(1)"+apiVersion, "", http.StatusBadRequest)
}

func TestSearch_FullText(t *testing.T) {
	ts := seededServer(t)

	res := ts.search("search=grand&$count=true")
	if got := sortedKeys(res.Value); got != "1,3" {
		t.Errorf("hits = %s", got)
	}
	if res.Count == nil || *res.Count != 2 {
		t.Errorf("count = %v", res.Count)
	}
	for _, h := range res.Value {
		if s, ok := h["@search.score"].(float64); !ok || s <= 0 {
			t.Errorf("score = %v", h["@search.score"])
		}
		if _, ok := h["secret"]; ok {
			t.Error("hidden field returned")
		}
	}

	if got := sortedKeys(ts.search("search=grand%20river&searchMode=all").Value); got != "1" {
		t.Errorf("searchMode=all hits = %s", got)
	}
	if got := sortedKeys(ts.search("search=rome&searchFields=address/city").Value); got != "1,3" {
		t.Errorf("searchFields hits = %s", got)
	}
	ts.expect(http.MethodGet, "/indexes/hotels/docs"+apiVersion+"&search=x&searchFields=rating", "", http.StatusBadRequest)
}

func TestSearch_Filter(t *testing.T) {
	ts := seededServer(t)
	tests := []struct {
		filter string
		want   string
	}{
		{"rating ge 4", "1,o'neil place"},
		{"category eq 'Budget' and parking eq true", "3"},
		{"address/city eq 'Rome'", "1,3"},
		{"search.in(category, 'Luxury|Boutique', '|')", "1,o'neil place"},
		{"not (rating lt 3)", "1,3,o'neil place"},
		{"rating eq 2 or category eq 'Luxury'", "1,2"},
		{"hotelId ne '1' and tags eq 'pool'", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			res := ts.search("search=*&$filter=" + url.QueryEscape(tt.filter))
			if got := sortedKeys(res.Value); got != tt.want {
				t.Errorf("hits = %s, want %s", got, tt.want)
			}
		})
	}

	ts.expect(http.MethodGet, "/indexes/hotels/docs"+apiVersion+"&$filter="+url.QueryEscape("description eq 'x'"), "",
		http.StatusBadRequest)
}

func TestSearch_OrderSelectPaging(t *testing.T) {
	ts := seededServer(t)

	res := ts.search("search=*&$orderby=" + url.QueryEscape("rating desc") + "&$select=hotelId,rating&$top=2&$skip=1")
	if got := strings.Join(keys(res.Value), ","); got != "o'neil place,3" {
		t.Errorf("page = %s", got)
	}
	for _, h := range res.Value {
		if _, ok := h["name"]; ok {
			t.Errorf("unselected field returned: %v", h)
		}
		if h["@search.score"] != float64(1) {
			t.Errorf("wildcard score = %v", h["@search.score"])
		}
	}
	if res.NextLink != "" {
		t.Errorf("nextLink with explicit $top: %s", res.NextLink)
	}

	ts.expect(http.MethodGet, "/indexes/hotels/docs"+apiVersion+"&$orderby=description", "", http.StatusBadRequest)
	ts.expect(http.MethodGet, "/indexes/hotels/docs"+apiVersion+"&scoringProfile=boost", "", http.StatusBadRequest)
}

func TestSearch_NextLink(t *testing.T) {
	ts := newTestServer(t)
	ts.expect(http.MethodPost, "/indexes"+apiVersion, hotelsDefinition, http.StatusCreated)
	var sb strings.Builder
	sb.WriteString(`{"value":[`)
	for i := 0; i < DefaultPageSize+5; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{"hotelId":"h%03d","name":"Hotel %d"}`, i, i)
	}
	sb.WriteString(`]}`)
	ts.expect(http.MethodPost, "/indexes/hotels/docs/index"+apiVersion, sb.String(), http.StatusOK)

	res := ts.search("search=*")
	if len(res.Value) != DefaultPageSize {
		t.Errorf("page size = %d", len(res.Value))
	}
	if !strings.Contains(res.NextLink, "%24skip=50") && !strings.Contains(res.NextLink, "$skip=50") {
		t.Errorf("nextLink = %q", res.NextLink)
	}
}

func TestSearch_FacetsAndHighlights(t *testing.T) {
	ts := seededServer(t)

	res := ts.search("search=*&facet=category&facet=" + url.QueryEscape("rating,values:3|5") + "&minimumCoverage=80")
	cat := res.Facets["category"]
	if len(cat) != 3 || cat[0]["value"] != "Budget" || cat[0]["count"] != float64(2) || cat[1]["value"] != "Boutique" {
		t.Errorf("category facet = %v", cat)
	}
	rating := res.Facets["rating"]
	if len(rating) != 3 {
		t.Fatalf("rating facet = %v", rating)
	}
	if rating[0]["to"] != float64(3) || rating[0]["count"] != float64(1) {
		t.Errorf("bucket 0 = %v", rating[0])
	}
	if rating[1]["from"] != float64(3) || rating[1]["to"] != float64(5) || rating[1]["count"] != float64(2) {
		t.Errorf("bucket 1 = %v", rating[1])
	}
	if rating[2]["from"] != float64(5) || rating[2]["count"] != float64(1) {
		t.Errorf("bucket 2 = %v", rating[2])
	}
	if res.Coverage == nil || *res.Coverage != 100 {
		t.Errorf("coverage = %v", res.Coverage)
	}

	res = ts.search("search=grand&highlight=name&highlightPreTag=" + url.QueryEscape("[") + "&highlightPostTag=" + url.QueryEscape("]"))
	found := false
	for _, h := range res.Value {
		hl, ok := h["@search.highlights"].(map[string]any)
		if !ok {
			continue
		}
		for _, frag := range hl["name"].([]any) {
			if strings.Contains(frag.(string), "[Grand]") {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("no tagged highlight in %v", res.Value)
	}

	ts.expect(http.MethodGet, "/indexes/hotels/docs"+apiVersion+"&facet=name", "", http.StatusBadRequest)
}

func TestSuggest(t *testing.T) {
	ts := seededServer(t)

	data := ts.expect(http.MethodGet,
		"/indexes/hotels/docs/suggest"+apiVersion+"&search=gr&suggesterName=sg&highlightPreTag=%3Cb%3E&highlightPostTag=%3C%2Fb%3E",
		"", http.StatusOK)
	var res struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := sortedKeys(res.Value); got != "1,3" {
		t.Errorf("suggestions = %s", got)
	}
	for _, s := range res.Value {
		text, _ := s["@search.text"].(string)
		if !strings.HasPrefix(text, "<b>Grand</b>") {
			t.Errorf("text = %q", text)
		}
		if _, ok := s["name"]; ok {
			t.Errorf("unselected field in suggestion: %v", s)
		}
	}

	data = ts.expect(http.MethodGet, "/indexes/hotels/docs/suggest"+apiVersion+"&search=grnd&suggesterName=sg", "", http.StatusOK)
	if strings.Contains(string(data), "Grand") {
		t.Errorf("non-fuzzy suggest matched a typo: %s", data)
	}
	data = ts.expect(http.MethodGet,
		"/indexes/hotels/docs/suggest"+apiVersion+"&search=grnd&suggesterName=sg&fuzzy=true&$top=1", "", http.StatusOK)
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Value) != 1 {
		t.Errorf("fuzzy suggestions = %v", res.Value)
	}

	ts.expect(http.MethodGet, "/indexes/hotels/docs/suggest"+apiVersion+"&search=gr&suggesterName=nope", "", http.StatusBadRequest)
	ts.expect(http.MethodGet, "/indexes/hotels/docs/suggest"+apiVersion+"&suggesterName=sg", "", http.StatusBadRequest)
}

func TestUnknownRoutes(t *testing.T) {
	ts := seededServer(t)
	ts.expect(http.MethodGet, "/indexes/hotels/docs/other"+apiVersion, "", http.StatusNotFound)
	ts.expect(http.MethodDelete, "/indexes/hotels/docs"+apiVersion, "", http.StatusNotFound)
	ts.expect(http.MethodGet, "/indexes/nope/docs"+apiVersion, "", http.StatusNotFound)
}
