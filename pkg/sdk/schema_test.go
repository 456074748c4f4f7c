package searchidx

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/searchidx/internal/domain/document"
)

type testAddress struct {
	City    string `searchidx:"city,filterable,facetable"`
	Country string `searchidx:"country,filterable"`
}

type testRoom struct {
	Type  string  `searchidx:"type,searchable"`
	Price float64 `searchidx:"price,filterable,sortable"`
}

type testHotel struct {
	ID        string      `searchidx:"hotelId,key"`
	Name      string      `searchidx:"name,searchable,suggest,analyzer=en.lucene"`
	Rating    int         `searchidx:"rating,filterable,sortable,facetable"`
	Tags      []string    `searchidx:"tags,searchable,filterable"`
	Parking   bool        `searchidx:"parkingIncluded,filterable"`
	Renovated time.Time   `searchidx:"lastRenovated,sortable"`
	Secret    string      `searchidx:"secret,hidden"`
	Address   testAddress `searchidx:"address"`
	Rooms     []testRoom  `searchidx:"rooms"`
	Ignored   string
}

func TestParseSchema_Definition(t *testing.T) {
	meta, err := parseSchema[testHotel]()
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	if meta.keyName != "hotelId" {
		t.Errorf("key = %q", meta.keyName)
	}
	def := meta.definition("hotels")
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":"hotels","fields":[` +
		`{"name":"hotelId","type":"Edm.String","key":true},` +
		`{"name":"name","type":"Edm.String","analyzer":"en.lucene","searchable":true},` +
		`{"name":"rating","type":"Edm.Int32","filterable":true,"sortable":true,"facetable":true},` +
		`{"name":"tags","type":"Collection(Edm.String)","searchable":true,"filterable":true},` +
		`{"name":"parkingIncluded","type":"Edm.Boolean","filterable":true},` +
		`{"name":"lastRenovated","type":"Edm.DateTimeOffset","sortable":true},` +
		`{"name":"secret","type":"Edm.String","retrievable":false},` +
		`{"name":"address","type":"Edm.ComplexType","fields":[` +
		`{"name":"city","type":"Edm.String","filterable":true,"facetable":true},` +
		`{"name":"country","type":"Edm.String","filterable":true}]},` +
		`{"name":"rooms","type":"Collection(Edm.ComplexType)","fields":[` +
		`{"name":"type","type":"Edm.String","searchable":true},` +
		`{"name":"price","type":"Edm.Double","filterable":true,"sortable":true}]}],` +
		`"suggesters":[{"name":"sg","searchMode":"analyzingInfixMatching","sourceFields":["name"]}]}`
	if string(data) != want {
		t.Errorf("definition:\n got %s\nwant %s", data, want)
	}
}

func TestParseSchema_Errors(t *testing.T) {
	type noKey struct {
		Name string `searchidx:"name"`
	}
	type twoKeys struct {
		A string `searchidx:"a,key"`
		B string `searchidx:"b,key"`
	}
	type intKey struct {
		ID int `searchidx:"id,key"`
	}
	type badMod struct {
		ID string `searchidx:"id,key,shiny"`
	}
	type badType struct {
		ID string         `searchidx:"id,key"`
		M  map[string]int `searchidx:"m"`
	}
	type dupName struct {
		ID string `searchidx:"id,key"`
		A  string `searchidx:"x"`
		B  string `searchidx:"x"`
	}

	tests := []struct {
		name string
		fn   func() error
		want string
	}{
		{"no key", func() error { _, err := parseSchema[noKey](); return err }, "no field"},
		{"two keys", func() error { _, err := parseSchema[twoKeys](); return err }, "duplicate key"},
		{"non-string key", func() error { _, err := parseSchema[intKey](); return err }, "top-level string"},
		{"unknown modifier", func() error { _, err := parseSchema[badMod](); return err }, "unknown modifier"},
		{"unsupported type", func() error { _, err := parseSchema[badType](); return err }, "unsupported type"},
		{"not a struct", func() error { _, err := parseSchema[string](); return err }, "not a struct"},
		{"duplicate names", func() error { _, err := parseSchema[dupName](); return err }, "duplicate field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}

	_, err := parseSchema[dupName]()
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("duplicate names err = %v, want ErrInvalidDefinition", err)
	}
}

func sampleHotel() testHotel {
	return testHotel{
		ID:        "1",
		Name:      "Grand",
		Rating:    4,
		Tags:      []string{"pool", "spa"},
		Parking:   true,
		Renovated: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
		Secret:    "s",
		Address:   testAddress{City: "Rome", Country: "IT"},
		Rooms:     []testRoom{{Type: "double", Price: 120.5}, {Type: "suite", Price: 300}},
		Ignored:   "not sent",
	}
}

func TestToDocument_OrderAndNesting(t *testing.T) {
	meta, err := parseSchema[testHotel]()
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	doc := meta.toDocument(sampleHotel())
	keys := strings.Join(doc.Keys(), ",")
	if keys != "hotelId,name,rating,tags,parkingIncluded,lastRenovated,secret,address,rooms" {
		t.Errorf("keys = %s", keys)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"address":{"city":"Rome","country":"IT"}`) {
		t.Errorf("nested address not encoded: %s", data)
	}
	if !strings.Contains(string(data), `"lastRenovated":"2020-05-01T00:00:00Z"`) {
		t.Errorf("time not encoded: %s", data)
	}
}

func TestFromDocument_WireRoundTrip(t *testing.T) {
	meta, err := parseSchema[testHotel]()
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	in := sampleHotel()
	data, err := json.Marshal(meta.toDocument(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Decode as the shaper would: nested values become map[string]any / []any / float64.
	doc, err := document.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v, err := meta.fromDocument(doc)
	if err != nil {
		t.Fatalf("fromDocument: %v", err)
	}
	out := v.(testHotel)
	if out.ID != "1" || out.Name != "Grand" || out.Rating != 4 || !out.Parking {
		t.Errorf("scalars = %+v", out)
	}
	if len(out.Tags) != 2 || out.Tags[1] != "spa" {
		t.Errorf("tags = %v", out.Tags)
	}
	if !out.Renovated.Equal(in.Renovated) {
		t.Errorf("renovated = %v", out.Renovated)
	}
	if out.Address != in.Address {
		t.Errorf("address = %+v", out.Address)
	}
	if len(out.Rooms) != 2 || out.Rooms[0].Price != 120.5 || out.Rooms[1].Type != "suite" {
		t.Errorf("rooms = %+v", out.Rooms)
	}
	if out.Ignored != "" {
		t.Errorf("untagged field decoded: %q", out.Ignored)
	}
}

func TestFromDocument_PartialAndPointer(t *testing.T) {
	meta, err := parseSchema[*testHotel]()
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	doc := document.New(document.Field{Key: "hotelId", Value: "7"}, document.Field{Key: "rating", Value: float64(3)})
	v, err := meta.fromDocument(doc)
	if err != nil {
		t.Fatalf("fromDocument: %v", err)
	}
	h, ok := v.(*testHotel)
	if !ok {
		t.Fatalf("got %T, want *testHotel", v)
	}
	if h.ID != "7" || h.Rating != 3 || h.Name != "" {
		t.Errorf("hotel = %+v", h)
	}
}

func TestFromDocument_TypeMismatch(t *testing.T) {
	meta, err := parseSchema[testHotel]()
	if err != nil {
		t.Fatalf("parseSchema: %v", err)
	}
	doc := document.New(document.Field{Key: "address", Value: "Rome"})
	if _, err := meta.fromDocument(doc); err == nil {
		t.Error("expected error for scalar where object is declared")
	}
	doc = document.New(document.Field{Key: "rating", Value: "four"})
	if _, err := meta.fromDocument(doc); err == nil {
		t.Error("expected error for string where number is declared")
	}
}
