// Package searchidx provides a Go client for a remote full-text search index
// service speaking the OData-flavoured HTTP/JSON protocol.
//
// A Client is bound to one service endpoint and one index. It manages the
// index definition, ingests documents in batches and runs search, suggest,
// lookup and count queries. Requests answered with 503 are retried with a
// linear backoff (60s, then 90s by default); every other error status is
// returned immediately and can be inspected with errors.Is / errors.As.
//
// # Low-level API — untyped documents
//
//	client, _ := searchidx.New("my-service", "hotels", apiKey)
//	_ = client.Create(ctx, searchidx.NewDefinition("", []searchidx.Field{
//	    searchidx.NewField("hotelId", searchidx.TypeString, searchidx.Key()),
//	    searchidx.NewField("name", searchidx.TypeString, searchidx.Searchable()),
//	    searchidx.NewField("rating", searchidx.TypeInt32, searchidx.Filterable(), searchidx.Facetable()),
//	}, nil))
//	_, _ = client.IndexDocuments(ctx, []searchidx.Operation{
//	    searchidx.Upload(searchidx.NewDocument(
//	        searchidx.Pair("hotelId", "1"), searchidx.Pair("name", "Grand"), searchidx.Pair("rating", 4),
//	    )),
//	})
//	res, _ := client.Search(ctx, "grand",
//	    searchidx.WithFilter("rating gt 3"), searchidx.WithCount(), searchidx.WithFacets("rating"))
//
// # High-level API — schema-first with Go generics
//
//	type Hotel struct {
//	    ID     string   `searchidx:"hotelId,key"`
//	    Name   string   `searchidx:"name,searchable,suggest"`
//	    Rating int      `searchidx:"rating,filterable,facetable"`
//	    Tags   []string `searchidx:"tags,searchable,filterable"`
//	}
//
//	idx, _ := searchidx.NewIndex[Hotel](client)
//	_ = idx.Ensure(ctx)
//	_, _ = idx.Upload(ctx, hotels...)
//	hits, _ := idx.Search(ctx, "grand", searchidx.WithTop(10))
package searchidx
