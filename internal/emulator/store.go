package emulator

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"

	dombatch "github.com/kailas-cloud/searchidx/internal/domain/batch"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
	domindex "github.com/kailas-cloud/searchidx/internal/domain/index"
)

// MaxBatchSize is the largest indexing batch the emulator accepts.
const MaxBatchSize = 1000

var (
	errIndexNotFound = errors.New("index not found")
	errIndexExists   = errors.New("index already exists")
	errDocNotFound   = errors.New("document not found")
	errBadRequest    = errors.New("bad request")
)

func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// indexStore holds one index: the original documents by key and a bleve
// in-memory index over them.
type indexStore struct {
	mu     sync.RWMutex
	schema *schema
	docs   map[string]document.Document
	bleve  bleve.Index
}

func newIndexStore(def domindex.Definition) (*indexStore, error) {
	sc := newSchema(def)
	idx, err := bleve.NewMemOnly(sc.mapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &indexStore{schema: sc, docs: make(map[string]document.Document), bleve: idx}, nil
}

// rebuild replaces the definition, reindexing every stored document.
func (s *indexStore) rebuild(def domindex.Definition) error {
	sc := newSchema(def)
	idx, err := bleve.NewMemOnly(sc.mapping())
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := idx.NewBatch()
	for key, doc := range s.docs {
		if err := b.Index(key, bleveDoc(doc)); err != nil {
			return fmt.Errorf("reindex %q: %w", key, err)
		}
	}
	if err := idx.Batch(b); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	old := s.bleve
	s.schema, s.bleve = sc, idx
	_ = old.Close()
	return nil
}

func (s *indexStore) definition() domindex.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.def
}

func (s *indexStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bleve.Close()
}

func (s *indexStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *indexStore) lookup(key string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return document.Document{}, errDocNotFound
	}
	return doc, nil
}

// batchItem is one entry of the indexing response.
type batchItem struct {
	Key          string  `json:"key"`
	Status       bool    `json:"status"`
	ErrorMessage *string `json:"errorMessage"`
	StatusCode   int     `json:"statusCode"`
}

func failed(key string, code int, msg string) batchItem {
	return batchItem{Key: key, Status: false, ErrorMessage: &msg, StatusCode: code}
}

// apply runs an indexing batch. Whole-request problems (unknown fields, too
// many actions) return errBadRequest; per-document failures are reported in
// the items and never abort the rest of the batch.
func (s *indexStore) apply(entries []document.Document) ([]batchItem, error) {
	if len(entries) > MaxBatchSize {
		return nil, badRequestf("batch of %d actions exceeds the limit of %d", len(entries), MaxBatchSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		for _, k := range e.Keys() {
			if k == dombatch.ActionKey {
				continue
			}
			if _, ok := s.schema.topLevel[k]; !ok {
				return nil, badRequestf("the property '%s' does not exist on the index", k)
			}
		}
	}

	b := s.bleve.NewBatch()
	items := make([]batchItem, 0, len(entries))
	for _, e := range entries {
		item, op := s.applyOne(e)
		items = append(items, item)
		if op == nil {
			continue
		}
		if err := op(b); err != nil {
			msg := err.Error()
			items[len(items)-1] = failed(item.Key, http.StatusInternalServerError, msg)
		}
	}
	if err := s.bleve.Batch(b); err != nil {
		return nil, fmt.Errorf("bleve batch: %w", err)
	}
	return items, nil
}

type batchOp func(*bleve.Batch) error

func (s *indexStore) applyOne(e document.Document) (batchItem, batchOp) {
	action := dombatch.ActionUpload
	if raw, ok := e.Get(dombatch.ActionKey); ok {
		str, isStr := raw.(string)
		if !isStr {
			return failed("", http.StatusBadRequest, "@search.action must be a string"), nil
		}
		action = dombatch.Action(str)
	}
	key, ok := e.String(s.schema.keyName)
	if !ok || key == "" {
		return failed("", http.StatusBadRequest, "Document key cannot be missing or empty."), nil
	}
	doc := e.Without(dombatch.ActionKey)
	_, exists := s.docs[key]

	switch action {
	case dombatch.ActionUpload, dombatch.ActionMergeOrUpload:
		status := http.StatusCreated
		if exists {
			status = http.StatusOK
		}
		if action == dombatch.ActionMergeOrUpload && exists {
			doc = merge(s.docs[key], doc)
		}
		s.docs[key] = doc
		return batchItem{Key: key, Status: true, StatusCode: status}, func(b *bleve.Batch) error {
			return b.Index(key, bleveDoc(doc))
		}
	case dombatch.ActionMerge:
		if !exists {
			return failed(key, http.StatusNotFound, "Document not found."), nil
		}
		doc = merge(s.docs[key], doc)
		s.docs[key] = doc
		return batchItem{Key: key, Status: true, StatusCode: http.StatusOK}, func(b *bleve.Batch) error {
			return b.Index(key, bleveDoc(doc))
		}
	case dombatch.ActionDelete:
		delete(s.docs, key)
		return batchItem{Key: key, Status: true, StatusCode: http.StatusOK}, func(b *bleve.Batch) error {
			b.Delete(key)
			return nil
		}
	default:
		return failed(key, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action)), nil
	}
}

// bleveDoc drops null fields, which bleve cannot index.
func bleveDoc(doc document.Document) map[string]any {
	m := doc.Map()
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
	return m
}

// merge overlays the fields of patch onto base. Null values clear a field.
func merge(base, patch document.Document) document.Document {
	out := base
	for _, f := range patch.Fields() {
		out = out.With(f.Key, f.Value)
	}
	return out
}

// registry is the set of indexes served by one emulator.
type registry struct {
	mu      sync.RWMutex
	indexes map[string]*indexStore
}

func newRegistry() *registry {
	return &registry{indexes: make(map[string]*indexStore)}
}

func (r *registry) get(name string) (*indexStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %q: %w", name, errIndexNotFound)
	}
	return s, nil
}

func (r *registry) list() []domindex.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.indexes))
	for n := range r.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]domindex.Definition, 0, len(names))
	for _, n := range names {
		out = append(out, r.indexes[n].definition())
	}
	return out
}

func (r *registry) create(def domindex.Definition) error {
	if err := def.Validate(); err != nil {
		return badRequestf("%v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexes[def.Name()]; ok {
		return fmt.Errorf("index %q: %w", def.Name(), errIndexExists)
	}
	s, err := newIndexStore(def)
	if err != nil {
		return err
	}
	r.indexes[def.Name()] = s
	return nil
}

// put creates or replaces an index definition. It reports whether the index
// was created. Existing fields may not be removed or change type.
func (r *registry) put(def domindex.Definition) (bool, error) {
	if err := def.Validate(); err != nil {
		return false, badRequestf("%v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.indexes[def.Name()]
	if !ok {
		created, err := newIndexStore(def)
		if err != nil {
			return false, err
		}
		r.indexes[def.Name()] = created
		return true, nil
	}
	next := make(map[string]domindex.Type, len(def.Fields()))
	for _, f := range def.Fields() {
		next[f.Name()] = f.FieldType()
	}
	for _, f := range s.definition().Fields() {
		t, ok := next[f.Name()]
		if !ok {
			return false, badRequestf("existing field '%s' cannot be removed", f.Name())
		}
		if t != f.FieldType() {
			return false, badRequestf("existing field '%s' cannot change type", f.Name())
		}
	}
	return false, s.rebuild(def)
}

func (r *registry) delete(name string) error {
	r.mu.Lock()
	s, ok := r.indexes[name]
	delete(r.indexes, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("index %q: %w", name, errIndexNotFound)
	}
	return s.close()
}

func (r *registry) closeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, s := range r.indexes {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
		delete(r.indexes, name)
	}
	return errors.Join(errs...)
}
