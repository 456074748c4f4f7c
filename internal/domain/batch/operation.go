package batch

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/searchidx/internal/domain"
	"github.com/kailas-cloud/searchidx/internal/domain/document"
)

// ActionKey is the discriminator key inlined into every batch operation object.
const ActionKey = "@search.action"

// Action is the kind of a batch operation.
type Action string

// Batch actions.
const (
	ActionUpload        Action = "upload"
	ActionMerge         Action = "merge"
	ActionMergeOrUpload Action = "mergeOrUpload"
	ActionDelete        Action = "delete"
)

// Operation is one entry of an indexing batch. The set of implementations is closed:
// Upload, Merge, MergeOrUpload and Delete.
type Operation interface {
	Action() Action
	// Key returns the document key value when it can be determined from the operation.
	Key(keyField string) (string, bool)
	json.Marshaler
	operation()
}

// Upload inserts a document or replaces an existing one with the same key.
type Upload struct{ doc document.Document }

// NewUpload creates an upload operation for the document.
func NewUpload(doc document.Document) Upload { return Upload{doc: doc} }

// Action returns ActionUpload.
func (Upload) Action() Action { return ActionUpload }

// Document returns the uploaded document.
func (u Upload) Document() document.Document { return u.doc }

// Key returns the value of keyField in the document.
func (u Upload) Key(keyField string) (string, bool) { return u.doc.String(keyField) }

// MarshalJSON inlines the document fields and the discriminator into one object.
func (u Upload) MarshalJSON() ([]byte, error) { return marshalDocument(u.doc, ActionUpload) }

func (Upload) operation() {}

// Merge updates the given fields of an existing document.
type Merge struct{ doc document.Document }

// NewMerge creates a merge operation.
func NewMerge(doc document.Document) Merge { return Merge{doc: doc} }

// Action returns ActionMerge.
func (Merge) Action() Action { return ActionMerge }

// Document returns the partial document.
func (m Merge) Document() document.Document { return m.doc }

// Key returns the value of keyField in the document.
func (m Merge) Key(keyField string) (string, bool) { return m.doc.String(keyField) }

// MarshalJSON inlines the document fields and the discriminator into one object.
func (m Merge) MarshalJSON() ([]byte, error) { return marshalDocument(m.doc, ActionMerge) }

func (Merge) operation() {}

// MergeOrUpload merges into an existing document or uploads it when absent.
type MergeOrUpload struct{ doc document.Document }

// NewMergeOrUpload creates a merge-or-upload operation.
func NewMergeOrUpload(doc document.Document) MergeOrUpload { return MergeOrUpload{doc: doc} }

// Action returns ActionMergeOrUpload.
func (MergeOrUpload) Action() Action { return ActionMergeOrUpload }

// Document returns the document.
func (m MergeOrUpload) Document() document.Document { return m.doc }

// Key returns the value of keyField in the document.
func (m MergeOrUpload) Key(keyField string) (string, bool) { return m.doc.String(keyField) }

// MarshalJSON inlines the document fields and the discriminator into one object.
func (m MergeOrUpload) MarshalJSON() ([]byte, error) {
	return marshalDocument(m.doc, ActionMergeOrUpload)
}

func (MergeOrUpload) operation() {}

// Delete removes the document with the given key. Deleting an absent key is a no-op
// on the service side.
type Delete struct {
	keyField string
	keyValue string
}

// NewDelete creates a delete operation for keyField=keyValue.
func NewDelete(keyField, keyValue string) Delete {
	return Delete{keyField: keyField, keyValue: keyValue}
}

// Action returns ActionDelete.
func (Delete) Action() Action { return ActionDelete }

// KeyField returns the name of the key field.
func (d Delete) KeyField() string { return d.keyField }

// KeyValue returns the key of the document to delete.
func (d Delete) KeyValue() string { return d.keyValue }

// Key returns the key value; keyField is ignored since a delete always carries its key.
func (d Delete) Key(string) (string, bool) { return d.keyValue, true }

// MarshalJSON emits only the key pair and the discriminator.
func (d Delete) MarshalJSON() ([]byte, error) {
	if d.keyField == "" {
		return nil, &domain.EncodingError{Value: d.keyValue, Reason: "delete operation without key field"}
	}
	doc := document.New(
		document.Field{Key: d.keyField, Value: d.keyValue},
		document.Field{Key: ActionKey, Value: string(ActionDelete)},
	)
	return doc.MarshalJSON()
}

func (Delete) operation() {}

func marshalDocument(doc document.Document, action Action) ([]byte, error) {
	data, err := doc.With(ActionKey, string(action)).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%s operation: %w", action, err)
	}
	return data, nil
}

// Body encodes operations as the indexing request payload: {"value":[...]}.
func Body(ops []Operation) ([]byte, error) {
	if ops == nil {
		ops = []Operation{}
	}
	data, err := json.Marshal(struct {
		Value []Operation `json:"value"`
	}{Value: ops})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}
