// Package models defines core data structures for documents, queries, and search results.
package models

// Reserved field names. Metadata keys are lower-cased before they are compared to these.
const (
	FieldPath     = "path"
	FieldBody     = "body"
	FieldTitle    = "title"
	FieldKeywords = "keywords"
)

// StorageMode says whether a field value can be retrieved from search results.
type StorageMode int

const (
	// IndexedOnly fields are searchable but never returned.
	IndexedOnly StorageMode = iota
	// Stored fields are returned verbatim and also indexed.
	Stored
)

func (m StorageMode) String() string {
	if m == Stored {
		return "stored"
	}
	return "indexed-only"
}

// Field is one named value of a document. A name may repeat (e.g. keywords).
type Field struct {
	Name  string      `json:"name"`
	Value string      `json:"value"`
	Mode  StorageMode `json:"mode"`
}

// Document is assembled from one source file. ID is assigned by the index builder.
type Document struct {
	ID     uint32  `json:"id"`
	Path   string  `json:"path"`
	Fields []Field `json:"fields,omitempty"`
	Body   string  `json:"-"`
}

// AllFields returns every field of the document in index order: path, metadata fields, body.
// An empty body is omitted.
func (d *Document) AllFields() []Field {
	out := make([]Field, 0, len(d.Fields)+2)
	out = append(out, Field{Name: FieldPath, Value: d.Path, Mode: Stored})
	out = append(out, d.Fields...)
	if d.Body != "" {
		out = append(out, Field{Name: FieldBody, Value: d.Body, Mode: IndexedOnly})
	}
	return out
}

// StoredFields returns the retrievable fields keyed by name, excluding path.
func (d *Document) StoredFields() StoredFields {
	sf := StoredFields{}
	for _, f := range d.Fields {
		if f.Mode == Stored {
			sf[f.Name] = append(sf[f.Name], f.Value)
		}
	}
	return sf
}

// StoredFields maps a field name to its stored values in insertion order.
type StoredFields map[string][]string

// First returns the first value stored under name, or "".
func (sf StoredFields) First(name string) string {
	if v := sf[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// StoredDocument is what the stored-field store returns for a document id.
type StoredDocument struct {
	ID     uint32       `json:"id"`
	Path   string       `json:"path"`
	Fields StoredFields `json:"fields,omitempty"`
}
