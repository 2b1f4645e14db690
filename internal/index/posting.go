// Package index builds, publishes, and reads immutable index generations.
//
// A generation is a directory holding one segment file (term dictionary,
// postings, and field norms) and one SQLite stored-field store. Builds
// write a new generation next to the active one and switch to it by
// renaming the CURRENT pointer file.
package index

// Posting is one document's entry in a posting list.
type Posting struct {
	DocID uint32
	Freq  uint32
}

// PostingList is sorted by ascending DocID with at most one entry per document.
type PostingList []Posting

// DocIDs returns the document ids of the list in order.
func (pl PostingList) DocIDs() []uint32 {
	ids := make([]uint32, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}

// TermEntry is one dictionary term with its postings.
type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}
