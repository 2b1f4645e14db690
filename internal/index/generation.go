package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/docsearch/internal/models"
	"github.com/hyperjump/docsearch/internal/storage"
)

// Names inside an index directory.
const (
	CurrentFileName = "CURRENT"
	SegmentFileName = "terms.seg"
	StoreFileName   = "stored.db"

	generationPrefix = "gen-"
	tmpSuffix        = ".tmp"
)

// GenerationName formats the directory name of generation seq.
func GenerationName(seq uint64) string {
	return fmt.Sprintf("%s%08d", generationPrefix, seq)
}

// parseGenerationName returns the sequence number of a generation directory
// name, with or without the temporary suffix.
func parseGenerationName(name string) (seq uint64, tmp bool, ok bool) {
	if !strings.HasPrefix(name, generationPrefix) {
		return 0, false, false
	}
	rest := strings.TrimPrefix(name, generationPrefix)
	if strings.HasSuffix(rest, tmpSuffix) {
		tmp = true
		rest = strings.TrimSuffix(rest, tmpSuffix)
	}
	seq, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return seq, tmp, true
}

// Generation is one immutable, queryable build. Readers obtain it from
// Handle.Acquire and must call Release exactly once when done.
type Generation struct {
	name    string
	dir     string
	seg     *SegmentReader
	store   storage.StoredFieldStore
	refs    atomic.Int64
	retired atomic.Bool
	once    sync.Once
	onFree  func(*Generation)
}

func openGeneration(dir string) (*Generation, error) {
	seg, err := OpenSegment(filepath.Join(dir, SegmentFileName))
	if err != nil {
		return nil, err
	}
	store, err := storage.OpenSQLiteStoreReadOnly(filepath.Join(dir, StoreFileName))
	if err != nil {
		seg.Close()
		return nil, err
	}
	g := &Generation{name: filepath.Base(dir), dir: dir, seg: seg, store: store}
	g.refs.Store(1)
	return g, nil
}

// ID returns the generation name, e.g. gen-00000007.
func (g *Generation) ID() string { return g.name }

// Dir returns the generation directory.
func (g *Generation) Dir() string { return g.dir }

// DocCount returns the number of documents. Doc ids are 0..DocCount-1.
func (g *Generation) DocCount() int { return g.seg.DocCount() }

// TermCount returns the number of distinct (field, term) pairs.
func (g *Generation) TermCount() int { return g.seg.TermCount() }

// CreatedAt returns the build time recorded in the segment header.
func (g *Generation) CreatedAt() time.Time {
	return time.Unix(g.seg.Header().CreatedAt, 0)
}

// Postings returns the posting list of (field, token); unknown pairs yield nil.
func (g *Generation) Postings(field, token string) (PostingList, error) {
	return g.seg.Postings(field, token)
}

// DocFreq returns how many documents contain (field, token).
func (g *Generation) DocFreq(field, token string) int {
	return g.seg.DocFreq(field, token)
}

// FieldTerms returns the dictionary entries of field in term order.
func (g *Generation) FieldTerms(field string) []DictEntry {
	return g.seg.FieldTerms(field)
}

// FieldLength returns the token count of field in document id.
func (g *Generation) FieldLength(field string, id uint32) uint32 {
	return g.seg.FieldLength(field, id)
}

// AvgFieldLength returns the mean token count of field.
func (g *Generation) AvgFieldLength(field string) float64 {
	return g.seg.AvgFieldLength(field)
}

// StoredFields returns the path and stored fields of document id.
// A missing id wraps storage.ErrNotFound.
func (g *Generation) StoredFields(ctx context.Context, id uint32) (*models.StoredDocument, error) {
	return g.store.GetStoredFields(ctx, id)
}

// StoredDocIDs returns every id present in the stored-field store.
func (g *Generation) StoredDocIDs(ctx context.Context) ([]uint32, error) {
	return g.store.DocIDs(ctx)
}

func (g *Generation) acquire() { g.refs.Add(1) }

// Release drops the caller's reference. The last release of a retired
// generation closes it and removes its directory.
func (g *Generation) Release() {
	if g.refs.Add(-1) > 0 {
		return
	}
	g.once.Do(func() {
		g.seg.Close()
		g.store.Close()
		if g.retired.Load() {
			os.RemoveAll(g.dir)
		}
		if g.onFree != nil {
			g.onFree(g)
		}
	})
}
