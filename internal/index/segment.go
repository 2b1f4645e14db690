package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sort"
	"time"
)

// Segment file layout constants.
const (
	SegmentMagic   uint32 = 0x44534547 // "DSEG"
	SegmentVersion uint32 = 1
	HeaderSize     int    = 64
	FooterSize     int    = 32
)

// SegmentHeader is the 64-byte header at the start of every segment file.
type SegmentHeader struct {
	Magic       uint32
	Version     uint32
	DocCount    uint32
	TermCount   uint32
	CreatedAt   int64
	PostOffset  int64
	PostSize    int64
	DictOffset  int64
	DictSize    int64
	NormsOffset int64
}

func (h SegmentHeader) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.DocCount)
	binary.LittleEndian.PutUint32(b[12:16], h.TermCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.NormsOffset))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		DocCount:    binary.LittleEndian.Uint32(b[8:12]),
		TermCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(b[16:24])),
		PostOffset:  int64(binary.LittleEndian.Uint64(b[24:32])),
		PostSize:    int64(binary.LittleEndian.Uint64(b[32:40])),
		DictOffset:  int64(binary.LittleEndian.Uint64(b[40:48])),
		DictSize:    int64(binary.LittleEndian.Uint64(b[48:56])),
		NormsOffset: int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// Footer: crc32 | magic | doc count | term count | norms size | reserved.
func encodeFooter(checksum, docCount, termCount uint32, normsSize int64) []byte {
	b := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(b[0:4], checksum)
	binary.LittleEndian.PutUint32(b[4:8], SegmentMagic)
	binary.LittleEndian.PutUint32(b[8:12], docCount)
	binary.LittleEndian.PutUint32(b[12:16], termCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(normsSize))
	return b
}

// DictEntry locates the postings of one (field, term) pair. Offsets are
// relative to the start of the postings block.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

func (e DictEntry) less(field, term string) bool {
	if e.Field != field {
		return e.Field < field
	}
	return e.Term < term
}

// encodePostings writes uvarint(count) then (uvarint(docID delta), uvarint(freq)) pairs.
func encodePostings(buf []byte, pl PostingList) []byte {
	buf = binary.AppendUvarint(buf[:0], uint64(len(pl)))
	var prev uint32
	for _, p := range pl {
		buf = binary.AppendUvarint(buf, uint64(p.DocID-prev))
		buf = binary.AppendUvarint(buf, uint64(p.Freq))
		prev = p.DocID
	}
	return buf
}

func decodePostings(b []byte) (PostingList, error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, corruptf("bad posting count")
	}
	b = b[k:]
	if n > uint64(len(b)) {
		return nil, corruptf("posting count %d exceeds %d bytes", n, len(b))
	}
	pl := make(PostingList, 0, n)
	var doc uint64
	for i := uint64(0); i < n; i++ {
		delta, k := binary.Uvarint(b)
		if k <= 0 {
			return nil, corruptf("bad doc delta at posting %d", i)
		}
		b = b[k:]
		freq, k := binary.Uvarint(b)
		if k <= 0 {
			return nil, corruptf("bad frequency at posting %d", i)
		}
		b = b[k:]
		doc += delta
		if doc > math.MaxUint32 || (i > 0 && delta == 0) {
			return nil, corruptf("doc ids out of order at posting %d", i)
		}
		pl = append(pl, Posting{DocID: uint32(doc), Freq: uint32(freq)})
	}
	return pl, nil
}

// countingWriter tracks the offset and checksum of everything after the header.
type countingWriter struct {
	w   *bufio.Writer
	crc hash.Hash32
	n   int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.crc.Write(p[:n])
	c.n += int64(n)
	return n, err
}

// WriteSegment writes the terms of m to path and fsyncs it. It returns the header written.
func WriteSegment(path string, m *MemoryIndex) (SegmentHeader, error) {
	entries := m.Snapshot()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return SegmentHeader{}, fmt.Errorf("creating segment file: %w", err)
	}
	defer f.Close()

	header := SegmentHeader{
		Magic:      SegmentMagic,
		Version:    SegmentVersion,
		DocCount:   uint32(m.DocCount()),
		TermCount:  uint32(len(entries)),
		CreatedAt:  time.Now().Unix(),
		PostOffset: int64(HeaderSize),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return header, fmt.Errorf("writing header: %w", err)
	}

	cw := &countingWriter{w: bufio.NewWriterSize(f, 64*1024), crc: crc32.NewIEEE()}
	dict := make([]DictEntry, 0, len(entries))
	var scratch []byte
	for _, e := range entries {
		scratch = encodePostings(scratch, e.Postings)
		offset := cw.n
		if _, err := cw.Write(scratch); err != nil {
			return header, fmt.Errorf("writing postings for %s:%q: %w", e.Field, e.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:      e.Field,
			Term:       e.Term,
			PostOffset: offset,
			PostLen:    len(scratch),
			DocFreq:    len(e.Postings),
		})
	}
	header.PostSize = cw.n

	dictData, err := json.Marshal(dict)
	if err != nil {
		return header, fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + cw.n
	if _, err := cw.Write(dictData); err != nil {
		return header, fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictSize = int64(len(dictData))

	normsData, err := json.Marshal(m.Norms())
	if err != nil {
		return header, fmt.Errorf("marshaling norms: %w", err)
	}
	header.NormsOffset = header.PostOffset + cw.n
	if _, err := cw.Write(normsData); err != nil {
		return header, fmt.Errorf("writing norms: %w", err)
	}

	footer := encodeFooter(cw.crc.Sum32(), header.DocCount, header.TermCount, int64(len(normsData)))
	if _, err := cw.w.Write(footer); err != nil {
		return header, fmt.Errorf("writing footer: %w", err)
	}
	if err := cw.w.Flush(); err != nil {
		return header, fmt.Errorf("flushing segment: %w", err)
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return header, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return header, fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return header, fmt.Errorf("closing segment file: %w", err)
	}
	return header, nil
}

// SegmentReader serves postings from a validated segment file. Postings are
// read on demand; the dictionary and norms are held in memory.
type SegmentReader struct {
	file   *os.File
	path   string
	header SegmentHeader
	dict   []DictEntry
	norms  map[string][]uint32
	avg    map[string]float64
}

// OpenSegment opens path and validates magic, version, layout, and checksum.
// Validation failures wrap ErrCorruptSegment.
func OpenSegment(path string) (*SegmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := readSegment(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func readSegment(f *os.File, path string) (*SegmentReader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, corruptf("file too short (%d bytes)", size)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != SegmentMagic {
		return nil, corruptf("bad magic bytes %x", header.Magic)
	}
	if header.Version != SegmentVersion {
		return nil, corruptf("unsupported version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	checksum := binary.LittleEndian.Uint32(footer[0:4])
	if m := binary.LittleEndian.Uint32(footer[4:8]); m != SegmentMagic {
		return nil, corruptf("bad footer magic %x", m)
	}
	if dc := binary.LittleEndian.Uint32(footer[8:12]); dc != header.DocCount {
		return nil, corruptf("doc count mismatch: header %d, footer %d", header.DocCount, dc)
	}
	normsSize := int64(binary.LittleEndian.Uint64(footer[16:24]))

	bodyEnd := size - int64(FooterSize)
	if header.PostOffset != int64(HeaderSize) ||
		header.DictOffset != header.PostOffset+header.PostSize ||
		header.NormsOffset != header.DictOffset+header.DictSize ||
		header.NormsOffset+normsSize != bodyEnd {
		return nil, corruptf("inconsistent layout")
	}

	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, io.NewSectionReader(f, header.PostOffset, bodyEnd-header.PostOffset)); err != nil {
		return nil, fmt.Errorf("checksumming segment: %w", err)
	}
	if crc.Sum32() != checksum {
		return nil, corruptf("checksum mismatch")
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, corruptf("parsing dictionary: %v", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, corruptf("term count mismatch: header %d, dictionary %d", header.TermCount, len(dict))
	}

	normsBytes := make([]byte, normsSize)
	if _, err := f.ReadAt(normsBytes, header.NormsOffset); err != nil {
		return nil, fmt.Errorf("reading norms: %w", err)
	}
	norms := make(map[string][]uint32)
	if err := json.Unmarshal(normsBytes, &norms); err != nil {
		return nil, corruptf("parsing norms: %v", err)
	}

	avg := make(map[string]float64, len(norms))
	for field, lengths := range norms {
		if len(lengths) != int(header.DocCount) {
			return nil, corruptf("norms for %q cover %d of %d docs", field, len(lengths), header.DocCount)
		}
		var sum uint64
		for _, l := range lengths {
			sum += uint64(l)
		}
		if header.DocCount > 0 {
			avg[field] = float64(sum) / float64(header.DocCount)
		}
	}

	return &SegmentReader{
		file:   f,
		path:   path,
		header: header,
		dict:   dict,
		norms:  norms,
		avg:    avg,
	}, nil
}

func (r *SegmentReader) lookup(field, term string) (DictEntry, bool) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return !r.dict[i].less(field, term)
	})
	if i >= len(r.dict) || r.dict[i].Field != field || r.dict[i].Term != term {
		return DictEntry{}, false
	}
	return r.dict[i], true
}

// Postings returns the posting list for (field, term). A missing term yields nil.
func (r *SegmentReader) Postings(field, term string) (PostingList, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return nil, nil
	}
	b := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(b, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	pl, err := decodePostings(b)
	if err != nil {
		return nil, err
	}
	if len(pl) != entry.DocFreq {
		return nil, corruptf("%s:%q has %d postings, dictionary says %d", field, term, len(pl), entry.DocFreq)
	}
	return pl, nil
}

// DocFreq returns the number of documents containing (field, term).
func (r *SegmentReader) DocFreq(field, term string) int {
	entry, ok := r.lookup(field, term)
	if !ok {
		return 0
	}
	return entry.DocFreq
}

// FieldTerms returns the dictionary entries of field in term order.
// The slice aliases the reader's dictionary and must not be modified.
func (r *SegmentReader) FieldTerms(field string) []DictEntry {
	lo := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].Field >= field })
	hi := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].Field > field })
	return r.dict[lo:hi]
}

// FieldLength returns the token count of field in document id.
func (r *SegmentReader) FieldLength(field string, id uint32) uint32 {
	lengths := r.norms[field]
	if int(id) >= len(lengths) {
		return 0
	}
	return lengths[id]
}

// AvgFieldLength returns the mean token count of field across all documents.
func (r *SegmentReader) AvgFieldLength(field string) float64 {
	return r.avg[field]
}

// Header returns the segment header.
func (r *SegmentReader) Header() SegmentHeader { return r.header }

// TermCount returns the number of dictionary entries.
func (r *SegmentReader) TermCount() int { return len(r.dict) }

// DocCount returns the number of documents in the segment.
func (r *SegmentReader) DocCount() int { return int(r.header.DocCount) }

// Close releases the underlying file.
func (r *SegmentReader) Close() error {
	return r.file.Close()
}
