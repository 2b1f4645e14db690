package search

import "math"

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// idf is the BM25 inverse document frequency. It is always positive.
func idf(totalDocs, docFreq int) float64 {
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// tfNorm saturates a term frequency against the field's length relative to
// its average.
func tfNorm(termFreq, fieldLength uint32, avgFieldLength float64) float64 {
	tf := float64(termFreq)
	ratio := 1.0
	if avgFieldLength > 0 {
		ratio = float64(fieldLength) / avgFieldLength
	}
	return tf * (k1 + 1) / (tf + k1*(1-b+b*ratio))
}
