package search

import (
	"container/heap"
	"sort"
)

// candidate is a matched document and its score.
type candidate struct {
	id    uint32
	score float64
}

// better orders by score descending, then doc id ascending.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

// worstFirst is a min-heap on ranking order: the root is the weakest kept candidate.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK returns the k best candidates in ranking order.
func topK(cands []candidate, k int) []candidate {
	if k <= 0 {
		return nil
	}
	if k >= len(cands) {
		out := make([]candidate, len(cands))
		copy(out, cands)
		sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
		return out
	}
	h := make(worstFirst, 0, k)
	for _, c := range cands {
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	out := []candidate(h)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
