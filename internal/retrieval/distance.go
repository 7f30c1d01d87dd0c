package retrieval

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"
)

// cosineDistance returns 1 - cos(q, v). A zero vector, by either magnitude,
// is treated as maximally distant from everything. Only CosineDistance is
// exported by viant/vec on every GOARCH; the precomputed-magnitude variant
// exists on arm64 alone.
func cosineDistance(q search.Float32s, qMag float32, v []float32, vMag float32) float32 {
	if qMag == 0 || vMag == 0 {
		return 1
	}
	d := q.CosineDistance(v)
	if math.IsNaN(float64(d)) {
		return 1
	}
	return d
}

type candidate struct {
	id       string
	distance float32
}

// farthestFirst is a max-heap on distance, so the root is the worst of the
// current top-K and can be replaced cheaply.
type farthestFirst []candidate

func (h farthestFirst) Len() int { return len(h) }
func (h farthestFirst) Less(i, j int) bool {
	if h[i].distance == h[j].distance {
		return h[i].id > h[j].id
	}
	return h[i].distance > h[j].distance
}
func (h farthestFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *farthestFirst) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *farthestFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// nearest keeps the k closest candidates seen so far.
type nearest struct {
	k int
	h farthestFirst
}

func newNearest(k int) *nearest {
	return &nearest{k: k}
}

func (n *nearest) offer(id string, distance float32) {
	c := candidate{id: id, distance: distance}
	if n.h.Len() < n.k {
		heap.Push(&n.h, c)
		return
	}
	root := n.h[0]
	if distance < root.distance || (distance == root.distance && id < root.id) {
		n.h[0] = c
		heap.Fix(&n.h, 0)
	}
}

// sorted returns the kept candidates by ascending distance, ties by id.
func (n *nearest) sorted() []candidate {
	out := append([]candidate(nil), n.h...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].distance == out[j].distance {
			return out[i].id < out[j].id
		}
		return out[i].distance < out[j].distance
	})
	return out
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into buf, reusing it to
// avoid per-row allocations during scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}
