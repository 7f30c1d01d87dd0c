package retrieval

import (
	"math"
	"testing"

	"github.com/viant/vec/search"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		q, v []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero query", []float32{0, 0}, []float32{1, 1}, 1},
		{"zero stored", []float32{1, 1}, []float32{0, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := search.Float32s(tt.q)
			got := cosineDistance(q, q.Magnitude(), tt.v, search.Float32s(tt.v).Magnitude())
			if math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Errorf("cosineDistance(%v, %v) = %v, want %v", tt.q, tt.v, got, tt.want)
			}
		})
	}
}

func TestNearest_KeepsKClosestWithIDTieBreak(t *testing.T) {
	n := newNearest(2)
	n.offer("c", 0.5)
	n.offer("b", 0.1)
	n.offer("a", 0.5)
	n.offer("d", 0.9)

	got := n.sorted()
	if len(got) != 2 || got[0].id != "b" || got[1].id != "a" {
		t.Errorf("sorted = %+v, want b then a", got)
	}
}
