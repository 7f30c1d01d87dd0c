package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kalambet/lexrag/internal/storage"
)

// backends returns a fresh instance of every VectorStore implementation.
func backends(t *testing.T) map[string]VectorStore {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return map[string]VectorStore{
		"sqlite": NewSQLiteStore(s.DB(), nil),
		"memory": NewMemoryStore(nil),
	}
}

// unit returns a one-hot vector of the given dimension.
func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

// addDoc writes n chunks for docID, chunk i embedded as unit(dim, i%dim).
func addDoc(t *testing.T, s VectorStore, c Collection, docID string, n, dim int) {
	t.Helper()
	docs := make([]string, n)
	embs := make([][]float32, n)
	metas := make([]Metadata, n)
	ids := make([]string, n)
	for i := range n {
		docs[i] = fmt.Sprintf("%s chunk %d", docID, i)
		embs[i] = unit(dim, i%dim)
		metas[i] = Metadata{DocID: docID, Filename: docID + ".txt", Index: i}
		ids[i] = fmt.Sprintf("%s_%d", docID, i)
	}
	if err := s.Add(context.Background(), c, docs, embs, metas, ids); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestEnsureCollection_CreateAndReuse(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, err := s.EnsureCollection(ctx, "general_docs", false)
			if err != nil {
				t.Fatalf("EnsureCollection: %v", err)
			}
			if c.Dimension != 0 {
				t.Errorf("new collection dimension = %d, want 0", c.Dimension)
			}
			addDoc(t, s, c, "d1", 3, 4)

			again, err := s.EnsureCollection(ctx, "general_docs", false)
			if err != nil {
				t.Fatalf("EnsureCollection: %v", err)
			}
			if again.Dimension != 4 {
				t.Errorf("dimension = %d, want 4", again.Dimension)
			}
			n, err := s.Count(ctx, again)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != 3 {
				t.Errorf("count = %d, want 3", n)
			}
		})
	}
}

func TestEnsureCollection_Reset(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "legal_docs", false)
			addDoc(t, s, c, "old", 5, 4)

			c, err := s.EnsureCollection(ctx, "legal_docs", true)
			if err != nil {
				t.Fatalf("EnsureCollection(reset): %v", err)
			}
			n, _ := s.Count(ctx, c)
			if n != 0 {
				t.Errorf("count after reset = %d, want 0", n)
			}
			if c.Dimension != 0 {
				t.Errorf("dimension after reset = %d, want 0", c.Dimension)
			}

			// A reset collection accepts a new dimension.
			addDoc(t, s, c, "new", 2, 8)
			matches, err := s.Query(ctx, c, unit(8, 0), 10)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			for _, m := range matches {
				if m.Metadata.DocID != "new" {
					t.Errorf("match from %q survived reset", m.Metadata.DocID)
				}
			}
		})
	}
}

func TestGetCollection_NotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetCollection(context.Background(), "nope_docs")
			if !errors.Is(err, ErrCollectionNotFound) {
				t.Errorf("err = %v, want ErrCollectionNotFound", err)
			}
		})
	}
}

func TestAdd_DimensionMismatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "general_docs", false)
			addDoc(t, s, c, "d1", 2, 4)

			err := s.Add(ctx, c, []string{"x"}, [][]float32{unit(3, 0)}, []Metadata{{DocID: "d2"}}, []string{"d2_0"})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("err = %v, want ErrDimensionMismatch", err)
			}
			n, _ := s.Count(ctx, c)
			if n != 2 {
				t.Errorf("count = %d, want 2 (rejected batch must not be written)", n)
			}
		})
	}
}

func TestAdd_MixedDimensionsInBatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "general_docs", false)
			err := s.Add(ctx, c,
				[]string{"a", "b"},
				[][]float32{unit(4, 0), unit(5, 0)},
				[]Metadata{{DocID: "d"}, {DocID: "d"}},
				[]string{"d_0", "d_1"})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("err = %v, want ErrDimensionMismatch", err)
			}
			n, _ := s.Count(ctx, c)
			if n != 0 {
				t.Errorf("count = %d, want 0", n)
			}
		})
	}
}

func TestAdd_LengthMismatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "general_docs", false)
			err := s.Add(ctx, c, []string{"a", "b"}, [][]float32{unit(4, 0)}, []Metadata{{}}, []string{"x"})
			if err == nil {
				t.Fatal("expected error for unequal slice lengths")
			}
		})
	}
}

func TestQuery_OrderedByDistance(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "general_docs", false)
			err := s.Add(ctx, c,
				[]string{"far", "near", "exact"},
				[][]float32{{0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
				[]Metadata{{DocID: "d", Index: 0}, {DocID: "d", Index: 1}, {DocID: "d", Index: 2}},
				[]string{"d_0", "d_1", "d_2"})
			if err != nil {
				t.Fatalf("Add: %v", err)
			}

			matches, err := s.Query(ctx, c, []float32{1, 0, 0}, 2)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(matches) != 2 {
				t.Fatalf("got %d matches, want 2", len(matches))
			}
			if matches[0].Text != "exact" || matches[1].Text != "near" {
				t.Errorf("order = %q, %q; want exact, near", matches[0].Text, matches[1].Text)
			}
			if matches[0].Distance > 1e-5 {
				t.Errorf("exact distance = %f, want ~0", matches[0].Distance)
			}
			if matches[0].Distance > matches[1].Distance {
				t.Error("distances not ascending")
			}
			if matches[0].Metadata.Index != 2 || matches[0].Metadata.DocID != "d" {
				t.Errorf("metadata = %+v", matches[0].Metadata)
			}
		})
	}
}

func TestQuery_MissingCollectionIsEmpty(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			matches, err := s.Query(context.Background(), Collection{Name: "ghost_docs"}, unit(4, 0), 4)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(matches) != 0 {
				t.Errorf("got %d matches, want 0", len(matches))
			}
		})
	}
}

func TestQuery_TwoDocumentsCoexist(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "general_docs", false)
			addDoc(t, s, c, "a", 2, 4)
			addDoc(t, s, c, "b", 2, 4)

			matches, err := s.Query(ctx, c, unit(4, 0), 4)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			docs := map[string]bool{}
			for _, m := range matches {
				docs[m.Metadata.DocID] = true
			}
			if !docs["a"] || !docs["b"] {
				t.Errorf("matches from %v, want both a and b", docs)
			}
		})
	}
}

func TestDeleteAndListCollections(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, n := range []string{"legal_docs", "general_docs"} {
				if _, err := s.EnsureCollection(ctx, n, false); err != nil {
					t.Fatalf("EnsureCollection: %v", err)
				}
			}
			list, err := s.ListCollections(ctx)
			if err != nil {
				t.Fatalf("ListCollections: %v", err)
			}
			if len(list) != 2 || list[0].Name != "general_docs" {
				t.Fatalf("list = %+v", list)
			}

			if err := s.DeleteCollection(ctx, "general_docs"); err != nil {
				t.Fatalf("DeleteCollection: %v", err)
			}
			list, _ = s.ListCollections(ctx)
			if len(list) != 1 || list[0].Name != "legal_docs" {
				t.Errorf("after delete = %+v", list)
			}
		})
	}
}

// TestConcurrentAddAndQuery checks that a query never observes a partial
// batch: every result set holds whole documents only.
func TestConcurrentAddAndQuery(t *testing.T) {
	const perDoc = 5
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := s.EnsureCollection(ctx, "general_docs", false)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 10 {
					docID := fmt.Sprintf("doc%d", i)
					docs := make([]string, perDoc)
					embs := make([][]float32, perDoc)
					metas := make([]Metadata, perDoc)
					ids := make([]string, perDoc)
					for j := range perDoc {
						docs[j] = docID
						embs[j] = unit(4, j%4)
						metas[j] = Metadata{DocID: docID, Index: j}
						ids[j] = fmt.Sprintf("%s_%d", docID, j)
					}
					if err := s.Add(ctx, c, docs, embs, metas, ids); err != nil {
						t.Errorf("Add: %v", err)
						return
					}
				}
			}()

			for range 20 {
				n, err := s.Count(ctx, c)
				if err != nil {
					t.Fatalf("Count: %v", err)
				}
				if n%perDoc != 0 {
					t.Fatalf("observed %d chunks, not a multiple of %d", n, perDoc)
				}
			}
			wg.Wait()
		})
	}
}
