// Package memory provides an in-memory vector store using brute-force
// cosine similarity. The corpus is a few tens of thousands of verses, which
// a linear scan handles comfortably.
package memory

import (
	"errors"
	"math"
	"sort"
	"sync"

	"alkitab/internal/domain"
)

// Storage holds verse vectors and their records side by side.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	verses    []domain.VerseRecord
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.verses = nil
	return nil
}

func (s *Storage) Upsert(verses []domain.VerseRecord, vectors [][]float64) error {
	if len(verses) != len(vectors) {
		return errors.New("verses and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.verses = append(s.verses, verses...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Storage) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{Verse: s.verses[i], Score: cosine(s.vectors[i], vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.verses = nil
	return nil
}

// cosine computes cosine similarity without assuming normalized inputs;
// remote embedding vectors arrive unnormalized.
func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
