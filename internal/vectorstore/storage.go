package vectorstore

import "alkitab/internal/domain"

// Storage persists verse vectors and supports similarity search. The store
// is built once at pipeline construction and is read-only afterwards.
type Storage interface {
	Init(dimension int) error
	Upsert(verses []domain.VerseRecord, vectors [][]float64) error
	Search(vector []float64, topK int) ([]domain.SearchResult, error)
	Clear() error
}
