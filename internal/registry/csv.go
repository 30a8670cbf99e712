package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"alkitab/internal/domain"
)

// CSV column headers, kept compatible with existing guest log files.
var csvHeader = []string{"Nama Pengguna", "Waktu Bergabung"}

// CSVRecorder stores the guest log as a two-column CSV file. New entries go
// through a single O_APPEND write under a process-wide mutex, so concurrent
// registrations cannot lose each other's rows the way a whole-file
// read-modify-write would.
type CSVRecorder struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCSVRecorder creates a recorder backed by the CSV file at path. The file
// is created with a header row on first use.
func NewCSVRecorder(path string) *CSVRecorder {
	return &CSVRecorder{path: path, now: time.Now}
}

func (r *CSVRecorder) RecordIfNew(username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureFile(); err != nil {
		return false, err
	}
	entries, err := r.readAll()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Username == username {
			return false, nil
		}
	}
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Errorf("open guest log: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{username, r.now().Format(timeFormat)}); err != nil {
		return false, fmt.Errorf("append guest log: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("append guest log: %w", err)
	}
	return true, nil
}

func (r *CSVRecorder) List() ([]domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return r.readAll()
}

func (r *CSVRecorder) ensureFile() error {
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create guest log: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write guest log header: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (r *CSVRecorder) readAll() ([]domain.RegistryEntry, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("read guest log: %w", err)
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read guest log: %w", err)
	}
	var entries []domain.RegistryEntry
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		entries = append(entries, domain.RegistryEntry{Username: row[0], JoinedAt: row[1]})
	}
	return entries, nil
}
