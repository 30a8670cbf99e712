// Package registry keeps the durable guest log: every distinct username
// that has ever logged in, with its first-seen timestamp. Entries are never
// updated or deleted.
package registry

import "alkitab/internal/domain"

// timeFormat is the join-timestamp layout persisted in the log.
const timeFormat = "2006-01-02 15:04:05"

// Recorder is the guest registry port. RecordIfNew is idempotent: recording
// the same name twice leaves exactly one entry. Dedup is by exact,
// case-sensitive string match. Implementations must be safe for concurrent
// registrations.
type Recorder interface {
	// RecordIfNew appends the username with the current timestamp if it is
	// not already present. It reports whether a new entry was written.
	RecordIfNew(username string) (bool, error)
	// List returns all entries in registration order.
	List() ([]domain.RegistryEntry, error)
}
