package domain

// VerseRecord is one row of the verse corpus. Records are created at load
// time and never mutated afterwards.
type VerseRecord struct {
	Book      string
	Chapter   string
	Verse     string
	Text      string // verse body with markup tokens stripped
	Reference string // "{book} {chapter}:{verse}"
}

// SearchResult represents a matching verse with a relevance score.
type SearchResult struct {
	Verse VerseRecord
	Score float64
}

// ChatTurn is one answered question, kept for the session report.
type ChatTurn struct {
	Query       string
	Answer      string
	DisplayTime string // wall clock, HH:MM:SS
}

// RegistryEntry is one row of the guest registry.
type RegistryEntry struct {
	Username string
	JoinedAt string // YYYY-MM-DD HH:MM:SS
}
