// Package session holds per-session conversation state: the active user,
// the displayed transcript, and the question/answer history for the report
// sidebar. A session is one terminal's worth of interaction state.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alkitab/internal/domain"
)

// Roles for transcript messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyUsername rejects a login with an empty or whitespace-only name.
var ErrEmptyUsername = errors.New("username must not be empty")

// Message is one role-tagged transcript entry.
type Message struct {
	Role    string
	Content string
}

// State is the per-session conversation state. The UI layer owns it and
// passes it explicitly to the components that need it; there is no ambient
// global. The answer flow appends turns from a background command while the
// UI renders, so access is mutex-guarded.
type State struct {
	mu       sync.RWMutex
	id       string
	userName string
	start    time.Time
	messages []Message
	history  []domain.ChatTurn
}

func New() *State { return &State{} }

// Login moves the session to the logged-in state. The name is trimmed and
// must be non-empty; the user name is immutable for the session's lifetime.
func (s *State) Login(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyUsername
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.userName = name
	s.start = now
	s.messages = []Message{{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("Halo %s! Saya Pendamping Firman. Apa yang bisa saya bantu hari ini terkait Firman Tuhan?", name),
	}}
	s.history = nil
	return nil
}

// Logout fully clears the session. Nothing survives into the next login.
func (s *State) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.userName = ""
	s.start = time.Time{}
	s.messages = nil
	s.history = nil
}

func (s *State) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName != ""
}

func (s *State) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *State) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName
}

func (s *State) Start() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.start
}

// AddMessage appends one transcript entry.
func (s *State) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: role, Content: content})
}

// Messages returns a copy of the transcript in display order.
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AddTurn records an answered question with a wall-clock timestamp.
func (s *State) AddTurn(query, answer string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, domain.ChatTurn{
		Query:       query,
		Answer:      answer,
		DisplayTime: at.Format("15:04:05"),
	})
}

// AddTurnFor records an answered question like AddTurn, but only when the
// session is still the one identified by id. Answers arrive from background
// commands, so a logout (or a logout→login cycle) may have replaced the
// session in the meantime; such stale turns are discarded. Reports whether
// the turn was recorded.
func (s *State) AddTurnFor(id, query, answer string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.id != id {
		return false
	}
	s.history = append(s.history, domain.ChatTurn{
		Query:       query,
		Answer:      answer,
		DisplayTime: at.Format("15:04:05"),
	})
	return true
}

// History returns a copy of the answered turns in submission order.
func (s *State) History() []domain.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatTurn, len(s.history))
	copy(out, s.history)
	return out
}

// QuestionCount is the number of answered turns.
func (s *State) QuestionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Elapsed is the session duration as of now.
func (s *State) Elapsed(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.start.IsZero() {
		return 0
	}
	return now.Sub(s.start)
}
