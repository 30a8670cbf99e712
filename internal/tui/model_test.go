package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alkitab/internal/domain"
	"alkitab/internal/registry"
	"alkitab/internal/session"
)

type fakeService struct {
	warmErr error
	answer  string
	notice  error
}

func (f *fakeService) Warm(ctx context.Context) error { return f.warmErr }

func (f *fakeService) Ask(ctx context.Context, sess *session.State, query string) (string, error) {
	if f.notice == nil {
		sess.AddTurn(query, f.answer, time.Now())
	}
	return f.answer, f.notice
}

func newTestModel(t *testing.T, svc *fakeService) (Model, *session.State, registry.Recorder) {
	t.Helper()
	sess := session.New()
	rec := registry.NewCSVRecorder(filepath.Join(t.TempDir(), "user_log.csv"))
	m := New(context.Background(), svc, rec, sess, "GOD REMIND YOU")
	m = apply(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, sess, rec
}

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	got, ok := next.(Model)
	require.True(t, ok)
	return got
}

func pressEnter(t *testing.T, m Model) Model {
	return apply(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestLogin_RejectsEmptyName(t *testing.T) {
	m, sess, rec := newTestModel(t, &fakeService{})

	m = pressEnter(t, m)
	assert.Equal(t, phaseLogin, m.phase)
	assert.False(t, sess.LoggedIn())
	assert.Equal(t, "Nama pengguna tidak boleh kosong.", m.status)

	entries, err := rec.List()
	require.NoError(t, err)
	assert.Empty(t, entries, "a rejected login must not touch the registry")
}

func TestLogin_RecordsGuestAndEntersChat(t *testing.T) {
	m, sess, rec := newTestModel(t, &fakeService{})

	m.input.SetValue("Budi")
	m = pressEnter(t, m)

	assert.Equal(t, phaseChat, m.phase)
	assert.True(t, sess.LoggedIn())
	assert.Equal(t, "Budi", sess.UserName())

	entries, err := rec.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Budi", entries[0].Username)
	require.Len(t, m.guests, 1)
}

func TestSubmitQuery_AppendsTurn(t *testing.T) {
	svc := &fakeService{answer: "jawaban dari Firman"}
	m, sess, _ := newTestModel(t, svc)
	m.input.SetValue("Budi")
	m = pressEnter(t, m)
	m = apply(t, m, builtMsg{})

	m.input.SetValue("apa itu kasih?")
	m = pressEnter(t, m)
	assert.True(t, m.busy)

	msgs := sess.Messages()
	require.Len(t, msgs, 2, "greeting plus the user's question")
	assert.Equal(t, session.RoleUser, msgs[1].Role)
	assert.Equal(t, "apa itu kasih?", msgs[1].Content)

	// a second enter while busy is ignored
	m.input.SetValue("kedua")
	m = pressEnter(t, m)
	assert.Len(t, sess.Messages(), 2)

	m = apply(t, m, answerMsg{sessID: sess.ID(), answer: svc.answer})
	assert.False(t, m.busy)
	msgs = sess.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, session.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "jawaban dari Firman", msgs[2].Content)
}

func TestAnswerNotice_ShownInStatus(t *testing.T) {
	m, sess, _ := newTestModel(t, &fakeService{})
	m.input.SetValue("Budi")
	m = pressEnter(t, m)

	m = apply(t, m, answerMsg{sessID: sess.ID(), answer: "Maaf...", notice: errors.New("backend down")})
	assert.Contains(t, m.status, "backend down")
}

func TestLogoutWhileBusy_StaleAnswerDropped(t *testing.T) {
	m, sess, _ := newTestModel(t, &fakeService{answer: "jawaban untuk Budi"})
	m.input.SetValue("Budi")
	m = pressEnter(t, m)
	m = apply(t, m, builtMsg{})

	m.input.SetValue("pertanyaan Budi")
	m = pressEnter(t, m)
	require.True(t, m.busy)
	budiID := sess.ID()

	m = apply(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	m.input.SetValue("Citra")
	m = pressEnter(t, m)
	require.Equal(t, "Citra", sess.UserName())
	statusBefore := m.status

	// the in-flight answer for Budi's session arrives after Citra logged in
	m = apply(t, m, answerMsg{sessID: budiID, answer: "jawaban untuk Budi"})

	msgs := sess.Messages()
	require.Len(t, msgs, 1, "only Citra's greeting")
	assert.NotContains(t, msgs[0].Content, "Budi")
	assert.Empty(t, sess.History())
	assert.Equal(t, statusBefore, m.status)
	assert.False(t, m.busy)
}

func TestLogout_ClearsSession(t *testing.T) {
	m, sess, _ := newTestModel(t, &fakeService{answer: "jawaban"})
	m.input.SetValue("Budi")
	m = pressEnter(t, m)
	sess.AddTurn("q", "a", time.Now())

	m = apply(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Equal(t, phaseLogin, m.phase)
	assert.False(t, sess.LoggedIn())
	assert.Empty(t, sess.Messages())
	assert.Empty(t, sess.History())
	assert.Empty(t, m.guests)
}

func TestBuildError_Banner(t *testing.T) {
	m, _, _ := newTestModel(t, &fakeService{})

	err := fmt.Errorf("%w: env GEMINI_API_KEY is empty", domain.ErrCredentialsMissing)
	m = apply(t, m, builtMsg{err: err})

	assert.False(t, m.indexing)
	assert.Contains(t, m.buildErr, "Kunci API Gemini")
	assert.Contains(t, m.View(), "Kunci API Gemini")
}

func TestBuildError_DataNotFound(t *testing.T) {
	m, _, _ := newTestModel(t, &fakeService{})
	m = apply(t, m, builtMsg{err: domain.ErrDataNotFound})
	assert.Contains(t, m.buildErr, "File data tidak ditemukan")
}
