package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"alkitab/internal/domain"
	"alkitab/internal/registry"
	"alkitab/internal/session"
)

// AnswerPort is the TUI-facing subset of the answering pipeline.
type AnswerPort interface {
	Warm(ctx context.Context) error
	Ask(ctx context.Context, sess *session.State, query string) (string, error)
}

type phase int

const (
	phaseLogin phase = iota
	phaseChat
)

// Messages produced by background commands.
type (
	builtMsg  struct{ err error }
	answerMsg struct {
		sessID string // session the query was submitted under
		answer string
		notice error
	}
	tickMsg time.Time
)

// Model is the Bubble Tea model for the companion chat application.
type Model struct {
	ctx      context.Context
	svc      AnswerPort
	recorder registry.Recorder
	sess     *session.State

	title    string
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	phase       phase
	busy        bool // a query is in flight
	indexing    bool // the one-time build is in flight
	buildErr    string
	status      string
	showHistory bool
	guests      []domain.RegistryEntry
	width       int
	height      int
	ready       bool
	clock       time.Time
}

// New creates the TUI model. The pipeline build is kicked off from Init so
// construction errors surface as a banner while the login gate stays usable.
func New(ctx context.Context, svc AnswerPort, recorder registry.Recorder, sess *session.State, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Nama Pengguna (Wajib)"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		svc:      svc,
		recorder: recorder,
		sess:     sess,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spin:     sp,
		phase:    phaseLogin,
		indexing: true,
		status:   "Masukkan nama Anda untuk memulai Pendamping Firman.",
		clock:    time.Now(),
	}
}

// Init starts the cursor blink, the clock tick and the one-time index build.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, m.warmCmd(), tickCmd())
}

func (m Model) warmCmd() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		return builtMsg{err: svc.Warm(ctx)}
	}
}

func (m Model) askCmd(query string) tea.Cmd {
	ctx, svc, sess := m.ctx, m.svc, m.sess
	sid := sess.ID()
	return func() tea.Msg {
		answer, notice := svc.Ask(ctx, sess, query)
		return answerMsg{sessID: sid, answer: answer, notice: notice}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles key, window, tick and command-result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refreshTranscript()
		return m, nil

	case builtMsg:
		m.indexing = false
		if msg.err != nil {
			m.buildErr = buildErrorBanner(msg.err)
			m.status = "Sistem berjalan dalam mode terbatas."
		} else if !m.busy {
			m.status = "Indeks Firman siap."
		}
		return m, nil

	case answerMsg:
		// An answer for a session that was logged out in the meantime is
		// dropped; nothing crosses into the next user's transcript.
		if msg.sessID != m.sess.ID() {
			return m, nil
		}
		m.busy = false
		m.sess.AddMessage(session.RoleAssistant, msg.answer)
		if msg.notice != nil {
			m.status = "Terjadi kesalahan: " + msg.notice.Error()
		} else {
			m.status = "Jawaban diterima."
		}
		m.refreshTranscript()
		return m, nil

	case tickMsg:
		m.clock = time.Time(msg)
		return m, tickCmd()

	case spinner.TickMsg:
		if m.busy || m.indexing {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch m.phase {
		case phaseLogin:
			if msg.String() == "enter" {
				return m.login()
			}
		case phaseChat:
			switch msg.String() {
			case "enter":
				return m.submitQuery()
			case "ctrl+l":
				return m.logout()
			case "ctrl+e":
				m.showHistory = !m.showHistory
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// login gates the session on a non-empty username, records the guest and
// switches to the chat phase. Registry failures are reported but never
// block the login.
func (m Model) login() (tea.Model, tea.Cmd) {
	name := m.input.Value()
	if err := m.sess.Login(name, time.Now()); err != nil {
		m.status = "Nama pengguna tidak boleh kosong."
		return m, nil
	}
	if _, err := m.recorder.RecordIfNew(m.sess.UserName()); err != nil {
		m.status = "Catatan: gagal menyimpan buku tamu: " + err.Error()
	} else {
		m.status = "Sesi " + m.sess.UserName() + " dimulai."
	}
	if guests, err := m.recorder.List(); err == nil {
		m.guests = guests
	}
	m.phase = phaseChat
	m.input.Reset()
	m.input.Placeholder = "Halo " + m.sess.UserName() + ", tanyakan sesuatu tentang Alkitab..."
	m.layout()
	m.refreshTranscript()
	return m, nil
}

// logout clears the whole session; nothing survives into the next login.
func (m Model) logout() (tea.Model, tea.Cmd) {
	name := m.sess.UserName()
	m.sess.Logout()
	m.phase = phaseLogin
	m.busy = false
	m.showHistory = false
	m.guests = nil
	m.input.Reset()
	m.input.Placeholder = "Nama Pengguna (Wajib)"
	m.status = "Sesi " + name + " diakhiri."
	return m, nil
}

// submitQuery starts one answering command. Only one query is in flight at
// a time, so turns complete in submission order.
func (m Model) submitQuery() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}
	m.sess.AddMessage(session.RoleUser, query)
	m.input.Reset()
	m.busy = true
	m.status = "Mencari Firman Tuhan..."
	m.refreshTranscript()
	return m, tea.Batch(m.askCmd(query), m.spin.Tick)
}

func buildErrorBanner(err error) string {
	switch {
	case errors.Is(err, domain.ErrCredentialsMissing):
		return "ERROR: Kunci API Gemini tidak ditemukan. Mohon setel variabel lingkungan GEMINI_API_KEY."
	case errors.Is(err, domain.ErrDataNotFound):
		return "ERROR: File data tidak ditemukan."
	case errors.Is(err, domain.ErrSchema):
		return "ERROR: Nama kolom CSV tidak sesuai."
	default:
		return "ERROR saat inisialisasi RAG: " + err.Error()
	}
}
