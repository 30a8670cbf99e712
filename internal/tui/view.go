package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"alkitab/internal/session"
)

const sidebarWidth = 36

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Align(lipgloss.Center)
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Align(lipgloss.Center)
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sidebarStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(sidebarWidth)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	bannerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	faintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headingStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// layout recomputes the transcript viewport size from the window size.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	cw, ch := chatBoxStyle.GetFrameSize()
	_, qh := queryBoxStyle.GetFrameSize()
	headerLines := 2
	footerLines := 1 // status
	reserved := headerLines + footerLines + qh + 1 + ch
	if m.buildErr != "" {
		reserved++
	}
	vh := m.height - reserved
	if vh < 3 {
		vh = 3
	}
	vw := m.width - sidebarWidth - cw - 1
	if vw < 20 {
		vw = 20
	}
	m.viewport.Width = vw
	m.viewport.Height = vh
}

// refreshTranscript re-renders the chat log into the viewport and scrolls
// to the latest message.
func (m *Model) refreshTranscript() {
	msgs := m.sess.Messages()
	if len(msgs) == 0 {
		m.viewport.SetContent(faintStyle.Render("Belum ada percakapan."))
		return
	}
	wrap := lipgloss.NewStyle().Width(max(20, m.viewport.Width-2))
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := botStyle.Render("Pendamping:")
		if msg.Role == session.RoleUser {
			label = userStyle.Render("Anda:")
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(wrap.Render(msg.Content))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// View renders the login gate or the chat screen with the report sidebar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Width(m.width).Render(m.title) + "\n" +
		subtitleStyle.Width(m.width).Render("— Pendamping Firman Anda Berdasarkan Alkitab AYT —")

	if m.phase == phaseLogin {
		return m.loginView(header)
	}
	return m.chatView(header)
}

func (m Model) loginView(header string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	if m.buildErr != "" {
		b.WriteString(bannerStyle.Render(m.buildErr))
		b.WriteString("\n\n")
	}
	b.WriteString(headingStyle.Render("Autentikasi Sesi"))
	b.WriteString("\n")
	b.WriteString("Masukkan nama Anda untuk memulai Pendamping Firman.\n\n")
	b.WriteString(queryBoxStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) chatView(header string) string {
	var main strings.Builder
	if m.buildErr != "" {
		main.WriteString(bannerStyle.Render(m.buildErr))
		main.WriteString("\n")
	}
	main.WriteString(chatBoxStyle.Render(m.viewport.View()))
	main.WriteString("\n")
	main.WriteString(queryBoxStyle.Render(m.input.View()))
	main.WriteString("\n")
	main.WriteString(m.statusLine())

	body := lipgloss.JoinHorizontal(lipgloss.Top, main.String(), m.sidebarView())
	return header + "\n" + body
}

func (m Model) statusLine() string {
	if m.busy || m.indexing {
		note := m.status
		if m.indexing {
			note = "Memuat dan mengindeks Firman Tuhan (Ini hanya terjadi sekali)..."
		}
		return m.spin.View() + statusStyle.Render(note)
	}
	return statusStyle.Render(m.status)
}

// sidebarView renders the personal report: question count, session length,
// the collapsible history, and the guest registry table.
func (m Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Laporan Pribadi"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Sesi Aktif: %s\n", m.sess.UserName())
	fmt.Fprintf(&b, "Jumlah Pertanyaan: %d\n", m.sess.QuestionCount())
	fmt.Fprintf(&b, "Durasi Sesi: %s\n", formatElapsed(m.sess.Elapsed(m.clock)))
	b.WriteString("\n")

	if m.showHistory {
		b.WriteString(headingStyle.Render("Detail Riwayat"))
		b.WriteString(faintStyle.Render(" (ctrl+e menutup)"))
		b.WriteString("\n")
		history := m.sess.History()
		if len(history) == 0 {
			b.WriteString(faintStyle.Render("Mulai percakapan untuk melihat riwayat."))
			b.WriteString("\n")
		}
		for i := len(history) - 1; i >= 0; i-- {
			t := history[i]
			fmt.Fprintf(&b, "[%s] Anda: %s\n", t.DisplayTime, truncate(t.Query, 40))
			b.WriteString(faintStyle.Render("Jawab: " + truncate(t.Answer, 80)))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(faintStyle.Render("ctrl+e: lihat riwayat lengkap"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(headingStyle.Render("Buku Daftar Pengguna"))
	b.WriteString("\n")
	if len(m.guests) == 0 {
		b.WriteString(faintStyle.Render("Belum ada data pengguna tersimpan."))
		b.WriteString("\n")
	}
	for _, g := range m.guests {
		fmt.Fprintf(&b, "%s  %s\n", g.Username, faintStyle.Render(g.JoinedAt))
	}
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("ctrl+l: logout  ctrl+c: keluar"))
	return sidebarStyle.Render(b.String())
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
