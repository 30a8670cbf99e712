package pipeline

import (
	"context"
	"fmt"
	"strings"

	"alkitab/internal/session"
)

// Fixed sentinel answers. The composer never raises for expected degraded
// states; it returns these strings and lets the UI show any notice.
const (
	// NotReadyMessage is returned while the pipeline is unavailable.
	NotReadyMessage = "Sistem RAG belum siap."
	// ApologyMessage is returned when a single generation attempt fails.
	ApologyMessage = "Maaf, terjadi masalah teknis saat mencari jawaban."
)

// DefaultPromptTemplate is the grounded-answer prompt. Deployment variants
// may override the wording via config; the {context_str} and {query_str}
// placeholders must survive any override.
const DefaultPromptTemplate = `Anda adalah 'Pendamping Firman', Chatbot Alkitab yang bijaksana.

Tugas Anda: Menjawab pertanyaan berdasarkan konteks Alkitab di bawah ini.

ATURAN FORMAT JAWABAN (PENTING):
1. JANGAN PERNAH menyebutkan "Kitab 10" atau "Kitab 19". Gunakan nama kitab asli (misal: Kejadian, Mazmur).
2. Jika menemukan ayat yang relevan, KUTIP AYAT TERSEBUT SECARA LENGKAP.
3. Gunakan format Markdown ini agar tampilan indah:
   - Untuk Referensi Ayat, gunakan warna biru/bold. Contoh: **:blue[Kejadian 1:1]**
   - Untuk Isi Ayat, gunakan format kutipan (blockquote). Contoh: > "Pada mulanya..."
   - Untuk Penjelasan, gunakan teks biasa yang ramah.
4. Jika tidak ada ayat yang relevan, sampaikan dengan sopan bahwa Anda tidak menemukannya.

Berikut adalah konteks informasi Alkitab:
{context_str}

Pertanyaan pengguna:
{query_str}

Jawaban Anda:`

// Ask answers one free-text query. It lazily triggers the one-time build.
//
// While the pipeline is unavailable it returns NotReadyMessage with no error
// and without touching the network. A failed retrieval or generation returns
// ApologyMessage plus the error as a user-facing notice; the session and
// later queries are unaffected. Each query is a single best-effort attempt.
// On success the turn is appended to the session history with a wall-clock
// timestamp and the generator's output is returned verbatim. The turn is
// recorded against the session identity captured at submission, so an answer
// that outlives a logout never lands in the next user's history.
func (p *Pipeline) Ask(ctx context.Context, sess *session.State, query string) (string, error) {
	sid := sess.ID()
	h, err := p.Get(ctx)
	if err != nil {
		return NotReadyMessage, nil
	}

	vec, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return ApologyMessage, fmt.Errorf("embed query: %w", err)
	}
	results, err := h.store.Search(vec, p.deps.TopK)
	if err != nil {
		return ApologyMessage, fmt.Errorf("search index: %w", err)
	}

	var ctxBlock strings.Builder
	for _, r := range results {
		fmt.Fprintf(&ctxBlock, "referensi: %s\n%s\n\n", r.Verse.Reference, r.Verse.Text)
	}
	prompt := strings.NewReplacer(
		"{context_str}", strings.TrimRight(ctxBlock.String(), "\n"),
		"{query_str}", query,
	).Replace(p.deps.Prompt)

	answer, err := h.generator.Generate(ctx, prompt)
	if err != nil {
		return ApologyMessage, fmt.Errorf("generate answer: %w", err)
	}

	sess.AddTurnFor(sid, query, answer, p.now())
	return answer, nil
}
