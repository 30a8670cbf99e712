package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alkitab/internal/domain"
	"alkitab/internal/embedding"
	"alkitab/internal/llm"
	"alkitab/internal/session"
	"alkitab/internal/vectorstore/memory"
)

type fakeEmbedder struct {
	dim        int
	prepareErr error
	docsErr    error
	queryErr   error
	docCalls   int
	queryCalls int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Prepare(ctx context.Context, corpus []string) error { return f.prepareErr }

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	f.docCalls++
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		v := make([]float64, f.dim)
		v[i%f.dim] = 1
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	v := make([]float64, f.dim)
	v[0] = 1
	return v, nil
}

type fakeGenerator struct {
	resp       string
	err        error
	prompts    []string
	onGenerate func()
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.onGenerate != nil {
		f.onGenerate()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.resp, nil
}

func writeTestCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Alkitab.csv")
	content := "Nama ayat,Bagian,Ayat,Isi\n" +
		"Kejadian,1,1,Pada mulanya.\n" +
		"Kejadian,1,2,Bumi.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testDeps(t *testing.T, emb *fakeEmbedder, gen *fakeGenerator) Deps {
	t.Helper()
	return Deps{
		CorpusPath:   writeTestCorpus(t),
		Store:        memory.NewStorage(),
		NewEmbedder:  func() (embedding.Embedder, error) { return emb, nil },
		NewGenerator: func() (llm.Generator, error) { return gen, nil },
		TopK:         5,
	}
}

func loggedInSession(t *testing.T) *session.State {
	t.Helper()
	sess := session.New()
	require.NoError(t, sess.Login("Budi", time.Now()))
	return sess
}

func TestGet_BuildsExactlyOnce(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "jawaban"}
	deps := testDeps(t, emb, gen)

	builds := 0
	inner := deps.NewEmbedder
	deps.NewEmbedder = func() (embedding.Embedder, error) {
		builds++
		return inner()
	}
	p := New(deps)

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	errs := make([]error, len(handles))
	for i := 0; i < len(handles); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = p.Get(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	h, err := p.Get(context.Background())
	require.NoError(t, err)
	for _, got := range handles {
		assert.Same(t, h, got, "every caller must share the one handle")
	}
	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, emb.docCalls)
	assert.Equal(t, 2, h.VerseCount())
}

func TestGet_CredentialsMissing(t *testing.T) {
	gen := &fakeGenerator{resp: "jawaban"}
	deps := testDeps(t, &fakeEmbedder{dim: 2}, gen)

	constructions := 0
	deps.NewEmbedder = func() (embedding.Embedder, error) {
		constructions++
		return nil, fmt.Errorf("%w: env GEMINI_API_KEY is empty", domain.ErrCredentialsMissing)
	}
	p := New(deps)

	_, err := p.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialsMissing)

	// A failed build stays failed; later queries short-circuit without
	// retrying the construction.
	answer, notice := p.Ask(context.Background(), loggedInSession(t), "apa itu kasih?")
	assert.Equal(t, NotReadyMessage, answer)
	assert.NoError(t, notice)
	assert.Equal(t, 1, constructions)
	assert.Empty(t, gen.prompts)
}

func TestGet_CorpusMissing(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "jawaban"}
	deps := testDeps(t, emb, gen)
	deps.CorpusPath = filepath.Join(t.TempDir(), "absent.csv")
	p := New(deps)

	_, err := p.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrDataNotFound)

	sess := loggedInSession(t)
	answer, notice := p.Ask(context.Background(), sess, "apa itu kasih?")
	assert.Equal(t, NotReadyMessage, answer)
	assert.NoError(t, notice)
	assert.Zero(t, emb.docCalls, "no embedding after a failed load")
	assert.Zero(t, emb.queryCalls, "not-ready queries must not reach the network")
	assert.Zero(t, sess.QuestionCount())
}

func TestGet_IndexingError(t *testing.T) {
	emb := &fakeEmbedder{dim: 2, docsErr: errors.New("quota exceeded")}
	p := New(testDeps(t, emb, &fakeGenerator{}))

	_, err := p.Get(context.Background())
	require.ErrorIs(t, err, domain.ErrIndexing)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAsk_Success(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "**:blue[Kejadian 1:1]**\n> \"Pada mulanya.\""}
	p := New(testDeps(t, emb, gen))
	p.now = func() time.Time { return time.Date(2024, 3, 10, 14, 5, 9, 0, time.UTC) }

	sess := loggedInSession(t)
	answer, notice := p.Ask(context.Background(), sess, "bagaimana dunia diciptakan?")
	require.NoError(t, notice)
	assert.Equal(t, gen.resp, answer, "generator output is returned verbatim")

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "referensi: Kejadian 1:1\nPada mulanya.")
	assert.Contains(t, prompt, "bagaimana dunia diciptakan?")
	assert.Contains(t, prompt, "Pendamping Firman")
	assert.NotContains(t, prompt, "{context_str}")
	assert.NotContains(t, prompt, "{query_str}")

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, "bagaimana dunia diciptakan?", history[0].Query)
	assert.Equal(t, answer, history[0].Answer)
	assert.Equal(t, "14:05:09", history[0].DisplayTime)
}

func TestAsk_PromptOverride(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "ok"}
	deps := testDeps(t, emb, gen)
	deps.Prompt = "KONTEKS:\n{context_str}\nTANYA: {query_str}"
	p := New(deps)

	_, notice := p.Ask(context.Background(), loggedInSession(t), "apa?")
	require.NoError(t, notice)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t,
		"KONTEKS:\nreferensi: Kejadian 1:1\nPada mulanya.\n\nreferensi: Kejadian 1:2\nBumi.\nTANYA: apa?",
		gen.prompts[0])
}

func TestAsk_GenerationFailureIsLocalToTheQuery(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "jawaban", err: errors.New("backend down")}
	p := New(testDeps(t, emb, gen))

	sess := loggedInSession(t)
	answer, notice := p.Ask(context.Background(), sess, "pertama")
	assert.Equal(t, ApologyMessage, answer)
	require.Error(t, notice)
	assert.Contains(t, notice.Error(), "backend down")
	assert.Zero(t, sess.QuestionCount(), "failed turns are not recorded")

	gen.err = nil
	answer, notice = p.Ask(context.Background(), sess, "kedua")
	require.NoError(t, notice)
	assert.Equal(t, "jawaban", answer)
	assert.Equal(t, 1, sess.QuestionCount())
}

func TestAsk_LogoutDuringGenerationDoesNotLeakTurn(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "jawaban untuk Budi"}
	p := New(testDeps(t, emb, gen))

	sess := loggedInSession(t)
	gen.onGenerate = func() {
		sess.Logout()
		require.NoError(t, sess.Login("Citra", time.Now()))
	}

	answer, notice := p.Ask(context.Background(), sess, "pertanyaan Budi")
	require.NoError(t, notice)
	assert.Equal(t, "jawaban untuk Budi", answer)

	assert.Empty(t, sess.History(), "the next user's history must stay clean")
	assert.Zero(t, sess.QuestionCount())
}

func TestAsk_EmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{dim: 2}
	gen := &fakeGenerator{resp: "jawaban"}
	p := New(testDeps(t, emb, gen))

	require.NoError(t, p.Warm(context.Background()))
	emb.queryErr = errors.New("timeout")

	answer, notice := p.Ask(context.Background(), loggedInSession(t), "apa?")
	assert.Equal(t, ApologyMessage, answer)
	require.Error(t, notice)
	assert.Empty(t, gen.prompts)
}
