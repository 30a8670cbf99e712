// Package pipeline owns the retrieval-augmented answering flow: the
// one-time corpus indexing and the per-query retrieve-then-generate step.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alkitab/internal/corpus"
	"alkitab/internal/domain"
	"alkitab/internal/embedding"
	"alkitab/internal/llm"
	"alkitab/internal/vectorstore"
)

// Deps are the components the pipeline assembles at build time. The
// embedder and generator are constructed lazily so that a missing credential
// degrades the pipeline instead of failing startup.
type Deps struct {
	CorpusPath   string
	Store        vectorstore.Storage
	NewEmbedder  func() (embedding.Embedder, error)
	NewGenerator func() (llm.Generator, error)
	TopK         int
	Prompt       string // template carrying {context_str} and {query_str}
}

// Handle is the built, read-only index/generator pair. Safe for concurrent
// readers; nothing mutates it after construction.
type Handle struct {
	embedder   embedding.Embedder
	generator  llm.Generator
	store      vectorstore.Storage
	verseCount int
}

// VerseCount reports how many verses were indexed.
func (h *Handle) VerseCount() int { return h.verseCount }

// Pipeline is a lazily-initialized single-assignment cell around the build.
// Building embeds the whole corpus over the network, so it happens at most
// once per process; concurrent and repeated callers share the one result,
// success or failure. A failed build is not retried.
type Pipeline struct {
	deps   Deps
	once   sync.Once
	handle *Handle
	err    error
	now    func() time.Time
}

func New(deps Deps) *Pipeline {
	if deps.TopK <= 0 {
		deps.TopK = 5
	}
	if deps.Prompt == "" {
		deps.Prompt = DefaultPromptTemplate
	}
	return &Pipeline{deps: deps, now: time.Now}
}

// Get returns the built handle, building it on the first call.
func (p *Pipeline) Get(ctx context.Context) (*Handle, error) {
	p.once.Do(func() {
		p.handle, p.err = p.build(ctx)
	})
	return p.handle, p.err
}

// Warm triggers the one-time build and reports its outcome. Used by the UI
// to surface construction errors as a banner.
func (p *Pipeline) Warm(ctx context.Context) error {
	_, err := p.Get(ctx)
	return err
}

func (p *Pipeline) build(ctx context.Context) (*Handle, error) {
	// Credentials are validated by the client constructors before any
	// network call is made.
	emb, err := p.deps.NewEmbedder()
	if err != nil {
		return nil, err
	}
	gen, err := p.deps.NewGenerator()
	if err != nil {
		return nil, err
	}

	verses, err := corpus.Load(p.deps.CorpusPath)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(verses))
	for i, v := range verses {
		texts[i] = v.Text
	}
	if err := emb.Prepare(ctx, texts); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexing, err)
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexing, err)
	}
	if err := p.deps.Store.Init(emb.Dimension()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexing, err)
	}
	if err := p.deps.Store.Upsert(verses, vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexing, err)
	}
	return &Handle{
		embedder:   emb,
		generator:  gen,
		store:      p.deps.Store,
		verseCount: len(verses),
	}, nil
}
