package main

import (
	"context"
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"alkitab/internal/config"
	"alkitab/internal/embedding"
	embgemini "alkitab/internal/embedding/gemini"
	"alkitab/internal/embedding/tfidf"
	"alkitab/internal/llm"
	llmgemini "alkitab/internal/llm/gemini"
	"alkitab/internal/pipeline"
	"alkitab/internal/registry"
	"alkitab/internal/session"
	"alkitab/internal/tui"
	"alkitab/internal/vectorstore/memory"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/alkitab/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Embedder and generator construction is deferred into the pipeline
	// build so a missing credential degrades the app instead of killing it.
	var newEmbedder func() (embedding.Embedder, error)
	switch cfg.Embedder.Type {
	case "gemini", "":
		g := cfg.Embedder.Gemini
		newEmbedder = func() (embedding.Embedder, error) {
			return embgemini.NewClient(embgemini.Config{
				BaseURL:   g.BaseURL,
				APIKeyEnv: g.APIKeyEnv,
				Model:     g.Model,
				Timeout:   time.Duration(g.TimeoutSecs) * time.Second,
				BatchSize: g.BatchSize,
			})
		}
	case "tfidf":
		newEmbedder = func() (embedding.Embedder, error) {
			return tfidf.NewEmbedder(), nil
		}
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var newGenerator func() (llm.Generator, error)
	switch cfg.LLM.Type {
	case "gemini", "":
		g := cfg.LLM.Gemini
		newGenerator = func() (llm.Generator, error) {
			return llmgemini.NewClient(llmgemini.Config{
				BaseURL:   g.BaseURL,
				APIKeyEnv: g.APIKeyEnv,
				Model:     g.Model,
				Timeout:   time.Duration(g.TimeoutSecs) * time.Second,
			})
		}
	default:
		log.Fatalf("unknown llm: %s", cfg.LLM.Type)
	}

	var recorder registry.Recorder
	switch cfg.Registry.Type {
	case "csv", "":
		recorder = registry.NewCSVRecorder(cfg.Registry.Path)
	case "sqlite":
		rec, err := registry.NewSQLiteRecorder(cfg.Registry.Path)
		if err != nil {
			log.Fatalf("guest registry init failed: %v", err)
		}
		defer rec.Close()
		recorder = rec
	default:
		log.Fatalf("unknown registry: %s", cfg.Registry.Type)
	}

	p := pipeline.New(pipeline.Deps{
		CorpusPath:   cfg.CorpusPath,
		Store:        memory.NewStorage(),
		NewEmbedder:  newEmbedder,
		NewGenerator: newGenerator,
		TopK:         cfg.Retrieval.TopK,
		Prompt:       cfg.Chat.PromptTemplate,
	})

	m := tui.New(context.Background(), p, recorder, session.New(), cfg.Chat.Title)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
