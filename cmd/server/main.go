package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mltutor/mltutor/internal/ai"
	"github.com/mltutor/mltutor/internal/chat"
	"github.com/mltutor/mltutor/internal/embedding"
	"github.com/mltutor/mltutor/internal/history"
	"github.com/mltutor/mltutor/internal/index"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/material"
	"github.com/mltutor/mltutor/internal/platform/cache"
	"github.com/mltutor/mltutor/internal/platform/config"
	"github.com/mltutor/mltutor/internal/platform/database"
	"github.com/mltutor/mltutor/internal/prompts"
	"github.com/mltutor/mltutor/internal/quiz"
	"github.com/mltutor/mltutor/internal/retrieval"
	"github.com/mltutor/mltutor/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // chat completions are slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// buildServer wires every component from config. The returned cleanup
// closes whatever backing connections were opened.
func buildServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*server.Server, func(), error) {
	router := ai.NewRouter()
	retryCfg := ai.DefaultRetryConfig()
	if key := cfg.AI.DeepSeek.APIKey; key != "" {
		p := ai.NewDeepSeekProvider(key, ai.WithDefaultModel(cfg.AI.DeepSeek.Model))
		router.Register("deepseek", ai.WithRetry(p, retryCfg))
	}
	if key := cfg.AI.OpenAI.APIKey; key != "" {
		p := ai.NewOpenAIProvider(key, ai.WithDefaultModel(cfg.AI.OpenAI.Model))
		router.Register("openai", ai.WithRetry(p, retryCfg))
	}

	embedder := embedding.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding.Model,
		embedding.WithEmbeddingBaseURL(cfg.Embedding.BaseURL))

	var (
		idx       index.Index
		hist      history.Store
		questions quiz.QuestionStore
		readiness []server.HealthChecker
		closers   []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		closers = append(closers, db.Close)
		readiness = append(readiness, db)

		if idx, err = index.NewPostgresIndex(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("preparing chunk index: %w", err)
		}
		if hist, err = history.NewPostgresStore(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("preparing history store: %w", err)
		}
		if questions, err = quiz.NewPostgresQuestionStore(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("preparing question store: %w", err)
		}
		log.Info("using postgres storage")
	} else {
		idx = index.NewMemoryIndex()
		hist = history.NewMemoryStore()
		questions = quiz.NewMemoryQuestionStore()
		log.Info("using in-memory storage")
	}

	var recency quiz.RecencyTracker
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to cache: %w", err)
		}
		closers = append(closers, func() { _ = c.Close() })
		readiness = append(readiness, c)
		recency = quiz.NewRedisRecency(c)
	} else {
		recency = quiz.NewMemoryRecency()
	}

	pack, err := loadPrompts(cfg.PromptsPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("loading prompts: %w", err)
	}

	materials := material.NewRegistry()
	ingestor := ingest.NewIngestor(embedder, idx, log)
	if err := loadBuiltins(ctx, cfg.MaterialDir, materials, ingestor, log); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("loading builtin materials: %w", err)
	}

	retriever := retrieval.New(router, embedder, idx, pack.QueryExpansion, log)

	srv := server.New(server.Deps{
		Materials:     materials,
		Ingestor:      ingestor,
		Orchestrator:  chat.New(router, retriever, materials, pack, log),
		Generator:     quiz.NewGenerator(router, idx, recency, questions, pack, log),
		Reviewer:      quiz.NewReviewer(questions, hist),
		Evaluator:     quiz.NewEvaluator(hist, ingestor, log),
		History:       hist,
		Analytics:     history.NewAnalytics(hist),
		Diagnostician: history.NewDiagnostician(router, hist, pack, log),
		ChatDefaults: chat.Settings{
			K:           cfg.Retrieval.K,
			Temperature: chat.DefaultSettings().Temperature,
			Expand:      cfg.Retrieval.Expand,
			FewShot:     true,
		},
		Readiness: readiness,
		Log:       log,
	})
	return srv, cleanup, nil
}

func loadPrompts(path string) (*prompts.Pack, error) {
	if path == "" {
		return prompts.Default()
	}
	return prompts.Load(path)
}

// loadBuiltins indexes every .txt and .md file in dir as a builtin
// material. A missing directory is not an error.
func loadBuiltins(ctx context.Context, dir string, materials *material.Registry, ingestor *ingest.Ingestor, log *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no builtin material directory", "dir", dir)
			return nil
		}
		return err
	}

	manifest, err := material.LoadManifest(dir)
	if err != nil {
		return err
	}

	extractor := server.PlainTextExtractor{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		pages, err := extractor.Extract(name, f)
		f.Close()
		if err != nil {
			return err
		}

		id := strings.TrimSuffix(name, filepath.Ext(name))
		m := material.Material{
			ID:        id,
			Title:     id,
			Source:    material.SourceBuiltin,
			CreatedAt: time.Now(),
		}
		if entry, ok := manifest[id]; ok {
			m.Title = entry.Title
			m.Description = entry.Description
		}
		materials.Register(m)
		count, err := ingestor.Ingest(ctx, id, pages)
		if err != nil {
			log.Warn("skipping builtin material", "file", name, "error", err)
			continue
		}
		if err := materials.MarkIndexed(id, count); err != nil {
			return err
		}
		log.Info("indexed builtin material", "material", id, "chunks", count)
	}
	return nil
}
