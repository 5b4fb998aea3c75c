package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mltutor/mltutor/internal/embedding"
	"github.com/mltutor/mltutor/internal/index"
	"github.com/mltutor/mltutor/internal/ingest"
	"github.com/mltutor/mltutor/internal/material"
	"github.com/mltutor/mltutor/internal/platform/config"
)

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	log := newLogger(config.LogConfig{Level: "verbose", Format: "text"})
	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled after an unparseable level, want info fallback")
	}
	if !log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info disabled")
	}
}

func TestLoadBuiltins(t *testing.T) {
	dir := t.TempDir()
	var text strings.Builder
	text.WriteString("Chapter 1: Linear Models\n")
	for i := 0; i < 20; i++ {
		text.WriteString("A linear model predicts the target as a weighted sum of the input features plus a bias term. ")
	}
	if err := os.WriteFile(filepath.Join(dir, "linear-models.txt"), []byte(text.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-text files are skipped, not errors.
	if err := os.WriteFile(filepath.Join(dir, "cover.png"), []byte{0x89, 0x50}, 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := "materials:\n  - id: linear-models\n    title: Linear Models\n    description: Weighted sums and bias terms.\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.DiscardHandler)
	materials := material.NewRegistry()
	ingestor := ingest.NewIngestor(embedding.NewMockEmbedder(16), index.NewMemoryIndex(), log)

	if err := loadBuiltins(context.Background(), dir, materials, ingestor, log); err != nil {
		t.Fatal(err)
	}

	m, err := materials.Get("linear-models")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Indexed || m.Chunks == 0 {
		t.Errorf("material = %+v, want indexed with chunks", m)
	}
	if m.Source != material.SourceBuiltin {
		t.Errorf("source = %q, want builtin", m.Source)
	}
	if m.Title != "Linear Models" || m.Description == "" {
		t.Errorf("manifest metadata not applied: %+v", m)
	}
	if len(materials.List()) != 1 {
		t.Errorf("registered %d materials, want 1", len(materials.List()))
	}
}

func TestLoadBuiltins_MissingDirIsFine(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	materials := material.NewRegistry()
	ingestor := ingest.NewIngestor(embedding.NewMockEmbedder(16), index.NewMemoryIndex(), log)

	err := loadBuiltins(context.Background(), filepath.Join(t.TempDir(), "absent"), materials, ingestor, log)
	if err != nil {
		t.Fatalf("missing dir should not error, got %v", err)
	}
}
