package material_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mltutor/mltutor/internal/material"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
materials:
  - id: ml-basics
    title: Machine Learning Basics
    description: Supervised learning from the ground up.
  - id: deep-learning
    title: Deep Learning Notes
`)

	entries, err := material.LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	basics := entries["ml-basics"]
	if basics.Title != "Machine Learning Basics" {
		t.Errorf("title = %q", basics.Title)
	}
	if basics.Description == "" {
		t.Error("description dropped")
	}
	if entries["deep-learning"].Description != "" {
		t.Error("description invented for entry without one")
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	entries, err := material.LoadManifest(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v, want empty map", entries)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, "materials: [unclosed")
		if _, err := material.LoadManifest(dir); err == nil {
			t.Error("want parse error")
		}
	})
	t.Run("missing id", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, "materials:\n  - title: Orphan\n")
		if _, err := material.LoadManifest(dir); err == nil {
			t.Error("want missing id error")
		}
	})
}
