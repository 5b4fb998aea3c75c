package material

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestEntry carries display metadata for one builtin material,
// keyed by the document's file name without extension.
type ManifestEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type manifestFile struct {
	Materials []ManifestEntry `yaml:"materials"`
}

// LoadManifest reads manifest.yaml from the builtin material directory
// and returns its entries keyed by id. A missing manifest is fine;
// materials then fall back to file-name titles.
func LoadManifest(dir string) (map[string]ManifestEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ManifestEntry{}, nil
		}
		return nil, fmt.Errorf("reading material manifest: %w", err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parsing material manifest: %w", err)
	}

	entries := make(map[string]ManifestEntry, len(mf.Materials))
	for _, e := range mf.Materials {
		if e.ID == "" {
			return nil, fmt.Errorf("material manifest entry missing id (title %q)", e.Title)
		}
		entries[e.ID] = e
	}
	return entries, nil
}
