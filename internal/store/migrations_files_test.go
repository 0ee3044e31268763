package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestMigrationsComeInUpDownPairs(t *testing.T) {
	dir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			t.Fatalf("migration file %q does not follow NNNN_name.(up|down).sql", name)
		}
		version, direction := match[1], match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}
	for version, directions := range byVersion {
		if !directions["up"] || !directions["down"] {
			t.Fatalf("version %s is missing its up or down file", version)
		}
	}
}
