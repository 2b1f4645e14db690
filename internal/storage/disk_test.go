package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	gen := filepath.Join(dir, "gen-00000001")
	if err := os.Mkdir(gen, 0755); err != nil {
		t.Fatal(err)
	}
	current := filepath.Join(dir, "CURRENT")
	files := map[string]string{
		current:                         "gen-00000001",
		filepath.Join(gen, "terms.seg"): "abcd",
		filepath.Join(gen, "stored.db"): "xyz",
	}
	for p, c := range files {
		if err := os.WriteFile(p, []byte(c), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{current}, 12},
		{"directory", []string{gen}, 7},
		{"file and directory", []string{current, gen}, 19},
		{"missing path skipped", []string{filepath.Join(dir, "gen-00000009"), gen}, 7},
		{"empty path skipped", []string{"", current}, 12},
		{"whole index", []string{dir}, 19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
