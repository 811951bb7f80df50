package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSourceCacheLoadValidSource(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "games.yml", `
url: "https://games.example.com/api/data/"
headers:
  dev-email-address: "dev@example.com"
settings:
  enabled: true
  locale: "en-US"
  overlay_concurrency: 3
`)

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	if sourceCache.GetSourceCount() != 1 {
		t.Errorf("Expected 1 source, got %d", sourceCache.GetSourceCount())
	}

	source, err := sourceCache.GetSource("games")
	if err != nil {
		t.Fatal(err)
	}

	if source.Name != "games" {
		t.Errorf("Expected name 'games', got '%s'", source.Name)
	}
	if source.URL != "https://games.example.com/api/data/" {
		t.Errorf("Unexpected URL '%s'", source.URL)
	}
	if source.Headers["dev-email-address"] != "dev@example.com" {
		t.Errorf("Expected identifying header, got %v", source.Headers)
	}
	if source.Settings.Locale != "en-US" {
		t.Errorf("Expected locale 'en-US', got '%s'", source.Settings.Locale)
	}
	if source.Settings.OverlayConcurrency != 3 {
		t.Errorf("Expected overlay concurrency 3, got %d", source.Settings.OverlayConcurrency)
	}
}

func TestSourceCacheDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "games.yml", `
url: "https://games.example.com/api/data/"
settings:
  enabled: true
`)

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	source, err := sourceCache.GetSource("games")
	if err != nil {
		t.Fatal(err)
	}

	if source.Settings.Locale != DefaultLocale {
		t.Errorf("Expected default locale '%s', got '%s'", DefaultLocale, source.Settings.Locale)
	}
	if source.Settings.OverlayConcurrency != DefaultOverlayConcurrency {
		t.Errorf("Expected default concurrency %d, got %d", DefaultOverlayConcurrency, source.Settings.OverlayConcurrency)
	}
}

func TestSourceCacheInvalidSources(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing url", "settings:\n  enabled: true\n", "source URL is required"},
		{"bad scheme", "url: \"ftp://example.com/data\"\n", "http or https"},
		{"bad locale", "url: \"https://example.com\"\nsettings:\n  locale: \"!!\"\n", "invalid locale"},
		{"negative concurrency", "url: \"https://example.com\"\nsettings:\n  overlay_concurrency: -1\n", "non-negative"},
		{"bad yaml", "url: [unterminated\n", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "broken.yml", tt.content)

			err := NewSourceCache(tempDir).Run()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSourceCacheMissingDirectory(t *testing.T) {
	sourceCache := NewSourceCache(filepath.Join(t.TempDir(), "absent"))
	if err := sourceCache.Run(); err != nil {
		t.Fatalf("Expected missing directory to be ignored, got %v", err)
	}
	if sourceCache.GetSourceCount() != 0 {
		t.Errorf("Expected no sources, got %d", sourceCache.GetSourceCount())
	}
}

func TestSourceCacheEnabledAndOrdering(t *testing.T) {
	tempDir := t.TempDir()
	writeSource(t, tempDir, "zeta.yml", "url: \"https://zeta.example.com\"\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "alpha.yml", "url: \"https://alpha.example.com\"\nsettings:\n  enabled: false\n")
	writeSource(t, tempDir, "notes.txt", "ignored")

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	sources := sourceCache.GetSources()
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "alpha" || sources[1].Name != "zeta" {
		t.Errorf("Expected sources sorted by name, got %s, %s", sources[0].Name, sources[1].Name)
	}

	if _, err := sourceCache.GetEnabledSource("alpha"); err == nil {
		t.Error("Expected disabled source to be rejected")
	}
	if _, err := sourceCache.GetEnabledSource("zeta"); err != nil {
		t.Errorf("Expected enabled source, got %v", err)
	}
	if _, err := sourceCache.GetSource("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestSourceCacheReload(t *testing.T) {
	tempDir := t.TempDir()
	writeSource(t, tempDir, "games.yml", "url: \"https://one.example.com\"\n")

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	writeSource(t, tempDir, "games.yml", "url: \"https://two.example.com\"\n")
	if _, err := sourceCache.LoadSource("games"); err != nil {
		t.Fatal(err)
	}

	source, _ := sourceCache.GetSource("games")
	if source.URL != "https://two.example.com" {
		t.Errorf("Expected reloaded URL, got '%s'", source.URL)
	}
}
