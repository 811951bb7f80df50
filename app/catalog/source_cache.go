package catalog

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type SourceCache struct {
	sourcesDir string
	cache      map[string]*Source
	mu         sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Source),
	}
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		source, err := sc.LoadSource(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", name, "enabled", source.Settings.Enabled, "locale", source.Settings.Locale)
	}

	return nil
}

func (sc *SourceCache) LoadSource(name string) (*Source, error) {
	sourceFile := sc.getSourceFilePath(name)
	source, err := sc.parseSource(sourceFile)
	if err != nil {
		return nil, err
	}

	source.Name = name

	if err := sc.validateSource(source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", sourceFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[source.Name] = source

	return source, nil
}

func (sc *SourceCache) GetSource(name string) (*Source, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	source, ok := sc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source with name '%s' not found", name)
	}
	return source, nil
}

// GetEnabledSource is GetSource restricted to sources that may be browsed.
func (sc *SourceCache) GetEnabledSource(name string) (*Source, error) {
	source, err := sc.GetSource(name)
	if err != nil {
		return nil, err
	}
	if !source.Settings.Enabled {
		return nil, fmt.Errorf("source '%s' is disabled", name)
	}
	return source, nil
}

func (sc *SourceCache) GetSources() []*Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	sources := make([]*Source, 0, len(sc.cache))
	for _, v := range sc.cache {
		sources = append(sources, v)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Name < sources[j].Name
	})
	return sources
}

func (sc *SourceCache) GetSourceCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func (sc *SourceCache) parseSource(sourceFile string) (*Source, error) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if source.Settings.Locale == "" {
		source.Settings.Locale = DefaultLocale
	}
	if source.Settings.OverlayConcurrency == 0 {
		source.Settings.OverlayConcurrency = DefaultOverlayConcurrency
	}

	return &source, nil
}

func (sc *SourceCache) validateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}

	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}

	parsed, err := url.Parse(source.URL)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("source URL must use http or https, got '%s'", parsed.Scheme)
	}

	if source.Settings.OverlayConcurrency < 0 {
		return fmt.Errorf("overlay concurrency must be non-negative")
	}

	if _, err := language.Parse(source.Settings.Locale); err != nil {
		return fmt.Errorf("invalid locale '%s': %w", source.Settings.Locale, err)
	}

	for name := range source.Headers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("header names must not be empty")
		}
	}

	return nil
}

func (sc *SourceCache) getSourceFilePath(name string) string {
	return filepath.Join(sc.sourcesDir, name+".yml")
}
