// Package profile persists named analysis profiles on disk and serves ready-built analyzers
// for them.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"lexis/internal/analysis"
)

var (
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileNotFound = errors.New("profile not found")
)

// Metadata exposes runtime usage statistics for a profile.
type Metadata struct {
	Documents int `json:"documents"`
	Tokens    int `json:"tokens"`
}

// Definition is a fully resolved analysis profile.
type Definition struct {
	Name           string                `json:"name"`
	Filters        []analysis.FilterSpec `json:"filters"`
	FoldDiacritics bool                  `json:"foldDiacritics,omitempty"`
	Metadata       Metadata              `json:"metadata"`
}

// AnalysisConfig converts the definition into analyzer configuration.
func (d Definition) AnalysisConfig() analysis.Config {
	return analysis.Config{Filters: d.Filters, FoldDiacritics: d.FoldDiacritics}
}

// CreateRequest captures the payload for creating a profile.
type CreateRequest struct {
	Name           string                `json:"name"`
	Filters        []analysis.FilterSpec `json:"filters"`
	FoldDiacritics bool                  `json:"foldDiacritics,omitempty"`
}

// Registry persists profile definitions on disk and caches their analyzers.
type Registry struct {
	basePath  string
	profiles  map[string]Definition
	analyzers map[string]*analysis.Analyzer
	mu        sync.RWMutex
}

const (
	// Standard runs the lexer alone.
	Standard = "standard"
	// English removes stopwords and then stems.
	English = "english"

	maxFilters    = 16
	maxNameLength = 64
)

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Builtins returns the profiles seeded by NewRegistryWithDefaults.
func Builtins() []CreateRequest {
	return []CreateRequest{
		{Name: Standard, Filters: []analysis.FilterSpec{}},
		{Name: English, Filters: []analysis.FilterSpec{
			{Type: analysis.FilterStopwords},
			{Type: analysis.FilterStemmer},
		}},
	}
}

// NewRegistry loads existing profile definitions from disk, ensuring the storage path exists.
func NewRegistry(basePath string) (*Registry, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}

	r := newRegistry(basePath)
	if err := r.loadFromDisk(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistryWithDefaults loads the registry and creates any missing built-in profile.
func NewRegistryWithDefaults(basePath string) (*Registry, error) {
	r, err := NewRegistry(basePath)
	if err != nil {
		return nil, err
	}

	for _, req := range Builtins() {
		if _, ok := r.Get(req.Name); ok {
			continue
		}
		if _, err := r.Create(req); err != nil {
			return nil, fmt.Errorf("seed profile %s: %w", req.Name, err)
		}
	}
	return r, nil
}

func newRegistry(basePath string) *Registry {
	return &Registry{
		basePath:  basePath,
		profiles:  make(map[string]Definition),
		analyzers: make(map[string]*analysis.Analyzer),
	}
}

// Create registers and persists a new profile definition.
func (r *Registry) Create(req CreateRequest) (Definition, error) {
	if err := req.validate(); err != nil {
		return Definition{}, err
	}

	def := Definition{
		Name:           strings.TrimSpace(req.Name),
		Filters:        normalizeFilters(req.Filters),
		FoldDiacritics: req.FoldDiacritics,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[def.Name]; exists {
		return Definition{}, fmt.Errorf("%w: '%s'", ErrProfileExists, def.Name)
	}

	if err := r.persist(def); err != nil {
		return Definition{}, err
	}

	r.profiles[def.Name] = def
	return def, nil
}

// List returns all known profiles ordered by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]Definition, 0, len(r.profiles))
	for _, def := range r.profiles {
		definitions = append(definitions, def)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Name < definitions[j].Name
	})
	return definitions
}

// Get retrieves a profile definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.profiles[name]
	return def, ok
}

// Analyzer returns the analyzer for a profile, building it on first use.
func (r *Registry) Analyzer(name string) (*analysis.Analyzer, error) {
	r.mu.RLock()
	cached, ok := r.analyzers[name]
	def, known := r.profiles[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: '%s'", ErrProfileNotFound, name)
	}

	built, err := analysis.NewAnalyzer(def.AnalysisConfig())
	if err != nil {
		return nil, fmt.Errorf("build analyzer for %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.analyzers[name]; ok {
		return existing, nil
	}
	r.analyzers[name] = built
	return built, nil
}

// RecordUsage adds to a profile's usage counters and persists the result.
func (r *Registry) RecordUsage(name string, documents, tokens int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.profiles[name]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrProfileNotFound, name)
	}
	def.Metadata.Documents += documents
	def.Metadata.Tokens += tokens

	if err := r.persist(def); err != nil {
		return err
	}
	r.profiles[name] = def
	return nil
}

func (r *Registry) persist(def Definition) error {
	path := filepath.Join(r.basePath, fmt.Sprintf("%s.json", def.Name))
	content, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize profile: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func (r *Registry) loadFromDisk() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return fmt.Errorf("read profile directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		content, err := os.ReadFile(filepath.Join(r.basePath, entry.Name()))
		if err != nil {
			return fmt.Errorf("read profile %s: %w", entry.Name(), err)
		}
		if err := r.register(entry.Name(), content); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) register(fileName string, content []byte) error {
	var def Definition
	if err := json.Unmarshal(content, &def); err != nil {
		return fmt.Errorf("decode profile %s: %w", fileName, err)
	}

	if def.Name == "" {
		return fmt.Errorf("profile file %s missing name", fileName)
	}

	if err := validateFilters(def.Filters); err != nil {
		return fmt.Errorf("profile %s invalid filters: %w", def.Name, err)
	}

	r.profiles[def.Name] = def
	return nil
}

func normalizeFilters(filters []analysis.FilterSpec) []analysis.FilterSpec {
	normalized := make([]analysis.FilterSpec, 0, len(filters))
	for _, spec := range filters {
		spec.Type = strings.ToLower(strings.TrimSpace(spec.Type))
		if spec.Type == "stem" {
			spec.Type = analysis.FilterStemmer
		}
		normalized = append(normalized, spec)
	}
	return normalized
}

func (req CreateRequest) validate() error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return errors.New("name is required")
	}

	if len(name) > maxNameLength {
		return fmt.Errorf("name must be <= %d characters", maxNameLength)
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("name '%s' may only contain lowercase letters, digits, '-' and '_'", name)
	}

	if len(req.Filters) > maxFilters {
		return fmt.Errorf("filter count exceeds limit of %d", maxFilters)
	}

	return validateFilters(req.Filters)
}

func validateFilters(filters []analysis.FilterSpec) error {
	for i, spec := range filters {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return nil
}

// LoadFromFS reconstructs a registry from an fs.FS, useful for testing and embedded profiles.
func LoadFromFS(fsys fs.FS, basePath string) (*Registry, error) {
	r := newRegistry(basePath)

	err := fs.WalkDir(fsys, basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".json" {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		return r.register(d.Name(), content)
	})

	if err != nil {
		return nil, err
	}

	return r, nil
}
