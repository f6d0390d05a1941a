// Package loader acquires documents from a file or a directory of files and queues them for
// analysis in discovery order.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedFormat marks a file whose extension has no extractor.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// Document is a unit of acquired text.
type Document struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Options tunes a Loader. Zero values select the defaults.
type Options struct {
	// Extensions limits which extractors are active, e.g. [".txt"]. Empty enables all.
	Extensions []string
	// Extractors adds or replaces extractors keyed by lowercase extension.
	Extractors    map[string]Extractor
	Logger        *slog.Logger
	NewID         func() string
	WatchDebounce time.Duration
}

// Loader enumerates a source location and hands out documents first in, first out.
// Directory enumeration order is whatever the filesystem reports.
type Loader struct {
	source     string
	extractors map[string]Extractor
	logger     *slog.Logger
	newID      func() string
	debounce   time.Duration
	queue      []Document
}

// New prepares a loader for source. Nothing is read until Load or Watch.
func New(source string, opts Options) *Loader {
	extractors := defaultExtractors()
	for ext, ex := range opts.Extractors {
		extractors[strings.ToLower(ext)] = ex
	}
	if len(opts.Extensions) > 0 {
		enabled := make(map[string]Extractor, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = normalizeExt(ext)
			if ex, ok := extractors[ext]; ok {
				enabled[ext] = ex
			}
		}
		extractors = enabled
	}

	l := &Loader{
		source:     source,
		extractors: extractors,
		logger:     opts.Logger,
		newID:      opts.NewID,
		debounce:   opts.WatchDebounce,
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if l.newID == nil {
		l.newID = uuid.NewString
	}
	if l.debounce <= 0 {
		l.debounce = 250 * time.Millisecond
	}
	return l
}

// Load reads the source into the queue. A directory contributes each regular file directly inside
// it; files with unsupported extensions are skipped with a warning.
func (l *Loader) Load() error {
	info, err := os.Stat(l.source)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("source %s is not a regular file or directory", l.source)
		}
		return l.enqueue(l.source)
	}

	entries, err := os.ReadDir(l.source)
	if err != nil {
		return fmt.Errorf("read source directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := l.enqueue(filepath.Join(l.source, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Next pops the oldest queued document.
func (l *Loader) Next() (Document, bool) {
	if len(l.queue) == 0 {
		return Document{}, false
	}
	doc := l.queue[0]
	l.queue = l.queue[1:]
	return doc, true
}

// Len reports how many documents are queued.
func (l *Loader) Len() int {
	return len(l.queue)
}

// Supports reports whether path has an active extractor.
func (l *Loader) Supports(path string) bool {
	_, ok := l.extractors[normalizeExt(filepath.Ext(path))]
	return ok
}

func (l *Loader) enqueue(path string) error {
	doc, err := l.read(path)
	if errors.Is(err, ErrUnsupportedFormat) {
		l.logger.Warn("skipping unsupported file", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	l.queue = append(l.queue, doc)
	return nil
}

func (l *Loader) read(path string) (Document, error) {
	ext := normalizeExt(filepath.Ext(path))
	extractor, ok := l.extractors[ext]
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	name := filepath.Base(path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Document{}, fmt.Errorf("file name missing for %s", path)
	}

	content, err := extractor.Extract(path)
	if err != nil {
		return Document{}, fmt.Errorf("extract %s: %w", name, err)
	}

	return Document{ID: l.newID(), Name: name, Content: content}, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
