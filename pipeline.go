package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lexis/internal/analysis"
	"lexis/internal/export"
	"lexis/internal/loader"
	"lexis/internal/profile"
)

// pipeline drives documents through one analysis profile and hands the records downstream:
// JSON lines on out, plus the export log when one is open.
type pipeline struct {
	profile   string
	analyzer  *analysis.Analyzer
	registry  *profile.Registry
	exportLog *export.Log
	telemetry *telemetry
	logger    *slog.Logger

	out   io.Writer
	outMu sync.Mutex
}

func newPipeline(registry *profile.Registry, profileName string, out io.Writer, logger *slog.Logger) (*pipeline, error) {
	analyzer, err := registry.Analyzer(profileName)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		profile:  profileName,
		analyzer: analyzer,
		registry: registry,
		logger:   logger,
		out:      out,
	}, nil
}

func (p *pipeline) analyze(ctx context.Context, doc loader.Document) (export.Record, error) {
	start := time.Now()
	tokens, err := p.analyzer.Analyze(doc.Content)
	if err != nil {
		return export.Record{}, fmt.Errorf("analyze %s: %w", doc.Name, err)
	}

	p.telemetry.recordAnalysis(ctx, p.profile, len(tokens), time.Since(start))
	p.logger.Debug("document analyzed", "document", doc.Name, "id", doc.ID, "tokens", len(tokens), "duration_ms", time.Since(start).Milliseconds())

	if tokens == nil {
		tokens = []analysis.Token{}
	}
	return export.Record{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Profile:      p.profile,
		Tokens:       tokens,
	}, nil
}

// emit delivers one record. Records are delivered one at a time so output lines never interleave.
func (p *pipeline) emit(record export.Record) error {
	p.outMu.Lock()
	defer p.outMu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := p.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	if p.exportLog != nil {
		if _, err := p.exportLog.Append(record); err != nil {
			return err
		}
	}
	return nil
}

// runBatch analyzes docs concurrently but emits records in acquisition order.
func (p *pipeline) runBatch(ctx context.Context, docs []loader.Document, workers int) (int, error) {
	if workers < 1 {
		workers = 1
	}

	records := make([]export.Record, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := p.analyze(gctx, doc)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, record := range records {
		if err := p.emit(record); err != nil {
			return 0, err
		}
		total += len(record.Tokens)
	}

	if err := p.registry.RecordUsage(p.profile, len(records), total); err != nil {
		p.logger.Warn("failed to record profile usage", "profile", p.profile, "error", err)
	}
	return total, nil
}

// handle analyzes and emits a single document, as delivered by the directory watcher.
func (p *pipeline) handle(ctx context.Context, doc loader.Document) error {
	record, err := p.analyze(ctx, doc)
	if err != nil {
		return err
	}
	if err := p.emit(record); err != nil {
		return err
	}
	if err := p.registry.RecordUsage(p.profile, 1, len(record.Tokens)); err != nil {
		p.logger.Warn("failed to record profile usage", "profile", p.profile, "error", err)
	}
	p.logger.Info("watched document processed", "document", doc.Name, "id", doc.ID, "tokens", len(record.Tokens))
	return nil
}

func drainLoader(l *loader.Loader) []loader.Document {
	docs := make([]loader.Document, 0, l.Len())
	for {
		doc, ok := l.Next()
		if !ok {
			return docs
		}
		docs = append(docs, doc)
	}
}
