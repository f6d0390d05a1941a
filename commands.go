package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lexis/internal/export"
	"lexis/internal/loader"
)

func newServeCmd(a *app) *cobra.Command {
	var listen, profileDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Server.Listen = listen
			}
			if profileDir != "" {
				a.cfg.Paths.ProfileDir = profileDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			registry, err := a.openRegistry()
			if err != nil {
				return err
			}

			tel := newTelemetry(ctx, a.logger, a.cfg.MetricsEnabled())
			server := newAPIServer(registry, a.cfg.Analysis.Profile, tel, a.logger)
			httpServer := &http.Server{
				Addr:              a.cfg.Server.Listen,
				Handler:           server.routes(a.cfg.RequestLogsEnabled()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			a.logger.Info("lexis API listening", "listen", a.cfg.Server.Listen, "profileDir", a.cfg.Paths.ProfileDir)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("server stopped", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address (e.g. :8080)")
	cmd.Flags().StringVar(&profileDir, "profile-dir", "", "override the profile storage directory")
	return cmd
}

type runFlags struct {
	profile string
	output  string
	workers int
}

func (f *runFlags) register(cmd *cobra.Command, withWorkers bool) {
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "analysis profile (default from analysis.profile)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "directory for the export log (default from paths.output_dir)")
	if withWorkers {
		cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "documents analyzed in parallel (default from analysis.workers)")
	}
}

func (f *runFlags) apply(a *app) {
	if f.profile != "" {
		a.cfg.Analysis.Profile = f.profile
	}
	if f.output != "" {
		a.cfg.Paths.OutputDir = f.output
	}
	if f.workers > 0 {
		a.cfg.Analysis.Workers = f.workers
	}
}

func (a *app) newLoader(source string) *loader.Loader {
	return loader.New(source, loader.Options{
		Extensions:    a.cfg.Loader.Extensions,
		Logger:        a.logger,
		WatchDebounce: a.cfg.Loader.WatchDebounce.Std(),
	})
}

// preparePipeline opens the registry, the analyzer and, when configured, the export log.
// The returned cleanup closes whatever was opened.
func (a *app) preparePipeline(cmd *cobra.Command) (*pipeline, func(), error) {
	registry, err := a.openRegistry()
	if err != nil {
		return nil, nil, err
	}

	p, err := newPipeline(registry, a.cfg.Analysis.Profile, cmd.OutOrStdout(), a.logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if a.cfg.Paths.OutputDir != "" {
		exportLog, offset, err := export.Open(a.cfg.Paths.OutputDir)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("export log opened", "path", exportLog.Path(), "offset", offset)
		p.exportLog = exportLog
		cleanup = func() {
			if err := exportLog.Close(); err != nil {
				a.logger.Warn("failed to close export log", "error", err)
			}
		}
	}
	return p, cleanup, nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "analyze [flags] <file-or-directory>",
		Short: "Analyze documents and print one JSON record per document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(a)
			start := time.Now()

			l := a.newLoader(args[0])
			if err := l.Load(); err != nil {
				return fmt.Errorf("load documents: %w", err)
			}
			docs := drainLoader(l)

			p, cleanup, err := a.preparePipeline(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tokens, err := p.runBatch(cmd.Context(), docs, a.cfg.Analysis.Workers)
			if err != nil {
				return err
			}

			a.logger.Info("analysis complete", "source", args[0], "profile", p.profile, "documents", len(docs), "tokens", tokens, "duration_ms", time.Since(start).Milliseconds())
			return nil
		},
	}

	flags.register(cmd, true)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "watch [flags] <directory>",
		Short: "Analyze files as they appear in a directory until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(a)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := a.preparePipeline(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			a.logger.Info("watching for documents", "source", args[0], "profile", p.profile)
			return a.newLoader(args[0]).Watch(ctx, func(doc loader.Document) error {
				return p.handle(ctx, doc)
			})
		},
	}

	flags.register(cmd, false)
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	var from int64

	cmd := &cobra.Command{
		Use:   "replay [flags] [output-dir]",
		Short: "Print the records stored in an export log, one JSON line each",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Paths.OutputDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no export directory: pass one or set paths.output_dir")
			}

			exportLog, size, err := export.Open(dir)
			if err != nil {
				return err
			}
			defer exportLog.Close()

			records, next, err := exportLog.Recover(from)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, record := range records {
				if err := enc.Encode(record); err != nil {
					return fmt.Errorf("write record: %w", err)
				}
			}

			if next < size {
				a.logger.Warn("export log has a torn tail", "path", exportLog.Path(), "valid", next, "size", size)
			}
			a.logger.Info("replay complete", "path", exportLog.Path(), "records", len(records), "next", next)
			return nil
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "byte offset to resume from (the next offset logged by a previous replay)")
	return cmd
}
