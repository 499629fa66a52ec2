// cloudgraph renders the dependency graph of API Gateway routes, SNS topics
// and Lambda functions as Graphviz DOT or TOON.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/phobologic/cloudgraph/internal/awsapi"
	"github.com/phobologic/cloudgraph/internal/collect"
	"github.com/phobologic/cloudgraph/internal/config"
	"github.com/phobologic/cloudgraph/internal/fetch"
	"github.com/phobologic/cloudgraph/internal/graph"
	"github.com/phobologic/cloudgraph/internal/inspect"
	"github.com/phobologic/cloudgraph/internal/pipeline"
	"github.com/phobologic/cloudgraph/internal/ranking"
	"github.com/phobologic/cloudgraph/internal/render"
	"github.com/phobologic/cloudgraph/internal/style"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var exitErr *config.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	cfg, exit, err := config.Parse(args, config.Env(getenv, ".env"), stderr)
	if err != nil || exit {
		return err
	}
	if cfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "cloudgraph %s\n", version)
		return nil
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)

	styles, err := style.Load(cfg.StylePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sources, err := openSources(ctx, cfg)
	if err != nil {
		return err
	}
	inspector, err := newInspector(cfg, logger)
	if err != nil {
		return err
	}

	snap, err := pipeline.Build(ctx, sources, inspector, pipeline.Options{
		Qualifier: cfg.Qualifier,
		Parallel:  cfg.Parallel,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	output, err := encode(snap, cfg, styles)
	if err != nil {
		return err
	}
	_, _ = io.WriteString(stdout, output)
	return nil
}

func openSources(ctx context.Context, cfg *config.Config) (pipeline.Sources, error) {
	if cfg.Snapshot != "" {
		s, err := collect.LoadSnapshot(cfg.Snapshot)
		if err != nil {
			return pipeline.Sources{}, err
		}
		return pipeline.Sources{Routes: s, Topics: s, Functions: s}, nil
	}

	clients, err := awsapi.New(ctx, awsapi.Options{Region: cfg.Region, Profile: cfg.Profile})
	if err != nil {
		return pipeline.Sources{}, err
	}
	return pipeline.Sources{
		Routes:    clients.Routes,
		Topics:    clients.Topics,
		Functions: clients.Functions,
	}, nil
}

func newInspector(cfg *config.Config, logger *slog.Logger) (*inspect.Inspector, error) {
	s3, err := fetch.NewS3Fetcher(cfg.S3)
	if err != nil {
		return nil, err
	}
	return inspect.New(fetch.NewRouter(s3), cfg.CacheSize, inspect.WithLogger(logger))
}

// encode applies the focus and top-N selections and renders the result.
func encode(snap *graph.Snapshot, cfg *config.Config, styles style.Map) (string, error) {
	ranks := ranking.PageRank(snap)
	snap = ranking.Focus(snap, cfg.Focus)
	snap = ranking.Top(snap, ranks, cfg.Top)

	if cfg.Format == render.FormatTOON {
		return render.TOON(snap, ranks) + "\n", nil
	}
	return render.DOT(snap, styles)
}
