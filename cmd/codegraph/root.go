package main

import (
	"codegraph/internal/core/app"
	"codegraph/internal/core/config"
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const versionString = "1.0.0"

const (
	formatAuto  = "auto"
	formatJSON  = "json"
	formatHuman = "human"
)

// cli carries flags and the per-invocation service between cobra hooks.
type cli struct {
	configPath string
	verbose    bool
	format     string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg      *config.Config
	svc      *app.Service
	shutdown func(context.Context) error
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	c := &cli{in: in, out: out, errOut: errOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	c.close()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		if errors.IsCode(err, errors.CodeValidationError) {
			return 2
		}
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codegraph",
		Short:         "Build code graphs and trace the impact of changes",
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", config.DefaultFile, "Path to config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&c.format, "format", formatAuto, "Output format (auto, json, human)")

	root.AddCommand(
		c.buildCmd(),
		c.enrichCmd(),
		c.changesCmd(),
		c.impactCmd(),
		c.contentCmd(),
		c.reviewCmd(),
		c.watchCmd(),
		c.snapshotsCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	c.configureLogging()

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	switch c.format {
	case formatAuto, formatJSON, formatHuman:
	default:
		return errors.New(errors.CodeValidationError, fmt.Sprintf("unknown format %q", c.format))
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			c.shutdown = shutdown
		}
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	c.svc = svc
	return nil
}

func (c *cli) close() {
	if c.svc != nil {
		if err := c.svc.Close(); err != nil {
			slog.Warn("closing service", "error", err)
		}
	}
	if c.shutdown != nil {
		if err := c.shutdown(context.Background()); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}
}

// Logs go to the error stream so JSON on stdout stays parseable.
func (c *cli) configureLogging() {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func (c *cli) human() bool {
	switch c.format {
	case formatHuman:
		return true
	case formatJSON:
		return false
	}
	f, ok := c.out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, errors.CodeSerializationFailure, "encode output")
	}
	return nil
}

// loadGraph resolves a graph reference: a directory is built, a .json file is
// decoded, and anything else is a snapshot label.
func (c *cli) loadGraph(ctx context.Context, ref string) (*graph.CodeGraph, error) {
	switch {
	case ref == "":
		return nil, errors.New(errors.CodeValidationError, "graph reference is empty")
	case util.DirExists(ref):
		return c.svc.BuildGraph(ctx, ref, nil)
	case strings.HasSuffix(ref, ".json") && util.FileExists(ref):
		data, err := os.ReadFile(ref)
		if err != nil {
			err = errors.Wrap(err, errors.CodeFileUnreadable, "read graph file")
			return nil, errors.AddContext(err, errors.CtxPath, ref)
		}
		if eg, err := graph.UnmarshalEnriched(data); err == nil && eg.GraphID != "" {
			err := errors.New(errors.CodeValidationError, "file holds an enriched graph; pass the output of build --out")
			return nil, errors.AddContext(err, errors.CtxPath, ref)
		}
		return graph.UnmarshalCodeGraph(data)
	default:
		return c.svc.LoadSnapshot(ref)
	}
}

// readInput reads a file, or stdin when path is "-".
func (c *cli) readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		err = errors.Wrap(err, errors.CodeFileUnreadable, "read input")
		return "", errors.AddContext(err, errors.CtxPath, path)
	}
	return string(data), nil
}
