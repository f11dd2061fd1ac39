package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	ctxengine "github.com/flemzord/ctxprune/internal/context"
	"github.com/flemzord/ctxprune/internal/config"
	"github.com/flemzord/ctxprune/internal/mask"
	"github.com/flemzord/ctxprune/internal/redact"
	"github.com/flemzord/ctxprune/internal/tracing"
	"github.com/flemzord/ctxprune/internal/ttl"
	"github.com/flemzord/ctxprune/modules/store/sqlite"
)

const shutdownTimeout = 5 * time.Second

// runtime bundles what every pruning command needs: the resolved
// configuration, a logger, a redactor, metrics and the tracer provider.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	redactor *redact.Redactor
	registry *prometheus.Registry
	metrics  *ctxengine.Metrics
	tracing  *tracing.Provider
	textfile string
}

// loadEnv loads the --env-file without overriding variables already set.
// A missing file is only an error when the flag was given explicitly.
func loadEnv(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", path, err)
}

// newLogger builds the text logger on w. Every record passes through r.
func newLogger(level string, w io.Writer, r *redact.Redactor) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(redact.NewHandler(inner, r)), nil
}

// loadConfig reads --config, falling back to the standard locations and
// then to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = resolveConfigPath()
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*runtime, error) {
	if err := loadEnv(cmd); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	redactor, err := cfg.Redactor()
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level, cmd.ErrOrStderr(), redactor)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.New(cmd.Context(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Headers:     cfg.Tracing.Headers,
	})
	if err != nil {
		return nil, err
	}

	textfile, _ := cmd.Flags().GetString("metrics-textfile")
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}

	reg := prometheus.NewRegistry()
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		redactor: redactor,
		registry: reg,
		metrics:  ctxengine.NewMetrics(cfg.MetricsNamespace(), reg),
		tracing:  tp,
		textfile: textfile,
	}, nil
}

// newEngine builds a context engine from the configuration, seeded with
// records.
func (r *runtime) newEngine(records []ttl.ToolCall) (*ctxengine.Engine, error) {
	maskCfg, err := r.cfg.MaskConfig()
	if err != nil {
		return nil, err
	}
	engine := ctxengine.New(
		mask.NewMasker(maskCfg),
		ttl.NewTracker(r.cfg.TrackerTTL()),
		r.cfg.EngineConfig(),
		ctxengine.WithLogger(r.logger),
		ctxengine.WithMetrics(r.metrics),
		ctxengine.WithTracer(r.tracing.Tracer("ctxprune")),
	)
	if len(records) > 0 {
		engine.Restore(records)
	}
	return engine, nil
}

// openStore opens the tool-call store at path, or at store.path from the
// configuration when path is empty. It returns nil when neither is set.
func (r *runtime) openStore(ctx context.Context, path string) (*sqlite.Store, error) {
	if path == "" {
		path = r.cfg.Store.Path
	}
	if path == "" {
		return nil, nil
	}
	return sqlite.Open(ctx, sqlite.Config{
		Path:        path,
		WAL:         r.cfg.Store.WAL,
		BusyTimeout: r.cfg.Store.BusyTimeout,
	})
}

// close flushes traces and writes the metrics textfile.
func (r *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := r.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	if r.textfile != "" {
		if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}

// openInput opens the named file, or stdin for "" and "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}
