package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/gnemet/PosterForge/internal/config"
	"github.com/gnemet/PosterForge/internal/database"
	"github.com/gnemet/PosterForge/internal/i18n"
	"github.com/gnemet/PosterForge/internal/photoshop"
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configFile string

	cfg    *config.Config
	logger *zap.Logger
)

// reportedError is a failure the user has already been notified about.
type reportedError struct{ error }

var rootCmd = &cobra.Command{
	Use:   "posterforge",
	Short: "Fill the City, Venue and Date fields of a poster template",
	Long: `PosterForge opens a poster template, replaces its City, Venue and Date
text layers and writes Poster.psd (layered) and Poster.jpg (flattened, web quality)
into a destination folder.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.Log.Level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if langs := i18n.GetAvailableLangs(); !slices.Contains(langs, cfg.Application.Language) {
			logger.Warn("No translations for configured language, falling back to en",
				zap.String("language", cfg.Application.Language),
				zap.Strings("available", langs))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

// newEngine returns the engine selected by application.engine.
func newEngine(c *config.Config, templatePath string) poster.Engine {
	if templatePath == "" {
		templatePath = c.Storage.Template
	}
	if c.Application.Engine == config.EnginePhotoshop {
		return &photoshop.Engine{
			Executable:   c.Photoshop.Path,
			TemplatePath: templatePath,
			Timeout:      c.Photoshop.Timeout,
			PollInterval: c.Photoshop.PollInterval,
			Logger:       logger,
		}
	}
	return &poster.NativeEngine{TemplatePath: templatePath}
}

// newRunner wires the engine, the optional run history and the notifier.
// The returned cleanup closes the database connection.
func newRunner(ctx context.Context, engine poster.Engine, notifier poster.Notifier) (*poster.Runner, func(), error) {
	r := &poster.Runner{
		Engine:   engine,
		Notifier: notifier,
		Logger:   logger,
		Lang:     cfg.Application.Language,
	}
	cleanup := func() {}

	if cfg.Database.Enabled() {
		db, err := database.NewConnection(ctx, cfg.Database.GetConnectStr(), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		r.Recorder = &database.RunRepository{DB: db}
		cleanup = func() { db.Close() }
	}

	return r, cleanup, nil
}
