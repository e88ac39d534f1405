// Package cli is the tiersync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hedisam/tiersync/batch"
	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/config"
	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/telemetry"
)

// ErrProblems is returned when a run finished but some items failed or were preserved.
var ErrProblems = errors.New("some items were not processed cleanly")

type globalFlags struct {
	configPath     string
	output         string
	onlyFailedFrom string
}

// App holds what the commands share. Catalog and object store are built from the configuration unless given as
// options.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	v      *viper.Viper
	flags  globalFlags
	cfg    *config.Config
	format batch.Format
	logger *logrus.Logger

	catalog catalog.Store
	store   objects.Store
}

type Option func(a *App)

func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.errOut = errOut
	}
}

// WithCatalog replaces the STAC API client.
func WithCatalog(c catalog.Store) Option {
	return func(a *App) {
		a.catalog = c
	}
}

// WithObjectStore replaces the S3 client.
func WithObjectStore(s objects.Store) Option {
	return func(a *App) {
		a.store = s
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, opts ...Option) int {
	cmd, app := newRootCmd(opts...)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !errors.Is(err, ErrProblems) {
		_, _ = fmt.Fprintln(app.errOut, "Error:", err)
	}
	return 1
}

func NewRootCmd(opts ...Option) *cobra.Command {
	cmd, _ := newRootCmd(opts...)
	return cmd
}

func newRootCmd(opts ...Option) (*cobra.Command, *App) {
	app := &App{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		v:      config.NewViper(),
		logger: logrus.New(),
	}
	for opt := range slices.Values(opts) {
		opt(app)
	}

	rootCmd := &cobra.Command{
		Use:   "tiersync",
		Short: "Keep catalog storage tiers in sync with object storage",
		Long: `tiersync reconciles the storage tier metadata of catalog items with the storage classes of the
objects backing their assets, changes storage tiers, and deletes items together with their data.

Examples:
  # Show the recorded and actual tiers of an item
  tiersync item info sentinel-2-l2a S2A_T32TQM_20240101 --stats

  # Estimate the size of a collection from 50 items
  tiersync collection info sentinel-2-l2a --stats --sample 50

  # Move the measurements of an item to the archive tier
  tiersync change-tier sentinel-2-l2a S2A_T32TQM_20240101 --tier archive --include 'measurements/**'

  # Fix the tier metadata of a whole collection
  tiersync sync-tier sentinel-2-l2a --add-missing

  # Delete items and their data, retrying the ones a previous run left behind
  tiersync clean sentinel-2-l2a --with-data --only-failed-from run.jsonl`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}
	rootCmd.SetIn(app.in)
	rootCmd.SetOut(app.out)
	rootCmd.SetErr(app.errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&app.flags.configPath, "config", "c", "", "config file path")
	pf.StringVarP(&app.flags.output, "output", "o", "text", "report format: text, json or yaml")
	pf.StringVar(&app.flags.onlyFailedFrom, "only-failed-from", "", "process only the items a previous run recorded as failed or preserved in this journal")
	pf.String("catalog-url", "", "STAC API base url")
	pf.String("s3-endpoint", "", "S3 endpoint url")
	pf.StringP("log-level", "l", "info", "log level")
	pf.String("log-format", "text", "log format: text or json")
	pf.Uint("workers", 1, "items processed in parallel")
	pf.String("journal", "", "append the outcome of every item to this file")

	for key, flag := range map[string]string{
		"catalog.url":  "catalog-url",
		"s3.endpoint":  "s3-endpoint",
		"log.level":    "log-level",
		"log.format":   "log-format",
		"workers":      "workers",
		"journal.path": "journal",
	} {
		_ = app.v.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.AddCommand(
		newItemCmd(app),
		newCollectionCmd(app),
		newChangeTierCmd(app),
		newSyncTierCmd(app),
		newCleanCmd(app),
		newJournalCmd(app),
	)

	return rootCmd, app
}

// setup loads the configuration and configures the logger before any command runs.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
		return nil
	}

	cfg, err := config.Load(a.v, a.flags.configPath)
	if err != nil {
		return err
	}
	// offline commands need no catalog or object storage settings
	if cmd.Annotations[offlineAnnotation] == "" {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	a.cfg = cfg

	a.format, err = batch.ParseFormat(a.flags.output)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	a.logger.SetLevel(level)
	a.logger.SetOutput(a.errOut)
	if cfg.Log.Format == "json" {
		a.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	a.logger.AddHook(&telemetry.TraceHook{})

	return nil
}
