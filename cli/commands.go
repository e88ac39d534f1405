package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hedisam/tiersync/batch"
	"github.com/hedisam/tiersync/lib/journal"
	"github.com/hedisam/tiersync/reconcile/deletion"
	"github.com/hedisam/tiersync/reconcile/metasync"
	"github.com/hedisam/tiersync/reconcile/retier"
	"github.com/hedisam/tiersync/storage/tier"
)

var ErrAborted = errors.New("aborted")

// batchRun describes one invocation of a batch operation. Mutating runs ask for confirmation unless yes or dryRun is
// set; action starts the question and is completed with the selected items.
type batchRun struct {
	collection string
	itemIDs    []string
	sample     int
	dryRun     bool
	mutating   bool
	yes        bool
	action     string
	op         func(rt *runtime) (batch.Operation, error)
}

func newItemCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Inspect single items",
	}

	var stats bool
	info := &cobra.Command{
		Use:   "info <collection> <item>",
		Short: "Show the recorded storage tiers of an item, and the actual ones with --stats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBatch(cmd.Context(), batchRun{
				collection: args[0],
				itemIDs:    args[1:],
				op:         statsOp(!stats),
			})
		},
	}
	info.Flags().BoolVar(&stats, "stats", false, "enumerate the objects of every asset")
	cmd.AddCommand(info)

	return cmd
}

func newCollectionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Inspect whole collections",
	}

	var (
		stats  bool
		sample int
	)
	info := &cobra.Command{
		Use:   "info <collection>",
		Short: "Summarize the storage tiers of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("sample") {
				sample = app.cfg.SampleSize
			}
			return app.runBatch(cmd.Context(), batchRun{
				collection: args[0],
				sample:     sample,
				op:         statsOp(!stats),
			})
		},
	}
	info.Flags().BoolVar(&stats, "stats", false, "enumerate the objects of every asset")
	info.Flags().IntVar(&sample, "sample", 0, "process only the first N items and extrapolate to the collection")
	cmd.AddCommand(info)

	return cmd
}

func statsOp(catalogOnly bool) func(rt *runtime) (batch.Operation, error) {
	return func(rt *runtime) (batch.Operation, error) {
		schemes, err := rt.schemes()
		if err != nil {
			return nil, err
		}
		return &batch.StatsOperation{
			Extractor:   rt.extractor,
			Enumerator:  rt.enumerator,
			Classifier:  rt.classifier,
			Schemes:     schemes,
			CatalogOnly: catalogOnly,
		}, nil
	}
}

func newChangeTierCmd(app *App) *cobra.Command {
	var (
		target           string
		include, exclude []string
		dryRun, yes      bool
		sync             bool
	)
	cmd := &cobra.Command{
		Use:   "change-tier <collection> [item...]",
		Short: "Move the objects of items to another storage tier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tier.Parse(target)
			if err != nil {
				return err
			}
			filter, err := retier.NewFilter(include, exclude)
			if err != nil {
				return err
			}

			return app.runBatch(cmd.Context(), batchRun{
				collection: args[0],
				itemIDs:    args[1:],
				dryRun:     dryRun,
				mutating:   true,
				yes:        yes,
				action:     "Change the storage tier to " + t.String() + " of",
				op: func(rt *runtime) (batch.Operation, error) {
					schemes, err := rt.schemes()
					if err != nil {
						return nil, err
					}
					op := &batch.ChangeTierOperation{
						Extractor: rt.extractor,
						Mutator:   retier.NewMutator(rt.logger, rt.enumerator, rt.store, rt.classifier, schemes, rt.objectPolicy, rt.cfg.Workers),
						Target:    t,
						Filter:    filter,
						DryRun:    dryRun,
					}
					if sync {
						op.Synchronizer = rt.synchronizer(schemes)
					}
					return op, nil
				},
			})
		},
	}
	cmd.Flags().StringVarP(&target, "tier", "t", "", "target tier: standard, performance or archive")
	cmd.Flags().StringSliceVar(&include, "include", nil, "only change objects matching these glob patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "never change objects matching these glob patterns")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without changing anything")
	cmd.Flags().BoolVar(&sync, "sync", true, "sync the item metadata after changing tiers")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("tier")

	return cmd
}

func newSyncTierCmd(app *App) *cobra.Command {
	var addMissing, dryRun, yes bool
	cmd := &cobra.Command{
		Use:   "sync-tier <collection> [item...]",
		Short: "Write the actual storage tiers of items back into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBatch(cmd.Context(), batchRun{
				collection: args[0],
				itemIDs:    args[1:],
				dryRun:     dryRun,
				mutating:   true,
				yes:        yes,
				action:     "Update the tier metadata of",
				op: func(rt *runtime) (batch.Operation, error) {
					schemes, err := rt.schemes()
					if err != nil {
						return nil, err
					}
					return &batch.SyncOperation{
						Synchronizer: rt.synchronizer(schemes),
						Options: metasync.Options{
							AddMissing: addMissing,
							DryRun:     dryRun,
						},
					}, nil
				},
			})
		},
	}
	cmd.Flags().BoolVar(&addMissing, "add-missing", false, "add an s3 alternate to assets that have none")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing any item")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func newCleanCmd(app *App) *cobra.Command {
	var (
		withData, dryRun, yes bool
		sample                int
	)
	cmd := &cobra.Command{
		Use:   "clean <collection> [item...]",
		Short: "Delete items, and the data backing them with --with-data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sample > 0 && !dryRun {
				return errors.New("--sample requires --dry-run")
			}
			what := "the catalog items"
			if withData {
				what = "the catalog items and their data"
			}

			return app.runBatch(cmd.Context(), batchRun{
				collection: args[0],
				itemIDs:    args[1:],
				sample:     sample,
				dryRun:     dryRun,
				mutating:   true,
				yes:        yes,
				action:     "Permanently delete " + what + " of",
				op: func(rt *runtime) (batch.Operation, error) {
					return &batch.CleanOperation{
						Coordinator: deletion.NewCoordinator(rt.logger, rt.extractor, rt.enumerator, rt.store, rt.catalog, rt.objectPolicy,
							deletion.WithCatalogPolicy(rt.catalogPolicy),
						),
						Options: deletion.Options{
							WithData:   withData,
							DryRun:     dryRun,
							SampleKeys: rt.cfg.Report.MaxExamples,
						},
					}, nil
				},
			})
		},
	}
	cmd.Flags().BoolVar(&withData, "with-data", false, "delete the objects backing the items first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting anything")
	cmd.Flags().IntVar(&sample, "sample", 0, "with --dry-run, look at the first N items only and extrapolate")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func (r batchRun) question() string {
	if len(r.itemIDs) > 0 {
		return fmt.Sprintf("%s %d items of collection %s?", r.action, len(r.itemIDs), r.collection)
	}
	return fmt.Sprintf("%s every item of collection %s?", r.action, r.collection)
}

func (rt *runtime) synchronizer(schemes *tier.SchemeTable) *metasync.Synchronizer {
	return metasync.New(rt.logger, rt.extractor, rt.enumerator, rt.classifier, schemes, rt.catalog, rt.catalogPolicy)
}

// runBatch builds the runtime, runs the operation over the selected items and renders the summary.
func (a *App) runBatch(ctx context.Context, r batchRun) (err error) {
	if a.flags.onlyFailedFrom != "" {
		if len(r.itemIDs) > 0 {
			return errors.New("--only-failed-from cannot be combined with explicit items")
		}
		r.itemIDs, err = journal.FailedItems(ctx, a.logger, a.flags.onlyFailedFrom, r.collection)
		if err != nil {
			return fmt.Errorf("could not read journal: %w", err)
		}
		if len(r.itemIDs) == 0 {
			_, _ = fmt.Fprintln(a.out, "Nothing to retry")
			return nil
		}
	}

	if r.mutating && !r.dryRun && !r.yes {
		ok, err := confirm(a.in, a.errOut, r.question())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	rt, err := a.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = rt.close(context.WithoutCancel(ctx))
	}()

	op, err := r.op(rt)
	if err != nil {
		return err
	}

	ctx, span := otel.Tracer("").Start(ctx, "batch."+op.Name())
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", rt.runID),
		attribute.String("collection", r.collection),
		attribute.Int("items", len(r.itemIDs)),
		attribute.Bool("dry_run", r.dryRun),
	)

	summary, runErr := rt.driver().Run(ctx, batch.Request{
		Collection: r.collection,
		ItemIDs:    r.itemIDs,
		Sample:     r.sample,
		DryRun:     r.dryRun,
	}, op)
	if renderErr := batch.Render(a.out, summary, a.format); renderErr != nil {
		a.logger.WithError(renderErr).Error("Failed to render report")
	}
	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		return runErr
	}
	if summary.HasProblems() {
		span.SetStatus(codes.Error, "problems")
		return ErrProblems
	}

	return nil
}
