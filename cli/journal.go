package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hedisam/tiersync/batch"
	"github.com/hedisam/tiersync/lib/chans"
	"github.com/hedisam/tiersync/lib/journal"
)

// offlineAnnotation marks commands that reach neither the catalog nor object storage.
const offlineAnnotation = "tiersync/offline"

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect run journals",
	}

	var (
		collection string
		failedOnly bool
		follow     bool
	)
	show := &cobra.Command{
		Use:   "show <path>",
		Short: "Print the entries of a run journal",
		Long: `Print the entries of a run journal, oldest first.

With --follow the command keeps waiting for new entries, so a running batch can be watched from
another terminal:
  tiersync journal show run.jsonl --follow --failed`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{offlineAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := journal.NewReader(app.logger, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			var opts []journal.Option
			if follow {
				opts = append(opts, journal.WithFollow())
			}

			ctx := cmd.Context()
			w := newEntryWriter(app.out, app.format)
			for entry := range chans.ReceiveOrDoneSeq(ctx, r.Consume(ctx, opts...)) {
				if entry.Error != "" {
					continue
				}
				if collection != "" && entry.Collection != collection {
					continue
				}
				if failedOnly && !entry.Status.Retry() {
					continue
				}
				if err := w.write(entry); err != nil {
					return err
				}
			}

			return w.close()
		},
	}
	show.Flags().StringVar(&collection, "collection", "", "only show entries of this collection")
	show.Flags().BoolVar(&failedOnly, "failed", false, "only show failed and preserved items")
	show.Flags().BoolVarP(&follow, "follow", "f", false, "wait for new entries until interrupted")
	cmd.AddCommand(show)

	return cmd
}

// entryWriter streams journal entries: one line per entry in text, JSON lines, or a YAML document per entry.
type entryWriter struct {
	w       io.Writer
	format  batch.Format
	jsonEnc *json.Encoder
	yamlEnc *yaml.Encoder
}

func newEntryWriter(w io.Writer, format batch.Format) *entryWriter {
	ew := &entryWriter{w: w, format: format}
	switch format {
	case batch.FormatJSON:
		ew.jsonEnc = json.NewEncoder(w)
	case batch.FormatYAML:
		ew.yamlEnc = yaml.NewEncoder(w)
		ew.yamlEnc.SetIndent(2)
	}
	return ew
}

func (ew *entryWriter) write(e *journal.Entry) error {
	switch {
	case ew.jsonEnc != nil:
		return ew.jsonEnc.Encode(e)
	case ew.yamlEnc != nil:
		return ew.yamlEnc.Encode(e)
	}

	_, err := fmt.Fprintf(ew.w, "%s  %-9s  %s  %s/%s  %s\n",
		e.Timestamp.Format(time.RFC3339), e.Status, e.Operation, e.Collection, e.ItemID, e.Detail)
	return err
}

func (ew *entryWriter) close() error {
	if ew.yamlEnc != nil {
		return ew.yamlEnc.Close()
	}
	return nil
}
