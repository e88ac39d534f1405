package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/hedisam/tiersync/storage/tier"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q, expected text, json or yaml", s)
	}
}

// Render writes the summary in the given format.
func Render(w io.Writer, s *Summary, format Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("yaml encode summary: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, s)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, s *Summary) error {
	title := fmt.Sprintf("%s %s", s.Operation, s.Collection)
	if s.DryRun {
		title += " (dry run)"
	}
	if s.Interrupted {
		title += " (interrupted)"
	}

	counts := newTable(w, title)
	counts.AppendHeader(table.Row{"", "count"})
	counts.AppendRow(table.Row{"items processed", humanize.Comma(int64(s.Items.Processed))})
	appendNonZero(counts, "items updated", s.Items.Updated)
	appendNonZero(counts, "items unchanged", s.Items.Unchanged)
	appendNonZero(counts, "items deleted", s.Items.Deleted)
	appendNonZero(counts, "items dry run", s.Items.DryRun)
	appendNonZero(counts, "items failed", s.Items.Failed)
	appendNonZero(counts, "items preserved", s.Items.Preserved)
	appendNonZero(counts, "assets updated", s.Assets.Updated)
	appendNonZero(counts, "assets added", s.Assets.Added)
	appendNonZero(counts, "assets unchanged", s.Assets.Unchanged)
	appendNonZero(counts, "assets failed", s.Assets.Failed)
	appendNonZero(counts, "assets without storage reference", s.Assets.Skipped)
	appendNonZero(counts, "objects enumerated", s.Objects.Enumerated)
	if s.Objects.Bytes > 0 {
		counts.AppendRow(table.Row{"bytes enumerated", humanize.IBytes(uint64(s.Objects.Bytes))})
	}
	appendNonZero(counts, "objects deleted", s.Objects.Deleted)
	appendNonZero(counts, "objects failed to delete", s.Objects.DeleteFailed)
	appendNonZero(counts, "objects remaining", s.Objects.Residual)
	appendNonZero(counts, "objects changed tier", s.Objects.TierChanged)
	appendNonZero(counts, "objects already at tier", s.Objects.TierSkipped)
	appendNonZero(counts, "objects failed to change tier", s.Objects.TierFailed)
	counts.Render()

	if s.Observed.Total() > 0 || s.Recorded.Total() > 0 {
		tiers := newTable(w, "objects by tier")
		tiers.AppendHeader(table.Row{"tier", "storage", "catalog", "difference"})
		for _, t := range tier.All {
			observed, recorded := s.Observed[t], s.Recorded[t]
			tiers.AppendRow(table.Row{t, humanize.Comma(int64(observed)), humanize.Comma(int64(recorded)), signed(observed - recorded)})
		}
		tiers.AppendFooter(table.Row{"total", humanize.Comma(int64(s.Observed.Total())), humanize.Comma(int64(s.Recorded.Total())), signed(s.Observed.Total() - s.Recorded.Total())})
		tiers.Render()
	}

	for _, d := range s.Details {
		renderItemStats(w, d)
	}

	renderExamples(w, "mismatches", &s.Mismatches)
	renderExamples(w, "corrections", &s.Corrections)
	renderExamples(w, "problems", &s.Failures)
	renderExamples(w, "sample keys", &s.SampleKeys)

	if e := s.Estimate; e != nil {
		est := newTable(w, fmt.Sprintf("estimate from %d of %d items", e.SampledItems, e.TotalItems))
		est.AppendRow(table.Row{"objects", humanize.Comma(e.Objects)})
		est.AppendRow(table.Row{"size", humanize.IBytes(uint64(e.Bytes))})
		est.Render()
	}

	if len(s.FailedItems) > 0 {
		_, _ = fmt.Fprintf(w, "failed items: %s\n", strings.Join(s.FailedItems, ", "))
	}
	if len(s.PreservedItems) > 0 {
		_, _ = fmt.Fprintf(w, "preserved items: %s\n", strings.Join(s.PreservedItems, ", "))
	}

	return nil
}

func renderItemStats(w io.Writer, r *ItemReport) {
	t := newTable(w, fmt.Sprintf("%s: %s in %s objects", r.Item, humanize.IBytes(uint64(r.Stats.Bytes)), humanize.Comma(int64(r.Stats.Objects))))
	t.AppendHeader(table.Row{"asset", "kind", "objects", "size", "storage", "catalog", "in sync"})
	for _, a := range r.Stats.Assets {
		if a.Error != "" {
			t.AppendRow(table.Row{a.Asset, a.Kind, "-", "-", "error: " + a.Error, "-", "-"})
			continue
		}
		t.AppendRow(table.Row{a.Asset, a.Kind, humanize.Comma(int64(a.Objects)), humanize.IBytes(uint64(a.Bytes)), a.Observed, a.Recorded, a.InSync})
	}
	for _, name := range r.Stats.Skipped {
		t.AppendRow(table.Row{name, "-", "-", "-", "no object storage reference", "-", "-"})
	}
	t.Render()
}

func renderExamples(w io.Writer, title string, l *Examples) {
	if l.Total() == 0 {
		return
	}

	t := newTable(w, fmt.Sprintf("%s (%d)", title, l.Total()))
	for _, e := range l.Shown {
		t.AppendRow(table.Row{e.String()})
	}
	if l.Omitted > 0 {
		t.AppendFooter(table.Row{fmt.Sprintf("... and %d more", l.Omitted)})
	}
	t.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func appendNonZero(t table.Writer, label string, n int) {
	if n != 0 {
		t.AppendRow(table.Row{label, humanize.Comma(int64(n))})
	}
}

func signed(n int) string {
	if n > 0 {
		return "+" + humanize.Comma(int64(n))
	}
	return humanize.Comma(int64(n))
}
