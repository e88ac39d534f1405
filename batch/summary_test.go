package batch_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hedisam/tiersync/batch"
	"github.com/hedisam/tiersync/lib/journal"
	"github.com/hedisam/tiersync/reconcile/metasync"
	"github.com/hedisam/tiersync/reconcile/mismatch"
	"github.com/hedisam/tiersync/storage/tier"
)

func updatedSync(itemID string, observed, recorded tier.Distribution) *batch.ItemResult {
	m, _ := mismatch.Detect("data", observed, recorded)
	return &batch.ItemResult{
		ItemID:  itemID,
		Status:  journal.StatusOK,
		Changed: true,
		Sync: &metasync.Result{
			ItemID:  itemID,
			Written: true,
			Assets: []metasync.AssetResult{{
				Asset:    "data",
				Status:   metasync.AssetUpdated,
				Ref:      "mixed",
				Objects:  observed.Total(),
				Observed: observed,
				Recorded: recorded,
				Mismatch: &m,
			}},
		},
	}
}

func TestSummary_BoundsExamples(t *testing.T) {
	s := batch.NewSummary("run", "sync-tier", collection, false, 3)
	for i := range 5 {
		s.Record(updatedSync(fmt.Sprintf("item-%d", i), tier.Distribution{tier.Standard: 1, tier.Archive: 1}, tier.Distribution{tier.Standard: 2}))
	}

	assert.Equal(t, 5, s.Items.Updated)
	assert.Equal(t, 5, s.Assets.Updated)
	assert.Len(t, s.Mismatches.Shown, 3)
	assert.Equal(t, 2, s.Mismatches.Omitted)
	assert.Len(t, s.Corrections.Shown, 3)
	assert.Equal(t, 5, s.Corrections.Total())
	assert.Equal(t, tier.Distribution{tier.Standard: 5, tier.Archive: 5}, s.Observed)
	assert.Equal(t, tier.Distribution{tier.Standard: 10}, s.Recorded)
	assert.Equal(t, "item-0/data: observed={STANDARD:1 ARCHIVE:1} recorded={STANDARD:2}", s.Mismatches.Shown[0].String())
}

func TestSummary_FailedAssetsStayOutOfTotals(t *testing.T) {
	s := batch.NewSummary("run", "sync-tier", collection, false, 0)
	s.Record(&batch.ItemResult{
		ItemID: "a",
		Status: journal.StatusFailed,
		Err:    errors.New("1 assets failed to sync"),
		Sync: &metasync.Result{
			ItemID: "a",
			Assets: []metasync.AssetResult{
				{Asset: "data", Status: metasync.AssetFailed, Err: errors.New("query failed")},
				{Asset: "other", Status: metasync.AssetUnchanged, Objects: 2, Observed: tier.Of(tier.Standard, 2), Recorded: tier.Of(tier.Standard, 2)},
			},
			Skipped: []string{"readme"},
		},
	})

	assert.Equal(t, 1, s.Items.Failed)
	assert.Equal(t, 1, s.Assets.Failed)
	assert.Equal(t, 1, s.Assets.Unchanged)
	assert.Equal(t, 1, s.Assets.Skipped)
	assert.Equal(t, 2, s.Objects.Enumerated)
	assert.Equal(t, tier.Of(tier.Standard, 2), s.Observed)
	// the item error and the asset error
	assert.Equal(t, 2, s.Failures.Total())
	assert.Equal(t, []string{"a"}, s.FailedItems)
}

func TestRender(t *testing.T) {
	s := batch.NewSummary("run-1", "sync-tier", collection, true, 0)
	s.Record(updatedSync("a", tier.Distribution{tier.Standard: 3, tier.Performance: 1}, tier.Distribution{tier.Standard: 4}))
	s.Record(&batch.ItemResult{ItemID: "b", Status: journal.StatusFailed, Err: errors.New("boom")})

	tests := map[string]struct {
		format batch.Format
		check  func(t *testing.T, out []byte)
	}{
		"text": {
			format: batch.FormatText,
			check: func(t *testing.T, out []byte) {
				text := string(out)
				assert.Contains(t, text, "sync-tier col (dry run)")
				assert.Contains(t, text, "items processed")
				assert.Contains(t, text, "objects by tier")
				assert.Contains(t, text, "PERFORMANCE")
				assert.Contains(t, text, "+1")
				assert.Contains(t, text, "mismatches (1)")
				assert.Contains(t, text, "b: boom")
				assert.Contains(t, text, "failed items: b")
			},
		},
		"json": {
			format: batch.FormatJSON,
			check: func(t *testing.T, out []byte) {
				var decoded map[string]any
				require.NoError(t, json.Unmarshal(out, &decoded))
				assert.Equal(t, "run-1", decoded["run_id"])
				assert.Equal(t, []any{"b"}, decoded["failed_items"])
				assert.Equal(t, map[string]any{"STANDARD": float64(3), "PERFORMANCE": float64(1)}, decoded["observed"])
			},
		},
		"yaml": {
			format: batch.FormatYAML,
			check: func(t *testing.T, out []byte) {
				var decoded map[string]any
				require.NoError(t, yaml.Unmarshal(out, &decoded))
				assert.Equal(t, "sync-tier", decoded["operation"])
				assert.Equal(t, true, decoded["dry_run"])
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, batch.Render(&buf, s, tc.format))
			tc.check(t, buf.Bytes())
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]struct {
		in          string
		expected    batch.Format
		expectedErr bool
	}{
		"default": {in: "", expected: batch.FormatText},
		"json":    {in: "JSON", expected: batch.FormatJSON},
		"yaml":    {in: " yaml ", expected: batch.FormatYAML},
		"unknown": {in: "xml", expectedErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := batch.ParseFormat(tc.in)
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f)
		})
	}
}
