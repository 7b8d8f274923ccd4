package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entryAt(id string, at time.Time) LedgerEntry {
	return LedgerEntry{
		ID:        id,
		CreatedAt: at,
		Reports:   []TriggerReport{{Type: TriggerAddTag, NewValue: "sale"}},
	}
}

func TestLedgerSortedNewestFirst(t *testing.T) {
	base := time.Now()
	ledger := Ledger{
		entryAt("old", base.Add(-2*time.Hour)),
		entryAt("new", base),
		entryAt("mid", base.Add(-time.Hour)),
	}

	sorted := ledger.SortedNewestFirst()
	assert.Equal(t, "new", sorted[0].ID)
	assert.Equal(t, "mid", sorted[1].ID)
	assert.Equal(t, "old", sorted[2].ID)

	// The receiver is untouched.
	assert.Equal(t, "old", ledger[0].ID)
}

func TestLedgerContainsAndIndexOf(t *testing.T) {
	ledger := Ledger{entryAt("a", time.Now()), entryAt("b", time.Now())}

	assert.True(t, ledger.Contains("a"))
	assert.False(t, ledger.Contains("c"))
	assert.Equal(t, 1, ledger.IndexOf("b"))
	assert.Equal(t, -1, ledger.IndexOf("c"))
}

func TestLedgerWithout(t *testing.T) {
	ledger := Ledger{entryAt("a", time.Now()), entryAt("b", time.Now())}

	out := ledger.Without("a")
	assert.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
	assert.Len(t, ledger, 2)
}

func TestLedgerUpsert(t *testing.T) {
	ledger := Ledger{entryAt("a", time.Now())}

	replaced := entryAt("a", time.Now().Add(time.Minute))
	out := ledger.Upsert(replaced)
	assert.Len(t, out, 1)
	assert.True(t, out[0].CreatedAt.Equal(replaced.CreatedAt))

	// An empty-reports entry removes instead of appending.
	out = out.Upsert(LedgerEntry{ID: "a"})
	assert.Empty(t, out)
}

func TestLedgerWithoutReverted(t *testing.T) {
	ledger := Ledger{
		entryAt("a", time.Now()),
		{ID: "b", CreatedAt: time.Now()},
	}

	out := ledger.WithoutReverted()
	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestTriggerReportCoercion(t *testing.T) {
	report := TriggerReport{Type: TriggerDiscount, BackupValue: "1000", NewValue: "not a string really is"}

	backup, err := report.BackupFloat()
	assert.NoError(t, err)
	assert.Equal(t, 1000.0, backup)

	report.BackupValue = map[string]string{}
	_, err = report.BackupFloat()
	assert.Error(t, err)

	report.NewValue = 42
	_, err = report.NewString()
	assert.Error(t, err)
}

func TestTriggerReportFailed(t *testing.T) {
	assert.False(t, TriggerReport{Type: TriggerAddTag}.Failed())
	assert.True(t, TriggerReport{Type: TriggerAddTag, ErrorMessage: "boom"}.Failed())
}
