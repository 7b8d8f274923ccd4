package models

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// TriggerReport records the outcome of one applied trigger: the new value
// and enough backup state to invert it later, or an error message when the
// catalog call failed. Values stay loosely typed because the report is
// round-tripped through the JSON metafield mirror.
type TriggerReport struct {
	Type         TriggerKind `json:"type"`
	BackupValue  interface{} `json:"backup_value,omitempty"`
	NewValue     interface{} `json:"new_value,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Failed reports whether the trigger call was recorded as an error.
func (r TriggerReport) Failed() bool {
	return r.ErrorMessage != ""
}

// BackupFloat returns the backup value as a float64 (price reports).
func (r TriggerReport) BackupFloat() (float64, error) {
	return coerceFloat(r.BackupValue)
}

// NewString returns the new value as a string (collection id, tag).
func (r TriggerReport) NewString() (string, error) {
	s, ok := r.NewValue.(string)
	if !ok {
		return "", fmt.Errorf("report new_value is not a string: %v", r.NewValue)
	}
	return s, nil
}

func coerceFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("report value %q is not numeric", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("report value %v is not numeric", v)
	}
}

// LedgerEntry records one rule application on a fact record. Its ID is the
// rule's id; an entry with no reports marks a fully reverted application
// and is pruned from the external mirror.
type LedgerEntry struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Reports   []TriggerReport `json:"reports"`
}

// Reverted reports whether the entry is the empty-reports marker.
func (e LedgerEntry) Reverted() bool {
	return len(e.Reports) == 0
}

// Ledger is the ordered history of rule applications on one fact record.
// The canonical order is newest first.
type Ledger []LedgerEntry

// SortedNewestFirst returns a copy sorted by CreatedAt descending.
func (l Ledger) SortedNewestFirst() Ledger {
	out := make(Ledger, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Contains reports whether the ledger holds an entry for the rule. A rule
// present here may not re-trigger until the entry is reverted.
func (l Ledger) Contains(ruleID string) bool {
	return l.IndexOf(ruleID) >= 0
}

// IndexOf returns the position of the rule's entry, or -1.
func (l Ledger) IndexOf(ruleID string) int {
	for i, e := range l {
		if e.ID == ruleID {
			return i
		}
	}
	return -1
}

// Without returns a copy with the rule's entry removed.
func (l Ledger) Without(ruleID string) Ledger {
	out := make(Ledger, 0, len(l))
	for _, e := range l {
		if e.ID != ruleID {
			out = append(out, e)
		}
	}
	return out
}

// WithoutReverted returns a copy with empty-reports markers pruned.
func (l Ledger) WithoutReverted() Ledger {
	out := make(Ledger, 0, len(l))
	for _, e := range l {
		if !e.Reverted() {
			out = append(out, e)
		}
	}
	return out
}

// Upsert returns a copy with the entry appended, replacing any previous
// entry for the same rule. An empty-reports entry removes instead.
func (l Ledger) Upsert(entry LedgerEntry) Ledger {
	out := l.Without(entry.ID)
	if entry.Reverted() {
		return out
	}
	return append(out, entry)
}
