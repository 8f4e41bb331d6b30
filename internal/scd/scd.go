// Package scd replays change-feed tables into slowly changing dimension (type 2) history.
package scd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
)

const (
	ColumnStartAt = "__START_AT"
	ColumnEndAt   = "__END_AT"
)

// Replay describes how events are keyed, ordered and deleted.
type Replay struct {
	Keys       []string
	SequenceBy string
	// ChangeType names the column holding the event kind; events whose value equals
	// DeleteValue close the open version instead of opening a new one. Empty disables deletes.
	ChangeType  string
	DeleteValue string
}

// Apply replays t with the change-feed defaults for delete detection.
func Apply(t *domain.Table, keys []string, sequenceBy string) (*domain.Table, error) {
	r := Replay{Keys: keys, SequenceBy: sequenceBy, ChangeType: "change_type", DeleteValue: "DELETE"}
	return r.Apply(t)
}

type entry struct {
	key string
	seq time.Time
	row domain.Row
}

// Apply builds one version per non-delete event per key. A version ends at the next
// event of the same key; the newest version of a live key stays open.
func (r Replay) Apply(t *domain.Table) (*domain.Table, error) {
	if len(r.Keys) == 0 {
		return nil, fmt.Errorf("scd: at least one key column is required")
	}
	for _, name := range append(append([]string(nil), r.Keys...), r.SequenceBy) {
		if !hasColumn(t, name) {
			return nil, fmt.Errorf("scd: table '%s' has no column '%s'", t.Name, name)
		}
	}

	groups := make(map[string][]entry)
	order := make([]string, 0)
	for i, row := range t.Rows {
		seq, err := toTime(row[r.SequenceBy])
		if err != nil {
			return nil, fmt.Errorf("scd: table '%s' row %d: %s: %w", t.Name, i, r.SequenceBy, err)
		}
		k := keyOf(row, r.Keys)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], entry{key: k, seq: seq, row: row})
	}
	sort.Strings(order)

	out := &domain.Table{
		Name: t.Name + "_history",
		Columns: append(append([]domain.ColumnMeta(nil), t.Columns...),
			domain.ColumnMeta{Name: ColumnStartAt, Type: domain.ColumnTypeTimestamp},
			domain.ColumnMeta{Name: ColumnEndAt, Type: domain.ColumnTypeTimestamp},
		),
	}

	for _, k := range order {
		events := groups[k]
		sort.SliceStable(events, func(i, j int) bool { return events[i].seq.Before(events[j].seq) })
		for i := 1; i < len(events); i++ {
			if events[i].seq.Equal(events[i-1].seq) {
				return nil, fmt.Errorf("scd: table '%s': key %s has two events at %s", t.Name, k, events[i].seq.Format(time.RFC3339))
			}
		}

		for i, e := range events {
			if r.isDelete(e.row) {
				continue
			}
			v := make(domain.Row, len(e.row)+2)
			for name, val := range e.row {
				v[name] = val
			}
			v[ColumnStartAt] = e.seq
			v[ColumnEndAt] = nil
			if i+1 < len(events) {
				v[ColumnEndAt] = events[i+1].seq
			}
			out.Rows = append(out.Rows, v)
		}
	}
	return out, nil
}

func (r Replay) isDelete(row domain.Row) bool {
	if r.ChangeType == "" {
		return false
	}
	v, ok := row[r.ChangeType].(string)
	return ok && v == r.DeleteValue
}

// Current returns the open versions of a history table.
func Current(history *domain.Table) []domain.Row {
	out := make([]domain.Row, 0)
	for _, row := range history.Rows {
		if row[ColumnEndAt] == nil {
			out = append(out, row)
		}
	}
	return out
}

// AsOf returns the versions valid at instant at: started at or before it and not yet ended.
func AsOf(history *domain.Table, at time.Time) []domain.Row {
	out := make([]domain.Row, 0)
	for _, row := range history.Rows {
		start, ok := row[ColumnStartAt].(time.Time)
		if !ok || start.After(at) {
			continue
		}
		if end, ok := row[ColumnEndAt].(time.Time); ok && !at.Before(end) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func hasColumn(t *domain.Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func keyOf(row domain.Row, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprint(row[k])
	}
	return strings.Join(parts, "|")
}

func toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", val)
	case int64:
		return time.Unix(val, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported sequence value of type %T", v)
	}
}
