package tables

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/generators"
)

const (
	ColumnChangeType      = "change_type"
	ColumnChangeSequence  = "change_sequence"
	ColumnChangeTimestamp = "change_timestamp"

	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"

	DefaultMinChanges = 1
	DefaultMaxChanges = 5
)

// PipelineEpoch is the earliest date the downstream pipeline accepts; change feeds and
// weather series start there unless configured otherwise.
var PipelineEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// ChangeFeed produces per-entity mutation events for latest-wins replay.
type ChangeFeed struct {
	schema      *domain.Schema
	rng         *rand.Rand
	keys        domain.KeyRanges
	window      domain.DateWindow
	entities    int64
	minChanges  int
	maxChanges  int
	naturalKeys []domain.Column
	identity    int
	mutable     []domain.Column
	columns     []domain.Column
	tsFormat    string
	// timestamps are drawn on step boundaries from first, slots steps in all.
	step  time.Duration
	first time.Time
	slots int64
}

func NewChangeFeed(s *domain.Schema, opts Options) (*ChangeFeed, error) {
	cfg := s.Config
	c := &ChangeFeed{schema: s, rng: opts.rng(), keys: opts.keys()}

	c.entities = cfg.EntityCount
	if c.entities == 0 {
		if err := checkRowCount(s); err != nil {
			return nil, err
		}
		c.entities = s.RowCount
	}

	c.minChanges, c.maxChanges = cfg.MinChanges, cfg.MaxChanges
	if c.minChanges == 0 {
		c.minChanges = DefaultMinChanges
	}
	if c.maxChanges == 0 {
		c.maxChanges = DefaultMaxChanges
		if c.minChanges > c.maxChanges {
			c.maxChanges = c.minChanges
		}
	}
	if c.minChanges > c.maxChanges {
		return nil, &domain.ConfigError{
			Table: s.TableName,
			Field: "generator_config.min_changes",
			Msg:   fmt.Sprintf("min_changes %d exceeds max_changes %d", c.minChanges, c.maxChanges),
		}
	}

	window, err := generators.ResolveWindow(cfg, opts.now(), PipelineEpoch)
	if err != nil {
		return nil, withTable(s.TableName, err)
	}
	c.window = window

	if len(s.Columns) == 0 {
		return nil, &domain.SchemaError{Table: s.TableName, Field: "columns", Msg: "change feed needs at least one column"}
	}
	names := NaturalKeyNames(s)
	isKey := make(map[string]bool, len(names))
	for _, name := range names {
		col, ok := s.Column(name)
		if !ok {
			return nil, &domain.SchemaError{Table: s.TableName, Field: "generator_config.natural_keys", Msg: fmt.Sprintf("unknown column '%s'", name)}
		}
		if isChangeColumn(name) {
			return nil, &domain.SchemaError{Table: s.TableName, Field: "generator_config.natural_keys", Msg: fmt.Sprintf("'%s' is maintained by the generator", name)}
		}
		c.naturalKeys = append(c.naturalKeys, col)
		isKey[name] = true
	}
	if c.identity, err = IdentityKey(s, c.naturalKeys, c.keys, c.entities); err != nil {
		return nil, err
	}

	for _, col := range s.Columns {
		switch {
		case isKey[col.Name]:
		case col.Name == ColumnChangeTimestamp:
			if d, ok := col.Def.(domain.DatetimeDef); ok {
				c.tsFormat = d.Format
			}
		case isChangeColumn(col.Name):
		default:
			c.mutable = append(c.mutable, col)
		}
	}

	step, ok := TimestampStep(c.tsFormat)
	if !ok {
		return nil, &domain.SchemaError{
			Table: s.TableName,
			Field: "columns." + ColumnChangeTimestamp,
			Msg:   fmt.Sprintf("format %q does not keep the date and time needed to order events", c.tsFormat),
		}
	}
	c.step = step
	c.first = window.Start.Truncate(step)
	if c.first.Before(window.Start) {
		c.first = c.first.Add(step)
	}
	if !window.End.Before(c.first) {
		c.slots = int64(window.End.Sub(c.first) / step)
	}
	if c.slots < int64(c.maxChanges) {
		return nil, &domain.ConfigError{
			Table: s.TableName,
			Field: "generator_config",
			Msg:   fmt.Sprintf("window holds %d distinct %s steps, fewer than max_changes %d", c.slots, step, c.maxChanges),
		}
	}

	c.columns = append(c.columns, s.Columns...)
	if _, ok := s.Column(ColumnChangeType); !ok {
		c.columns = append(c.columns, domain.Column{Name: ColumnChangeType, Def: domain.CategoricalDef{Choices: []string{ChangeInsert, ChangeUpdate, ChangeDelete}}})
	}
	if _, ok := s.Column(ColumnChangeSequence); !ok {
		c.columns = append(c.columns, domain.Column{Name: ColumnChangeSequence, Def: domain.IntegerDef{Min: 1, Max: int64(c.maxChanges)}})
	}
	if _, ok := s.Column(ColumnChangeTimestamp); !ok {
		c.columns = append(c.columns, domain.Column{Name: ColumnChangeTimestamp, Def: domain.DatetimeDef{}})
	}
	return c, nil
}

func (c *ChangeFeed) Kind() domain.GeneratorKind { return domain.GeneratorChangeFeed }

// NaturalKeyNames is the configured key list, or the first column when none is set.
func NaturalKeyNames(s *domain.Schema) []string {
	if len(s.Config.NaturalKeys) > 0 {
		return append([]string(nil), s.Config.NaturalKeys...)
	}
	if len(s.Columns) == 0 {
		return nil
	}
	return []string{s.Columns[0].Name}
}

// NaturalKeys lists the columns that identify an entity across its events.
func (c *ChangeFeed) NaturalKeys() []string {
	out := make([]string, len(c.naturalKeys))
	for i, col := range c.naturalKeys {
		out[i] = col.Name
	}
	return out
}

type event struct {
	row domain.Row
	ts  time.Time
	key []any
	seq int
}

func (c *ChangeFeed) Generate() (*domain.Table, error) {
	if err := checkForeignKeys(c.schema, c.keys); err != nil {
		return nil, err
	}

	t := &domain.Table{
		Name:    c.schema.TableName,
		Columns: columnMeta(c.columns),
		Stats:   domain.TableStats{Anomalies: map[string]int64{}},
	}

	var events []event
	for entity := int64(1); entity <= c.entities; entity++ {
		key, err := c.naturalKey(entity)
		if err != nil {
			return nil, withTable(c.schema.TableName, err)
		}

		k := int(generators.UniformInt(c.rng, int64(c.minChanges), int64(c.maxChanges)))
		stamps := c.timestamps(k)
		deleteLast := k >= 2 && c.schema.Config.DeleteRatio > 0 && c.rng.Float64() < c.schema.Config.DeleteRatio

		for i := 0; i < k; i++ {
			row := make(domain.Row, len(c.columns))
			for ki, col := range c.naturalKeys {
				row[col.Name] = key[ki]
			}
			for _, col := range c.mutable {
				v, err := generators.Generate(c.rng, col, c.schema.Rule(col.Name), c.keys, c.window)
				if err != nil {
					return nil, withTable(c.schema.TableName, err)
				}
				row[col.Name] = v.V
				if v.Anomalous {
					t.Stats.Anomalies[col.Name]++
				}
			}

			kind := ChangeUpdate
			switch {
			case i == 0:
				kind = ChangeInsert
			case i == k-1 && deleteLast:
				kind = ChangeDelete
			}
			row[ColumnChangeType] = kind
			row[ColumnChangeSequence] = int64(i + 1)
			if c.tsFormat != "" {
				row[ColumnChangeTimestamp] = stamps[i].Format(c.tsFormat)
			} else {
				row[ColumnChangeTimestamp] = stamps[i]
			}
			events = append(events, event{row: row, ts: stamps[i], key: key, seq: i + 1})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.ts.Equal(b.ts) {
			return a.ts.Before(b.ts)
		}
		if cmp := compareKeys(a.key, b.key); cmp != 0 {
			return cmp < 0
		}
		return a.seq < b.seq
	})

	t.Rows = make([]domain.Row, len(events))
	for i, e := range events {
		t.Rows[i] = e.row
	}
	return t, nil
}

// naturalKey draws the key once per entity. The identity key carries the entity ordinal
// so entities never collide.
func (c *ChangeFeed) naturalKey(entity int64) ([]any, error) {
	key := make([]any, len(c.naturalKeys))
	for i, col := range c.naturalKeys {
		if i == c.identity {
			switch d := col.Def.(type) {
			case domain.IntegerDef:
				key[i] = d.Min + entity - 1
			default:
				key[i] = generators.UUID4(c.rng)
			}
			continue
		}
		v, err := generators.Generate(c.rng, col, nil, c.keys, c.window)
		if err != nil {
			return nil, err
		}
		key[i] = v.V
	}
	return key, nil
}

// IdentityKey picks the natural key that carries entity identity: the first integer or free
// string column that is not sampled from a key range. An integer identity needs room for
// every entity.
func IdentityKey(s *domain.Schema, naturalKeys []domain.Column, keys domain.KeyRanges, entities int64) (int, error) {
	for i, col := range naturalKeys {
		if _, sampled := keys[col.Name]; sampled {
			continue
		}
		switch d := col.Def.(type) {
		case domain.IntegerDef:
			if span := d.Max - d.Min + 1; span < entities {
				return -1, &domain.SchemaError{
					Table: s.TableName,
					Field: "columns." + col.Name,
					Msg:   fmt.Sprintf("natural key '%s' holds %d values, fewer than %d entities", col.Name, span, entities),
				}
			}
			return i, nil
		case domain.CategoricalDef:
			if len(d.Choices) == 0 {
				return i, nil
			}
		}
	}
	return -1, &domain.SchemaError{
		Table: s.TableName,
		Field: "generator_config.natural_keys",
		Msg:   "no natural key can tell entities apart; add an integer or string key without choices that is not a foreign key",
	}
}

// TimestampStep is the finest step a change_timestamp layout renders and parses back
// without loss. An empty layout keeps time.Time values at whole seconds.
func TimestampStep(layout string) (time.Duration, bool) {
	if layout == "" {
		return time.Second, true
	}
	sample := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	back, err := time.Parse(layout, sample.Format(layout))
	if err != nil {
		return 0, false
	}
	for _, step := range []time.Duration{time.Second, time.Minute, time.Hour, 24 * time.Hour} {
		if back.Equal(sample.Truncate(step)) {
			return step, true
		}
	}
	return 0, false
}

// timestamps splits the slots into k equal runs and draws one step from each, which keeps
// the sequence strictly increasing at the rendered resolution.
func (c *ChangeFeed) timestamps(k int) []time.Time {
	per := c.slots / int64(k)
	out := make([]time.Time, k)
	for i := 0; i < k; i++ {
		n := int64(i)*per + c.rng.Int63n(per)
		out[i] = c.first.Add(time.Duration(n) * c.step)
	}
	return out
}

func isChangeColumn(name string) bool {
	return name == ColumnChangeType || name == ColumnChangeSequence || name == ColumnChangeTimestamp
}

func compareKeys(a, b []any) int {
	for i := range a {
		if cmp := compareValue(a[i], b[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareValue(a, b any) int {
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
