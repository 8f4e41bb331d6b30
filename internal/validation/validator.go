package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/registry"
	"github.com/mmrzaf/streamforge/internal/tables"
)

type Validator struct {
	genRegistry *registry.GeneratorRegistry
}

func NewValidator(genRegistry *registry.GeneratorRegistry) *Validator {
	return &Validator{genRegistry: genRegistry}
}

// identifier validation: simple SQL identifiers only, since table and column names end up in DDL.
var (
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedWords = map[string]struct{}{
		"add": {}, "all": {}, "alter": {}, "and": {}, "any": {}, "as": {},
		"asc": {}, "between": {}, "by": {}, "case": {}, "check": {},
		"column": {}, "constraint": {}, "create": {}, "cross": {}, "current_date": {},
		"current_time": {}, "current_timestamp": {}, "database": {}, "default": {}, "delete": {},
		"desc": {}, "distinct": {}, "do": {}, "drop": {}, "else": {},
		"end": {}, "except": {}, "exists": {}, "false": {}, "for": {},
		"foreign": {}, "from": {}, "full": {}, "grant": {}, "group": {},
		"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {},
		"intersect": {}, "into": {}, "is": {}, "join": {}, "key": {},
		"left": {}, "like": {}, "limit": {}, "natural": {}, "not": {},
		"null": {}, "offset": {}, "on": {}, "or": {}, "order": {},
		"outer": {}, "primary": {}, "references": {}, "returning": {}, "revoke": {},
		"right": {}, "schema": {}, "select": {}, "set": {}, "table": {},
		"then": {}, "to": {}, "true": {}, "truncate": {}, "union": {},
		"unique": {}, "update": {}, "user": {}, "using": {}, "values": {},
		"view": {}, "when": {}, "where": {}, "with": {},
	}
)

func IsValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if !identRe.MatchString(s) {
		return false
	}
	if _, ok := reservedWords[strings.ToLower(s)]; ok {
		return false
	}
	return true
}

func (v *Validator) ValidateSchema(s *domain.Schema) error {
	if s.TableName == "" {
		return errors.New("table name is required")
	}
	if !IsValidIdentifier(s.TableName) {
		return fmt.Errorf("invalid table identifier: %s", s.TableName)
	}

	if _, err := v.genRegistry.Get(s.Generator); err != nil {
		return err
	}

	switch s.Generator {
	case domain.GeneratorWeather:
	case domain.GeneratorChangeFeed:
		if s.Config.EntityCount <= 0 && s.RowCount <= 0 {
			return fmt.Errorf("num_rows or entity_count must be > 0")
		}
	default:
		if s.RowCount <= 0 {
			return fmt.Errorf("num_rows must be > 0, got %d", s.RowCount)
		}
	}

	if len(s.Columns) == 0 && s.Generator != domain.GeneratorWeather {
		return errors.New("schema must have at least one column")
	}

	columnNames := make(map[string]bool)
	for _, col := range s.Columns {
		if err := validateColumn(s, col, columnNames); err != nil {
			return fmt.Errorf("column '%s': %w", col.Name, err)
		}
	}

	return nil
}

func validateColumn(s *domain.Schema, col domain.Column, columnNames map[string]bool) error {
	if col.Name == "" {
		return errors.New("column name is required")
	}
	if !IsValidIdentifier(col.Name) {
		return fmt.Errorf("invalid column identifier: %s", col.Name)
	}

	if columnNames[col.Name] {
		return fmt.Errorf("duplicate column name: %s", col.Name)
	}
	columnNames[col.Name] = true

	switch d := col.Def.(type) {
	case nil:
		return errors.New("column definition is required")
	case domain.IntegerDef:
		if d.Min > d.Max {
			return fmt.Errorf("min (%d) exceeds max (%d)", d.Min, d.Max)
		}
	case domain.FloatDef:
		if d.Min > d.Max {
			return fmt.Errorf("min (%v) exceeds max (%v)", d.Min, d.Max)
		}
	case domain.ForeignKeyDef:
		if s.Generator == domain.GeneratorDimension {
			return errors.New("dimension tables cannot hold foreign keys")
		}
		if d.References != "" && !IsValidIdentifier(d.References) {
			return fmt.Errorf("invalid references identifier: %s", d.References)
		}
	}

	return nil
}

// ValidateSchemas checks a run's schema set as a whole: table names are unique and every
// foreign key resolves to a dimension in the set or to an externally supplied key range.
func (v *Validator) ValidateSchemas(list []*domain.Schema, external domain.KeyRanges) error {
	if len(list) == 0 {
		return errors.New("at least one schema is required")
	}

	byTable := make(map[string]*domain.Schema, len(list))
	for _, s := range list {
		if err := v.ValidateSchema(s); err != nil {
			return fmt.Errorf("table '%s': %w", s.TableName, err)
		}
		if _, dup := byTable[s.TableName]; dup {
			return fmt.Errorf("duplicate table name: %s", s.TableName)
		}
		byTable[s.TableName] = s
	}

	published := make(map[string]bool)
	for _, s := range list {
		if s.Generator == domain.GeneratorDimension {
			published[DimensionKeyColumn(s)] = true
		}
	}

	for _, s := range list {
		for _, col := range s.ForeignKeys() {
			ref := col.Def.(domain.ForeignKeyDef).References
			if target, ok := byTable[ref]; ok {
				if target.Generator != domain.GeneratorDimension {
					return fmt.Errorf("table '%s', column '%s': referenced table '%s' is a %s, not a dimension", s.TableName, col.Name, ref, target.Generator)
				}
				continue
			}
			if _, ok := external[col.Name]; ok || published[col.Name] {
				continue
			}
			if ref != "" {
				return fmt.Errorf("table '%s', column '%s': referenced table '%s' not found and no key range supplied", s.TableName, col.Name, ref)
			}
			return fmt.Errorf("table '%s': %w", s.TableName, &domain.ReferentialError{Table: s.TableName, Column: col.Name})
		}
	}

	return nil
}

// DimensionKeyColumn is the key a dimension publishes its range under.
func DimensionKeyColumn(s *domain.Schema) string {
	if s.Config.KeyColumn != "" {
		return s.Config.KeyColumn
	}
	return tables.DefaultKeyColumn
}

func (v *Validator) ValidateTarget(t *domain.TargetConfig) error {
	if t.Name == "" {
		return errors.New("target name is required")
	}
	if t.Kind == "" {
		return errors.New("target kind is required")
	}
	if t.DSN == "" {
		return errors.New("target dsn is required")
	}

	switch t.Kind {
	case domain.TargetKindPostgres:
		if t.Schema != "" && !IsValidIdentifier(t.Schema) {
			return fmt.Errorf("invalid target schema identifier: %s", t.Schema)
		}
	case domain.TargetKindCSV, domain.TargetKindSQLite, domain.TargetKindS3:
		if t.Schema != "" {
			return fmt.Errorf("%s targets must not set schema", t.Kind)
		}
	default:
		return fmt.Errorf("unsupported target kind: %s", t.Kind)
	}

	return nil
}

func (v *Validator) ValidateRunRequest(req *domain.RunRequest) error {
	if len(req.SchemaIDs) > 0 && len(req.Schemas) > 0 {
		return errors.New("only one of schema_ids or schemas must be provided")
	}

	hasTargetID := req.TargetID != ""
	hasTarget := req.Target != nil

	if !hasTargetID && !hasTarget {
		return errors.New("either target_id or target must be provided")
	}

	if hasTargetID && hasTarget {
		return errors.New("only one of target_id or target must be provided")
	}

	if req.Mode == "" {
		return errors.New("mode is required")
	}
	if !IsValidMode(req.Mode) {
		return fmt.Errorf("invalid mode: %s", req.Mode)
	}

	for k, n := range req.RowOverrides {
		if !IsValidIdentifier(k) {
			return fmt.Errorf("invalid table name in row_overrides: %s", k)
		}
		if n <= 0 {
			return fmt.Errorf("row_overrides[%s] must be > 0, got %d", k, n)
		}
	}

	for k, n := range req.KeyRanges {
		if !IsValidIdentifier(k) {
			return fmt.Errorf("invalid column name in key_ranges: %s", k)
		}
		if n < 1 {
			return fmt.Errorf("key_ranges[%s] must be >= 1, got %d", k, n)
		}
	}

	if len(req.Schemas) > 0 {
		if err := v.ValidateSchemas(req.Schemas, req.KeyRanges); err != nil {
			return fmt.Errorf("schema validation failed: %w", err)
		}
	}

	if req.Target != nil {
		if err := v.ValidateTarget(req.Target); err != nil {
			return fmt.Errorf("target validation failed: %w", err)
		}
	}

	return nil
}

// TopologicalSort orders tables so referenced dimensions run before their dependents.
// Ready tables are taken dimensions first, then by name.
func TopologicalSort(list []*domain.Schema) ([]string, error) {
	graph := make(map[string][]string) // dependency -> dependents
	inDegree := make(map[string]int)
	kinds := make(map[string]domain.GeneratorKind)

	for _, s := range list {
		kinds[s.TableName] = s.Generator
		if _, ok := inDegree[s.TableName]; !ok {
			inDegree[s.TableName] = 0
		}
	}
	for _, s := range list {
		for _, col := range s.ForeignKeys() {
			ref := col.Def.(domain.ForeignKeyDef).References
			if _, inSet := kinds[ref]; !inSet || ref == s.TableName {
				continue
			}
			graph[ref] = append(graph[ref], s.TableName)
			inDegree[s.TableName]++
		}
	}

	ready := func(q []string) {
		sort.Slice(q, func(i, j int) bool {
			di, dj := kinds[q[i]] == domain.GeneratorDimension, kinds[q[j]] == domain.GeneratorDimension
			if di != dj {
				return di
			}
			return q[i] < q[j]
		})
	}

	queue := make([]string, 0)
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	ready(queue)

	result := make([]string, 0, len(list))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range graph[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		ready(queue)
	}

	if len(result) != len(inDegree) {
		return nil, errors.New("cycle detected in table dependencies")
	}

	return result, nil
}

func IsValidMode(mode string) bool {
	switch mode {
	case domain.TableModeCreate, domain.TableModeTruncate, domain.TableModeAppend:
		return true
	default:
		return false
	}
}
