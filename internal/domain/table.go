package domain

type ColumnType string

const (
	ColumnTypeInt       ColumnType = "int"
	ColumnTypeFloat     ColumnType = "float"
	ColumnTypeString    ColumnType = "string"
	ColumnTypeBool      ColumnType = "bool"
	ColumnTypeTimestamp ColumnType = "timestamp"
	ColumnTypeDate      ColumnType = "date"
)

type ColumnMeta struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

type Row map[string]any

// Table is a generator's output. Callers own it once Generate returns.
type Table struct {
	Name    string       `json:"name"`
	Columns []ColumnMeta `json:"columns"`
	Rows    []Row        `json:"rows"`
	Stats   TableStats   `json:"stats"`
}

type TableStats struct {
	Anomalies map[string]int64 `json:"anomalies,omitempty"`
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Values returns the rows in column order, ready for a target batch.
func (t *Table) Values(from, to int) [][]any {
	out := make([][]any, 0, to-from)
	for _, row := range t.Rows[from:to] {
		vals := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			vals[i] = row[c.Name]
		}
		out = append(out, vals)
	}
	return out
}

func (t *Table) TotalAnomalies() int64 {
	var n int64
	for _, c := range t.Stats.Anomalies {
		n += c
	}
	return n
}
