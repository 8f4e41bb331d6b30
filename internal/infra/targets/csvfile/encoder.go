// Package csvfile writes generated tables as CSV, either one file per table in a
// directory or as a stream on any io.Writer.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/timeutil"
)

// Encoder writes rows of one table. Types, when known, control how times are rendered.
type Encoder struct {
	w     *csv.Writer
	types []domain.ColumnType
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: csv.NewWriter(w)}
}

func (e *Encoder) WriteHeader(columns []domain.ColumnMeta) error {
	names := make([]string, len(columns))
	e.types = make([]domain.ColumnType, len(columns))
	for i, c := range columns {
		names[i] = c.Name
		e.types[i] = c.Type
	}
	return e.w.Write(names)
}

func (e *Encoder) WriteRows(rows [][]interface{}) error {
	record := make([]string, 0)
	for _, row := range rows {
		record = record[:0]
		for i, v := range row {
			var typ domain.ColumnType
			if i < len(e.types) {
				typ = e.types[i]
			}
			record = append(record, FormatValue(v, typ))
		}
		if err := e.w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes header and rows, then flushes.
func (e *Encoder) WriteTable(t *domain.Table) error {
	if err := e.WriteHeader(t.Columns); err != nil {
		return err
	}
	if err := e.WriteRows(t.Values(0, len(t.Rows))); err != nil {
		return err
	}
	return e.Flush()
}

func (e *Encoder) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

// FormatValue renders one cell. Times in date columns use the calendar layout, other
// times RFC3339; nil is empty.
func FormatValue(v interface{}, typ domain.ColumnType) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if typ == domain.ColumnTypeDate {
			return val.Format(timeutil.DateLayout)
		}
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
