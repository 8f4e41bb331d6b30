package csvfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// CSVTarget keeps one <table>.csv per table under dir.
type CSVTarget struct {
	dir     string
	columns map[string][]domain.ColumnMeta
}

func NewCSVTarget(dir string) *CSVTarget {
	return &CSVTarget{dir: dir, columns: make(map[string][]domain.ColumnMeta)}
}

func (t *CSVTarget) Connect() error {
	return os.MkdirAll(t.dir, 0o755)
}

func (t *CSVTarget) Close() error { return nil }

func (t *CSVTarget) path(table string) string {
	return filepath.Join(t.dir, table+".csv")
}

func (t *CSVTarget) CreateTableIfNotExists(tbl *domain.Table) error {
	t.columns[tbl.Name] = tbl.Columns
	if _, err := os.Stat(t.path(tbl.Name)); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return t.writeHeader(tbl.Name, os.O_CREATE|os.O_WRONLY|os.O_EXCL)
}

func (t *CSVTarget) TruncateTable(tableName string) error {
	if _, ok := t.columns[tableName]; !ok {
		return os.Truncate(t.path(tableName), 0)
	}
	return t.writeHeader(tableName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

func (t *CSVTarget) writeHeader(table string, flag int) error {
	f, err := os.OpenFile(t.path(table), flag, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := NewEncoder(f)
	if err := enc.WriteHeader(t.columns[table]); err != nil {
		return err
	}
	return enc.Flush()
}

// InsertBatch appends rows. A file that does not exist yet gets a header first.
func (t *CSVTarget) InsertBatch(tableName string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	meta, ok := t.columns[tableName]
	if !ok || len(meta) != len(columns) {
		meta = make([]domain.ColumnMeta, len(columns))
		for i, c := range columns {
			meta[i] = domain.ColumnMeta{Name: c}
		}
	}

	f, err := os.OpenFile(t.path(tableName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	enc := NewEncoder(f)
	if info.Size() == 0 {
		if err := enc.WriteHeader(meta); err != nil {
			return err
		}
	} else {
		for i := range meta {
			enc.types = append(enc.types, meta[i].Type)
		}
	}
	if err := enc.WriteRows(rows); err != nil {
		return fmt.Errorf("write %s: %w", t.path(tableName), err)
	}
	return enc.Flush()
}
