package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/timeutil"
)

type SQLiteTarget struct {
	path  string
	db    *sql.DB
	types map[string]map[string]domain.ColumnType
}

func NewSQLiteTarget(path string) *SQLiteTarget {
	return &SQLiteTarget{path: path, types: make(map[string]map[string]domain.ColumnType)}
}

func (t *SQLiteTarget) Connect() error {
	db, err := sql.Open("sqlite3", t.path)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	t.db = db
	return nil
}

func (t *SQLiteTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// DB exposes the connection for version probes and tests.
func (t *SQLiteTarget) DB() *sql.DB { return t.db }

func (t *SQLiteTarget) CreateTableIfNotExists(tbl *domain.Table) error {
	types := make(map[string]domain.ColumnType, len(tbl.Columns))
	for _, c := range tbl.Columns {
		types[c.Name] = c.Type
	}
	t.types[tbl.Name] = types

	query := `SELECT name FROM sqlite_master WHERE type='table' AND name=?`
	var name string
	err := t.db.QueryRow(query, tbl.Name).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}

	columnDefs := make([]string, len(tbl.Columns))
	for i, col := range tbl.Columns {
		columnDefs[i] = fmt.Sprintf("%s %s", col.Name, t.mapColumnType(col.Type))
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", tbl.Name, strings.Join(columnDefs, ", "))

	_, err = t.db.Exec(createSQL)
	return err
}

func (t *SQLiteTarget) mapColumnType(colType domain.ColumnType) string {
	switch colType {
	case domain.ColumnTypeInt, domain.ColumnTypeBool:
		return "INTEGER"
	case domain.ColumnTypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (t *SQLiteTarget) TruncateTable(tableName string) error {
	_, err := t.db.Exec(fmt.Sprintf("DELETE FROM %s", tableName))
	return err
}

func (t *SQLiteTarget) InsertBatch(tableName string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	types := t.types[tableName]
	for _, row := range rows {
		args := make([]interface{}, len(row))
		for i, val := range row {
			switch v := val.(type) {
			case time.Time:
				if types[columns[i]] == domain.ColumnTypeDate {
					args[i] = v.Format(timeutil.DateLayout)
				} else {
					args[i] = v.Format(time.RFC3339)
				}
			case bool:
				if v {
					args[i] = 1
				} else {
					args[i] = 0
				}
			default:
				args[i] = val
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}
