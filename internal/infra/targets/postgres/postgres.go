package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/mmrzaf/streamforge/internal/domain"
)

// maxParams is the bind-parameter limit of the postgres wire protocol.
const maxParams = 65535

type PostgresTarget struct {
	dsn    string
	schema string
	db     *sql.DB
}

func NewPostgresTarget(dsn, schema string) *PostgresTarget {
	if schema == "" {
		schema = "public"
	}
	return &PostgresTarget{
		dsn:    dsn,
		schema: schema,
	}
}

func (t *PostgresTarget) Connect() error {
	db, err := sql.Open("postgres", t.dsn)
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

func (t *PostgresTarget) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

func (t *PostgresTarget) CreateTableIfNotExists(tbl *domain.Table) error {
	var exists bool
	query := `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2
	)`
	err := t.db.QueryRow(query, t.schema, tbl.Name).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = t.db.Exec(CreateTableSQL(t.schema, tbl))
	return err
}

// CreateTableSQL renders the DDL for a generated table.
func CreateTableSQL(schema string, tbl *domain.Table) string {
	columnDefs := make([]string, len(tbl.Columns))
	for i, col := range tbl.Columns {
		columnDefs[i] = fmt.Sprintf("%s %s", col.Name, mapColumnType(col.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s.%s (%s)", schema, tbl.Name, strings.Join(columnDefs, ", "))
}

func mapColumnType(colType domain.ColumnType) string {
	switch colType {
	case domain.ColumnTypeInt:
		return "BIGINT"
	case domain.ColumnTypeFloat:
		return "DOUBLE PRECISION"
	case domain.ColumnTypeBool:
		return "BOOLEAN"
	case domain.ColumnTypeTimestamp:
		return "TIMESTAMPTZ"
	case domain.ColumnTypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func (t *PostgresTarget) TruncateTable(tableName string) error {
	_, err := t.db.Exec(fmt.Sprintf("TRUNCATE TABLE %s.%s", t.schema, tableName))
	return err
}

// InsertBatch writes rows as multi-row INSERTs, split so no statement exceeds the
// parameter limit.
func (t *PostgresTarget) InsertBatch(tableName string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}

	perStmt := maxParams / len(columns)
	for start := 0; start < len(rows); start += perStmt {
		end := start + perStmt
		if end > len(rows) {
			end = len(rows)
		}
		query, args := InsertSQL(t.schema, tableName, columns, rows[start:end])
		if _, err := t.db.Exec(query, args...); err != nil {
			return err
		}
	}
	return nil
}

func InsertSQL(schema, tableName string, columns []string, rows [][]interface{}) (string, []interface{}) {
	placeholders := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(columns))

	for i, row := range rows {
		rowPlaceholders := make([]string, len(columns))
		for j := range columns {
			rowPlaceholders[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
			args = append(args, row[j])
		}
		placeholders[i] = "(" + strings.Join(rowPlaceholders, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
		schema, tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return query, args
}
