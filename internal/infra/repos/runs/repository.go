package runs

import (
	"strings"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// Repository stores run history and per-run log lines.
type Repository interface {
	Init() error
	Close() error
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(limit int, status string) ([]*domain.Run, error)
	AppendRunLog(runID, level, message string) error
	ListRunLogs(runID string, limit int) ([]*domain.RunLog, error)
}

// Open picks the backend from dsn: postgres:// URLs go to Postgres, anything else is a
// SQLite file path.
func Open(dsn string) Repository {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresRepository(dsn)
	}
	return NewSQLiteRepository(dsn)
}
