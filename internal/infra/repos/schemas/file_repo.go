package schemas

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/schema"
)

type Repository interface {
	List() ([]*domain.Schema, error)
	Get(id string) (*domain.Schema, error)
	GetByPath(path string) (*domain.Schema, error)
}

// FileRepository serves schema documents from one directory.
type FileRepository struct {
	baseDir string
}

func NewFileRepository(baseDir string) *FileRepository {
	return &FileRepository{baseDir: baseDir}
}

func (r *FileRepository) BaseDir() string { return r.baseDir }

func (r *FileRepository) List() ([]*domain.Schema, error) {
	if _, err := os.Stat(r.baseDir); os.IsNotExist(err) {
		return []*domain.Schema{}, nil
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, err
	}

	schemas := make([]*domain.Schema, 0)
	for _, entry := range entries {
		if entry.IsDir() || !isSchemaFile(entry.Name()) {
			continue
		}
		s, err := r.load(filepath.Join(r.baseDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		schemas = append(schemas, s)
	}

	sort.Slice(schemas, func(i, j int) bool { return schemas[i].ID < schemas[j].ID })
	return schemas, nil
}

// Get matches a schema by id or table name.
func (r *FileRepository) Get(id string) (*domain.Schema, error) {
	schemas, err := r.List()
	if err != nil {
		return nil, err
	}

	for _, s := range schemas {
		if s.ID == id || s.TableName == id {
			return s, nil
		}
	}

	return nil, fmt.Errorf("schema not found: %s", id)
}

// GetByPath loads a document by path relative to the base directory. Paths that resolve
// outside it are rejected.
func (r *FileRepository) GetByPath(path string) (*domain.Schema, error) {
	base, err := filepath.Abs(r.baseDir)
	if err != nil {
		return nil, err
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, path)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("schema path escapes %s: %s", r.baseDir, path)
	}
	return r.load(full)
}

func (r *FileRepository) load(path string) (*domain.Schema, error) {
	s, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if s.ID == "" {
		name := filepath.Base(path)
		s.ID = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return s, nil
}

func isSchemaFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
