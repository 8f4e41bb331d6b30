package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// HashSchema hashes the document form of one schema. Column kinds are part of the encoding,
// so an integer and a float column with the same bounds hash differently.
func HashSchema(s *domain.Schema) (string, error) {
	data, err := json.Marshal(canonicalizeSchema(s))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashSchemas hashes a schema set independent of the order it was listed in.
func HashSchemas(list []*domain.Schema) (string, error) {
	sorted := make([]*domain.Schema, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TableName < sorted[j].TableName })

	canon := make([]map[string]interface{}, len(sorted))
	for i, s := range sorted {
		canon[i] = canonicalizeSchema(s)
	}
	data, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalizeSchema drops the file id: renaming a file does not change what it generates.
func canonicalizeSchema(s *domain.Schema) map[string]interface{} {
	columns := make([]map[string]any, len(s.Columns))
	for i, c := range s.Columns {
		columns[i] = c.Describe()
	}

	result := map[string]interface{}{
		"table":            s.TableName,
		"generator":        s.Generator,
		"num_rows":         s.RowCount,
		"columns":          columns,
		"generator_config": s.Config,
	}
	if len(s.Rules) > 0 {
		result["data_quality_rules"] = s.Rules
	}
	return result
}
