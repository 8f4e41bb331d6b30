package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mmrzaf/streamforge/internal/domain"
)

type runConfigHashPayload struct {
	SchemasHash    string           `json:"schemas_hash"`
	TargetKind     string           `json:"target_kind"`
	TargetSchema   string           `json:"target_schema,omitempty"`
	TargetDSN      string           `json:"target_dsn"`
	Mode           string           `json:"mode"`
	ResolvedCounts map[string]int64 `json:"resolved_counts"`
	KeyRanges      domain.KeyRanges `json:"key_ranges,omitempty"`
	Seed           int64            `json:"seed"`
}

// HashRunConfig identifies everything that decides a run's output. encoding/json writes map
// keys sorted, so the counts and key ranges need no extra canonical form.
func HashRunConfig(list []*domain.Schema, target *domain.TargetConfig, mode string, resolvedCounts map[string]int64, keyRanges domain.KeyRanges, seed int64) (string, error) {
	sh, err := HashSchemas(list)
	if err != nil {
		return "", err
	}
	if resolvedCounts == nil {
		resolvedCounts = map[string]int64{}
	}

	p := runConfigHashPayload{
		SchemasHash:    sh,
		Mode:           mode,
		ResolvedCounts: resolvedCounts,
		KeyRanges:      keyRanges,
		Seed:           seed,
	}
	if target != nil {
		p.TargetKind = target.Kind
		p.TargetSchema = target.Schema
		p.TargetDSN = target.DSN
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
