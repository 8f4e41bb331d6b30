package domain

import (
	"encoding/json"
	"time"
)

type TargetConfig struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Kind    string            `json:"kind" yaml:"kind"`
	DSN     string            `json:"dsn" yaml:"dsn"`
	Schema  string            `json:"schema,omitempty" yaml:"schema,omitempty"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

const (
	TargetKindCSV      = "csv"
	TargetKindSQLite   = "sqlite"
	TargetKindPostgres = "postgres"
	TargetKindS3       = "s3"
)

type Run struct {
	ID          string          `json:"id"`
	Tables      []string        `json:"tables"`
	TargetID    string          `json:"target_id"`
	TargetName  string          `json:"target_name"`
	TargetKind  string          `json:"target_kind"`
	Seed        int64           `json:"seed"`
	ConfigHash  string          `json:"config_hash"`
	Mode        string          `json:"mode"`
	Status      RunStatus       `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type RunLog struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type RunStats struct {
	TablesGenerated int             `json:"tables_generated"`
	TotalRows       int64           `json:"total_rows"`
	TotalAnomalies  int64           `json:"total_anomalies"`
	DurationSeconds float64         `json:"duration_seconds"`
	KeyRanges       KeyRanges       `json:"key_ranges,omitempty"`
	TableStats      []TableRunStats `json:"table_stats"`
}

type TableRunStats struct {
	Table           string        `json:"table"`
	Generator       GeneratorKind `json:"generator"`
	RowsGenerated   int64         `json:"rows_generated"`
	Anomalies       int64         `json:"anomalies"`
	DurationSeconds float64       `json:"duration_seconds"`
}

type RunRequest struct {
	SchemaIDs    []string         `json:"schema_ids,omitempty"`
	Schemas      []*Schema        `json:"schemas,omitempty"`
	TargetID     string           `json:"target_id,omitempty"`
	Target       *TargetConfig    `json:"target,omitempty"`
	Seed         *int64           `json:"seed,omitempty"`
	RowOverrides map[string]int64 `json:"row_overrides,omitempty"`
	KeyRanges    KeyRanges        `json:"key_ranges,omitempty"`
	Mode         string           `json:"mode,omitempty"`
}

type RunPlan struct {
	ExecutionOrder []string         `json:"execution_order"`
	ResolvedCounts map[string]int64 `json:"resolved_counts"`
	Seed           int64            `json:"seed"`
	Mode           string           `json:"mode"`
	ConfigHash     string           `json:"config_hash"`
	Warnings       []string         `json:"warnings,omitempty"`
}

type TargetCheck struct {
	TargetID     string             `json:"target_id"`
	OK           bool               `json:"ok"`
	LatencyMS    int64              `json:"latency_ms"`
	ServerVer    string             `json:"server_version,omitempty"`
	Capabilities TargetCapabilities `json:"capabilities"`
	Error        string             `json:"error,omitempty"`
	CheckedAt    time.Time          `json:"checked_at"`
}

type TargetCapabilities struct {
	CanCreate   bool `json:"can_create"`
	CanInsert   bool `json:"can_insert"`
	CanTruncate bool `json:"can_truncate"`
}

const (
	TableModeCreate   = "create"
	TableModeTruncate = "truncate"
	TableModeAppend   = "append"
)
