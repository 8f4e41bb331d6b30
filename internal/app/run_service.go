package app

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/exec"
	"github.com/mmrzaf/streamforge/internal/hashing"
	"github.com/mmrzaf/streamforge/internal/infra/repos/runs"
	"github.com/mmrzaf/streamforge/internal/infra/repos/schemas"
	"github.com/mmrzaf/streamforge/internal/infra/repos/targets"
	"github.com/mmrzaf/streamforge/internal/logging"
	"github.com/mmrzaf/streamforge/internal/metrics"
	"github.com/mmrzaf/streamforge/internal/registry"
	"github.com/mmrzaf/streamforge/internal/validation"
)

type RunService struct {
	schemaRepo schemas.Repository
	targetRepo targets.Repository
	runRepo    runs.Repository
	validator  *validation.Validator
	executor   *exec.Executor
	logger     *logging.Logger
	batchSize  int
	now        func() time.Time
}

func NewRunService(
	schemaRepo schemas.Repository,
	targetRepo targets.Repository,
	runRepo runs.Repository,
	genRegistry *registry.GeneratorRegistry,
	m *metrics.Metrics,
	logger *logging.Logger,
	batchSize int,
) *RunService {
	if batchSize <= 0 {
		batchSize = exec.DefaultBatchSize
	}
	return &RunService{
		schemaRepo: schemaRepo,
		targetRepo: targetRepo,
		runRepo:    runRepo,
		validator:  validation.NewValidator(genRegistry),
		executor:   exec.NewExecutor(genRegistry, m),
		logger:     logger.WithComponent("run_service"),
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// prepared is a validated request with everything resolved.
type prepared struct {
	schemas []*domain.Schema
	target  *domain.TargetConfig
	plan    *domain.RunPlan
}

// PlanRun resolves a request without generating or writing anything.
func (s *RunService) PlanRun(req *domain.RunRequest) (*domain.RunPlan, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	return p.plan, nil
}

func (s *RunService) prepare(req *domain.RunRequest) (*prepared, error) {
	if err := s.validator.ValidateRunRequest(req); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}

	list, warnings, err := s.resolveSchemas(req)
	if err != nil {
		return nil, err
	}

	targetCfg := req.Target
	if req.TargetID != "" {
		targetCfg, err = s.targetRepo.Get(req.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load target: %w", err)
		}
		if err := s.validator.ValidateTarget(targetCfg); err != nil {
			return nil, fmt.Errorf("target validation failed: %w", err)
		}
	}

	seed := generateSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	order, counts, err := s.executor.Estimate(list, exec.Options{Seed: seed, KeyRanges: req.KeyRanges, Now: s.now()})
	if err != nil {
		return nil, fmt.Errorf("failed to plan run: %w", err)
	}

	configHash, err := hashing.HashRunConfig(list, targetCfg, req.Mode, counts, req.KeyRanges, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to hash run config: %w", err)
	}

	return &prepared{
		schemas: list,
		target:  targetCfg,
		plan: &domain.RunPlan{
			ExecutionOrder: order,
			ResolvedCounts: counts,
			Seed:           seed,
			Mode:           req.Mode,
			ConfigHash:     configHash,
			Warnings:       warnings,
		},
	}, nil
}

// resolveSchemas loads the requested schemas (all of them when none are named) and applies
// row overrides to copies.
func (s *RunService) resolveSchemas(req *domain.RunRequest) ([]*domain.Schema, []string, error) {
	var list []*domain.Schema
	switch {
	case len(req.Schemas) > 0:
		list = req.Schemas
	case len(req.SchemaIDs) > 0:
		for _, id := range req.SchemaIDs {
			sc, err := s.schemaRepo.Get(id)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load schema: %w", err)
			}
			list = append(list, sc)
		}
	default:
		all, err := s.schemaRepo.List()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list schemas: %w", err)
		}
		list = all
	}
	if len(list) == 0 {
		return nil, nil, fmt.Errorf("no schemas to run")
	}

	var warnings []string
	byTable := make(map[string]int, len(list))
	out := make([]*domain.Schema, len(list))
	for i, sc := range list {
		cp := *sc
		out[i] = &cp
		byTable[sc.TableName] = i
	}

	names := make([]string, 0, len(req.RowOverrides))
	for name := range req.RowOverrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i, ok := byTable[name]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("row_overrides: table '%s' is not part of this run", name))
			continue
		}
		if out[i].Generator == domain.GeneratorWeather {
			warnings = append(warnings, fmt.Sprintf("row_overrides: table '%s' is sized by sites and days, override ignored", name))
			continue
		}
		out[i].RowCount = req.RowOverrides[name]
	}

	if err := s.validator.ValidateSchemas(out, req.KeyRanges); err != nil {
		return nil, nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return out, warnings, nil
}

// StartRun executes a run synchronously and records it. A run that fails after being
// recorded is returned along with the error.
func (s *RunService) StartRun(req *domain.RunRequest) (*domain.Run, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		Tables:     p.plan.ExecutionOrder,
		TargetID:   p.target.ID,
		TargetName: p.target.Name,
		TargetKind: p.target.Kind,
		Seed:       p.plan.Seed,
		ConfigHash: p.plan.ConfigHash,
		Mode:       p.plan.Mode,
		Status:     domain.RunStatusRunning,
		StartedAt:  s.now().UTC(),
	}
	if err := s.runRepo.Create(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.logger.Infow("run.started", map[string]any{
		"run_id": run.ID, "target": p.target.Name, "seed": run.Seed, "tables": len(run.Tables), "mode": run.Mode,
	})
	s.appendLog(run.ID, "info", fmt.Sprintf("run started: %d tables, seed %d, mode %s", len(run.Tables), run.Seed, run.Mode))
	for _, w := range p.plan.Warnings {
		s.appendLog(run.ID, "warn", w)
	}

	target, err := BuildTarget(resolveTargetForRun(p.target, ""))
	if err != nil {
		return s.fail(run, err)
	}

	stats, err := s.executor.Execute(p.schemas, target, exec.Options{
		Seed:      run.Seed,
		Mode:      run.Mode,
		BatchSize: s.batchSize,
		KeyRanges: req.KeyRanges,
		Now:       run.StartedAt,
	})
	if stats != nil {
		for _, ts := range stats.TableStats {
			s.appendLog(run.ID, "info", fmt.Sprintf("table %s: %d rows, %d anomalies", ts.Table, ts.RowsGenerated, ts.Anomalies))
		}
	}
	if err != nil {
		return s.fail(run, err)
	}

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return s.fail(run, err)
	}
	completed := s.now().UTC()
	run.Stats = statsJSON
	run.Status = domain.RunStatusSuccess
	run.CompletedAt = &completed
	if err := s.runRepo.Update(run); err != nil {
		return run, fmt.Errorf("failed to update run: %w", err)
	}

	s.appendLog(run.ID, "info", "run completed")
	s.logger.Infow("run.completed", map[string]any{
		"run_id": run.ID, "tables": stats.TablesGenerated, "rows": stats.TotalRows,
		"anomalies": stats.TotalAnomalies, "duration_s": stats.DurationSeconds,
	})
	return run, nil
}

func (s *RunService) fail(run *domain.Run, cause error) (*domain.Run, error) {
	completed := s.now().UTC()
	run.Status = domain.RunStatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &completed
	if err := s.runRepo.Update(run); err != nil {
		s.logger.Errorw("run.update_failed", map[string]any{"run_id": run.ID, "error": err})
	}
	s.appendLog(run.ID, "error", cause.Error())
	s.logger.Errorw("run.failed", map[string]any{"run_id": run.ID, "error": cause})
	return run, fmt.Errorf("run %s failed: %w", run.ID, cause)
}

func (s *RunService) appendLog(runID, level, msg string) {
	if err := s.runRepo.AppendRunLog(runID, level, msg); err != nil {
		s.logger.Warnw("run.log_failed", map[string]any{"run_id": runID, "error": err})
	}
}

// Preview generates the requested schemas without a target, handing each table to sink.
func (s *RunService) Preview(req *domain.RunRequest, sink exec.Sink) (*domain.RunStats, error) {
	list, _, err := s.resolveSchemas(req)
	if err != nil {
		return nil, err
	}
	seed := generateSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	return s.executor.Generate(list, exec.Options{Seed: seed, KeyRanges: req.KeyRanges, Now: s.now()}, sink)
}

func (s *RunService) GetRun(id string) (*domain.Run, error) {
	return s.runRepo.Get(id)
}

func (s *RunService) ListRuns(limit int, status string) ([]*domain.Run, error) {
	return s.runRepo.List(limit, status)
}

func (s *RunService) RunLogs(id string, limit int) ([]*domain.RunLog, error) {
	return s.runRepo.ListRunLogs(id, limit)
}

// CheckTarget looks up a stored target and probes it.
func (s *RunService) CheckTarget(id string) (*domain.TargetCheck, error) {
	t, err := s.targetRepo.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w", err)
	}
	return CheckTarget(t)
}

func generateSeed() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}
