package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmrzaf/streamforge/internal/app"
	"github.com/mmrzaf/streamforge/internal/config"
	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/infra/repos/runs"
	"github.com/mmrzaf/streamforge/internal/infra/repos/schemas"
	"github.com/mmrzaf/streamforge/internal/infra/repos/targets"
	"github.com/mmrzaf/streamforge/internal/logging"
	"github.com/mmrzaf/streamforge/internal/metrics"
	"github.com/mmrzaf/streamforge/internal/registry"
	"github.com/mmrzaf/streamforge/internal/validation"
)

var (
	schemasDir  string
	targetsDir  string
	runsDB      string
	logLevel    string
	metricsFile string
	batchSize   int
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "streamforge",
		Short:         "Schema-driven synthetic table generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&schemasDir, "schemas-dir", cfg.SchemasDir, "Schemas directory")
	rootCmd.PersistentFlags().StringVar(&targetsDir, "targets-dir", cfg.TargetsDir, "Targets directory")
	rootCmd.PersistentFlags().StringVar(&runsDB, "runs-db", cfg.RunsDB, "Run history database (sqlite path or postgres:// URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this file after generating")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", cfg.BatchSize, "Rows per insert batch")

	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(runCmd(cfg.DefaultMode))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func looksLikePath(arg string) bool {
	return strings.Contains(arg, "/") || strings.HasSuffix(arg, ".yaml") || strings.HasSuffix(arg, ".yml") || strings.HasSuffix(arg, ".json")
}

func loadSchema(repo *schemas.FileRepository, arg string) (*domain.Schema, error) {
	if looksLikePath(arg) {
		return repo.GetByPath(arg)
	}
	return repo.Get(arg)
}

// parseAssignments reads name=N pairs as given to --rows and --key-range.
func parseAssignments(flag string, values []string) (map[string]int64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]int64, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid %s value %q, want name=N", flag, v)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s count %q: %w", flag, parts[1], err)
		}
		out[strings.TrimSpace(parts[0])] = n
	}
	return out, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

type service struct {
	*app.RunService
	metrics *metrics.Metrics
	runRepo runs.Repository
	logger  *logging.Logger
}

func newService() (*service, error) {
	logger := logging.NewLogger(logLevel)
	runRepo := runs.Open(runsDB)
	if err := runRepo.Init(); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	m := metrics.New()
	svc := app.NewRunService(
		schemas.NewFileRepository(schemasDir),
		targets.NewFileRepository(targetsDir),
		runRepo,
		registry.DefaultGeneratorRegistry(),
		m,
		logger,
		batchSize,
	)
	return &service{RunService: svc, metrics: m, runRepo: runRepo, logger: logger}, nil
}

func (s *service) close() {
	if metricsFile != "" {
		if err := s.metrics.WriteFile(metricsFile); err != nil {
			s.logger.Errorw("metrics.write_failed", map[string]any{"path": metricsFile, "error": err})
		}
	}
	_ = s.runRepo.Close()
	_ = s.logger.Sync()
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect table schemas",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := schemas.NewFileRepository(schemasDir).List()
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(list)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTABLE\tGENERATOR\tROWS\tCOLUMNS")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.TableName, s.Generator, s.RowCount, len(s.Columns))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <id|path>",
		Short: "Show a schema as loaded, defaults applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(schemas.NewFileRepository(schemasDir), args[0])
			if err != nil {
				return err
			}
			return printYAML(s)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [id|path...]",
		Short: "Validate schemas; with no arguments the whole directory is checked as one set",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := schemas.NewFileRepository(schemasDir)
			var list []*domain.Schema
			if len(args) == 0 {
				all, err := repo.List()
				if err != nil {
					return err
				}
				list = all
			}
			for _, arg := range args {
				s, err := loadSchema(repo, arg)
				if err != nil {
					return err
				}
				list = append(list, s)
			}

			validator := validation.NewValidator(registry.DefaultGeneratorRegistry())
			if err := validator.ValidateSchemas(list, nil); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Printf("%d schema(s) valid\n", len(list))
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, validateCmd)
	return cmd
}

func targetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage targets",
	}

	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := targets.NewFileRepository(targetsDir).List()
			if err != nil {
				return err
			}
			list = targets.RedactTargets(list)
			if format == "json" {
				return printJSON(list)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tDSN")
			for _, t := range list {
				dsn := t.DSN
				if len(dsn) > 50 {
					dsn = dsn[:47] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Kind, dsn)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show target details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := targets.NewFileRepository(targetsDir).Get(args[0])
			if err != nil {
				return err
			}
			return printYAML(targets.RedactTarget(t))
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <id|path>",
		Short: "Validate a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := targets.NewFileRepository(targetsDir)
			var t *domain.TargetConfig
			var err error
			if looksLikePath(args[0]) {
				t, err = repo.GetByPath(args[0])
			} else {
				t, err = repo.Get(args[0])
			}
			if err != nil {
				return err
			}

			if err := validation.NewValidator(nil).ValidateTarget(t); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Printf("Target '%s' is valid\n", t.Name)
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Connect to a target and probe create, insert and truncate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := targets.NewFileRepository(targetsDir).Get(args[0])
			if err != nil {
				return err
			}
			check, err := app.CheckTarget(t)
			if perr := printJSON(check); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.AddCommand(listCmd, showCmd, validateCmd, checkCmd)
	return cmd
}

type runFlags struct {
	schemaIDs   []string
	schemaPaths []string
	targetID    string
	targetDSN   string
	targetKind  string
	seed        int64
	rows        []string
	keyRanges   []string
	mode        string
}

func (f *runFlags) register(cmd *cobra.Command, defaultMode string) {
	cmd.Flags().StringSliceVar(&f.schemaIDs, "schema", nil, "Schema id or table (repeatable; default all)")
	cmd.Flags().StringSliceVar(&f.schemaPaths, "schema-path", nil, "Schema file path (repeatable)")
	cmd.Flags().StringVar(&f.targetID, "target-id", "", "Target ID")
	cmd.Flags().StringVar(&f.targetDSN, "target", "", "Target DSN")
	cmd.Flags().StringVar(&f.targetKind, "target-kind", "", "Target kind (required with --target)")
	cmd.Flags().Int64VarP(&f.seed, "seed", "s", 0, "Seed for RNG")
	cmd.Flags().StringSliceVar(&f.rows, "rows", nil, "Row overrides (table=rows)")
	cmd.Flags().StringSliceVar(&f.keyRanges, "key-range", nil, "Key ranges from earlier runs (column=max)")
	cmd.Flags().StringVar(&f.mode, "mode", defaultMode, "Table mode (create|truncate|append)")
}

func (f *runFlags) request(cmd *cobra.Command) (*domain.RunRequest, error) {
	req := &domain.RunRequest{SchemaIDs: f.schemaIDs, Mode: f.mode}

	if len(f.schemaPaths) > 0 {
		repo := schemas.NewFileRepository(schemasDir)
		for _, p := range f.schemaPaths {
			s, err := repo.GetByPath(p)
			if err != nil {
				return nil, err
			}
			req.Schemas = append(req.Schemas, s)
		}
	}

	if f.targetDSN != "" {
		if f.targetKind == "" {
			return nil, fmt.Errorf("--target-kind required when using --target DSN")
		}
		req.Target = &domain.TargetConfig{Name: "inline-target", Kind: targets.NormalizeKind(f.targetKind), DSN: f.targetDSN}
	} else {
		req.TargetID = f.targetID
	}

	if cmd.Flags().Changed("seed") {
		seed := f.seed
		req.Seed = &seed
	}

	var err error
	if req.RowOverrides, err = parseAssignments("--rows", f.rows); err != nil {
		return nil, err
	}
	var kr map[string]int64
	if kr, err = parseAssignments("--key-range", f.keyRanges); err != nil {
		return nil, err
	}
	if kr != nil {
		req.KeyRanges = domain.KeyRanges(kr)
	}
	return req, nil
}

func runCmd(defaultMode string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan, start and inspect runs",
	}

	var planFlags runFlags
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve order, row counts, seed and config hash without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := planFlags.request(cmd)
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.close()

			plan, err := svc.PlanRun(req)
			if err != nil {
				return err
			}
			return printJSON(plan)
		},
	}
	planFlags.register(planCmd, defaultMode)

	var startFlags runFlags
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Generate and write every table to a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := startFlags.request(cmd)
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.close()

			run, err := svc.StartRun(req)
			if run != nil {
				fmt.Printf("Run %s: %s\n", run.ID, run.Status)
			}
			if err != nil {
				return err
			}

			var stats domain.RunStats
			if err := json.Unmarshal(run.Stats, &stats); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tGENERATOR\tROWS\tANOMALIES")
			for _, ts := range stats.TableStats {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", ts.Table, ts.Generator, ts.RowsGenerated, ts.Anomalies)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("Total rows: %d\n", stats.TotalRows)
			fmt.Printf("Duration: %.2fs\n", stats.DurationSeconds)
			return nil
		},
	}
	startFlags.register(startCmd, defaultMode)

	var limit int
	var status string
	var format string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.close()

			list, err := svc.ListRuns(limit, status)
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(list)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTABLES\tTARGET\tSTATUS\tSTARTED")
			for _, r := range list {
				id := r.ID
				if len(id) > 8 {
					id = id[:8]
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", id, len(r.Tables), r.TargetName, r.Status, r.StartedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Limit results")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")

	var withLogs bool
	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.close()

			run, err := svc.GetRun(args[0])
			if err != nil {
				return err
			}
			if !withLogs {
				return printJSON(run)
			}
			logs, err := svc.RunLogs(run.ID, 0)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"run": run, "logs": logs})
		},
	}
	showCmd.Flags().BoolVar(&withLogs, "logs", false, "Include run log lines")

	cmd.AddCommand(planCmd, startCmd, listCmd, showCmd)
	return cmd
}
