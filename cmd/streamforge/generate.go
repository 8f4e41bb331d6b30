package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/infra/repos/schemas"
	"github.com/mmrzaf/streamforge/internal/infra/targets/csvfile"
	"github.com/mmrzaf/streamforge/internal/scd"
	"github.com/mmrzaf/streamforge/internal/tables"
	"github.com/mmrzaf/streamforge/internal/timeutil"
)

type generateOptions struct {
	seed      int64
	rows      []string
	keyRanges []string
	format    string
	outDir    string
	history   bool
	asOf      string
}

func generateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate <id|path>...",
		Short: "Generate tables and print them, without a target or run record",
		Long: "Generate the named schemas in dependency order. Facts need their dimensions in the same\n" +
			"invocation or a --key-range. Change feeds can be replayed into SCD2 history with --scd.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := schemas.NewFileRepository(schemasDir)
			req := &domain.RunRequest{}
			for _, arg := range args {
				s, err := loadSchema(repo, arg)
				if err != nil {
					return err
				}
				req.Schemas = append(req.Schemas, s)
			}
			if cmd.Flags().Changed("seed") {
				seed := opts.seed
				req.Seed = &seed
			}
			var err error
			if req.RowOverrides, err = parseAssignments("--rows", opts.rows); err != nil {
				return err
			}
			kr, err := parseAssignments("--key-range", opts.keyRanges)
			if err != nil {
				return err
			}
			req.KeyRanges = domain.KeyRanges(kr)

			var asOf *time.Time
			if opts.asOf != "" {
				if !opts.history {
					return fmt.Errorf("--as-of requires --scd")
				}
				t, err := timeutil.ParseDate(opts.asOf, time.Now())
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				asOf = &t
			}

			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.close()

			var out []*domain.Table
			_, err = svc.Preview(req, func(s *domain.Schema, tbl *domain.Table) error {
				if opts.history && s.Generator == domain.GeneratorChangeFeed {
					hist, err := scd.Apply(tbl, tables.NaturalKeyNames(s), tables.ColumnChangeTimestamp)
					if err != nil {
						return err
					}
					if asOf != nil {
						hist = &domain.Table{Name: hist.Name, Columns: hist.Columns, Rows: scd.AsOf(hist, *asOf)}
					}
					tbl = hist
				}
				out = append(out, tbl)
				return nil
			})
			if err != nil {
				return err
			}

			if opts.outDir != "" {
				return writeTableFiles(opts.outDir, out)
			}
			return writeTables(os.Stdout, out, opts.format)
		},
	}

	cmd.Flags().Int64VarP(&opts.seed, "seed", "s", 0, "Seed for RNG")
	cmd.Flags().StringSliceVar(&opts.rows, "rows", nil, "Row overrides (table=rows)")
	cmd.Flags().StringSliceVar(&opts.keyRanges, "key-range", nil, "Key ranges for dimensions not generated here (column=max)")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "Output format (csv|json)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Write <table>.csv files to this directory instead of stdout")
	cmd.Flags().BoolVar(&opts.history, "scd", false, "Replay change feeds into SCD2 history")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "With --scd, keep only versions valid at this time")
	return cmd
}

// writeTables prints tables to w. Several CSV tables are separated by a "# <table>" line.
func writeTables(w io.Writer, list []*domain.Table, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(list) == 1 {
			return enc.Encode(list[0].Rows)
		}
		byName := make(map[string][]domain.Row, len(list))
		for _, t := range list {
			byName[t.Name] = t.Rows
		}
		return enc.Encode(byName)

	case "csv":
		for i, t := range list {
			if len(list) > 1 {
				if i > 0 {
					if _, err := fmt.Fprintln(w); err != nil {
						return err
					}
				}
				if _, err := fmt.Fprintf(w, "# %s\n", t.Name); err != nil {
					return err
				}
			}
			if err := csvfile.NewEncoder(w).WriteTable(t); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeTableFiles(dir string, list []*domain.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, t := range list {
		path := filepath.Join(dir, t.Name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		werr := csvfile.NewEncoder(f).WriteTable(t)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("write %s: %w", path, werr)
		}
		if cerr != nil {
			return cerr
		}
		fmt.Printf("%s: %d rows\n", path, len(t.Rows))
	}
	return nil
}
