package app

import (
	"net/url"
	"os"
	"strings"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// OptionDatabase overrides the database named in a postgres DSN.
const OptionDatabase = "database"

// resolveTargetForRun expands ${VAR} references in the DSN and applies the database
// override, from dbOverride or the target's options.
func resolveTargetForRun(base *domain.TargetConfig, dbOverride string) *domain.TargetConfig {
	if base == nil {
		return nil
	}
	t := *base
	t.DSN = os.ExpandEnv(t.DSN)

	database := dbOverride
	if database == "" {
		database = t.Options[OptionDatabase]
	}
	if t.Kind == domain.TargetKindPostgres && database != "" {
		t.DSN = withPostgresDatabase(t.DSN, database)
	}
	return &t
}

func withPostgresDatabase(dsn, database string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		u.Path = "/" + database
		return u.String()
	}
	parts := strings.Fields(dsn)
	found := false
	for i := range parts {
		if strings.HasPrefix(strings.ToLower(parts[i]), "dbname=") {
			parts[i] = "dbname=" + database
			found = true
			break
		}
	}
	if !found {
		parts = append(parts, "dbname="+database)
	}
	return strings.Join(parts, " ")
}
