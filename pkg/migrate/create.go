package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var slugUnsafeRe = regexp.MustCompile(`[^a-z0-9]+`)

const versionLayout = "20060102150405"

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: statements must run on postgres and sqlite
SELECT 1;
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
SELECT 1;
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<version>_<slug>.sql. The version is the
// current UTC timestamp, bumped past the newest existing migration so files
// created on a machine with a lagging clock still sort last.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now().UTC())
}

func createSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(slugUnsafeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := listMigrations(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	version, _ := strconv.ParseInt(now.Format(versionLayout), 10, 64)
	for _, f := range existing {
		if f.slug == slug {
			return "", fmt.Errorf("migration %q already exists as %s", slug, f.name)
		}
		if v, _ := strconv.ParseInt(f.version, 10, 64); v >= version {
			version = nextVersion(f.version, v)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))
	if err := os.WriteFile(path, []byte(fmt.Sprintf(migrationTemplate, slug)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// nextVersion is the timestamp one second after raw, so the new file name is
// still a valid versionLayout stamp. Versions that are not timestamps just
// get the next integer.
func nextVersion(raw string, v int64) int64 {
	ts, err := time.Parse(versionLayout, raw)
	if err != nil {
		return v + 1
	}
	next, _ := strconv.ParseInt(ts.Add(time.Second).Format(versionLayout), 10, 64)
	return next
}
