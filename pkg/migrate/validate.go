package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

var migrationNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

type migrationFile struct {
	version string
	slug    string
	name    string
}

// ValidateDir checks a migration directory, or the compiled-in set when dir
// is EmbeddedDir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if dir == EmbeddedDir {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			return err
		}
		return ValidateFS(sub)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS enforces the conventions both dialects rely on: timestamped
// unique versions, unique names, and an Up section that precedes a Down
// section, each with at least one statement.
func ValidateFS(fsys fs.FS) error {
	files, err := listMigrations(fsys)
	if err != nil {
		return err
	}
	byVersion := map[string]string{}
	bySlug := map[string]string{}
	for _, f := range files {
		if prev, ok := byVersion[f.version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", f.version, prev, f.name)
		}
		byVersion[f.version] = f.name
		if prev, ok := bySlug[f.slug]; ok {
			return fmt.Errorf("migration name %q used by %q and %q", f.slug, prev, f.name)
		}
		bySlug[f.slug] = f.name

		body, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return fmt.Errorf("read %q: %w", f.name, err)
		}
		if err := checkSections(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", f.name, err)
		}
	}
	return nil
}

func listMigrations(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := migrationNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		files = append(files, migrationFile{version: m[1], slug: m[2], name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func checkSections(body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("down section precedes up section")
	}
	if !hasStatement(body[up:down]) {
		return fmt.Errorf("up section has no statements")
	}
	if !hasStatement(body[down:]) {
		return fmt.Errorf("down section has no statements")
	}
	return nil
}

// hasStatement reports whether a section holds anything besides comments.
func hasStatement(section string) bool {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
