package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

// Problem describes one migration file that goose would reject or misapply.
type Problem struct {
	File   string
	Reason string
}

func (p Problem) String() string { return p.File + ": " + p.Reason }

// Validate checks file names, version uniqueness and goose annotations for
// every .sql file at the root of fsys.
func Validate(fsys fs.FS) error {
	if fsys == nil {
		fsys = Migrations()
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	var problems []Problem
	versions := make(map[string]string, len(names))
	for _, name := range names {
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			problems = append(problems, Problem{File: name, Reason: "name must be YYYYMMDDHHMMSS_snake_case.sql"})
			continue
		}
		if first, dup := versions[match[1]]; dup {
			problems = append(problems, Problem{File: name, Reason: "version already used by " + first})
		} else {
			versions[match[1]] = name
		}

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", path.Join(".", name), err)
		}
		problems = append(problems, annotationProblems(name, string(body))...)
	}

	if len(problems) == 0 {
		return nil
	}
	lines := make([]string, len(problems))
	for i, p := range problems {
		lines[i] = p.String()
	}
	return fmt.Errorf("invalid migrations:\n  %s", strings.Join(lines, "\n  "))
}

func annotationProblems(name, body string) []Problem {
	var out []Problem
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		out = append(out, Problem{File: name, Reason: `missing "-- +goose Up"`})
	case down < 0:
		out = append(out, Problem{File: name, Reason: `missing "-- +goose Down"`})
	case down < up:
		out = append(out, Problem{File: name, Reason: "Down section precedes Up"})
	}
	if strings.Count(body, "-- +goose StatementBegin") != strings.Count(body, "-- +goose StatementEnd") {
		out = append(out, Problem{File: name, Reason: "unbalanced StatementBegin/StatementEnd"})
	}
	return out
}
