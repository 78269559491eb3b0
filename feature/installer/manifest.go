package installer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Requirement is one manifest line: a package name and its constraint.
type Requirement struct {
	Name       string
	Constraint Constraint
	Line       int
}

func (r Requirement) String() string {
	return r.Name + r.Constraint.String()
}

var (
	requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*(.*)$`)
	separatorRe   = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName lowercases a package name and folds runs of "-", "_" and "."
// into a single "-".
func NormalizeName(name string) string {
	return separatorRe.ReplaceAllString(strings.ToLower(name), "-")
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InstallationError{Op: "manifest", Err: err}
	}
	defer f.Close()
	return ParseManifest(f)
}

// ParseManifest parses requirements-file syntax. Extras and environment
// markers are accepted and ignored.
func ParseManifest(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			return nil, manifestErr(lineNo, fmt.Errorf("unsupported directive %q", line))
		}

		m := requirementRe.FindStringSubmatch(line)
		if m == nil {
			return nil, manifestErr(lineNo, fmt.Errorf("invalid requirement %q", line))
		}
		name := NormalizeName(m[1])
		constraint, err := ParseConstraint(m[3])
		if err != nil {
			return nil, manifestErr(lineNo, fmt.Errorf("%s: %w", name, err))
		}
		if prev, dup := seen[name]; dup {
			return nil, manifestErr(lineNo, fmt.Errorf("%s already required on line %d", name, prev))
		}
		seen[name] = lineNo
		reqs = append(reqs, Requirement{Name: name, Constraint: constraint, Line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, &InstallationError{Op: "manifest", Err: err}
	}
	return reqs, nil
}

func manifestErr(line int, err error) error {
	return &InstallationError{Op: "manifest", Err: fmt.Errorf("line %d: %w", line, err)}
}
