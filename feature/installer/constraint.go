package installer

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Constraint is a comma separated list of version terms, all of which
// must hold. The zero value accepts any version.
type Constraint struct {
	raw        string
	terms      []term
	prerelease bool
}

type term struct {
	op string
	v  string // canonical semver, "v" prefixed
	hi string // exclusive upper bound for wildcard and compatible-release terms
}

// operators ordered so two-character operators win over their prefixes.
var operators = []string{"~=", "==", "!=", ">=", "<=", ">", "<"}

// ParseConstraint parses specifiers such as ">=1.0,<2", "==1.4.*" or "~=2.2".
func ParseConstraint(spec string) (Constraint, error) {
	c := Constraint{raw: strings.ReplaceAll(spec, " ", "")}
	if c.raw == "" {
		return c, nil
	}

	for _, part := range strings.Split(c.raw, ",") {
		op := ""
		for _, candidate := range operators {
			if strings.HasPrefix(part, candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			return Constraint{}, fmt.Errorf("missing operator in %q", part)
		}
		ver := strings.TrimPrefix(part, op)

		if strings.HasSuffix(ver, ".*") {
			if op != "==" && op != "!=" {
				return Constraint{}, fmt.Errorf("wildcard only allowed with == and != in %q", part)
			}
			prefix := strings.TrimSuffix(ver, ".*")
			lo, err := canonical(prefix)
			if err != nil {
				return Constraint{}, err
			}
			hi, err := bump(prefix, 1)
			if err != nil {
				return Constraint{}, err
			}
			if op == "==" {
				c.terms = append(c.terms, term{op: ">=", v: lo}, term{op: "<", v: hi})
			} else {
				c.terms = append(c.terms, term{op: "!=*", v: lo, hi: hi})
			}
			continue
		}

		v, err := canonical(ver)
		if err != nil {
			return Constraint{}, err
		}
		if semver.Prerelease(v) != "" {
			c.prerelease = true
		}

		if op == "~=" {
			// ~=1.4.5 means >=1.4.5 and ==1.4.*
			if strings.Count(ver, ".") < 1 {
				return Constraint{}, fmt.Errorf("~= needs at least two release segments in %q", part)
			}
			hi, err := bump(ver, 2)
			if err != nil {
				return Constraint{}, err
			}
			c.terms = append(c.terms, term{op: ">=", v: v}, term{op: "<", v: hi})
			continue
		}
		c.terms = append(c.terms, term{op: op, v: v})
	}
	return c, nil
}

// Matches reports whether version satisfies every term. Versions that are
// not valid semantic versions never match.
func (c Constraint) Matches(version string) bool {
	v, err := canonical(version)
	if err != nil {
		return false
	}
	for _, cl := range c.terms {
		if !cl.allows(v) {
			return false
		}
	}
	return true
}

func (c Constraint) String() string {
	return c.raw
}

func (cl term) allows(v string) bool {
	cmp := semver.Compare(v, cl.v)
	switch cl.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "!=*":
		return cmp < 0 || semver.Compare(v, cl.hi) >= 0
	}
	return false
}

// canonical turns "1.2" into "v1.2.0".
func canonical(version string) (string, error) {
	v := semver.Canonical("v" + strings.TrimPrefix(version, "v"))
	if v == "" {
		return "", fmt.Errorf("invalid version %q", version)
	}
	return v, nil
}

// bump increments the release segment that sits drop segments from the end
// and truncates the rest: bump("1.4", 1) is v1.5.0, bump("1.4.5", 2) is v1.5.0.
func bump(version string, drop int) (string, error) {
	release := strings.SplitN(strings.TrimPrefix(version, "v"), "-", 2)[0]
	parts := strings.Split(release, ".")
	idx := len(parts) - drop
	if idx < 0 {
		return "", fmt.Errorf("invalid version %q", version)
	}
	n, err := strconv.Atoi(parts[idx])
	if err != nil {
		return "", fmt.Errorf("invalid version %q", version)
	}
	parts[idx] = strconv.Itoa(n + 1)
	return canonical(strings.Join(parts[:idx+1], "."))
}
