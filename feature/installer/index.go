package installer

import (
	"context"
	"io"

	"golang.org/x/mod/semver"
)

// Index resolves package versions and serves their archives.
type Index interface {
	// Versions lists every version the index holds for name.
	Versions(ctx context.Context, name string) ([]string, error)
	// Fetch opens the .tar.gz archive of name at version.
	Fetch(ctx context.Context, name, version string) (io.ReadCloser, error)
}

// NoIndex is used when no index is configured. Only packages already
// present can be satisfied.
type NoIndex struct{}

func (NoIndex) Versions(context.Context, string) ([]string, error) {
	return nil, ErrNoIndex
}

func (NoIndex) Fetch(context.Context, string, string) (io.ReadCloser, error) {
	return nil, ErrNoIndex
}

// selectVersion picks the highest version satisfying c. Pre-releases are
// only eligible when the constraint names one.
func selectVersion(versions []string, c Constraint) (string, bool) {
	best, bestCanon := "", ""
	for _, v := range versions {
		canon, err := canonical(v)
		if err != nil || !c.Matches(v) {
			continue
		}
		if semver.Prerelease(canon) != "" && !c.prerelease {
			continue
		}
		if bestCanon == "" || semver.Compare(canon, bestCanon) > 0 {
			best, bestCanon = v, canon
		}
	}
	return best, best != ""
}
