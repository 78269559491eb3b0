package installer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatchingVersion means the index has no version satisfying the constraint.
	ErrNoMatchingVersion = errors.New("no matching version")
	// ErrPackageNotFound means the index does not know the package.
	ErrPackageNotFound = errors.New("package not found in index")
	// ErrNoIndex is returned when a package is missing and no index is configured.
	ErrNoIndex = errors.New("no package index configured")
)

// InstallationError reports a dependency that could not be installed.
// It is fatal to the bootstrap.
type InstallationError struct {
	// Package is the requirement being installed, empty for setup failures.
	Package string
	// Op is the failing step: manifest, index, ledger, prepare, lookup,
	// resolve, fetch, extract or record.
	Op  string
	Err error
}

func (e *InstallationError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("installation failed: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("installation of %s failed: %s: %v", e.Package, e.Op, e.Err)
}

func (e *InstallationError) Unwrap() error {
	return e.Err
}
