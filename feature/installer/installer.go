package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Environment is the prepared runtime environment handed to the launcher.
type Environment struct {
	SiteDir  string
	Packages []InstalledPackage
}

// Env renders the environment variables workers receive.
func (e *Environment) Env() []string {
	paths := make([]string, 0, len(e.Packages))
	for _, p := range e.Packages {
		paths = append(paths, p.Path)
	}
	return []string{
		"BOOT_SITE_DIR=" + e.SiteDir,
		"BOOT_PACKAGE_PATH=" + strings.Join(paths, string(os.PathListSeparator)),
	}
}

// Installer makes manifest packages present in a site directory.
type Installer struct {
	index   Index
	ledger  Ledger
	siteDir string
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an installer.
func New(index Index, ledger Ledger, siteDir string, logger *zap.Logger) *Installer {
	if index == nil {
		index = NoIndex{}
	}
	return &Installer{
		index:   index,
		ledger:  ledger,
		siteDir: siteDir,
		logger:  logger,
		now:     time.Now,
	}
}

// PrepareEnvironment installs every requirement in manifest order. It stops
// at the first failure and returns an *InstallationError.
func (i *Installer) PrepareEnvironment(ctx context.Context, manifest []Requirement) (*Environment, error) {
	siteDir, err := filepath.Abs(i.siteDir)
	if err != nil {
		return nil, &InstallationError{Op: "prepare", Err: err}
	}
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, &InstallationError{Op: "prepare", Err: err}
	}

	env := &Environment{SiteDir: siteDir}
	for _, req := range manifest {
		if err := ctx.Err(); err != nil {
			return nil, &InstallationError{Package: req.String(), Op: "prepare", Err: err}
		}
		pkg, err := i.ensure(ctx, siteDir, req)
		if err != nil {
			return nil, err
		}
		env.Packages = append(env.Packages, *pkg)
	}

	i.logger.Info("Environment ready",
		zap.String("site_dir", siteDir),
		zap.Int("packages", len(env.Packages)))
	return env, nil
}

func (i *Installer) ensure(ctx context.Context, siteDir string, req Requirement) (*InstalledPackage, error) {
	fail := func(op string, err error) error {
		return &InstallationError{Package: req.String(), Op: op, Err: err}
	}

	current, err := i.ledger.Lookup(ctx, req.Name)
	if err != nil {
		return nil, fail("lookup", err)
	}
	// A ledger entry only counts when its directory lives in this site dir;
	// entries left over from a previous site_dir are reinstalled.
	if current != nil && req.Constraint.Matches(current.Version) &&
		withinDir(siteDir, current.Path) && isDir(current.Path) {
		i.logger.Debug("Requirement already satisfied",
			zap.String("package", req.Name),
			zap.String("version", current.Version))
		return current, nil
	}

	versions, err := i.index.Versions(ctx, req.Name)
	if err != nil {
		return nil, fail("resolve", err)
	}
	version, ok := selectVersion(versions, req.Constraint)
	if !ok {
		return nil, fail("resolve", fmt.Errorf("%w among %d candidates", ErrNoMatchingVersion, len(versions)))
	}

	i.logger.Info("Installing package",
		zap.String("package", req.Name),
		zap.String("version", version))

	pkg, op, err := i.install(ctx, siteDir, req.Name, version)
	if err != nil {
		return nil, fail(op, err)
	}

	if current != nil && current.Path != pkg.Path && withinDir(siteDir, current.Path) {
		if err := os.RemoveAll(current.Path); err != nil {
			i.logger.Warn("Failed to remove replaced package",
				zap.String("path", current.Path), zap.Error(err))
		}
	}
	return pkg, nil
}

// install returns the failing step name alongside the error.
func (i *Installer) install(ctx context.Context, siteDir, name, version string) (*InstalledPackage, string, error) {
	body, err := i.index.Fetch(ctx, name, version)
	if err != nil {
		return nil, "fetch", err
	}
	defer body.Close()

	staging, err := os.MkdirTemp(siteDir, ".staging-"+name+"-")
	if err != nil {
		return nil, "extract", err
	}
	defer os.RemoveAll(staging)

	digest, err := extractArchive(body, staging)
	if err != nil {
		return nil, "extract", err
	}

	final := filepath.Join(siteDir, name+"-"+version)
	if err := os.RemoveAll(final); err != nil {
		return nil, "extract", err
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, "extract", err
	}

	pkg := InstalledPackage{
		Name:        name,
		Version:     version,
		Digest:      digest,
		Path:        final,
		InstalledAt: i.now().UTC(),
	}
	if err := i.ledger.Record(ctx, pkg); err != nil {
		return nil, "record", err
	}
	return &pkg, "", nil
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsInstallationError reports whether err carries an *InstallationError.
func IsInstallationError(err error) bool {
	var ie *InstallationError
	return errors.As(err, &ie)
}

// withinDir reports whether path is strictly inside dir.
func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
