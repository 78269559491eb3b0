package installer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeIndex serves archives from memory and counts calls.
type fakeIndex struct {
	mu       sync.Mutex
	archives map[string]map[string][]byte // name -> version -> archive
	err      error
	calls    int
}

func (f *fakeIndex) Versions(_ context.Context, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	byVersion, ok := f.archives[name]
	if !ok {
		return nil, ErrPackageNotFound
	}
	versions := make([]string, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	return versions, nil
}

func (f *fakeIndex) Fetch(_ context.Context, name, version string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.archives[name][version])), nil
}

func newFakeIndex(t *testing.T) *fakeIndex {
	return &fakeIndex{archives: map[string]map[string][]byte{
		"p": {
			"1.0": buildArchive(t, map[string]string{"p/__init__.py": "v1.0"}),
			"1.1": buildArchive(t, map[string]string{"p/__init__.py": "v1.1"}),
		},
		"q": {
			"2.0.0": buildArchive(t, map[string]string{"q.py": "q"}),
		},
	}}
}

func mustManifest(t *testing.T, text string) []Requirement {
	t.Helper()
	reqs, err := ParseManifest(strings.NewReader(text))
	require.NoError(t, err)
	return reqs
}

func TestPrepareEnvironment_Installs(t *testing.T) {
	siteDir := filepath.Join(t.TempDir(), "site")
	idx := newFakeIndex(t)
	inst := New(idx, setupSQLiteLedger(t), siteDir, zap.NewNop())

	env, err := inst.PrepareEnvironment(context.Background(), mustManifest(t, "P==1.0\nq\n"))
	require.NoError(t, err)

	require.Len(t, env.Packages, 2)
	assert.Equal(t, "1.0", env.Packages[0].Version)
	assert.Equal(t, "2.0.0", env.Packages[1].Version)
	assert.Len(t, env.Packages[0].Digest, 64)

	content, err := os.ReadFile(filepath.Join(env.Packages[0].Path, "p", "__init__.py"))
	require.NoError(t, err)
	assert.Equal(t, "v1.0", string(content))

	vars := env.Env()
	assert.Contains(t, vars, "BOOT_SITE_DIR="+env.SiteDir)
	assert.Contains(t, vars[1], env.Packages[0].Path)
	assert.Contains(t, vars[1], env.Packages[1].Path)

	// No staging directories are left behind.
	entries, err := os.ReadDir(env.SiteDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".staging-"), e.Name())
	}
}

func TestPrepareEnvironment_Idempotent(t *testing.T) {
	siteDir := t.TempDir()
	idx := newFakeIndex(t)
	ledger := setupSQLiteLedger(t)
	manifest := mustManifest(t, "p==1.0\n")

	first, err := New(idx, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)
	callsAfterFirst := idx.calls

	second, err := New(idx, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, idx.calls, "satisfied manifest must not touch the index")
	assert.Equal(t, first.Packages[0].Path, second.Packages[0].Path)
	assert.Equal(t, first.Packages[0].Digest, second.Packages[0].Digest)
}

func TestPrepareEnvironment_SatisfiedWithoutIndex(t *testing.T) {
	siteDir := t.TempDir()
	ledger := setupSQLiteLedger(t)
	manifest := mustManifest(t, "p>=1.0\n")

	_, err := New(newFakeIndex(t), ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)

	env, err := New(nil, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, "1.1", env.Packages[0].Version)
}

func TestPrepareEnvironment_ReinstallsWhenDirectoryMissing(t *testing.T) {
	siteDir := t.TempDir()
	idx := newFakeIndex(t)
	ledger := setupSQLiteLedger(t)
	manifest := mustManifest(t, "p==1.0\n")

	env, err := New(idx, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(env.Packages[0].Path))

	env, err = New(idx, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)
	assert.DirExists(t, env.Packages[0].Path)
}

func TestPrepareEnvironment_ReinstallsAfterSiteDirChange(t *testing.T) {
	root := t.TempDir()
	oldSite := filepath.Join(root, "old")
	newSite := filepath.Join(root, "new")
	idx := newFakeIndex(t)
	ledger := setupSQLiteLedger(t)
	manifest := mustManifest(t, "p==1.0\n")

	old, err := New(idx, ledger, oldSite, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)
	callsAfterFirst := idx.calls

	env, err := New(idx, ledger, newSite, zap.NewNop()).PrepareEnvironment(context.Background(), manifest)
	require.NoError(t, err)

	assert.Greater(t, idx.calls, callsAfterFirst, "package outside the site dir must be reinstalled")
	assert.True(t, strings.HasPrefix(env.Packages[0].Path, env.SiteDir+string(filepath.Separator)), env.Packages[0].Path)
	assert.DirExists(t, old.Packages[0].Path, "packages of another site dir are left alone")
}

func TestWithinDir(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/srv/site/p-1.0", true},
		{"/srv/site/nested/q-2.0", true},
		{"/srv/site", false},
		{"/srv/site-old/p-1.0", false},
		{"/srv/other/p-1.0", false},
		{"/srv/site/../p-1.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, withinDir("/srv/site", tt.path))
		})
	}
}

func TestPrepareEnvironment_Upgrade(t *testing.T) {
	siteDir := t.TempDir()
	idx := newFakeIndex(t)
	ledger := setupSQLiteLedger(t)

	old, err := New(idx, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), mustManifest(t, "p==1.0\n"))
	require.NoError(t, err)

	env, err := New(idx, ledger, siteDir, zap.NewNop()).PrepareEnvironment(context.Background(), mustManifest(t, "p>1.0\n"))
	require.NoError(t, err)

	assert.Equal(t, "1.1", env.Packages[0].Version)
	assert.DirExists(t, env.Packages[0].Path)
	assert.NoDirExists(t, old.Packages[0].Path)
}

func TestPrepareEnvironment_Failures(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		index    func(t *testing.T) Index
		op       string
		target   error
	}{
		{
			name:     "NetworkError",
			manifest: "p==1.0\n",
			index: func(t *testing.T) Index {
				idx := newFakeIndex(t)
				idx.err = errors.New("dial tcp: connection refused")
				return idx
			},
			op: "resolve",
		},
		{
			name:     "NoMatchingVersion",
			manifest: "p==9.0\n",
			index:    func(t *testing.T) Index { return newFakeIndex(t) },
			op:       "resolve",
			target:   ErrNoMatchingVersion,
		},
		{
			name:     "UnknownPackage",
			manifest: "missing\n",
			index:    func(t *testing.T) Index { return newFakeIndex(t) },
			op:       "resolve",
			target:   ErrPackageNotFound,
		},
		{
			name:     "NoIndex",
			manifest: "p==1.0\n",
			index:    func(t *testing.T) Index { return NoIndex{} },
			op:       "resolve",
			target:   ErrNoIndex,
		},
		{
			name:     "CorruptArchive",
			manifest: "p==1.0\n",
			index: func(t *testing.T) Index {
				idx := newFakeIndex(t)
				idx.archives["p"]["1.0"] = []byte("garbage")
				return idx
			},
			op: "extract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			siteDir := t.TempDir()
			inst := New(tt.index(t), setupSQLiteLedger(t), siteDir, zap.NewNop())

			env, err := inst.PrepareEnvironment(context.Background(), mustManifest(t, tt.manifest))
			assert.Nil(t, env)

			var ie *InstallationError
			require.True(t, errors.As(err, &ie), "expected InstallationError, got %v", err)
			assert.Equal(t, tt.op, ie.Op)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}

			// Nothing half-installed is left in the site directory.
			entries, err := os.ReadDir(siteDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestPrepareEnvironment_StopsAtFirstFailure(t *testing.T) {
	idx := newFakeIndex(t)
	inst := New(idx, setupSQLiteLedger(t), t.TempDir(), zap.NewNop())

	_, err := inst.PrepareEnvironment(context.Background(), mustManifest(t, "missing\np==1.0\n"))
	require.Error(t, err)
	assert.Equal(t, 1, idx.calls, "later requirements must not be attempted")
}

func TestPrepareEnvironment_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newFakeIndex(t), setupSQLiteLedger(t), t.TempDir(), zap.NewNop()).
		PrepareEnvironment(ctx, mustManifest(t, "p==1.0\n"))
	assert.True(t, IsInstallationError(err))
	assert.ErrorIs(t, err, context.Canceled)
}
