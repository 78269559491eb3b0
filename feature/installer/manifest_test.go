package installer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	manifest := `
# runtime dependencies
Flask==2.2.5
dash >= 2.0, <3      # pinned below next major
pandas~=1.5
plotly[express]==5.*; python_version >= "3.8"
Typing_Extensions
`
	reqs, err := ParseManifest(strings.NewReader(manifest))
	require.NoError(t, err)
	require.Len(t, reqs, 5)

	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"flask", "dash", "pandas", "plotly", "typing-extensions"}, names)
	assert.Equal(t, "flask==2.2.5", reqs[0].String())
	assert.Equal(t, 3, reqs[0].Line)
	assert.True(t, reqs[1].Constraint.Matches("2.17.1"))
	assert.False(t, reqs[1].Constraint.Matches("3.0.0"))
	assert.True(t, reqs[3].Constraint.Matches("5.18.0"))
	assert.True(t, reqs[4].Constraint.Matches("4.12.2"))
}

func TestParseManifest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		contains string
	}{
		{"Directive", "-r base.txt\n", "unsupported directive"},
		{"Duplicate", "flask==1.0\nFlask>=1\n", "already required on line 1"},
		{"BadConstraint", "flask=>1.0\n", "line 1"},
		{"BadName", "!flask\n", "invalid requirement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest(strings.NewReader(tt.manifest))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)

			var ie *InstallationError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, "manifest", ie.Op)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadManifest(filepath.Join(dir, "requirements.txt"))
		assert.True(t, IsInstallationError(err))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("Present", func(t *testing.T) {
		path := filepath.Join(dir, "requirements.txt")
		require.NoError(t, os.WriteFile(path, []byte("p==1.0\n"), 0o600))
		reqs, err := LoadManifest(path)
		require.NoError(t, err)
		assert.Len(t, reqs, 1)
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "zope-interface", NormalizeName("Zope.Interface"))
	assert.Equal(t, "a-b", NormalizeName("A__-.b"))
}
