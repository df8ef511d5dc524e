package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/stubcat/internal/entity"
	"github.com/jward/stubcat/internal/version"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse_FillsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte("versions: ['7.4', '8.0']\ncheck_links: true\nlink_timeout: 3s\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"7.4", "8.0"}, cfg.Versions)
	assert.Equal(t, "8.0", cfg.CurrentVersion)
	assert.True(t, cfg.CheckLinks)
	assert.Equal(t, 3*time.Second, cfg.LinkTimeout)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	require.NoError(t, cfg.Validate())
}

func TestParse_InvalidYAML(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("versions: [unclosed"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, version.Version("8.4"), cfg.Current())
	assert.Equal(t, DefaultLinkTimeout, cfg.LinkTimeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	// Not parallel: reads the process environment.
	t.Setenv(EnvCurrentVersion, "")
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, DefaultPath, `
versions: ['8.0', '8.1', '8.2']
current_version: '8.2'
core_paths: [standard, Core]
workers: 4
database: /tmp/x.db
`)
	t.Setenv(EnvCurrentVersion, "8.1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, version.Version("8.1"), cfg.Current())
	assert.Equal(t, []string{"standard", "Core"}, cfg.CorePaths)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "/tmp/x.db", cfg.Database)
}

func TestLoad_InvalidEnvVersion(t *testing.T) {
	path := writeFile(t, DefaultPath, "versions: ['8.0', '8.1']\n")
	t.Setenv(EnvCurrentVersion, "9.9")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not one of versions")
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unordered", Config{Versions: []string{"8.0", "7.4"}, CurrentVersion: "8.0"}, "not increasing"},
		{"duplicate", Config{Versions: []string{"8.0", "8.0"}, CurrentVersion: "8.0"}, "not increasing"},
		{"bad version", Config{Versions: []string{"eight"}, CurrentVersion: "eight"}, "invalid"},
		{"current missing", Config{Versions: []string{"8.0"}, CurrentVersion: "8.1"}, "not one of versions"},
		{"negative workers", Config{Versions: []string{"8.0"}, CurrentVersion: "8.0", Workers: -1}, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

const mutedYAML = `
strlen:
  - problem: wrong-return-type
    versions: ['7.4', '8.0']
ArrayObject:
  - problem: wrong-interfaces
    versions: [ALL]
ArrayObject::count:
  - problem: wrong-parameter-count
`

func TestParseMuted(t *testing.T) {
	t.Parallel()
	table, err := ParseMuted([]byte(mutedYAML))
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, "wrong-return-type", table["strlen"][0].Problem)
}

func TestParseMuted_Rejects(t *testing.T) {
	t.Parallel()
	_, err := ParseMuted([]byte("f:\n  - problem: nope\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown problem "nope"`)

	_, err = ParseMuted([]byte("f:\n  - problem: missing\n    versions: [x.y]\n"))
	require.Error(t, err)
}

func TestLoadMuted_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadMuted(filepath.Join(t.TempDir(), "muted.yaml"))
	require.Error(t, err)
}

func TestMuteTable_Apply(t *testing.T) {
	t.Parallel()
	table, err := LoadMuted(writeFile(t, "muted.yaml", mutedYAML))
	require.NoError(t, err)

	fn, err := entity.New(entity.KindFunction, "strlen", "")
	require.NoError(t, err)
	cls, err := entity.New(entity.KindClass, "ArrayObject", "")
	require.NoError(t, err)
	count, err := entity.NewMember(entity.KindMethod, cls.ID, "count")
	require.NoError(t, err)
	require.NoError(t, cls.AddMember(count))
	other, err := entity.New(entity.KindFunction, "strpos", "")
	require.NoError(t, err)

	n := table.Apply([]*entity.Entity{fn, cls, other})
	assert.Equal(t, 3, n)

	assert.True(t, fn.Muted.Covers(entity.ProblemWrongReturnType, "8.0"))
	assert.False(t, fn.Muted.Covers(entity.ProblemWrongReturnType, "8.1"))
	assert.True(t, cls.Muted.Covers(entity.ProblemWrongInterfaces, "5.3"))
	assert.True(t, count.Muted.Covers(entity.ProblemWrongParameterCount, "8.4"))
	assert.Empty(t, other.Muted)
}

func TestMuteTable_ApplyMatchesEqualVersions(t *testing.T) {
	t.Parallel()
	table, err := ParseMuted([]byte("strlen:\n  - problem: missing\n    versions: [\" 8.0.0 \"]\n"))
	require.NoError(t, err)

	fn, err := entity.New(entity.KindFunction, "strlen", "")
	require.NoError(t, err)
	require.Equal(t, 1, table.Apply([]*entity.Entity{fn}))

	assert.True(t, fn.Muted.Covers(entity.ProblemMissing, "8.0"))
	assert.True(t, fn.Muted.Covers(entity.ProblemMissing, "8.0.0"))
	assert.False(t, fn.Muted.Covers(entity.ProblemMissing, "8.1"))
}

func TestMuteTable_ApplyEmpty(t *testing.T) {
	t.Parallel()
	var table MuteTable
	assert.Zero(t, table.Apply(nil))
}
