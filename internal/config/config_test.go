package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jptrs93/cleants/internal/config"
	"github.com/jptrs93/cleants/internal/generate"
	tsgen "github.com/jptrs93/cleants/internal/generate/ts"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cleants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(config.New(), writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "gen-ts", cfg.OutDir)
	assert.Equal(t, tsgen.DefaultRuntimeModule, cfg.Runtime.Module)
	assert.Equal(t, tsgen.DefaultRuntimeAlias, cfg.Runtime.Alias)
	assert.Equal(t, generate.FailFast, cfg.FailurePolicy())
	assert.Equal(t, 1, cfg.Generate.Parallelism)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
out_dir: /tmp/out
source_dir: idl
import_paths: [vendor/idl, third_party]
runtime:
  module: "@acme/runtime"
  alias: rt
generate:
  failure_policy: collect
  parallelism: 4
`)
	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", cfg.OutDir)
	assert.Equal(t, "idl", cfg.SourceDir)
	assert.Equal(t, []string{"vendor/idl", "third_party"}, cfg.ImportPaths)
	assert.Equal(t, "@acme/runtime", cfg.Runtime.Module)
	assert.Equal(t, "rt", cfg.Runtime.Alias)
	assert.Equal(t, generate.Collect, cfg.FailurePolicy())
	assert.Equal(t, 4, cfg.Generate.Parallelism)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLEANTS_OUT_DIR", "/env/out")
	t.Setenv("CLEANTS_GENERATE_FAILURE_POLICY", "collect")

	cfg, err := config.Load(config.New(), writeConfig(t, "out_dir: /file/out\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/out", cfg.OutDir)
	assert.Equal(t, generate.Collect, cfg.FailurePolicy())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "policy", content: "generate:\n  failure_policy: retry\n", want: config.ErrInvalidFailurePolicy},
		{name: "parallelism", content: "generate:\n  parallelism: -2\n", want: config.ErrInvalidParallelism},
		{name: "out dir", content: "out_dir: \"\"\n", want: config.ErrMissingOutDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(config.New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigYAML(t *testing.T) {
	cfg, err := config.Load(config.New(), writeConfig(t, "out_dir: out\n"))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var decoded config.Config
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "out", decoded.OutDir)
	assert.Equal(t, cfg.Runtime, decoded.Runtime)
}
