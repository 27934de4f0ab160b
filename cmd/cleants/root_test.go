package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jptrs93/cleants/internal/generate"
)

var testProtos = map[string]string{
	"shared/common/types.proto": `
syntax = "proto3";
package acme.common;

message Account {
  string id = 1;
}
`,
	"src/app/user.proto": `
syntax = "proto3";
package acme.app;

import "common/types.proto";

message User {
  acme.common.Account account = 1;
}

service UserService {
  rpc GetUser(acme.common.Account) returns (User);
}
`,
	"src/app/admin.proto": `
syntax = "proto3";
package acme.app;

message Admin {
  oneof scope {
    string team = 1;
    string org = 2;
  }
}
`,
}

type workspace struct {
	dir    string
	src    string
	shared string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	for name, content := range testProtos {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfgPath := filepath.Join(dir, "cleants.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("runtime:\n  alias: rt\nlogging:\n  level: error\n"), 0o644))
	return workspace{
		dir:    dir,
		src:    filepath.Join(dir, "src"),
		shared: filepath.Join(dir, "shared"),
		config: cfgPath,
	}
}

// args returns the flags every run shares, followed by extra.
func (w workspace) args(extra ...string) []string {
	return append([]string{
		"--config", w.config,
		"--source", w.src,
		"--proto_path", w.shared,
		"--root", w.dir,
		"--out", "gen",
	}, extra...)
}

func (w workspace) out(rel string) string {
	return filepath.Join(w.dir, "gen", filepath.FromSlash(rel))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_WritesModules(t *testing.T) {
	w := newWorkspace(t)

	_, err := execute(t, w.args("app/user.proto")...)
	require.NoError(t, err)

	user, err := os.ReadFile(w.out("acme/app/user.ts"))
	require.NoError(t, err)
	source := string(user)
	assert.True(t, strings.HasPrefix(source, "// Code generated by cleants. DO NOT EDIT.\n"))
	assert.Contains(t, source, `import * as rt from "@creditkarma/thrift-server-core";`)
	assert.Contains(t, source, `import * as types from "../common/types";`)
	assert.Contains(t, source, "    account?: types.Account;")
	assert.Contains(t, source, "    getUser(request: types.Account, context?: Context): User | Promise<User>;")

	_, err = os.Stat(w.out("acme/common/types.ts"))
	assert.NoError(t, err)
}

func TestRoot_DryRun(t *testing.T) {
	w := newWorkspace(t)

	out, err := execute(t, w.args("--dry-run", "app/user.proto")...)
	require.NoError(t, err)
	assert.Equal(t, []string{
		w.out("acme/common/types.ts"),
		w.out("acme/app/user.ts"),
	}, strings.Split(strings.TrimSpace(out), "\n"))

	_, err = os.Stat(filepath.Join(w.dir, "gen"))
	assert.True(t, os.IsNotExist(err), "dry run wrote output: %v", err)
}

func TestRoot_CollectErrors(t *testing.T) {
	w := newWorkspace(t)

	_, err := execute(t, w.args("--collect-errors", "app/admin.proto", "app/user.proto")...)
	var batch *generate.BatchError
	require.True(t, errors.As(err, &batch), "got %v", err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, "app/admin.proto", batch.Files[0].Path)

	_, err = os.Stat(w.out("acme/app/user.ts"))
	assert.NoError(t, err, "successful files are written before the batch error is returned")
	_, err = os.Stat(w.out("acme/app/admin.ts"))
	assert.True(t, os.IsNotExist(err))
}

func TestRoot_FailFastWritesNothing(t *testing.T) {
	w := newWorkspace(t)

	_, err := execute(t, w.args("app/admin.proto", "app/user.proto")...)
	require.Error(t, err)
	var batch *generate.BatchError
	assert.False(t, errors.As(err, &batch))

	_, err = os.Stat(filepath.Join(w.dir, "gen"))
	assert.True(t, os.IsNotExist(err))
}

func TestRoot_RequiresFiles(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, w.args()...)
	assert.Error(t, err)
}

func TestConfigCmd(t *testing.T) {
	w := newWorkspace(t)

	out, err := execute(t, "config", "--config", w.config, "--out", "/x/gen", "--parallelism", "3", "--proto_path", w.shared)
	require.NoError(t, err)
	for _, want := range []string{
		"out_dir: /x/gen",
		"parallelism: 3",
		"alias: rt",
		"level: error",
		"failure_policy: fail_fast",
		"- " + w.shared,
	} {
		assert.Contains(t, out, want)
	}
}
