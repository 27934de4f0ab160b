package generate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jptrs93/cleants/internal/generate"
	"github.com/jptrs93/cleants/internal/ir"
)

func TestCollectOutputs_DeduplicatesSharedIncludes(t *testing.T) {
	dir := t.TempDir()
	gen := newGenerator(generate.Options{OutDir: dir})
	c := newFile("c", "common", nil, "Shared")
	left := newFile("left", "app", ir.IncludeMap{"C": include(c)}, "L")
	right := newFile("right", "app", ir.IncludeMap{"C": include(c)}, "R")

	rendered, err := gen.GenerateFile(context.Background(), []*ir.ResolvedFile{left, right})
	require.NoError(t, err)

	outputs, err := generate.CollectOutputs(rendered)
	require.NoError(t, err)
	var paths []string
	for _, out := range outputs {
		paths = append(paths, out.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "common", "c.ts"),
		filepath.Join(dir, "app", "left.ts"),
		filepath.Join(dir, "app", "right.ts"),
	}, paths)
}

func TestCollectOutputs_SkipsFailedFiles(t *testing.T) {
	gen := newGenerator(generate.Options{FailurePolicy: generate.Collect})
	rendered, err := gen.GenerateFile(context.Background(), []*ir.ResolvedFile{
		newFile("bad", "x", nil, "Bad"),
		newFile("good", "x", nil, "Good"),
	})
	require.Error(t, err)

	outputs, err := generate.CollectOutputs(rendered)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, filepath.FromSlash("/out/x/good.ts"), outputs[0].Path)
}

func TestCollectOutputs_OutPathConflict(t *testing.T) {
	gen := newGenerator(generate.Options{})
	a := newFile("types", "acme", nil, "A")
	a.Path = "a/types.proto"
	b := newFile("types", "acme", nil, "B")
	b.Path = "b/types.proto"

	rendered, err := gen.GenerateFile(context.Background(), []*ir.ResolvedFile{a, b})
	require.NoError(t, err)
	require.Equal(t, rendered[0].OutPath, rendered[1].OutPath)

	_, err = generate.CollectOutputs(rendered)
	require.Error(t, err)
	assert.ErrorIs(t, err, generate.ErrOutPathConflict)
	assert.Contains(t, err.Error(), "a/types.proto and b/types.proto")
}

func TestContent(t *testing.T) {
	file := &generate.RenderedFile{
		Statements: generate.Statements{
			Runtime:  "import * as thrift from \"rt\";",
			Includes: []generate.Statement{"import * as A from \"./a\";"},
			Body:     []generate.Statement{"export enum E {\n}", "export interface M {\n}"},
		},
	}
	want := "// Code generated by cleants. DO NOT EDIT.\n" +
		"import * as thrift from \"rt\";\n" +
		"import * as A from \"./a\";\n" +
		"\nexport enum E {\n}\n" +
		"\nexport interface M {\n}\n"
	assert.Equal(t, want, string(generate.Content(file)))
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	outputs := []generate.OutputFile{
		{Path: filepath.Join(dir, "pkg", "a.ts"), Content: []byte("a")},
		{Path: filepath.Join(dir, "b.ts"), Content: []byte("b")},
	}
	require.NoError(t, generate.WriteFiles(outputs))

	for _, out := range outputs {
		got, err := os.ReadFile(out.Path)
		require.NoError(t, err)
		assert.Equal(t, out.Content, got)
	}
}
