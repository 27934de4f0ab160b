// Package tsgen renders resolved IDL files as TypeScript modules.
package tsgen

import (
	"context"

	"github.com/jptrs93/cleants/internal/generate"
	"github.com/jptrs93/cleants/internal/ir"
)

// NewGenerator returns a generator wired with the TypeScript renderer and
// importer for the given runtime module.
func NewGenerator(options generate.Options, runtimeModule, runtimeAlias string) *generate.Generator {
	importer := NewImporter(runtimeModule, runtimeAlias)
	return generate.New(options, NewRenderer(importer.RuntimeAlias), importer)
}

// GenerateFile renders files with default settings, stopping at the first
// failure.
func GenerateFile(rootDir, outDir, sourceDir string, files []*ir.ResolvedFile) ([]*generate.RenderedFile, error) {
	gen := NewGenerator(generate.Options{
		RootDir:   rootDir,
		OutDir:    outDir,
		SourceDir: sourceDir,
	}, "", "")
	return gen.GenerateFile(context.Background(), files)
}
