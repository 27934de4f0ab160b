package tsgen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jptrs93/cleants/internal/generate"
	"github.com/jptrs93/cleants/internal/ir"
)

const (
	DefaultRuntimeModule = "@creditkarma/thrift-server-core"
	DefaultRuntimeAlias  = "thrift"
)

// Importer builds the import statements of a TypeScript module.
type Importer struct {
	RuntimeModule string
	RuntimeAlias  string
}

func NewImporter(runtimeModule, runtimeAlias string) Importer {
	if runtimeModule == "" {
		runtimeModule = DefaultRuntimeModule
	}
	if runtimeAlias == "" {
		runtimeAlias = DefaultRuntimeAlias
	}
	return Importer{RuntimeModule: runtimeModule, RuntimeAlias: runtimeAlias}
}

func (i Importer) RuntimeImport() generate.Statement {
	return importStatement(i.RuntimeAlias, i.RuntimeModule)
}

// IncludeImports returns one namespace import per include, in alias order,
// each pointing at the include's module relative to outPath. An include may
// not use the runtime alias.
func (i Importer) IncludeImports(outPath string, rendered map[string]*generate.RenderedFile, includes ir.IncludeMap) ([]generate.Statement, error) {
	statements := make([]generate.Statement, 0, len(includes))
	for _, alias := range includes.Aliases() {
		if alias == i.RuntimeAlias {
			return nil, errors.Wrapf(ErrAliasConflict, "%s: include alias %q", outPath, alias)
		}
		file, ok := rendered[alias]
		if !ok || file == nil {
			return nil, errors.Newf("%s: include %q was not rendered", outPath, alias)
		}
		statements = append(statements, importStatement(alias, ModulePath(outPath, file.OutPath)))
	}
	return statements, nil
}

// ModulePath returns the import specifier for the module at target as seen
// from the module at from. Both are file paths with the module extension.
func ModulePath(from, target string) string {
	rel, err := filepath.Rel(filepath.Dir(from), target)
	if err != nil {
		// Only possible when one path is relative and the other absolute.
		rel = target
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, generate.Extension))
	if !strings.HasPrefix(rel, "./") && !strings.HasPrefix(rel, "../") && !strings.HasPrefix(rel, "/") {
		rel = "./" + rel
	}
	return rel
}

func importStatement(alias, module string) generate.Statement {
	return generate.Statement(fmt.Sprintf("import * as %s from %q;", alias, module))
}
