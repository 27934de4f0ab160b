package generate

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jptrs93/cleants/internal/ir"
	"github.com/jptrs93/cleants/internal/logger"
)

// Extension is appended to every generated module name.
const Extension = ".ts"

// Statement is one rendered target-language statement.
type Statement string

// Statements holds the statements of a generated module in the sections
// they are emitted in: the runtime import, one import per include, then the
// rendered body.
type Statements struct {
	Runtime  Statement
	Includes []Statement
	Body     []Statement
}

// All returns the statements in emission order.
func (s Statements) All() []Statement {
	all := make([]Statement, 0, s.Len())
	all = append(all, s.Runtime)
	all = append(all, s.Includes...)
	all = append(all, s.Body...)
	return all
}

func (s Statements) Len() int {
	return 1 + len(s.Includes) + len(s.Body)
}

// RenderedFile is the generation result for one resolved file. Includes
// mirrors the source include map; Identifiers is the source symbol table
// and is shared, not copied.
type RenderedFile struct {
	Name        string
	Path        string
	OutPath     string
	Namespace   ir.Namespace
	Statements  Statements
	Includes    map[string]*RenderedFile
	Identifiers ir.IdentifierMap
}

// Renderer turns a file body into statements.
type Renderer interface {
	Render(body []ir.Declaration, identifiers ir.IdentifierMap) ([]Statement, error)
}

// Importer synthesizes the import statements of a generated module.
type Importer interface {
	RuntimeImport() Statement
	IncludeImports(outPath string, rendered map[string]*RenderedFile, includes ir.IncludeMap) ([]Statement, error)
}

// FailurePolicy decides what GenerateFile does when one file fails.
type FailurePolicy int

const (
	// FailFast stops at the first failing file and returns its error as is.
	FailFast FailurePolicy = iota
	// Collect builds every file and reports all failures in a *BatchError.
	Collect
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case Collect:
		return "collect"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy accepts the names returned by FailurePolicy.String.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "collect":
		return Collect, nil
	default:
		return FailFast, errors.Newf("unknown failure policy %q", s)
	}
}

type Options struct {
	// RootDir anchors a relative OutDir. New resolves it against the
	// working directory, so an empty RootDir means the working directory.
	RootDir string
	OutDir  string
	// SourceDir is the directory includes are resolved against. The
	// generator only carries it; the parser consumes it.
	SourceDir     string
	FailurePolicy FailurePolicy
	// Parallelism above one builds top-level files concurrently.
	Parallelism int
	Logger      *zap.Logger
}

type Generator struct {
	options  Options
	renderer Renderer
	importer Importer
	log      *zap.Logger
}

func New(options Options, renderer Renderer, importer Importer) *Generator {
	log := options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if !filepath.IsAbs(options.RootDir) {
		if abs, err := filepath.Abs(options.RootDir); err == nil {
			options.RootDir = abs
		}
	}
	return &Generator{
		options:  options,
		renderer: renderer,
		importer: importer,
		log:      log,
	}
}

func (g *Generator) Options() Options {
	return g.options
}

// OutPathForFile returns the absolute path the module generated for file is
// written to: the output directory, then the namespace path, then the file
// name with Extension.
func (g *Generator) OutPathForFile(file *ir.ResolvedFile) string {
	base := g.options.OutDir
	if !filepath.IsAbs(base) {
		base = filepath.Join(g.options.RootDir, base)
	}
	return filepath.Join(base, file.Namespace.Path, file.Name+Extension)
}

// CreateRenderedFile renders file and, recursively, everything it includes.
func (g *Generator) CreateRenderedFile(file *ir.ResolvedFile) (*RenderedFile, error) {
	return g.createRenderedFile(file, nil)
}

func (g *Generator) createRenderedFile(file *ir.ResolvedFile, chain []string) (*RenderedFile, error) {
	for _, p := range chain {
		if p == file.Path {
			return nil, errors.WithHint(
				errors.Wrapf(ErrIncludeCycle, "%s", strings.Join(append(chain, file.Path), " -> ")),
				"remove one of the includes in the chain",
			)
		}
	}
	if err := checkOutPath(file); err != nil {
		return nil, err
	}

	includes, err := g.createIncludes(file.Path, file.Includes, append(chain, file.Path))
	if err != nil {
		return nil, err
	}
	outPath := g.OutPathForFile(file)
	includeImports, err := g.importer.IncludeImports(outPath, includes, file.Includes)
	if err != nil {
		return nil, err
	}
	body, err := g.renderer.Render(file.Body, file.Identifiers)
	if err != nil {
		return nil, err
	}

	rendered := &RenderedFile{
		Name:      file.Name,
		Path:      file.Path,
		OutPath:   outPath,
		Namespace: file.Namespace,
		Statements: Statements{
			Runtime:  g.importer.RuntimeImport(),
			Includes: includeImports,
			Body:     body,
		},
		Includes:    includes,
		Identifiers: file.Identifiers,
	}
	g.log.Debug("rendered file",
		zap.String(logger.FieldFile, file.Path),
		zap.String(logger.FieldOutPath, outPath),
		zap.Int(logger.FieldCount, rendered.Statements.Len()),
	)
	return rendered, nil
}

// createIncludes renders every include of the file at currentPath. Shared
// includes are rendered again for each includer.
func (g *Generator) createIncludes(currentPath string, includes ir.IncludeMap, chain []string) (map[string]*RenderedFile, error) {
	rendered := make(map[string]*RenderedFile, len(includes))
	for _, alias := range includes.Aliases() {
		include := includes[alias]
		if include.File == nil {
			return nil, errors.Newf("%s: include %q has no resolved file", currentPath, alias)
		}
		// chain is shared by siblings; clip it so appends never alias.
		file, err := g.createRenderedFile(include.File, chain[:len(chain):len(chain)])
		if err != nil {
			return nil, err
		}
		rendered[alias] = file
	}
	return rendered, nil
}

func checkOutPath(file *ir.ResolvedFile) error {
	if file.Name == "" || strings.ContainsAny(file.Name, `/\`) {
		return errors.Wrapf(ErrInvalidOutPath, "%s: invalid module name %q", file.Path, file.Name)
	}
	rel := filepath.Join(file.Namespace.Path, file.Name+Extension)
	if !filepath.IsLocal(rel) {
		return errors.Wrapf(ErrInvalidOutPath, "%s: namespace path %q escapes the output directory", file.Path, file.Namespace.Path)
	}
	return nil
}

// GenerateFile renders every file. The result has the same length and order
// as files. Under Collect, failed files leave a nil entry and the error is a
// *BatchError.
func (g *Generator) GenerateFile(ctx context.Context, files []*ir.ResolvedFile) ([]*RenderedFile, error) {
	results := make([]*RenderedFile, len(files))
	errs := make([]error, len(files))

	build := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rendered, err := g.CreateRenderedFile(files[i])
		if err != nil {
			if g.options.FailurePolicy == FailFast {
				return err
			}
			g.log.Warn("file generation failed",
				zap.String(logger.FieldFile, files[i].Path),
				zap.Error(err),
			)
			errs[i] = err
			return nil
		}
		results[i] = rendered
		return nil
	}

	if g.options.Parallelism > 1 {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(g.options.Parallelism)
		ctx = groupCtx
		for i := range files {
			i := i
			group.Go(func() error {
				return build(i)
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range files {
			if err := build(i); err != nil {
				return nil, err
			}
		}
	}

	if batch := newBatchError(files, errs); batch != nil {
		return results, batch
	}
	return results, nil
}
