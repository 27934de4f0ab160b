package generate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

const header = "// Code generated by cleants. DO NOT EDIT."

type OutputFile struct {
	Path    string
	Content []byte
}

// CollectOutputs flattens rendered files and their include trees into output
// files, one per distinct OutPath. Files are visited depth first with
// includes before their includer. A repeat of a source file is skipped; two
// different source files with the same OutPath are an error.
func CollectOutputs(files []*RenderedFile) ([]OutputFile, error) {
	sources := make(map[string]string)
	var outputs []OutputFile
	var visit func(file *RenderedFile) error
	visit = func(file *RenderedFile) error {
		if file == nil {
			return nil
		}
		if source, ok := sources[file.OutPath]; ok {
			if source != file.Path {
				return errors.Wrapf(ErrOutPathConflict, "%s and %s both generate %s", source, file.Path, file.OutPath)
			}
			return nil
		}
		sources[file.OutPath] = file.Path
		for _, alias := range sortedKeys(file.Includes) {
			if err := visit(file.Includes[alias]); err != nil {
				return err
			}
		}
		outputs = append(outputs, OutputFile{
			Path:    file.OutPath,
			Content: Content(file),
		})
		return nil
	}
	for _, file := range files {
		if err := visit(file); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// Content serialises the statements of file as module source.
func Content(file *RenderedFile) []byte {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(string(file.Statements.Runtime))
	b.WriteString("\n")
	for _, stmt := range file.Statements.Includes {
		b.WriteString(string(stmt))
		b.WriteString("\n")
	}
	for _, stmt := range file.Statements.Body {
		b.WriteString("\n")
		b.WriteString(string(stmt))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func WriteFiles(outputs []OutputFile) error {
	for _, file := range outputs {
		if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return errors.Wrapf(err, "create dir %s", filepath.Dir(file.Path))
		}
		if err := os.WriteFile(file.Path, file.Content, 0o644); err != nil {
			return errors.Wrapf(err, "write file %s", file.Path)
		}
	}
	return nil
}

func sortedKeys(m map[string]*RenderedFile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
