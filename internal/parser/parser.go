package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bufbuild/protocompile"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/reflect/protoreflect"

	tsgen "github.com/jptrs93/cleants/internal/generate/ts"
	"github.com/jptrs93/cleants/internal/ir"
)

type Parser struct {
	// SourceDir is searched before ImportPaths.
	SourceDir   string
	ImportPaths []string
	// Accessor opens source files; os.Open when nil.
	Accessor func(path string) (io.ReadCloser, error)
	// RuntimeAlias is never handed out as an include alias. Defaults to
	// tsgen.DefaultRuntimeAlias.
	RuntimeAlias string
}

func (p *Parser) importPaths() []string {
	var paths []string
	if p.SourceDir != "" {
		paths = append(paths, p.SourceDir)
	}
	paths = append(paths, p.ImportPaths...)
	if len(paths) == 0 {
		paths = append(paths, ".")
	}
	return paths
}

// Parse compiles filePaths and returns one resolved file per path, in the
// same order. Files imported by more than one file share a single
// *ir.ResolvedFile.
func (p *Parser) Parse(ctx context.Context, filePaths []string) ([]*ir.ResolvedFile, error) {
	open := p.Accessor
	if open == nil {
		open = func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		}
	}
	resolver := &protocompile.SourceResolver{
		ImportPaths: p.importPaths(),
		Accessor: func(path string) (io.ReadCloser, error) {
			if path == optionsProtoPath || strings.HasSuffix(path, string(os.PathSeparator)+optionsProtoPath) {
				return io.NopCloser(strings.NewReader(optionsProtoSource)), nil
			}
			return open(path)
		},
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
	}
	files, err := compiler.Compile(ctx, filePaths...)
	if err != nil {
		return nil, err
	}

	runtimeAlias := p.RuntimeAlias
	if runtimeAlias == "" {
		runtimeAlias = tsgen.DefaultRuntimeAlias
	}
	c := converter{resolved: make(map[string]*ir.ResolvedFile), runtimeAlias: runtimeAlias}
	result := make([]*ir.ResolvedFile, 0, len(files))
	for _, file := range files {
		resolved, err := c.resolve(file)
		if err != nil {
			return nil, err
		}
		result = append(result, resolved)
	}
	return result, nil
}

type converter struct {
	resolved     map[string]*ir.ResolvedFile
	runtimeAlias string
}

func (c *converter) resolve(file protoreflect.FileDescriptor) (*ir.ResolvedFile, error) {
	if resolved, ok := c.resolved[file.Path()]; ok {
		return resolved, nil
	}
	ns, err := namespaceForFile(file)
	if err != nil {
		return nil, err
	}
	out := &ir.ResolvedFile{
		Name:        fileStem(file.Path()),
		Path:        file.Path(),
		Namespace:   ns,
		Includes:    make(ir.IncludeMap),
		Identifiers: make(ir.IdentifierMap),
	}

	body, err := collectBody(file)
	if err != nil {
		return nil, err
	}
	out.Body = body
	for _, decl := range body {
		id := identifierFor(decl)
		id.File = file.Path()
		out.Identifiers[id.FullName] = id
	}

	taken := map[string]bool{c.runtimeAlias: true}
	for _, decl := range body {
		taken[decl.DeclName()] = true
	}
	imports := file.Imports()
	for i := 0; i < imports.Len(); i++ {
		imp := imports.Get(i)
		if imp.Path() == optionsProtoPath {
			continue
		}
		included, err := c.resolve(imp.FileDescriptor)
		if err != nil {
			return nil, err
		}
		addInclude(out, included, ir.IncludeDescriptor{Public: imp.IsPublic}, taken)

		// Types re-exported through import public are reachable from this
		// file, so their files become includes of their own.
		for _, fd := range publicImports(imp.FileDescriptor) {
			reexported, err := c.resolve(fd)
			if err != nil {
				return nil, err
			}
			addInclude(out, reexported, ir.IncludeDescriptor{ReexportedBy: included.Path}, taken)
		}
	}
	markUsed(out)

	c.resolved[file.Path()] = out
	return out, nil
}

// addInclude registers included under a free alias and exposes its local
// identifiers through that alias. A file that is already included is left
// alone.
func addInclude(out, included *ir.ResolvedFile, desc ir.IncludeDescriptor, taken map[string]bool) {
	for _, existing := range out.Includes {
		if existing.File == included {
			return
		}
	}
	alias := freeAlias(ir.IncludeAlias(included.Name), taken)
	taken[alias] = true
	desc.File = included
	out.Includes[alias] = desc
	for fullName, id := range included.Identifiers {
		if id.Alias != "" {
			continue
		}
		if _, exists := out.Identifiers[fullName]; exists {
			continue
		}
		id.Alias = alias
		out.Identifiers[fullName] = id
	}
}

// freeAlias returns base, or base_2, base_3 and so on when base is taken.
func freeAlias(base string, taken map[string]bool) string {
	alias := base
	for n := 2; taken[alias]; n++ {
		alias = fmt.Sprintf("%s_%d", base, n)
	}
	return alias
}

// publicImports returns the files file re-exports with import public,
// following chains of public imports.
func publicImports(file protoreflect.FileDescriptor) []protoreflect.FileDescriptor {
	var result []protoreflect.FileDescriptor
	seen := map[string]bool{file.Path(): true}
	var walk func(protoreflect.FileDescriptor)
	walk = func(fd protoreflect.FileDescriptor) {
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			imp := imports.Get(i)
			if !imp.IsPublic || seen[imp.Path()] || imp.Path() == optionsProtoPath {
				continue
			}
			seen[imp.Path()] = true
			result = append(result, imp.FileDescriptor)
			walk(imp.FileDescriptor)
		}
	}
	walk(file)
	return result
}

// markUsed records, per include, which of its identifiers the body refers to.
func markUsed(file *ir.ResolvedFile) {
	used := make(map[string]map[string]bool)
	note := func(fullName string) {
		id, ok := file.Identifiers[fullName]
		if !ok || id.Alias == "" {
			return
		}
		if used[id.Alias] == nil {
			used[id.Alias] = make(map[string]bool)
		}
		used[id.Alias][fullName] = true
	}
	for _, decl := range file.Body {
		switch d := decl.(type) {
		case *ir.Message:
			for _, field := range d.Fields {
				note(field.TypeName)
				note(field.MapValueType)
			}
		case *ir.Service:
			for _, method := range d.Methods {
				note(method.InputFullName)
				note(method.OutputFullName)
			}
		}
	}
	for alias, names := range used {
		include := file.Includes[alias]
		for name := range names {
			include.Used = append(include.Used, name)
		}
		sort.Strings(include.Used)
		file.Includes[alias] = include
	}
}

func identifierFor(decl ir.Declaration) ir.Identifier {
	switch d := decl.(type) {
	case *ir.Enum:
		return ir.Identifier{Name: d.Name, FullName: d.FullName, Kind: ir.IdentifierEnum}
	case *ir.Message:
		return ir.Identifier{Name: d.Name, FullName: d.FullName, Kind: ir.IdentifierMessage}
	case *ir.Service:
		return ir.Identifier{Name: d.Name, FullName: d.FullName, Kind: ir.IdentifierService}
	default:
		return ir.Identifier{Name: decl.DeclName()}
	}
}

func collectBody(file protoreflect.FileDescriptor) ([]ir.Declaration, error) {
	var body []ir.Declaration
	for _, enum := range collectEnums(file.Enums(), nil) {
		body = append(body, enum)
	}
	decls, err := collectMessages(file.Messages(), nil)
	if err != nil {
		return nil, err
	}
	body = append(body, decls...)
	services := file.Services()
	for i := 0; i < services.Len(); i++ {
		body = append(body, convertService(services.Get(i)))
	}

	declared := make(map[string]string, len(body))
	for _, decl := range body {
		id := identifierFor(decl)
		if prev, ok := declared[id.Name]; ok {
			return nil, errors.Newf("%s: %s and %s both generate the type %s",
				file.Path(), prev, id.FullName, id.Name)
		}
		declared[id.Name] = id.FullName
	}
	return body, nil
}

func collectEnums(enums protoreflect.EnumDescriptors, prefix []string) []*ir.Enum {
	var result []*ir.Enum
	for i := 0; i < enums.Len(); i++ {
		enum := enums.Get(i)
		out := &ir.Enum{
			Name:     ir.NestedTypeName(append(prefix[:len(prefix):len(prefix)], string(enum.Name()))...),
			FullName: string(enum.FullName()),
		}
		values := enum.Values()
		for j := 0; j < values.Len(); j++ {
			value := values.Get(j)
			out.Values = append(out.Values, ir.EnumValue{
				Name:   string(value.Name()),
				Number: int32(value.Number()),
			})
		}
		result = append(result, out)
	}
	return result
}

// collectMessages flattens nested messages and enums into top-level
// declarations named after their enclosing messages.
func collectMessages(messages protoreflect.MessageDescriptors, prefix []string) ([]ir.Declaration, error) {
	var result []ir.Declaration
	for i := 0; i < messages.Len(); i++ {
		msg := messages.Get(i)
		if msg.IsMapEntry() {
			continue
		}
		nameParts := append(prefix[:len(prefix):len(prefix)], string(msg.Name()))
		irMsg := &ir.Message{
			Name:     ir.NestedTypeName(nameParts...),
			FullName: string(msg.FullName()),
		}
		fields, err := collectFields(msg.Fields())
		if err != nil {
			return nil, err
		}
		irMsg.Fields = fields
		result = append(result, irMsg)

		for _, enum := range collectEnums(msg.Enums(), nameParts) {
			result = append(result, enum)
		}
		nested, err := collectMessages(msg.Messages(), nameParts)
		if err != nil {
			return nil, err
		}
		result = append(result, nested...)
	}
	return result, nil
}

func convertService(svc protoreflect.ServiceDescriptor) *ir.Service {
	out := &ir.Service{
		Name:     ir.TypeName(string(svc.Name())),
		FullName: string(svc.FullName()),
	}
	methods := svc.Methods()
	for i := 0; i < methods.Len(); i++ {
		method := methods.Get(i)
		out.Methods = append(out.Methods, ir.Method{
			Name:            string(method.Name()),
			InputFullName:   string(method.Input().FullName()),
			OutputFullName:  string(method.Output().FullName()),
			ClientStreaming: method.IsStreamingClient(),
			ServerStreaming: method.IsStreamingServer(),
		})
	}
	return out
}

func collectFields(fields protoreflect.FieldDescriptors) ([]ir.Field, error) {
	var result []ir.Field
	for i := 0; i < fields.Len(); i++ {
		field := fields.Get(i)
		kind, err := kindFromField(field)
		if err != nil {
			return nil, err
		}
		out := ir.Field{
			Name:       ir.FieldName(string(field.Name())),
			Number:     int(field.Number()),
			Kind:       kind,
			IsRepeated: field.IsList(),
			IsOptional: field.HasPresence() && !field.IsList() && !field.IsMap() && field.Kind() != protoreflect.MessageKind,
		}
		if oneof := field.ContainingOneof(); oneof != nil && !oneof.IsSynthetic() {
			out.Oneof = string(oneof.Name())
		}
		switch {
		case field.IsMap():
			out.IsMap = true
			out.MapKeyKind, err = kindFromField(field.MapKey())
			if err != nil {
				return nil, err
			}
			out.MapValueKind, err = kindFromField(field.MapValue())
			if err != nil {
				return nil, err
			}
			switch out.MapValueKind {
			case ir.KindMessage:
				out.MapValueType = string(field.MapValue().Message().FullName())
			case ir.KindEnum:
				out.MapValueType = string(field.MapValue().Enum().FullName())
			}
		case kind == ir.KindMessage:
			out.TypeName = string(field.Message().FullName())
		case kind == ir.KindEnum:
			out.TypeName = string(field.Enum().FullName())
		}
		result = append(result, out)
	}
	return result, nil
}

func kindFromField(field protoreflect.FieldDescriptor) (ir.Kind, error) {
	switch field.Kind() {
	case protoreflect.BoolKind:
		return ir.KindBool, nil
	case protoreflect.Int32Kind:
		return ir.KindInt32, nil
	case protoreflect.Int64Kind:
		return ir.KindInt64, nil
	case protoreflect.Uint32Kind:
		return ir.KindUint32, nil
	case protoreflect.Uint64Kind:
		return ir.KindUint64, nil
	case protoreflect.Sint32Kind:
		return ir.KindSint32, nil
	case protoreflect.Sint64Kind:
		return ir.KindSint64, nil
	case protoreflect.Fixed32Kind:
		return ir.KindFixed32, nil
	case protoreflect.Fixed64Kind:
		return ir.KindFixed64, nil
	case protoreflect.Sfixed32Kind:
		return ir.KindSfixed32, nil
	case protoreflect.Sfixed64Kind:
		return ir.KindSfixed64, nil
	case protoreflect.FloatKind:
		return ir.KindFloat, nil
	case protoreflect.DoubleKind:
		return ir.KindDouble, nil
	case protoreflect.StringKind:
		return ir.KindString, nil
	case protoreflect.BytesKind:
		return ir.KindBytes, nil
	case protoreflect.MessageKind:
		return ir.KindMessage, nil
	case protoreflect.EnumKind:
		return ir.KindEnum, nil
	default:
		return 0, errors.Newf("unsupported field kind %s: %s", field.Kind(), field.FullName())
	}
}

func fileStem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
