package tsgen

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jptrs93/cleants/internal/generate"
	"github.com/jptrs93/cleants/internal/ir"
)

var (
	ErrUnsupportedDeclaration = errors.New("unsupported declaration")
	ErrUnsupportedField       = errors.New("unsupported field")
	ErrUnsupportedMethod      = errors.New("unsupported method")
	ErrUnresolvedIdentifier   = errors.New("unresolved identifier")
	ErrAliasConflict          = errors.New("include alias conflicts with the runtime alias")
)

const indent = "    "

// Renderer renders declarations as TypeScript enums and interfaces.
type Renderer struct {
	// RuntimeAlias is the namespace the runtime module is imported under.
	RuntimeAlias string
}

func NewRenderer(runtimeAlias string) Renderer {
	if runtimeAlias == "" {
		runtimeAlias = DefaultRuntimeAlias
	}
	return Renderer{RuntimeAlias: runtimeAlias}
}

func (r Renderer) Render(body []ir.Declaration, identifiers ir.IdentifierMap) ([]generate.Statement, error) {
	statements := make([]generate.Statement, 0, len(body))
	for _, decl := range body {
		var (
			stmt string
			err  error
		)
		switch d := decl.(type) {
		case *ir.Enum:
			stmt = renderEnum(d)
		case *ir.Message:
			stmt, err = r.renderMessage(d, identifiers)
		case *ir.Service:
			stmt, err = r.renderService(d, identifiers)
		default:
			err = errors.Wrapf(ErrUnsupportedDeclaration, "%T", decl)
		}
		if err != nil {
			return nil, err
		}
		statements = append(statements, generate.Statement(stmt))
	}
	return statements, nil
}

func renderEnum(enum *ir.Enum) string {
	var b strings.Builder
	fmt.Fprintf(&b, "export enum %s {\n", enum.Name)
	for _, value := range enum.Values {
		fmt.Fprintf(&b, "%s%s = %d,\n", indent, value.Name, value.Number)
	}
	b.WriteString("}")
	return b.String()
}

func (r Renderer) renderMessage(msg *ir.Message, identifiers ir.IdentifierMap) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "export interface %s {\n", msg.Name)
	for _, field := range msg.Fields {
		if field.Oneof != "" {
			return "", errors.Wrapf(ErrUnsupportedField, "%s.%s: oneof %s", msg.FullName, field.Name, field.Oneof)
		}
		tsType, err := r.fieldType(field, identifiers)
		if err != nil {
			return "", errors.Wrapf(err, "%s.%s", msg.FullName, field.Name)
		}
		sep := ": "
		if isOptionalField(field) {
			sep = "?: "
		}
		fmt.Fprintf(&b, "%s%s%s%s;\n", indent, field.Name, sep, tsType)
	}
	b.WriteString("}")
	return b.String(), nil
}

func (r Renderer) renderService(svc *ir.Service, identifiers ir.IdentifierMap) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "export interface %sHandler<Context = any> {\n", svc.Name)
	for _, method := range svc.Methods {
		if method.ClientStreaming || method.ServerStreaming {
			return "", errors.Wrapf(ErrUnsupportedMethod, "%s.%s: streaming", svc.FullName, method.Name)
		}
		input, err := reference(method.InputFullName, identifiers)
		if err != nil {
			return "", errors.Wrapf(err, "%s.%s", svc.FullName, method.Name)
		}
		output, err := reference(method.OutputFullName, identifiers)
		if err != nil {
			return "", errors.Wrapf(err, "%s.%s", svc.FullName, method.Name)
		}
		fmt.Fprintf(&b, "%s%s(request: %s, context?: Context): %s | Promise<%s>;\n",
			indent, ir.MethodName(method.Name), input, output, output)
	}
	b.WriteString("}")
	return b.String(), nil
}

func isOptionalField(field ir.Field) bool {
	if field.IsRepeated || field.IsMap {
		return false
	}
	return field.IsOptional || field.Kind == ir.KindMessage
}

func (r Renderer) fieldType(field ir.Field, identifiers ir.IdentifierMap) (string, error) {
	if field.IsMap {
		key, err := r.scalarType(field.MapKeyKind)
		if err != nil {
			return "", err
		}
		value, err := r.valueType(field.MapValueKind, field.MapValueType, identifiers)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Map<%s, %s>", key, value), nil
	}
	elem, err := r.valueType(field.Kind, field.TypeName, identifiers)
	if err != nil {
		return "", err
	}
	if field.IsRepeated {
		return fmt.Sprintf("Array<%s>", elem), nil
	}
	return elem, nil
}

func (r Renderer) valueType(kind ir.Kind, typeName string, identifiers ir.IdentifierMap) (string, error) {
	if kind == ir.KindMessage || kind == ir.KindEnum {
		return reference(typeName, identifiers)
	}
	return r.scalarType(kind)
}

func (r Renderer) scalarType(kind ir.Kind) (string, error) {
	switch kind {
	case ir.KindBool:
		return "boolean", nil
	case ir.KindInt32, ir.KindUint32, ir.KindSint32, ir.KindFixed32, ir.KindSfixed32, ir.KindFloat, ir.KindDouble:
		return "number", nil
	case ir.KindInt64, ir.KindUint64, ir.KindSint64, ir.KindFixed64, ir.KindSfixed64:
		return r.RuntimeAlias + ".Int64", nil
	case ir.KindString:
		return "string", nil
	case ir.KindBytes:
		return "Buffer", nil
	default:
		return "", errors.Wrapf(ErrUnsupportedField, "kind %d is not a scalar", kind)
	}
}

// reference resolves a declaration full name to the TypeScript name it is
// visible under in the current module.
func reference(fullName string, identifiers ir.IdentifierMap) (string, error) {
	id, ok := identifiers[fullName]
	if !ok {
		return "", errors.Wrapf(ErrUnresolvedIdentifier, "%s", fullName)
	}
	if id.Alias == "" {
		return id.Name, nil
	}
	return id.Alias + "." + id.Name, nil
}
