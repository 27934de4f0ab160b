package ir

import "sort"

// ResolvedFile is a parsed IDL file with its includes and symbols resolved.
type ResolvedFile struct {
	Name        string
	Path        string
	Namespace   Namespace
	Body        []Declaration
	Includes    IncludeMap
	Identifiers IdentifierMap
}

// Namespace controls where generated output is placed relative to the
// output directory.
type Namespace struct {
	Scope string
	Name  string
	Path  string
}

type IncludeDescriptor struct {
	File   *ResolvedFile
	Public bool
	// ReexportedBy is the path of the directly included file whose
	// import public brought this file in. Empty for direct includes.
	ReexportedBy string
	// Used lists the full names of the included identifiers the including
	// file references.
	Used []string
}

// IncludeMap maps an include alias to the included file.
type IncludeMap map[string]IncludeDescriptor

// Aliases returns the include aliases in sorted order. Everything that
// walks includes uses this order so generated output is stable.
func (m IncludeMap) Aliases() []string {
	aliases := make([]string, 0, len(m))
	for alias := range m {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

type IdentifierKind int

const (
	IdentifierEnum IdentifierKind = iota
	IdentifierMessage
	IdentifierService
)

func (k IdentifierKind) String() string {
	switch k {
	case IdentifierEnum:
		return "enum"
	case IdentifierMessage:
		return "message"
	case IdentifierService:
		return "service"
	default:
		return "unknown"
	}
}

type Identifier struct {
	Name     string
	FullName string
	Kind     IdentifierKind
	// Alias is the include alias the identifier is reachable through, empty
	// for identifiers declared in the file itself.
	Alias string
	File  string
}

// IdentifierMap is keyed by fully qualified name.
type IdentifierMap map[string]Identifier

// Declaration is one top-level node of a file body.
type Declaration interface {
	DeclName() string
}

type Enum struct {
	Name     string
	FullName string
	Values   []EnumValue
}

func (e *Enum) DeclName() string { return e.Name }

type EnumValue struct {
	Name   string
	Number int32
}

type Message struct {
	Name     string
	FullName string
	Fields   []Field
}

func (m *Message) DeclName() string { return m.Name }

type Service struct {
	Name     string
	FullName string
	Methods  []Method
}

func (s *Service) DeclName() string { return s.Name }

type Method struct {
	Name            string
	InputFullName   string
	OutputFullName  string
	ClientStreaming bool
	ServerStreaming bool
}

type Field struct {
	Name       string
	Number     int
	Kind       Kind
	IsRepeated bool
	IsOptional bool
	IsMap      bool
	MapKeyKind Kind
	// MapValueKind and MapValueType describe the value of a map field.
	MapValueKind Kind
	MapValueType string
	// TypeName is the full name of the referenced message or enum.
	TypeName string
	Oneof    string
}

type Kind int

const (
	KindBool Kind = iota
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindMessage
	KindEnum
)
