package ir

import (
	"strings"
	"unicode"
)

// TypeName converts an IDL declaration name to a TypeScript type name.
func TypeName(idlName string) string {
	parts := splitParts(idlName)
	if len(parts) == 0 {
		return ""
	}
	for i := range parts {
		parts[i] = title(parts[i])
	}
	return strings.Join(parts, "")
}

// FieldName converts an IDL field name to a TypeScript property name.
func FieldName(idlName string) string {
	parts := splitParts(idlName)
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 && !isUpper(parts[0]) {
		return lowerFirst(parts[0])
	}
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		parts[i] = title(parts[i])
	}
	return strings.Join(parts, "")
}

// MethodName converts an IDL method name to a TypeScript method name
// (GetUser -> getUser).
func MethodName(idlName string) string {
	return FieldName(idlName)
}

// NestedTypeName joins the names of a nested declaration and its enclosing
// messages, converting each segment on its own so the case of every segment
// survives (UserProfile, Inner -> UserProfileInner).
func NestedTypeName(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(TypeName(s))
	}
	return b.String()
}

// IncludeAlias turns a file stem into an identifier usable as an import
// alias. Characters outside [A-Za-z0-9_] become underscores and a leading
// digit is prefixed.
func IncludeAlias(stem string) string {
	if stem == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range stem {
		switch {
		case r == '_' || unicode.IsLetter(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func splitParts(name string) []string {
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, "_-") {
		parts := strings.FieldsFunc(name, func(r rune) bool {
			return r == '_' || r == '-'
		})
		for i := range parts {
			parts[i] = strings.ToLower(parts[i])
		}
		return parts
	}
	return []string{name}
}

func lowerFirst(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// isUpper reports whether s has letters and none of them are lower case.
func isUpper(s string) bool {
	letters := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		letters = letters || unicode.IsLetter(r)
	}
	return letters
}

func title(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
