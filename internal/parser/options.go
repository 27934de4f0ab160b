package parser

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/runtime/protoimpl"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jptrs93/cleants/internal/ir"
)

const optionsProtoPath = "cleants/options.proto"

const optionsProtoSource = `
syntax = "proto3";

package cleants;

import "google/protobuf/descriptor.proto";

extend google.protobuf.FileOptions {
  string ts_namespace = 50100;
}
`

const tsNamespaceField protowire.Number = 50100

var E_TsNamespace = &protoimpl.ExtensionInfo{
	ExtendedType:  (*descriptorpb.FileOptions)(nil),
	ExtensionType: (*string)(nil),
	Field:         int32(tsNamespaceField),
	Name:          "cleants.ts_namespace",
	Tag:           "bytes,50100,opt,name=ts_namespace",
	Filename:      optionsProtoPath,
}

func tsNamespaceFromOptions(file protoreflect.FileDescriptor) string {
	opts, ok := file.Options().(*descriptorpb.FileOptions)
	if !ok || opts == nil {
		return ""
	}
	if str, ok := proto.GetExtension(opts, E_TsNamespace).(string); ok && str != "" {
		return str
	}
	// The option is kept as unknown bytes when the extension was not
	// registered at the time the options were unmarshalled.
	return unknownStringField(opts.ProtoReflect().GetUnknown(), tsNamespaceField)
}

func unknownStringField(b []byte, num protowire.Number) string {
	var val string
	for len(b) > 0 {
		n, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return ""
		}
		b = b[l:]
		if n == num && typ == protowire.BytesType {
			v, l := protowire.ConsumeBytes(b)
			if l < 0 {
				return ""
			}
			val = string(v)
			b = b[l:]
			continue
		}
		l = protowire.ConsumeFieldValue(n, typ, b)
		if l < 0 {
			return ""
		}
		b = b[l:]
	}
	return val
}

// namespaceForFile derives the output namespace: the ts_namespace option
// when present, otherwise the proto package.
func namespaceForFile(file protoreflect.FileDescriptor) (ir.Namespace, error) {
	ns := ir.Namespace{Scope: "package", Name: string(file.Package())}
	if opt := tsNamespaceFromOptions(file); opt != "" {
		ns = ir.Namespace{Scope: "ts", Name: opt}
	}
	if ns.Name == "" {
		return ns, nil
	}
	segments := strings.Split(ns.Name, ".")
	for _, segment := range segments {
		if segment == "" || strings.ContainsAny(segment, `/\`) {
			return ir.Namespace{}, errors.Newf("%s: invalid namespace %q", file.Path(), ns.Name)
		}
	}
	ns.Path = filepath.Join(segments...)
	if !filepath.IsLocal(ns.Path) {
		return ir.Namespace{}, errors.Newf("%s: namespace %q is not a relative path", file.Path(), ns.Name)
	}
	return ns, nil
}
