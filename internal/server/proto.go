package server

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	protoFile   = "lispjit/evaluator.proto"
	ServiceName = "lispjit.Evaluator"
)

const evaluatorProto = `syntax = "proto3";

package lispjit;

message EvalRequest {
  string session_id = 1;
  string source = 2;
}

message EvalReply {
  string session_id = 1;
  string kind = 2;
  double value = 3;
  string name = 4;
  int32 arity = 5;
  string code = 6;
  string message = 7;
}

message RecordsRequest {
  string session_id = 1;
}

message RecordsReply {
  repeated string sources = 1;
}

service Evaluator {
  rpc Eval(EvalRequest) returns (EvalReply);
  rpc Records(RecordsRequest) returns (RecordsReply);
}
`

// Reply kinds.
const (
	KindExpression = "expression"
	KindVariable   = "variable"
	KindFunction   = "function"
	KindError      = "error"
)

var expectedFields = map[string]map[string]descriptorpb.FieldDescriptorProto_Type{
	"lispjit.EvalRequest": {
		"session_id": descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"source":     descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
	"lispjit.EvalReply": {
		"session_id": descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"kind":       descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"value":      descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
		"name":       descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"arity":      descriptorpb.FieldDescriptorProto_TYPE_INT32,
		"code":       descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"message":    descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
	"lispjit.RecordsRequest": {
		"session_id": descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
	"lispjit.RecordsReply": {
		"sources": descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
}

// LoadService parses the embedded evaluator.proto and returns the
// Evaluator service descriptor.
func LoadService() (*desc.ServiceDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: evaluatorProto}),
	}
	fds, err := parser.ParseFiles(protoFile)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", protoFile, err)
	}
	fd := fds[0]
	for msgName, fields := range expectedFields {
		md := fd.FindMessage(msgName)
		if md == nil {
			return nil, fmt.Errorf("%s: missing message %s", protoFile, msgName)
		}
		for name, typ := range fields {
			f := md.FindFieldByName(name)
			if f == nil || f.GetType() != typ {
				return nil, fmt.Errorf("%s: field %s.%s must be %s", protoFile, msgName, name, typ)
			}
		}
	}
	sd := fd.FindService(ServiceName)
	if sd == nil {
		return nil, fmt.Errorf("%s: missing service %s", protoFile, ServiceName)
	}
	return sd, nil
}

func methodPath(md *desc.MethodDescriptor) string {
	return "/" + md.GetService().GetFullyQualifiedName() + "/" + md.GetName()
}
