package grpcapi

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// protoFile is the descriptor path reflection clients resolve the service by.
const protoFile = "ai/speech/dictation/v1/dictation.proto"

// fileDescriptor describes DictationService in the global registry so
// reflection clients such as grpcurl can list and describe it.
var fileDescriptor = registerFile()

func rpc(name, in, out string, clientStreams, serverStreams bool) *descriptorpb.MethodDescriptorProto {
	m := &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(in),
		OutputType: proto.String(out),
	}
	if clientStreams {
		m.ClientStreaming = proto.Bool(true)
	}
	if serverStreams {
		m.ServerStreaming = proto.Bool(true)
	}
	return m
}

func registerFile() protoreflect.FileDescriptor {
	const (
		empty   = ".google.protobuf.Empty"
		boolV   = ".google.protobuf.BoolValue"
		stringV = ".google.protobuf.StringValue"
		bytesV  = ".google.protobuf.BytesValue"
		uint64V = ".google.protobuf.UInt64Value"
		strct   = ".google.protobuf.Struct"
	)

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String("ai.speech.dictation.v1"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			"google/protobuf/empty.proto",
			"google/protobuf/wrappers.proto",
			"google/protobuf/struct.proto",
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("DictationService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpc("Toggle", empty, boolV, false, false),
				rpc("Clear", empty, empty, false, false),
				rpc("Copy", empty, empty, false, false),
				rpc("Read", empty, stringV, false, false),
				rpc("Status", empty, strct, false, false),
				rpc("Watch", empty, strct, false, true),
				rpc("StreamAudio", bytesV, uint64V, true, false),
			},
		}},
	}

	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("build %s descriptor: %v", protoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register %s descriptor: %v", protoFile, err))
	}
	return fd
}
