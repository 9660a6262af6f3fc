package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "ai.speech.dictation.v1.DictationService"

// DictationServer is the server API for the dictation service. Messages
// are protobuf well-known types:
//
//	Toggle(Empty) BoolValue            new recording intent
//	Clear(Empty) Empty
//	Copy(Empty) Empty
//	Read(Empty) StringValue            transcript buffer
//	Status(Empty) Struct               session snapshot
//	Watch(Empty) stream Struct         display updates {type, text, revision}
//	StreamAudio(stream BytesValue) UInt64Value   bytes accepted
type DictationServer interface {
	Toggle(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Clear(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Copy(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Read(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
	StreamAudio(grpc.ClientStreamingServer[wrapperspb.BytesValue, wrapperspb.UInt64Value]) error
}

// RegisterDictationServer registers srv on s.
func RegisterDictationServer(s grpc.ServiceRegistrar, srv DictationServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unaryEmpty builds a method descriptor for a call taking Empty.
func unaryEmpty(name string, call func(DictationServer, context.Context, *emptypb.Empty) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DictationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DictationServer), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DictationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryEmpty("Toggle", func(s DictationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Toggle(ctx, in)
		}),
		unaryEmpty("Clear", func(s DictationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Clear(ctx, in)
		}),
		unaryEmpty("Copy", func(s DictationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Copy(ctx, in)
		}),
		unaryEmpty("Read", func(s DictationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Read(ctx, in)
		}),
		unaryEmpty("Status", func(s DictationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Status(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(DictationServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
			},
		},
		{
			StreamName:    "StreamAudio",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(DictationServer).StreamAudio(&grpc.GenericServerStream[wrapperspb.BytesValue, wrapperspb.UInt64Value]{ServerStream: stream})
			},
		},
	},
	Metadata: protoFile,
}

// Client calls the dictation service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Toggle flips recording and returns the new intent.
func (c *Client) Toggle(ctx context.Context, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, fullMethod("Toggle"), &emptypb.Empty{}, out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) Clear(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("Clear"), &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *Client) Copy(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("Copy"), &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

// Read returns the transcript buffer.
func (c *Client) Read(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, fullMethod("Read"), &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Status returns the session snapshot as a map.
func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Status"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Watch streams display updates until ctx is done.
func (c *Client) Watch(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// StreamAudio opens an audio upload stream.
func (c *Client) StreamAudio(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[wrapperspb.BytesValue, wrapperspb.UInt64Value], error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[1], fullMethod("StreamAudio"), opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wrapperspb.BytesValue, wrapperspb.UInt64Value]{ClientStream: stream}, nil
}
