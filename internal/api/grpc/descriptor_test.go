package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"ai-speech-dictation-service/internal/service/display"
)

func TestFileDescriptor_MatchesServiceDesc(t *testing.T) {
	svc := fileDescriptor.Services().ByName("DictationService")
	if svc == nil {
		t.Fatal("DictationService missing from descriptor")
	}
	if string(svc.FullName()) != ServiceName {
		t.Errorf("expected %s, got %s", ServiceName, svc.FullName())
	}

	methods := svc.Methods()
	if methods.Len() != len(serviceDesc.Methods)+len(serviceDesc.Streams) {
		t.Fatalf("descriptor has %d methods, service has %d",
			methods.Len(), len(serviceDesc.Methods)+len(serviceDesc.Streams))
	}
	for _, m := range serviceDesc.Methods {
		md := methods.ByName(protoreflect.Name(m.MethodName))
		if md == nil || md.IsStreamingClient() || md.IsStreamingServer() {
			t.Errorf("unary method %s not described as unary", m.MethodName)
		}
	}
	for _, s := range serviceDesc.Streams {
		md := methods.ByName(protoreflect.Name(s.StreamName))
		if md == nil {
			t.Errorf("stream %s not described", s.StreamName)
			continue
		}
		if md.IsStreamingClient() != s.ClientStreams || md.IsStreamingServer() != s.ServerStreams {
			t.Errorf("stream %s streaming flags differ from the service", s.StreamName)
		}
	}
}

func TestReflection_DescribesDictationService(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	g := grpc.NewServer()
	Register(g, NewServer(&fakeSession{}, display.NewHub(4), nil))
	reflection.Register(g)
	go g.Serve(lis)
	defer g.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := grpc_reflection_v1.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		t.Fatalf("ServerReflectionInfo: %v", err)
	}
	err = stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_FileContainingSymbol{
			FileContainingSymbol: ServiceName,
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if e := resp.GetErrorResponse(); e != nil {
		t.Fatalf("reflection error: %s", e.GetErrorMessage())
	}

	for _, raw := range resp.GetFileDescriptorResponse().GetFileDescriptorProto() {
		fdp := new(descriptorpb.FileDescriptorProto)
		if err := proto.Unmarshal(raw, fdp); err != nil {
			t.Fatalf("unmarshal descriptor: %v", err)
		}
		if fdp.GetName() == protoFile {
			if got := len(fdp.GetService()[0].GetMethod()); got != 7 {
				t.Errorf("expected 7 methods, got %d", got)
			}
			return
		}
	}
	t.Errorf("reflection did not return %s", protoFile)
}
