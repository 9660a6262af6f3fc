package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "ai-speech-dictation-service/internal/api/grpc"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: testclient [-server addr] toggle|read|status|clear|copy|watch\n")
	flag.PrintDefaults()
}

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	timeout := flag.Duration("timeout", 10*time.Second, "Timeout for unary calls")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	client := grpcapi.NewClient(conn)

	if flag.Arg(0) == "watch" {
		watch(client)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch flag.Arg(0) {
	case "toggle":
		recording, err := client.Toggle(ctx)
		if err != nil {
			log.Fatalf("toggle failed: %v", err)
		}
		log.Printf("recording=%v", recording)
	case "read":
		text, err := client.Read(ctx)
		if err != nil {
			log.Fatalf("read failed: %v", err)
		}
		fmt.Println(text)
	case "status":
		st, err := client.Status(ctx)
		if err != nil {
			log.Fatalf("status failed: %v", err)
		}
		out, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(out))
	case "clear":
		if err := client.Clear(ctx); err != nil {
			log.Fatalf("clear failed: %v", err)
		}
		log.Println("transcript cleared")
	case "copy":
		if err := client.Copy(ctx); err != nil {
			log.Fatalf("copy failed: %v", err)
		}
		log.Println("transcript copied")
	default:
		usage()
		os.Exit(2)
	}
}

// watch prints display updates until the server ends the stream.
func watch(client *grpcapi.Client) {
	stream, err := client.Watch(context.Background())
	if err != nil {
		log.Fatalf("watch failed: %v", err)
	}
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("watch ended: %v", err)
		}
		u := msg.AsMap()
		log.Printf("[%v] %q", u["type"], u["text"])
	}
}
