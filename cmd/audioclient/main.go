package main

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcapi "ai-speech-dictation-service/internal/api/grpc"
)

// Stream audio in chunks to simulate real-time streaming
const chunkInterval = 100 * time.Millisecond

// pcmChunk encodes 16-bit samples as little-endian LINEAR16.
func pcmChunk(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16-bit PCM mono)")
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	toggle := flag.Bool("toggle", true, "Start recording before streaming and stop afterwards")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		log.Fatal("Not a valid WAV file")
	}
	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		dec.WavAudioFormat, dec.NumChans, dec.SampleRate, dec.BitDepth)
	if dec.WavAudioFormat != 1 || dec.BitDepth != 16 {
		log.Fatal("Only 16-bit PCM supported")
	}
	if dec.NumChans != 1 {
		log.Printf("Warning: %d channels, the recognizer expects mono", dec.NumChans)
	}
	if err := dec.FwdToPCM(); err != nil {
		log.Fatalf("Failed to seek to PCM data: %v", err)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	client := grpcapi.NewClient(conn)
	log.Printf("Connected to %s", *serverAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *toggle {
		if _, err := client.Toggle(ctx); err != nil {
			log.Fatalf("Failed to start recording: %v", err)
		}
	}

	stream, err := client.StreamAudio(ctx)
	if err != nil {
		log.Fatalf("Failed to create stream: %v", err)
	}

	samplesPerChunk := int(dec.SampleRate) * int(dec.NumChans) * int(chunkInterval/time.Millisecond) / 1000
	buf := &audio.IntBuffer{
		Data:   make([]int, samplesPerChunk),
		Format: dec.Format(),
	}

	var chunkNum, totalBytes int
	startTime := time.Now()
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			log.Fatalf("Failed to read audio: %v", err)
		}
		if n == 0 {
			break
		}

		chunk := pcmChunk(buf.Data[:n])
		if err := stream.Send(wrapperspb.Bytes(chunk)); err != nil {
			log.Fatalf("Failed to send chunk: %v", err)
		}
		chunkNum++
		totalBytes += len(chunk)
		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		time.Sleep(chunkInterval)
	}

	ack, err := stream.CloseAndRecv()
	if err != nil {
		log.Fatalf("Failed to receive ack: %v", err)
	}
	log.Printf("Finished streaming: %d chunks, %d bytes acknowledged in %v",
		chunkNum, ack.GetValue(), time.Since(startTime))

	// Give the recognizer a moment to deliver the last final result.
	time.Sleep(2 * time.Second)
	text, err := client.Read(ctx)
	if err != nil {
		log.Fatalf("Failed to read transcript: %v", err)
	}
	log.Printf("Transcript: %q", text)

	if *toggle {
		if _, err := client.Toggle(ctx); err != nil {
			log.Printf("Failed to stop recording: %v", err)
		}
	}
}
