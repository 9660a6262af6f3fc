// Package google provides a Google Cloud Speech-to-Text streaming source.
package google

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-dictation-service/internal/models"
	"ai-speech-dictation-service/internal/observability/logging"
	"ai-speech-dictation-service/internal/service/stt"
)

// AudioReader supplies raw audio chunks. audio.Pipe implements it.
type AudioReader interface {
	Read(ctx context.Context) ([]byte, error)
}

// recognizer is the subset of *speech.Client the source uses.
type recognizer interface {
	StreamingRecognize(ctx context.Context, opts ...gax.CallOption) (speechpb.Speech_StreamingRecognizeClient, error)
}

// DefaultConfig returns the default recognition configuration.
func DefaultConfig() stt.Config {
	return stt.DefaultConfig()
}

// Source implements stt.Source using Cloud Speech streaming recognition.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Source struct {
	client recognizer
	closer io.Closer
	cfg    stt.Config
	audio  AudioReader
	log    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New creates a Cloud Speech client and a source reading audio from r.
func New(ctx context.Context, cfg stt.Config, r AudioReader) (*Source, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	s := newSource(c, cfg, r)
	s.closer = c
	return s, nil
}

func newSource(client recognizer, cfg stt.Config, r AudioReader) *Source {
	return &Source{
		client: client,
		cfg:    cfg,
		audio:  r,
		log:    logging.WithComponent("stt-google"),
	}
}

func (s *Source) Name() string {
	return "google"
}

// Start opens a streaming recognition session and sends the config message.
func (s *Source) Start(ctx context.Context, h stt.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return stt.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := s.client.StreamingRecognize(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("open recognize stream: %w", err)
	}

	if err := stream.Send(configRequest(s.cfg)); err != nil {
		cancel()
		return fmt.Errorf("send streaming config: %w", err)
	}

	s.cancel = cancel
	s.running = true

	go s.sendAudio(runCtx, stream)
	go s.listen(runCtx, stream, h)
	return nil
}

// Stop cancels the streaming session. Idempotent.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Close releases the underlying client.
func (s *Source) Close() error {
	s.Stop()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func configRequest(cfg stt.Config) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(cfg.AudioEncoding),
					SampleRateHertz: cfg.SampleRateHz,
					LanguageCode:    cfg.LanguageCode,
				},
				InterimResults:  cfg.InterimResults,
				SingleUtterance: !cfg.Continuous,
			},
		},
	}
}

// sendAudio forwards audio until the pipe closes or the run is cancelled.
func (s *Source) sendAudio(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient) {
	defer stream.CloseSend()

	for {
		chunk, err := s.audio.Read(ctx)
		if err != nil {
			return
		}
		err = stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk,
			},
		})
		if err != nil {
			// Recv reports the stream error
			return
		}
	}
}

// listen converts responses to recognition events until the stream ends.
func (s *Source) listen(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, h stt.Handler) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		h.OnEnd()
	}()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			h.OnError(fmt.Errorf("recognize stream: %w", err))
			return
		}

		if st := resp.GetError(); st != nil && st.GetCode() != 0 {
			// OUT_OF_RANGE is the provider's stream duration limit; the
			// session restarts the source.
			err := status.ErrorProto(st)
			if status.Code(err) != codes.OutOfRange {
				h.OnError(err)
			} else {
				s.log.Debug().Err(err).Msg("Recognize stream reached duration limit")
			}
			continue
		}

		if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			s.log.Debug().Msg("End of single utterance")
		}

		if ev, ok := toEvent(resp); ok {
			h.OnResult(ev)
		}
	}
}

// toEvent converts a streaming response to a RecognitionEvent.
func toEvent(resp *speechpb.StreamingRecognizeResponse) (models.RecognitionEvent, bool) {
	if len(resp.GetResults()) == 0 {
		return models.RecognitionEvent{}, false
	}

	ev := models.RecognitionEvent{
		Results: make([]models.RecognitionResult, 0, len(resp.GetResults())),
	}
	for _, r := range resp.GetResults() {
		result := models.RecognitionResult{IsFinal: r.GetIsFinal()}
		for _, alt := range r.GetAlternatives() {
			result.Alternatives = append(result.Alternatives, models.Alternative{
				Transcript: alt.GetTranscript(),
				Confidence: float64(alt.GetConfidence()),
			})
		}
		ev.Results = append(ev.Results, result)
	}
	ev.ReceivedAt = time.Now()
	return ev, true
}

// parseAudioEncoding converts a string encoding name to the Google Speech API enum.
// Supported values: LINEAR16, MULAW, FLAC, AMR, AMR_WB, OGG_OPUS, SPEEX_WITH_HEADER_BYTE, WEBM_OPUS.
// Defaults to LINEAR16 if not recognized.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
