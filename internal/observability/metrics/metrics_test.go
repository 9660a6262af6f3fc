package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordReduction(t *testing.T) {
	m := newTestMetrics()

	m.RecordReduction("command", "comma", 0.001)
	m.RecordReduction("literal", "", 0.001)
	m.RecordReduction("literal", "", 0.001)

	if got := testutil.ToFloat64(m.Reductions.WithLabelValues("literal")); got != 2 {
		t.Errorf("expected 2 literal reductions, got %v", got)
	}
	if got := testutil.ToFloat64(m.CommandsMatched.WithLabelValues("comma")); got != 1 {
		t.Errorf("expected 1 comma match, got %v", got)
	}
}

func TestRecordRecognitionEvent(t *testing.T) {
	m := newTestMetrics()

	m.RecordRecognitionEvent(3, 1)

	if got := testutil.ToFloat64(m.RecognitionEvents); got != 1 {
		t.Errorf("expected 1 event, got %v", got)
	}
	if got := testutil.ToFloat64(m.ResultsInterim); got != 3 {
		t.Errorf("expected 3 interim results, got %v", got)
	}
	if got := testutil.ToFloat64(m.ResultsFinal); got != 1 {
		t.Errorf("expected 1 final result, got %v", got)
	}
}

func TestSetRecording(t *testing.T) {
	m := newTestMetrics()

	m.SetRecording(true)
	if got := testutil.ToFloat64(m.Recording); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	m.SetRecording(false)
	if got := testutil.ToFloat64(m.Recording); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestRecordCopy(t *testing.T) {
	m := newTestMetrics()

	m.RecordCopy(nil)
	m.RecordCopy(errors.New("no clipboard"))

	if got := testutil.ToFloat64(m.ClipboardCopies.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.ClipboardCopies.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestRecordKafkaPublish(t *testing.T) {
	m := newTestMetrics()

	m.RecordKafkaPublish("topic", "fragment", nil, 0.01)
	m.RecordKafkaPublish("topic", "fragment", errors.New("boom"), 0.01)

	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("topic", "fragment")); got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("topic", "fragment")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestRecordStreamLifecycle(t *testing.T) {
	m := newTestMetrics()

	m.RecordStreamStart()
	if got := testutil.ToFloat64(m.StreamsActive); got != 1 {
		t.Errorf("expected 1 active stream, got %v", got)
	}
	m.RecordStreamEnd(false, 1.5)
	if got := testutil.ToFloat64(m.StreamsActive); got != 0 {
		t.Errorf("expected 0 active streams, got %v", got)
	}
	if got := testutil.ToFloat64(m.StreamsFailed); got != 1 {
		t.Errorf("expected 1 failed stream, got %v", got)
	}
}
