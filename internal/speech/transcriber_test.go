package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// tone returns n samples of a square wave at the given amplitude.
func tone(n int, amp int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func newTestTranscriber(t *testing.T, handler http.HandlerFunc, opts ...TranscriberOption) *Transcriber {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL
	return NewTranscriber(openai.NewClientWithConfig(cfg), "whisper-1", logger.New(logger.LevelOff, nil), opts...)
}

func TestTranscribe(t *testing.T) {
	var gotModel, gotFile string
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		if f, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  hello \n"}`))
	})

	u := &domain.Utterance{PCM: tone(CaptureSampleRate, 3000), SampleRate: CaptureSampleRate}
	text, err := tr.Transcribe(context.Background(), u)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected hello, got %q", text)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("expected model whisper-1, got %q", gotModel)
	}
	if !strings.HasSuffix(gotFile, ".wav") {
		t.Fatalf("expected a wav upload, got %q", gotFile)
	}
}

func TestTranscribeOptions(t *testing.T) {
	var gotLang string
	handler := func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotLang = r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"bonjour"}`))
	}
	quiet := &domain.Utterance{PCM: tone(CaptureSampleRate, 200), SampleRate: CaptureSampleRate}

	// The default gate drops a quiet capture before upload.
	tr := newTestTranscriber(t, handler)
	if _, err := tr.Transcribe(context.Background(), quiet); !errors.Is(err, domain.ErrNoTranscript) {
		t.Fatalf("expected quiet capture gated, got %v", err)
	}

	tr = newTestTranscriber(t, handler, WithSilenceGate(100), WithLanguage("fr"))
	text, err := tr.Transcribe(context.Background(), quiet)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "bonjour" || gotLang != "fr" {
		t.Fatalf("expected bonjour in fr, got %q in %q", text, gotLang)
	}
}

func TestTranscribeNoResult(t *testing.T) {
	calls := 0
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"[BLANK_AUDIO]"}`))
	})
	ctx := context.Background()

	cases := []struct {
		name string
		u    *domain.Utterance
	}{
		{"nil", nil},
		{"empty", &domain.Utterance{SampleRate: CaptureSampleRate}},
		{"too_short", &domain.Utterance{PCM: tone(800, 3000), SampleRate: CaptureSampleRate}},
		{"silent", &domain.Utterance{PCM: tone(CaptureSampleRate, 20), SampleRate: CaptureSampleRate}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tr.Transcribe(ctx, tc.u); !errors.Is(err, domain.ErrNoTranscript) {
				t.Fatalf("expected ErrNoTranscript, got %v", err)
			}
		})
	}
	if calls != 0 {
		t.Fatalf("gated audio reached the endpoint %d times", calls)
	}

	loud := &domain.Utterance{PCM: tone(CaptureSampleRate, 3000), SampleRate: CaptureSampleRate}
	if _, err := tr.Transcribe(ctx, loud); !errors.Is(err, domain.ErrNoTranscript) {
		t.Fatalf("annotation-only transcript: expected ErrNoTranscript, got %v", err)
	}
}

func TestTranscribeBackendError(t *testing.T) {
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	})
	u := &domain.Utterance{PCM: tone(CaptureSampleRate, 3000), SampleRate: CaptureSampleRate}
	_, err := tr.Transcribe(context.Background(), u)
	if err == nil || errors.Is(err, domain.ErrNoTranscript) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
