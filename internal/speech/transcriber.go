package speech

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

var _ domain.Transcriber = (*Transcriber)(nil)

// transcriptionAPI is the slice of the go-openai client the transcriber uses.
type transcriptionAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// TranscriberOption configures the Transcriber.
type TranscriberOption func(*Transcriber)

// WithLanguage passes an ISO-639-1 hint to the transcription endpoint.
func WithLanguage(lang string) TranscriberOption {
	return func(t *Transcriber) { t.language = lang }
}

// WithSilenceGate sets the RMS below which an utterance is treated as
// silence and never uploaded.
func WithSilenceGate(level float64) TranscriberOption {
	return func(t *Transcriber) { t.silenceRMS = level }
}

// Transcriber turns captured audio into text through an OpenAI-compatible
// /audio/transcriptions endpoint.
type Transcriber struct {
	api        transcriptionAPI
	model      string
	language   string
	silenceRMS float64
	minSeconds float64
	log        *logger.Logger
}

// NewTranscriber creates a transcriber using the given model, e.g. "whisper-1".
func NewTranscriber(api transcriptionAPI, model string, log *logger.Logger, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		api:        api,
		model:      model,
		silenceRMS: DefaultSilenceRMS,
		minSeconds: DefaultMinUtterance.Seconds(),
		log:        log,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe returns the recognized text. Silent, too-short, and
// annotation-only captures yield domain.ErrNoTranscript.
func (t *Transcriber) Transcribe(ctx context.Context, u *domain.Utterance) (string, error) {
	if u == nil || len(u.PCM) == 0 || u.SampleRate <= 0 {
		return "", domain.ErrNoTranscript
	}
	if secs := float64(len(u.PCM)) / float64(u.SampleRate); secs < t.minSeconds {
		t.log.Debug("transcriber: utterance too short (%.2fs)", secs)
		return "", domain.ErrNoTranscript
	}
	if level := rms(u.PCM); level < t.silenceRMS {
		t.log.Debug("transcriber: silence (rms=%.0f < %.0f)", level, t.silenceRMS)
		return "", domain.ErrNoTranscript
	}

	wav := encodeWAV(samplesToBytes(u.PCM), u.SampleRate, CaptureChannels)
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Language: t.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}

	text := cleanTranscription(resp.Text)
	t.log.Debug("transcriber: raw=%q clean=%q", resp.Text, text)
	if text == "" {
		return "", domain.ErrNoTranscript
	}
	return text, nil
}
