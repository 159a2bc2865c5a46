package speech

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

var _ domain.Listener = (*Recorder)(nil)

const (
	recorderQueueCap = 64
	prerollDuration  = 300 * time.Millisecond
)

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithSilenceHold sets how much trailing quiet ends an utterance early.
// Zero disables endpointing so every capture runs the full window.
func WithSilenceHold(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.silenceHold = d }
}

// WithSilenceThreshold sets the RMS level below which audio counts as quiet.
func WithSilenceThreshold(rms float64) RecorderOption {
	return func(r *Recorder) { r.threshold = rms }
}

// Recorder captures one utterance per call from the default input device
// via miniaudio. The device is opened per capture and released on every
// exit path.
type Recorder struct {
	window      time.Duration
	silenceHold time.Duration
	threshold   float64
	log         *logger.Logger
}

// NewRecorder creates a recorder that captures at most window of audio
// after speech starts.
func NewRecorder(window time.Duration, log *logger.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		window:      window,
		silenceHold: DefaultSilenceHold,
		threshold:   DefaultSilenceRMS,
		log:         log,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Capture waits for speech onset, then records until the window elapses or
// the speaker falls quiet. It returns early only when ctx is cancelled.
func (r *Recorder) Capture(ctx context.Context) (*domain.Utterance, error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = CaptureSampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = CaptureChannels
	devCfg.Alsa.NoMMap = 1

	audioCh := make(chan []int16, recorderQueueCap)
	var drops atomic.Int64

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			select {
			case audioCh <- bytesToSamples(raw):
			default:
				drops.Add(1)
			}
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("audio device start: %w", err)
	}
	defer device.Stop()
	r.log.Debug("recorder: capture started (rate=%d, window=%s)", CaptureSampleRate, r.window)

	ep := newEndpointer(r.threshold, r.silenceHold, CaptureSampleRate)
	prerollMax := int(prerollDuration.Seconds() * CaptureSampleRate)
	var (
		pcm      []int16
		started  bool
		deadline <-chan time.Time
	)

loop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			break loop
		case frame := <-audioCh:
			if !started {
				// Keep a short pre-roll so the first syllable is not clipped.
				pcm = append(pcm, frame...)
				if len(pcm) > prerollMax {
					pcm = append(pcm[:0], pcm[len(pcm)-prerollMax:]...)
				}
				if rms(frame) < r.threshold {
					continue
				}
				started = true
				timer := time.NewTimer(r.window)
				defer timer.Stop()
				deadline = timer.C
				r.log.Debug("recorder: speech onset")
				ep.feed(frame)
				continue
			}
			pcm = append(pcm, frame...)
			if ep.feed(frame) {
				r.log.Debug("recorder: end of speech detected")
				break loop
			}
		}
	}

	if n := drops.Load(); n > 0 {
		r.log.Warn("recorder: dropped %d audio frames", n)
	}

	u := &domain.Utterance{
		PCM:        pcm,
		SampleRate: CaptureSampleRate,
		Duration:   time.Duration(len(pcm)) * time.Second / CaptureSampleRate,
	}
	r.log.Debug("recorder: captured %s (%d samples)", u.Duration, len(pcm))
	return u, nil
}

// endpointer decides when an utterance is over: speech has been heard and
// has been followed by hold worth of quiet frames.
type endpointer struct {
	threshold  float64
	hold       time.Duration
	sampleRate int

	heard bool
	quiet time.Duration
}

func newEndpointer(threshold float64, hold time.Duration, sampleRate int) *endpointer {
	return &endpointer{threshold: threshold, hold: hold, sampleRate: sampleRate}
}

// feed consumes one frame and reports whether the utterance has ended.
func (e *endpointer) feed(frame []int16) bool {
	if e.hold <= 0 || len(frame) == 0 {
		return false
	}
	if rms(frame) >= e.threshold {
		e.heard = true
		e.quiet = 0
		return false
	}
	if !e.heard {
		return false
	}
	e.quiet += time.Duration(len(frame)) * time.Second / time.Duration(e.sampleRate)
	return e.quiet >= e.hold
}
