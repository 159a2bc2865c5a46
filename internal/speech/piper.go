package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// commandFunc builds the process that runs the synthesizer.
type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// PiperOption configures the Piper synthesizer.
type PiperOption func(*Piper)

// WithLengthScale sets Piper's phoneme length scale. Larger is slower.
func WithLengthScale(scale float64) PiperOption {
	return func(p *Piper) { p.lengthScale = scale }
}

// WithSpeaker selects a speaker in a multi-speaker voice.
func WithSpeaker(id int) PiperOption {
	return func(p *Piper) { p.speaker = id }
}

func withCommand(fn commandFunc) PiperOption {
	return func(p *Piper) { p.command = fn }
}

// Piper synthesizes speech by running the piper binary with the loaded
// voice. Text goes in on stdin, raw S16LE PCM comes back on stdout and is
// wrapped as WAV.
type Piper struct {
	bin         string
	voice       *Voice
	lengthScale float64
	speaker     int
	command     commandFunc
	log         *logger.Logger
}

// NewPiper creates a synthesizer for voice using the piper executable bin.
func NewPiper(bin string, voice *Voice, log *logger.Logger, opts ...PiperOption) *Piper {
	p := &Piper{
		bin:         bin,
		voice:       voice,
		lengthScale: 1.0,
		speaker:     -1,
		command:     exec.CommandContext,
		log:         log,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Voice identifies the output audio for cache keys: the same text under a
// different model, speed, or speaker must not share an entry.
func (p *Piper) Voice() string {
	id := p.voice.Name + "@" + strconv.FormatFloat(p.lengthScale, 'f', 3, 64)
	if p.speaker >= 0 {
		id += "#" + strconv.Itoa(p.speaker)
	}
	return id
}

// SampleRate returns the sample rate of the PCM Piper emits.
func (p *Piper) SampleRate() int {
	return p.voice.SampleRate
}

// Synthesize returns WAV audio for text.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	// Piper synthesizes one utterance per input line.
	line := strings.Join(strings.Fields(text), " ")
	if line == "" {
		return nil, errors.New("piper: empty text")
	}

	args := []string{
		"--model", p.voice.ModelPath,
		"--config", p.voice.ConfigPath,
		"--output_raw",
		"--length_scale", strconv.FormatFloat(p.lengthScale, 'f', 3, 64),
	}
	if p.speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}

	cmd := p.command(ctx, p.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(line + "\n")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log.Debug("piper: synthesizing %d chars (scale=%.3f)", len(line), p.lengthScale)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("piper: %w: %s", err, truncateForLog(strings.TrimSpace(stderr.String()), 200))
	}
	if stdout.Len() < 2 {
		return nil, errors.New("piper: no audio produced")
	}

	pcm := stdout.Bytes()
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	p.log.Debug("piper: %d bytes of PCM", len(pcm))
	return encodeWAV(pcm, p.voice.SampleRate, PlaybackChannels), nil
}
