package speech

import (
	"bytes"
	"context"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// PlayerOption configures the Player.
type PlayerOption func(*Player)

// WithVolume sets the playback gain in [0, 1].
func WithVolume(v float64) PlayerOption {
	return func(p *Player) { p.volume = v }
}

// Player handles audio playback of WAV/PCM data via oto. oto allows a
// single context per process, so create one Player and share it.
type Player struct {
	ctx        *oto.Context
	sampleRate int
	volume     float64
	log        *logger.Logger
}

// NewPlayer initializes the system audio output at sampleRate.
// Returns an error if the audio device is unavailable.
func NewPlayer(sampleRate int, log *logger.Logger, opts ...PlayerOption) (*Player, error) {
	p := &Player{sampleRate: sampleRate, volume: 1.0, log: log}
	for _, o := range opts {
		o(p)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: PlaybackChannels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan
	p.ctx = ctx

	log.Debug("audio player initialized (rate=%d, volume=%.2f)", sampleRate, p.volume)
	return p, nil
}

// Play plays WAV audio synchronously. It returns when playback finishes or
// ctx is cancelled.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	pcm, err := extractPCM(wavData)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(p.volume)
	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			_ = player.Close()
			return ctx.Err()
		case <-tick.C:
		}
	}

	return player.Close()
}
