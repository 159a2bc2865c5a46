// Package speech provides the audio side of the conversation: microphone
// capture and transcription on the way in, Piper synthesis and playback on
// the way out.
package speech

import "time"

// Capture parameters. The transcription backend resamples anyway; 16 kHz
// mono keeps uploads small.
const (
	CaptureSampleRate = 16000
	CaptureChannels   = 1
)

// Playback parameters. Piper voices are mono S16LE; the rate comes from the
// voice config and falls back to DefaultVoiceSampleRate.
const (
	DefaultVoiceSampleRate = 22050
	PlaybackChannels       = 1
	BitDepth               = 16
)

// Endpointing and silence gating defaults.
const (
	DefaultSilenceRMS   = 300.0 // int16 RMS below which a frame counts as quiet
	DefaultSilenceHold  = 900 * time.Millisecond
	DefaultMinUtterance = 300 * time.Millisecond
)
