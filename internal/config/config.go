// Package config resolves the runtime configuration once at startup from
// command-line flags, the environment, and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/ottovoice/internal/character"
)

// Defaults.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o"
	DefaultSTTModel    = "whisper-1"
	DefaultTemperature = 0.7
	DefaultVoice       = "en_GB-alan-medium.onnx"
	DefaultVoiceDir    = "models"
	DefaultPiperBin    = "piper"
	DefaultVolume      = 1.0
	DefaultRate        = 200
	DefaultSessionID   = "abc123"
	DefaultListenSecs  = 5
	DefaultChatTimeout = 60 * time.Second
	DefaultMaxTurns    = 50
	DefaultTokenBudget = 3000
	DefaultCacheDir    = ".ottovoice-cache"
	DefaultLogFile     = ".ottovoice-logs/ottovoice.log"
	DefaultSpeaker     = -1
	DefaultSilenceRMS  = 300.0
	DefaultSilenceHold = 900 * time.Millisecond

	// PlaceholderAPIKey is sent to self-hosted endpoints when no key is given.
	PlaceholderAPIKey = "sk-no_key"
)

// Env var names.
const (
	EnvAPIKey     = "OPENAI_API_KEY"
	EnvBaseURL    = "OPENAI_BASE_URL"
	EnvSTTBaseURL = "OPENAI_STT_BASE_URL"
	EnvOnnxLib    = "ONNXRUNTIME_LIB"
	EnvCacheDir   = "OTTOVOICE_CACHE_DIR"
)

// Clamp bounds.
const (
	MinRate = 20
	MaxRate = 500
)

// ErrMissingAPIKey is returned by Validate when the default hosted endpoint is
// selected and no credential was supplied.
var ErrMissingAPIKey = errors.New("missing API key: set " + EnvAPIKey + " or pass -api_key to use the hosted endpoint")

// ErrMissingSTTKey is the transcription counterpart of ErrMissingAPIKey.
var ErrMissingSTTKey = errors.New("missing transcription API key: set " + EnvAPIKey + " or pass -stt_api_key to use the hosted endpoint")

// Config is the resolved, immutable runtime configuration.
type Config struct {
	Character   string
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
	MaxTokens   int

	STTModel   string
	STTBaseURL string
	STTAPIKey  string

	Voice    string
	VoiceDir string
	PiperBin string
	OnnxLib  string
	Volume   float64
	Rate     int
	Speaker  int

	SessionID     string
	PTT           bool
	ListVoices    bool
	TestVoice     bool
	ListenWindow  time.Duration
	SilenceRMS    float64
	SilenceHold   time.Duration
	ChatTimeout   time.Duration
	MaxTurns      int
	HistoryTokens int

	CacheDir  string
	DiskCache bool

	Verbose bool
	Quiet   bool
	LogFile string

	apiKeyGiven bool
	sttKeyGiven bool
}

// LoadDotEnv reads a .env file from the working directory if present.
// Existing environment variables are not overridden.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Parse resolves the configuration from args (without the program name) and
// getenv. Usage and flag errors are written to output. Clamping is applied
// here; credential checks are deferred to Validate so that -list_voices works
// without a key.
func Parse(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	fs := flag.NewFlagSet("ottovoice", flag.ContinueOnError)
	fs.SetOutput(output)

	c := &Config{}
	var listenSecs int

	fs.StringVar(&c.Character, "character", character.DefaultID, "which character to use ("+strings.Join(character.IDs(), ", ")+")")
	fs.StringVar(&c.Model, "model", DefaultModel, "the chat model to use")
	fs.Float64Var(&c.Temperature, "temperature", DefaultTemperature, "sampling temperature for the chat model (clamped to 0..1)")
	fs.StringVar(&c.APIKey, "api_key", "", "API key for the chat endpoint (default $"+EnvAPIKey+")")
	fs.StringVar(&c.BaseURL, "base_url", firstNonEmpty(getenv(EnvBaseURL), DefaultBaseURL), "base URL of the OpenAI-compatible API")
	fs.IntVar(&c.MaxTokens, "max_tokens", 0, "cap on tokens per reply (0 = let the backend decide)")
	fs.StringVar(&c.STTModel, "stt_model", DefaultSTTModel, "transcription model")
	fs.StringVar(&c.STTBaseURL, "stt_base_url", firstNonEmpty(getenv(EnvSTTBaseURL), DefaultBaseURL), "base URL of the OpenAI-compatible transcription API")
	fs.StringVar(&c.STTAPIKey, "stt_api_key", "", "API key for the transcription endpoint (default $"+EnvAPIKey+")")

	fs.StringVar(&c.Voice, "voice", DefaultVoice, "Piper voice model file inside -voice_dir")
	fs.StringVar(&c.VoiceDir, "voice_dir", DefaultVoiceDir, "directory holding Piper .onnx voice models")
	fs.StringVar(&c.PiperBin, "piper_bin", DefaultPiperBin, "path to the piper executable")
	fs.StringVar(&c.OnnxLib, "onnx_lib", getenv(EnvOnnxLib), "ONNX Runtime shared library used to verify the voice model loads (optional)")
	fs.Float64Var(&c.Volume, "volume", DefaultVolume, "playback volume (clamped to 0..1)")
	fs.IntVar(&c.Rate, "rate", DefaultRate, "speaking rate in words per minute (clamped to 20..500)")
	fs.IntVar(&c.Speaker, "speaker", DefaultSpeaker, "speaker index for multi-speaker voices (-1 = voice default)")

	fs.StringVar(&c.SessionID, "session_id", DefaultSessionID, "session ID for the chat history")
	fs.BoolVar(&c.PTT, "ptt", false, "use push-to-talk mode")
	fs.BoolVar(&c.ListVoices, "list_voices", false, "list the available voice models and exit")
	fs.BoolVar(&c.TestVoice, "test_voice", false, "speak a test sentence with the selected voice and exit")
	fs.IntVar(&listenSecs, "listen_secs", DefaultListenSecs, "maximum seconds recorded per utterance")
	fs.Float64Var(&c.SilenceRMS, "silence_rms", DefaultSilenceRMS, "RMS level below which microphone input counts as silence")
	fs.DurationVar(&c.SilenceHold, "silence_hold", DefaultSilenceHold, "trailing silence that ends an utterance")
	fs.DurationVar(&c.ChatTimeout, "chat_timeout", DefaultChatTimeout, "timeout for a single chat completion")
	fs.IntVar(&c.MaxTurns, "max_turns", DefaultMaxTurns, "turns retained per session (0 = unbounded)")
	fs.IntVar(&c.HistoryTokens, "history_tokens", DefaultTokenBudget, "estimated token budget for history sent to the model (0 = unbounded)")

	fs.StringVar(&c.CacheDir, "cache_dir", firstNonEmpty(getenv(EnvCacheDir), DefaultCacheDir), "directory for the synthesized audio cache")
	fs.BoolVar(&c.DiskCache, "disk_cache", true, "persist synthesized audio to -cache_dir (reads from disk even when false)")

	fs.BoolVar(&c.Verbose, "verbose", false, "enable verbose/debug logging")
	fs.BoolVar(&c.Quiet, "quiet", false, "disable all logging")
	fs.StringVar(&c.LogFile, "log_file", DefaultLogFile, "file to write logs to (use \"stderr\" to log to console)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	c.Temperature = ClampTemperature(c.Temperature)
	c.Volume = ClampVolume(c.Volume)
	c.Rate = ClampRate(c.Rate)
	if listenSecs <= 0 {
		listenSecs = DefaultListenSecs
	}
	c.ListenWindow = time.Duration(listenSecs) * time.Second
	if c.MaxTokens < 0 {
		c.MaxTokens = 0
	}
	if c.Speaker < 0 {
		c.Speaker = DefaultSpeaker
	}
	if math.IsNaN(c.SilenceRMS) || c.SilenceRMS < 0 {
		c.SilenceRMS = DefaultSilenceRMS
	}
	if c.SilenceHold <= 0 {
		c.SilenceHold = DefaultSilenceHold
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.STTBaseURL = strings.TrimRight(c.STTBaseURL, "/")

	envKey := getenv(EnvAPIKey)
	c.APIKey, c.apiKeyGiven = resolveKey(c.APIKey, envKey, isHosted(c.BaseURL))
	c.STTAPIKey, c.sttKeyGiven = resolveKey(c.STTAPIKey, envKey, isHosted(c.STTBaseURL))

	return c, nil
}

// resolveKey picks the explicit flag value over the environment. A
// self-hosted endpoint without either gets the placeholder.
func resolveKey(flagKey, envKey string, hosted bool) (string, bool) {
	switch {
	case flagKey != "":
		return flagKey, true
	case envKey != "":
		return envKey, true
	case !hosted:
		return PlaceholderAPIKey, false
	}
	return "", false
}

// Validate reports configuration errors that must stop the process before
// any audio I/O.
func (c *Config) Validate() error {
	if c.IsHostedEndpoint() && !c.apiKeyGiven {
		return ErrMissingAPIKey
	}
	if isHosted(c.STTBaseURL) && !c.sttKeyGiven {
		return ErrMissingSTTKey
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return errors.New("session_id must not be empty")
	}
	return nil
}

// IsHostedEndpoint reports whether the chat backend is the default hosted API.
func (c *Config) IsHostedEndpoint() bool {
	return isHosted(c.BaseURL)
}

func isHosted(url string) bool {
	return strings.TrimRight(url, "/") == DefaultBaseURL
}

// LengthScale converts the words-per-minute rate into Piper's length scale,
// where 1.0 is the voice's natural pace at DefaultRate.
func (c *Config) LengthScale() float64 {
	return float64(DefaultRate) / float64(ClampRate(c.Rate))
}

// ClampTemperature bounds t to [0, 1]. NaN maps to DefaultTemperature.
func ClampTemperature(t float64) float64 {
	if math.IsNaN(t) {
		return DefaultTemperature
	}
	return clampFloat(t, 0, 1)
}

// ClampVolume bounds v to [0, 1]. NaN maps to DefaultVolume.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultVolume
	}
	return clampFloat(v, 0, 1)
}

// ClampRate bounds r to [MinRate, MaxRate].
func ClampRate(r int) int {
	return min(max(r, MinRate), MaxRate)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
