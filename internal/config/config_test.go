package config

import (
	"errors"
	"flag"
	"io"
	"math"
	"testing"
	"time"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, env(map[string]string{EnvAPIKey: "sk-test"}), io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Character != "gnome" {
		t.Fatalf("expected default character gnome, got %q", cfg.Character)
	}
	if cfg.Model != DefaultModel || cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected backend defaults: model=%q base=%q", cfg.Model, cfg.BaseURL)
	}
	if cfg.SessionID != DefaultSessionID {
		t.Fatalf("expected default session id, got %q", cfg.SessionID)
	}
	if cfg.ListenWindow != 5*time.Second {
		t.Fatalf("expected 5s listen window, got %s", cfg.ListenWindow)
	}
	if cfg.APIKey != "sk-test" {
		t.Fatalf("expected key from env, got %q", cfg.APIKey)
	}
	if cfg.STTBaseURL != DefaultBaseURL || cfg.STTAPIKey != "sk-test" {
		t.Fatalf("unexpected transcription defaults: base=%q key=%q", cfg.STTBaseURL, cfg.STTAPIKey)
	}
	if cfg.MaxTokens != 0 {
		t.Fatalf("expected no reply token cap by default, got %d", cfg.MaxTokens)
	}
	if cfg.Speaker != DefaultSpeaker || cfg.SilenceRMS != DefaultSilenceRMS || cfg.SilenceHold != DefaultSilenceHold {
		t.Fatalf("unexpected audio defaults: speaker=%d rms=%v hold=%s", cfg.Speaker, cfg.SilenceRMS, cfg.SilenceHold)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseClamping(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantTemp float64
		wantRate int
		wantVol  float64
	}{
		{"negative temperature", []string{"-temperature", "-1"}, 0.0, DefaultRate, 1.0},
		{"huge temperature", []string{"-temperature", "5"}, 1.0, DefaultRate, 1.0},
		{"slow rate", []string{"-rate", "10"}, DefaultTemperature, 20, 1.0},
		{"fast rate", []string{"-rate", "9999"}, DefaultTemperature, 500, 1.0},
		{"loud volume", []string{"-volume", "3"}, DefaultTemperature, DefaultRate, 1.0},
		{"negative volume", []string{"-volume", "-0.5"}, DefaultTemperature, DefaultRate, 0.0},
		{"in range", []string{"-temperature", "0.3", "-rate", "150", "-volume", "0.5"}, 0.3, 150, 0.5},
		{"nan temperature", []string{"-temperature", "NaN"}, DefaultTemperature, DefaultRate, 1.0},
		{"nan volume", []string{"-volume", "NaN"}, DefaultTemperature, DefaultRate, DefaultVolume},
		{"infinite temperature", []string{"-temperature", "+Inf", "-volume", "-Inf"}, 1.0, DefaultRate, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.args, env(nil), io.Discard)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if cfg.Temperature != tt.wantTemp {
				t.Fatalf("temperature: expected %v, got %v", tt.wantTemp, cfg.Temperature)
			}
			if cfg.Rate != tt.wantRate {
				t.Fatalf("rate: expected %d, got %d", tt.wantRate, cfg.Rate)
			}
			if cfg.Volume != tt.wantVol {
				t.Fatalf("volume: expected %v, got %v", tt.wantVol, cfg.Volume)
			}
		})
	}
}

func TestCredentialPolicy(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantKey string
		wantErr error
	}{
		{"hosted without key", nil, nil, "", ErrMissingAPIKey},
		{"hosted with env key", nil, map[string]string{EnvAPIKey: "sk-env"}, "sk-env", nil},
		{"hosted with flag key", []string{"-api_key", "sk-flag"}, map[string]string{EnvAPIKey: "sk-env"}, "sk-flag", nil},
		{"self-hosted without key", []string{"-base_url", "http://localhost:11434/v1"}, nil, PlaceholderAPIKey, nil},
		{"self-hosted with key", []string{"-base_url", "http://localhost:8080/v1", "-api_key", "k"}, nil, "k", nil},
		{"hosted with trailing slash", []string{"-base_url", DefaultBaseURL + "/"}, nil, "", ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Keep transcription self-hosted so only the chat key is under test.
			args := append([]string{"-stt_base_url", "http://localhost:9000/v1"}, tt.args...)
			cfg, err := Parse(args, env(tt.env), io.Discard)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if cfg.APIKey != tt.wantKey {
				t.Fatalf("expected key %q, got %q", tt.wantKey, cfg.APIKey)
			}
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTranscriptionCredentialPolicy(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		wantBase string
		wantKey  string
		wantErr  error
	}{
		{"hosted shares env key", nil, map[string]string{EnvAPIKey: "sk-env"}, DefaultBaseURL, "sk-env", nil},
		{"hosted with own key", []string{"-stt_api_key", "sk-stt"}, map[string]string{EnvAPIKey: "sk-env"}, DefaultBaseURL, "sk-stt", nil},
		{"chat key does not leak", []string{"-api_key", "sk-chat"}, nil, DefaultBaseURL, "", ErrMissingSTTKey},
		{"local chat, hosted stt without key", []string{"-base_url", "http://localhost:11434/v1"}, nil, DefaultBaseURL, "", ErrMissingSTTKey},
		{"self-hosted stt without key", []string{"-api_key", "sk-chat", "-stt_base_url", "http://localhost:9000/v1/"}, nil, "http://localhost:9000/v1", PlaceholderAPIKey, nil},
		{"stt base from env", []string{"-api_key", "sk-chat"}, map[string]string{EnvSTTBaseURL: "http://whisper:8000/v1"}, "http://whisper:8000/v1", PlaceholderAPIKey, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.args, env(tt.env), io.Discard)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if cfg.STTBaseURL != tt.wantBase {
				t.Fatalf("expected base %q, got %q", tt.wantBase, cfg.STTBaseURL)
			}
			if cfg.STTAPIKey != tt.wantKey {
				t.Fatalf("expected key %q, got %q", tt.wantKey, cfg.STTAPIKey)
			}
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseAudioTuning(t *testing.T) {
	args := []string{"-max_tokens", "256", "-speaker", "3", "-silence_rms", "150", "-silence_hold", "1.5s"}
	cfg, err := Parse(args, env(nil), io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxTokens != 256 || cfg.Speaker != 3 || cfg.SilenceRMS != 150 || cfg.SilenceHold != 1500*time.Millisecond {
		t.Fatalf("flags not applied: %+v", cfg)
	}

	args = []string{"-max_tokens", "-5", "-speaker", "-7", "-silence_rms", "NaN", "-silence_hold", "0s"}
	cfg, err = Parse(args, env(nil), io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxTokens != 0 || cfg.Speaker != DefaultSpeaker || cfg.SilenceRMS != DefaultSilenceRMS || cfg.SilenceHold != DefaultSilenceHold {
		t.Fatalf("out-of-range values not reset: %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]string{"-h"}, env(nil), io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if _, err := Parse([]string{"-rate", "fast"}, env(nil), io.Discard); err == nil {
		t.Fatal("expected error for non-numeric rate")
	}
	if _, err := Parse([]string{"stray"}, env(nil), io.Discard); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestLengthScale(t *testing.T) {
	tests := []struct {
		rate int
		want float64
	}{
		{200, 1.0},
		{400, 0.5},
		{100, 2.0},
		{10, 10.0}, // clamped to 20
	}
	for _, tt := range tests {
		cfg := &Config{Rate: tt.rate}
		if got := cfg.LengthScale(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("LengthScale(rate=%d) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}
