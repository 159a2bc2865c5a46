// ottovoice — talk out loud with a character.
//
// Usage:
//
//	ottovoice [-character gnome] [-ptt] [-voice en_GB-alan-medium.onnx] [-list_voices] [-test_voice]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hammamikhairi/ottovoice/internal/character"
	"github.com/hammamikhairi/ottovoice/internal/config"
	"github.com/hammamikhairi/ottovoice/internal/display"
	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/engine"
	"github.com/hammamikhairi/ottovoice/internal/gpt"
	"github.com/hammamikhairi/ottovoice/internal/logger"
	"github.com/hammamikhairi/ottovoice/internal/speech"
	"github.com/hammamikhairi/ottovoice/internal/storage"
)

// Exit codes.
const (
	exitOK     = 0
	exitRun    = 1 // voice load, audio init, or runtime failure
	exitConfig = 2 // bad flags, unknown character, missing credential
)

const testSentence = "Hello! This is a test of the selected voice."

func main() {
	config.LoadDotEnv()
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Parse(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitConfig
	}

	// Direct logs to a file by default so the console stays clean.
	logOut, closeLog, err := logger.OpenSink(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.LogFile, err)
	}
	defer closeLog()

	log := logger.New(logger.LevelFor(cfg.Verbose, cfg.Quiet), logOut)

	// Third-party code logging through the standard library goes to the
	// same sink.
	stdlog.SetOutput(log.Writer())
	stdlog.SetFlags(stdlog.Ltime)

	if cfg.ListVoices {
		voices, err := speech.ListVoices(cfg.VoiceDir)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitRun
		}
		for _, v := range voices {
			fmt.Fprintln(stdout, v)
		}
		return exitOK
	}

	char, err := character.Get(cfg.Character)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v (available: %s)\n", err, strings.Join(character.IDs(), ", "))
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitConfig
	}

	voice, err := speech.LoadVoice(cfg.VoiceDir, cfg.Voice, cfg.OnnxLib, log)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitRun
	}
	if err := voice.CheckSpeaker(cfg.Speaker); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitConfig
	}

	// Installed before any audio so Ctrl-C during the greeting still shuts
	// down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	piper := speech.NewPiper(cfg.PiperBin, voice, log,
		speech.WithLengthScale(cfg.LengthScale()),
		speech.WithSpeaker(cfg.Speaker),
	)
	player, err := speech.NewPlayer(piper.SampleRate(), log, speech.WithVolume(cfg.Volume))
	if err != nil {
		fmt.Fprintf(stderr, "error: audio output: %v\n", err)
		return exitRun
	}
	mouth := speech.NewMouth(piper, player, log,
		speech.WithCacheDir(cfg.CacheDir),
		speech.WithDiskWrite(cfg.DiskCache),
	)

	if cfg.TestVoice {
		fmt.Fprintln(stdout, testSentence)
		if err := mouth.Speak(ctx, testSentence); err != nil && ctx.Err() == nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitRun
		}
		return exitOK
	}

	client := gpt.NewClient(cfg.BaseURL, cfg.APIKey, log,
		gpt.WithModel(cfg.Model),
		gpt.WithTemperature(cfg.Temperature),
		gpt.WithMaxTokens(cfg.MaxTokens),
	)
	store := storage.NewMemoryStore(log,
		storage.WithMaxTurns(cfg.MaxTurns),
		storage.WithTokenBudget(cfg.HistoryTokens),
	)
	if _, err := store.GetOrCreate(ctx, cfg.SessionID); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitConfig
	}
	agent := gpt.NewAgent(client, store, char, log, gpt.WithReplyTimeout(cfg.ChatTimeout))
	// Transcription has its own endpoint and credential; a local chat model
	// does not imply a local speech-to-text server.
	sttClient := gpt.NewClient(cfg.STTBaseURL, cfg.STTAPIKey, log, gpt.WithHTTPTimeout(cfg.ChatTimeout))
	transcriber := speech.NewTranscriber(sttClient.API(), cfg.STTModel, log,
		speech.WithLanguage(voice.LanguageHint()),
		speech.WithSilenceGate(cfg.SilenceRMS),
	)
	recorder := speech.NewRecorder(cfg.ListenWindow, log,
		speech.WithSilenceThreshold(cfg.SilenceRMS),
		speech.WithSilenceHold(cfg.SilenceHold),
	)
	ui := display.NewUI(stdin, stdout)

	turns := 0
	opts := []engine.Option{
		engine.WithStateHook(func(_, to domain.State) {
			if to == domain.StateResponding {
				turns++
			}
		}),
	}
	if cfg.PTT {
		opts = append(opts, engine.WithPushToTalk(ui))
	}
	eng := engine.New(char, cfg.SessionID, recorder, transcriber, agent, mouth, ui, log, opts...)

	fmt.Fprint(stdout, display.RenderBanner(fmt.Sprintf("%s is here. Press Ctrl-C to leave.", char.Name)))
	fmt.Fprintln(stdout)
	log.Info("ottovoice: character=%s model=%s voice=%s session=%s ptt=%v stt=%s", char.ID, cfg.Model, piper.Voice(), cfg.SessionID, cfg.PTT, cfg.STTBaseURL)

	mouth.Prefetch(ctx, char.Greeting, char.ErrorMessage)

	if err := eng.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitRun
	}
	hits, misses := mouth.Cache().Stats()
	log.Info("ottovoice: %d turn(s), audio cache hits=%d misses=%d", turns, hits, misses)
	return exitOK
}
