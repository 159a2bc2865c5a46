package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/hammamikhairi/ottovoice/internal/character"
	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/gpt"
	"github.com/hammamikhairi/ottovoice/internal/logger"
	"github.com/hammamikhairi/ottovoice/internal/storage"
)

// ── fakes ────────────────────────────────────────────────────────

type fakeListener struct {
	calls  int
	err    error
	cancel context.CancelFunc // cancel after this many calls, if set
	after  int
}

func (f *fakeListener) Capture(ctx context.Context) (*domain.Utterance, error) {
	f.calls++
	if f.cancel != nil && f.calls > f.after {
		f.cancel()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Utterance{PCM: []int16{1, 2, 3}, SampleRate: 16000}, nil
}

type fakeTranscriber struct {
	texts []string
	err   error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ *domain.Utterance) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", domain.ErrNoTranscript
	}
	t := f.texts[0]
	f.texts = f.texts[1:]
	return t, nil
}

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Chat(_ context.Context, _ []gpt.Message) (string, error) {
	return f.reply, f.err
}

type fakeSpeaker struct {
	spoken []string
	err    error
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.spoken = append(f.spoken, text)
	return f.err
}

type fakeConsole struct {
	lines []string
}

func (f *fakeConsole) PrintHint(text string)          { f.lines = append(f.lines, "hint:"+text) }
func (f *fakeConsole) PrintVoice(text string)         { f.lines = append(f.lines, "you:"+text) }
func (f *fakeConsole) PrintChat(speaker, text string) { f.lines = append(f.lines, speaker+": "+text) }
func (f *fakeConsole) PrintUrgent(text string)        { f.lines = append(f.lines, "urgent:"+text) }

func (f *fakeConsole) count(line string) int {
	n := 0
	for _, l := range f.lines {
		if l == line {
			n++
		}
	}
	return n
}

type fakePrompter struct {
	presses int // presses available before EOF
	calls   int
}

func (f *fakePrompter) WaitForTalk(_ context.Context) error {
	f.calls++
	if f.calls > f.presses {
		return io.EOF
	}
	return nil
}

// ── harness ──────────────────────────────────────────────────────

type harness struct {
	eng      *Engine
	listener *fakeListener
	stt      *fakeTranscriber
	chat     *fakeChat
	speaker  *fakeSpeaker
	console  *fakeConsole
	store    *storage.MemoryStore
	gnome    domain.Character
}

func setup(t *testing.T, opts ...Option) *harness {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	gnome, err := character.Get("gnome")
	if err != nil {
		t.Fatalf("gnome: %v", err)
	}
	h := &harness{
		listener: &fakeListener{},
		stt:      &fakeTranscriber{},
		chat:     &fakeChat{},
		speaker:  &fakeSpeaker{},
		console:  &fakeConsole{},
		store:    storage.NewMemoryStore(log),
		gnome:    gnome,
	}
	agent := gpt.NewAgent(h.chat, h.store, gnome, log)
	h.eng = New(gnome, "abc123", h.listener, h.stt, agent, h.speaker, h.console, log, opts...)
	return h
}

// ── tests ────────────────────────────────────────────────────────

func TestStepConversation(t *testing.T) {
	h := setup(t)
	h.stt.texts = []string{"hello"}
	h.chat.reply = "greetings, traveler"
	ctx := context.Background()

	if err := h.eng.Step(ctx); err != nil {
		t.Fatalf("step: %v", err)
	}

	if len(h.speaker.spoken) != 1 || h.speaker.spoken[0] != "greetings, traveler" {
		t.Fatalf("unexpected speech %v", h.speaker.spoken)
	}
	history, _ := h.store.HistoryFor(ctx, "abc123")
	if len(history) != 2 || history[0].Content != "hello" || history[1].Content != "greetings, traveler" {
		t.Fatalf("unexpected history %+v", history)
	}
	if h.console.count("you:hello") != 1 {
		t.Fatalf("transcript not echoed: %v", h.console.lines)
	}
	if h.console.count(h.gnome.Name+": greetings, traveler") != 1 {
		t.Fatalf("reply not printed with speaker name: %v", h.console.lines)
	}
	if h.eng.State() != domain.StateSpeaking {
		t.Fatalf("expected speaking state, got %s", h.eng.State())
	}
}

func TestStepNoTranscript(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	if err := h.eng.Step(ctx); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(h.speaker.spoken) != 1 || h.speaker.spoken[0] != h.gnome.ErrorMessage {
		t.Fatalf("expected error message, got %v", h.speaker.spoken)
	}
	if n, _ := h.store.Len(ctx, "abc123"); n != 0 {
		t.Fatalf("history changed on failed transcription: %d", n)
	}
	for _, l := range h.console.lines {
		if strings.HasPrefix(l, "urgent:") {
			t.Fatalf("silence should not print an error: %v", h.console.lines)
		}
	}
}

func TestStepCaptureFailure(t *testing.T) {
	h := setup(t)
	h.listener.err = errors.New("no input device")

	if err := h.eng.Step(context.Background()); err != nil {
		t.Fatalf("capture failure must not end the loop: %v", err)
	}
	if h.console.count("urgent:Error: no input device") != 1 {
		t.Fatalf("capture error not printed: %v", h.console.lines)
	}
	if len(h.speaker.spoken) != 1 || h.speaker.spoken[0] != h.gnome.ErrorMessage {
		t.Fatalf("expected error message, got %v", h.speaker.spoken)
	}
}

func TestStepChatFailure(t *testing.T) {
	h := setup(t)
	h.stt.texts = []string{"hello"}
	h.chat.err = errors.New("backend down")
	ctx := context.Background()

	if err := h.eng.Step(ctx); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(h.speaker.spoken) != 1 || h.speaker.spoken[0] != h.gnome.ErrorMessage {
		t.Fatalf("expected error message, got %v", h.speaker.spoken)
	}
	if n, _ := h.store.Len(ctx, "abc123"); n != 0 {
		t.Fatalf("history changed on chat failure: %d", n)
	}
}

func TestStepSpeechFailureContinues(t *testing.T) {
	h := setup(t)
	h.stt.texts = []string{"hello"}
	h.chat.reply = "hi"
	h.speaker.err = errors.New("piper missing")

	if err := h.eng.Step(context.Background()); err != nil {
		t.Fatalf("speech failure must not end the loop: %v", err)
	}
	if h.console.count("urgent:Error during speech synthesis: piper missing") != 1 {
		t.Fatalf("speech error not printed: %v", h.console.lines)
	}
}

func TestRunGreetsOnceAndStopsOnCancel(t *testing.T) {
	var states []domain.State
	h := setup(t, WithStateHook(func(_, to domain.State) { states = append(states, to) }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.listener.cancel = cancel
	h.listener.after = 2
	h.stt.texts = []string{"one", "two"}
	h.chat.reply = "ok"

	if err := h.eng.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	greetings := 0
	for _, s := range h.speaker.spoken {
		if s == h.gnome.Greeting {
			greetings++
		}
	}
	if greetings != 1 || h.speaker.spoken[0] != h.gnome.Greeting {
		t.Fatalf("expected a single leading greeting, got %v", h.speaker.spoken)
	}
	if len(h.speaker.spoken) != 3 {
		t.Fatalf("expected greeting plus two replies, got %v", h.speaker.spoken)
	}
	if h.eng.State() != domain.StateShuttingDown {
		t.Fatalf("expected shutting down, got %s", h.eng.State())
	}
	if h.console.count("hint:"+MsgShutdown) != 1 {
		t.Fatalf("shutdown message not printed: %v", h.console.lines)
	}
	if len(states) == 0 || states[len(states)-1] != domain.StateShuttingDown {
		t.Fatalf("hook did not see shutdown: %v", states)
	}
	if err := h.eng.Greet(ctx); err != nil || len(h.speaker.spoken) != 3 {
		t.Fatalf("second greet spoke again: %v", h.speaker.spoken)
	}
}

func TestPushToTalk(t *testing.T) {
	prompter := &fakePrompter{presses: 2}
	h := setup(t, WithPushToTalk(prompter))
	h.stt.texts = []string{"one", "two"}
	h.chat.reply = "ok"

	if err := h.eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.listener.calls != 2 {
		t.Fatalf("expected one capture per press, got %d", h.listener.calls)
	}
	if prompter.calls != 3 {
		t.Fatalf("expected prompter consulted each cycle, got %d", prompter.calls)
	}
	if h.console.count("hint:"+MsgListening) != 2 {
		t.Fatalf("expected Listening once per cycle, got %v", h.console.lines)
	}
}

func TestStepPrompterErrorEndsRun(t *testing.T) {
	boom := errors.New("terminal gone")
	h := setup(t, WithPushToTalk(promptFunc(func(context.Context) error { return boom })))

	if err := h.eng.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected prompter error, got %v", err)
	}
}

type promptFunc func(context.Context) error

func (f promptFunc) WaitForTalk(ctx context.Context) error { return f(ctx) }
