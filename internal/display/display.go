// Package display provides the terminal console: styled status, transcript
// and chat lines, and the push-to-talk prompt.
package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/ottovoice/internal/domain"
)

var (
	_ domain.Console  = (*UI)(nil)
	_ domain.Prompter = (*UI)(nil)
)

// ── Styles ───────────────────────────────────────────────────────

var (
	// BannerStyle — muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Speaker label on chat lines.
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a")).
			Bold(true)

	// Chat — soft sky blue for spoken lines.
	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// Transcript of what the user said.
	voiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	// Secondary text — dimmed zinc for hints and status.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	// Urgent — soft coral for errors.
	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))
)

// PushToTalkPrompt is shown while waiting for the operator.
const PushToTalkPrompt = "Press Enter to start recording..."

// UI writes styled lines to out and reads push-to-talk presses from in.
// Output methods are safe for concurrent use.
type UI struct {
	out io.Writer
	in  io.Reader

	mu sync.Mutex

	readOnce sync.Once
	lines    chan error // one value per line read; io.EOF or the read error last
}

// NewUI creates a console over the given streams.
func NewUI(in io.Reader, out io.Writer) *UI {
	return &UI{in: in, out: out}
}

// Println prints a line. Thread-safe.
func (u *UI) Println(a ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, a...)
}

// PrintChat prints a spoken line as "Name: text".
func (u *UI) PrintChat(speaker, text string) {
	u.Println(nameStyle.Render(speaker+":") + " " + chatStyle.Render(text))
}

// PrintHint prints dimmed status text such as "Listening...".
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render(text))
}

// PrintVoice echoes what the user said.
func (u *UI) PrintVoice(text string) {
	u.Println(secondaryStyle.Render("[you] ") + voiceStyle.Render(text))
}

// PrintUrgent prints an error.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render(text))
}

// WaitForTalk shows the push-to-talk prompt and blocks until the operator
// presses Enter. It returns io.EOF when input is closed and ctx.Err() on
// cancellation.
func (u *UI) WaitForTalk(ctx context.Context) error {
	u.readOnce.Do(u.startReader)
	u.Println(promptStyle.Render(PushToTalkPrompt))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-u.lines:
		if !ok {
			return io.EOF
		}
		return err
	}
}

// startReader reads lines in the background so a blocked stdin read never
// holds up cancellation.
func (u *UI) startReader() {
	u.lines = make(chan error)
	go func() {
		defer close(u.lines)
		r := bufio.NewReader(u.in)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				if err != io.EOF {
					u.lines <- err
				}
				return
			}
			u.lines <- nil
		}
	}()
}
