package speech

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

var _ domain.Speaker = (*Mouth)(nil)

// synthesizer turns text into WAV audio.
type synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Voice() string
}

// audioSink plays WAV audio to completion.
type audioSink interface {
	Play(ctx context.Context, wav []byte) error
}

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithCacheDir sets the filesystem directory used for persistent audio
// caching. If empty, the disk layer is disabled (pure in-memory).
func WithCacheDir(dir string) MouthOption {
	return func(m *Mouth) { m.cacheDir = dir }
}

// WithDiskWrite controls whether prefetched clips are written to disk.
// Even when false, existing on-disk entries are still read.
func WithDiskWrite(enabled bool) MouthOption {
	return func(m *Mouth) { m.diskWrite = enabled }
}

// Mouth speaks text: clean, chunk, synthesize (through the cache), play.
// Speak blocks until playback ends, so only one thing speaks at a time.
type Mouth struct {
	tts       synthesizer
	player    audioSink
	cache     *AudioCache
	chunkSize int // split longer text at sentence boundaries
	cacheDir  string
	diskWrite bool
	log       *logger.Logger
}

// NewMouth creates a speaker over the given synthesizer and player.
func NewMouth(tts synthesizer, player audioSink, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		player:    player,
		chunkSize: 200,
		diskWrite: true,
		log:       log,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = NewAudioCache(tts.Voice(), m.cacheDir, m.diskWrite, log)
	return m
}

// Speak synthesizes and plays text. Blank text (after cleaning) is a no-op.
// A chunk that fails to synthesize is skipped and the first such error is
// returned once the rest has played.
func (m *Mouth) Speak(ctx context.Context, text string) error {
	text = cleanForSpeech(text)
	if text == "" {
		return nil
	}

	type result struct {
		audio []byte
		err   error
	}
	chunks := m.splitChunks(text)
	pending := make([]chan result, len(chunks))
	start := func(i int) {
		ch := make(chan result, 1)
		pending[i] = ch
		go func() {
			audio, err := m.synthesizeWithCache(ctx, chunks[i], false)
			ch <- result{audio: audio, err: err}
		}()
	}

	m.log.Debug("mouth: speaking %d chunk(s): %s", len(chunks), truncateForLog(text, 60))
	start(0)

	var firstErr error
	for i := range chunks {
		if i+1 < len(chunks) {
			start(i + 1)
		}
		r := <-pending[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.err != nil {
			m.log.Error("mouth: chunk %d synthesis failed: %v", i, r.err)
			if firstErr == nil {
				firstErr = fmt.Errorf("synthesis: %w", r.err)
			}
			continue
		}
		if err := m.player.Play(ctx, r.audio); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Error("mouth: chunk %d playback failed: %v", i, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("playback: %w", err)
			}
		}
	}
	return firstErr
}

// Prefetch synthesizes texts ahead of time and pins them in the cache (and
// on disk when enabled). It blocks until every text is cached or failed.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	for _, text := range texts {
		for _, chunk := range m.splitChunks(cleanForSpeech(text)) {
			if chunk == "" {
				continue
			}
			if _, err := m.synthesizeWithCache(ctx, chunk, true); err != nil {
				m.log.Warn("prefetch: %s: %v", truncateForLog(chunk, 40), err)
			}
		}
	}
}

// Cache returns the audio cache used by this Mouth.
func (m *Mouth) Cache() *AudioCache { return m.cache }

func (m *Mouth) synthesizeWithCache(ctx context.Context, text string, pin bool) ([]byte, error) {
	if audio, ok := m.cache.Get(text); ok {
		return audio, nil
	}
	audio, err := m.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Put(text, audio, pin)
	return audio, nil
}

// splitChunks breaks text into sentence-boundary chunks of roughly
// m.chunkSize characters.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, s := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(s) > m.chunkSize {
			if c := strings.TrimSpace(current.String()); c != "" {
				chunks = append(chunks, c)
			}
			current.Reset()
		}
		current.WriteString(s)
	}
	if c := strings.TrimSpace(current.String()); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// splitSentences splits text at . ! ? keeping the punctuation and any
// trailing whitespace with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
