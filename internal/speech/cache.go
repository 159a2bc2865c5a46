package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// DefaultCacheEntries bounds the in-memory layer.
const DefaultCacheEntries = 64

// AudioCache holds synthesized WAV audio in memory and, optionally, on disk.
// Keys are sha256(voice + ":" + text), where voice already encodes the model
// and speaking rate.
//
// The memory layer keeps at most maxEntries clips and evicts the oldest
// insertion first. The disk layer is always read when cacheDir is set; it is
// written only for pinned entries and only when diskWrite is on, so one-off
// replies never reach the filesystem.
type AudioCache struct {
	mu         sync.Mutex
	entries    map[string][]byte
	order      []string // insertion order for eviction
	maxEntries int
	voice      string
	cacheDir   string
	diskWrite  bool
	hits       int64
	misses     int64
	log        *logger.Logger
}

// NewAudioCache creates a cache for clips produced by voice. An empty
// cacheDir disables the disk layer.
func NewAudioCache(voice, cacheDir string, diskWrite bool, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries:    make(map[string][]byte),
		maxEntries: DefaultCacheEntries,
		voice:      voice,
		cacheDir:   cacheDir,
		diskWrite:  diskWrite,
		log:        log,
	}
	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("cache: failed to create cache dir %s: %v", cacheDir, err)
			c.diskWrite = false
		}
	}
	return c
}

// Get returns cached audio for text, checking memory then disk.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.Lock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()
	if ok {
		c.log.Debug("cache hit (mem): %s (%d bytes)", truncateForLog(text, 40), len(data))
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, err := os.ReadFile(c.diskPath(key)); err == nil {
			c.mu.Lock()
			c.store(key, diskData)
			c.hits++
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s (%d bytes)", truncateForLog(text, 40), len(diskData))
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text in memory. Pinned entries are also written to
// disk when disk writes are enabled.
func (c *AudioCache) Put(text string, audio []byte, pinned bool) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.store(key, audio)
	size := len(c.entries)
	c.mu.Unlock()
	c.log.Debug("cache store (mem): %s (%d bytes, %d entries)", truncateForLog(text, 40), len(audio), size)

	if pinned && c.cacheDir != "" && c.diskWrite {
		path := c.diskPath(key)
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			c.log.Error("cache: disk write failed for %s: %v", path, err)
		}
	}
}

// store inserts under c.mu, evicting the oldest entry when full.
func (c *AudioCache) store(key string, audio []byte) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *AudioCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}

// truncateForLog shortens s to at most n runes.
func truncateForLog(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
