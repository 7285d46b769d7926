package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jaxi-taxi/jaxitaxi/internal/analysis"
)

var (
	ErrEmpty      = errors.New("playlist is empty")
	ErrOutOfRange = errors.New("track index out of range")
	ErrTooLarge   = errors.New("audio file exceeds size limit")
)

// Playlist is the ordered track list plus the play cursor.
type Playlist struct {
	mu       sync.RWMutex
	dir      string
	shuffle  bool
	maxBytes int64
	tracks   []Track
	cur      int
}

// New scans dir and returns a playlist positioned on the first track.
// An empty directory is not an error.
func New(dir string, shuffle bool, maxBytes int64) (*Playlist, error) {
	tracks, err := Scan(dir, shuffle)
	if err != nil {
		return nil, err
	}
	slog.Info("🎵 playlist loaded", "dir", dir, "tracks", len(tracks))
	return &Playlist{
		dir:      dir,
		shuffle:  shuffle,
		maxBytes: maxBytes,
		tracks:   tracks,
	}, nil
}

func (p *Playlist) Dir() string {
	return p.dir
}

// Tracks returns a copy of the track list.
func (p *Playlist) Tracks() []Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// Current returns the track under the cursor.
func (p *Playlist) Current() (Track, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.tracks) == 0 {
		return Track{}, ErrEmpty
	}
	return p.tracks[p.cur], nil
}

// Next advances the cursor, wrapping to the first track.
func (p *Playlist) Next() (Track, error) {
	return p.step(1)
}

// Prev moves the cursor back, wrapping to the last track.
func (p *Playlist) Prev() (Track, error) {
	return p.step(-1)
}

func (p *Playlist) step(delta int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.tracks)
	if n == 0 {
		return Track{}, ErrEmpty
	}
	p.cur = ((p.cur+delta)%n + n) % n
	return p.tracks[p.cur], nil
}

// Select moves the cursor to index i.
func (p *Playlist) Select(i int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return Track{}, ErrEmpty
	}
	if i < 0 || i >= len(p.tracks) {
		return Track{}, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	p.cur = i
	return p.tracks[p.cur], nil
}

// Rescan reloads the directory. The cursor stays on the same file when it
// still exists, otherwise it goes back to the first track.
func (p *Playlist) Rescan() error {
	tracks, err := Scan(p.dir, p.shuffle)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var current string
	if len(p.tracks) > 0 {
		current = p.tracks[p.cur].File
	}
	p.tracks = tracks
	p.cur = 0
	for i, t := range tracks {
		if t.File == current {
			p.cur = i
			break
		}
	}
	return nil
}

// Path resolves a track file name inside the audio directory. Names that
// escape the directory or are not audio files are rejected.
func (p *Playlist) Path(file string) (string, error) {
	if file == "" || file != filepath.Base(file) || strings.HasPrefix(file, ".") {
		return "", fmt.Errorf("invalid track file %q", file)
	}
	if MimeType(file) == "" {
		return "", fmt.Errorf("not an audio file: %q", file)
	}
	return filepath.Join(p.dir, file), nil
}

// LoadDataURI reads a track into a base64 data URI for analysis.
func (p *Playlist) LoadDataURI(t Track) (string, error) {
	path, err := p.Path(t.File)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat track: %w", err)
	}
	if p.maxBytes > 0 && info.Size() > p.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, t.File, info.Size(), p.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read track: %w", err)
	}
	return analysis.EncodeDataURI(t.MimeType, data), nil
}

// Watch rescans the directory whenever files are added, removed or renamed
// and calls onChange after each successful rescan. Events are debounced.
// It returns when ctx is cancelled.
func (p *Playlist) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create audio watcher: %w", err)
	}
	if err := watcher.Add(p.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch audio dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		const settle = 500 * time.Millisecond
		timer := time.NewTimer(settle)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
					event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
					timer.Reset(settle)
				}
			case <-timer.C:
				if err := p.Rescan(); err != nil {
					slog.Error("playlist rescan failed", "dir", p.dir, "err", err)
					continue
				}
				slog.Info("🔄 playlist rescanned", "dir", p.dir, "tracks", p.Len())
				if onChange != nil {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("audio watcher error", "err", err)
			}
		}
	}()
	return nil
}
