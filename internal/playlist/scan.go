package playlist

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// Track is one playable audio file.
type Track struct {
	Index    int           `json:"index"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	File     string        `json:"file"`
	MimeType string        `json:"mime_type"`
	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"duration"`
}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// MimeType returns the audio MIME type for a file name, or "" if the
// extension is not a supported audio format.
func MimeType(name string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(name))]
}

// Scan lists the audio files in dir ordered by file name. With shuffle the
// order is randomized once.
func Scan(dir string, shuffle bool) ([]Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio dir: %w", err)
	}

	var tracks []Track
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		mimeType := MimeType(e.Name())
		if mimeType == "" {
			continue
		}

		artist, title := parseName(e.Name())
		d := probeDuration(filepath.Join(dir, e.Name()))
		tracks = append(tracks, Track{
			Title:    title,
			Artist:   artist,
			File:     e.Name(),
			MimeType: mimeType,
			Duration: d,
			Seconds:  d.Round(time.Millisecond).Seconds(),
		})
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].File < tracks[j].File
	})
	if shuffle {
		rand.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
	}
	for i := range tracks {
		tracks[i].Index = i
	}
	return tracks, nil
}

// parseName splits "Artist - Title.mp3". Without a separator the whole stem
// is the title.
func parseName(file string) (artist, title string) {
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	stem = strings.ReplaceAll(stem, "_", " ")
	if a, t, ok := strings.Cut(stem, " - "); ok {
		a, t = strings.TrimSpace(a), strings.TrimSpace(t)
		if a != "" && t != "" {
			return a, t
		}
	}
	return "", strings.TrimSpace(stem)
}

// probeDuration decodes mp3 and wav headers to compute the track length.
// Other formats, and files that fail to decode, report 0.
func probeDuration(path string) time.Duration {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	default:
		f.Close()
		return 0
	}
	if err != nil {
		f.Close()
		slog.Debug("duration probe failed", "file", filepath.Base(path), "err", err)
		return 0
	}
	defer stream.Close()

	return format.SampleRate.D(stream.Len())
}
