package showlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var header = []string{"time", "track", "source", "effect", "fx", "bri", "primary", "secondary", "device"}

// Entry is one applied lighting state.
type Entry struct {
	Time      time.Time
	Track     string
	Source    string
	Effect    string
	FX        int
	Bri       int
	Primary   string
	Secondary string
	Device    string
}

// Logger writes one CSV row per applied lighting state.
// One file per process run: <dir>/show_<date>_<time>.csv
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create showlog dir: %w", err)
	}

	name := fmt.Sprintf("show_%s.csv", time.Now().Format("20060102_150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create showlog file: %w", err)
	}

	// UTF-8 BOM for Excel
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write showlog header: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write(header)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write showlog header: %w", err)
	}

	return &Logger{file: f, writer: w}, nil
}

// Write appends e. A nil Logger discards.
func (l *Logger) Write(e Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	l.writer.Write([]string{
		e.Time.Format("2006-01-02 15:04:05"),
		e.Track,
		e.Source,
		e.Effect,
		strconv.Itoa(e.FX),
		strconv.Itoa(e.Bri),
		e.Primary,
		e.Secondary,
		e.Device,
	})
	l.writer.Flush()
	return l.writer.Error()
}

// Close flushes and closes the file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Path returns the file path.
func (l *Logger) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

// FileInfo describes a log file.
type FileInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time"`
}

// ListFiles returns the CSV files in dir, newest first. A missing dir
// yields an empty list.
func ListFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileInfo{}, nil
		}
		return nil, err
	}

	type withTime struct {
		FileInfo
		mod time.Time
	}
	var found []withTime
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, withTime{
			FileInfo: FileInfo{
				Name:    e.Name(),
				Size:    info.Size(),
				ModTime: info.ModTime().Format("2006-01-02 15:04:05"),
			},
			mod: info.ModTime(),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].mod.Equal(found[j].mod) {
			return found[i].Name > found[j].Name
		}
		return found[i].mod.After(found[j].mod)
	})

	files := make([]FileInfo, len(found))
	for i, f := range found {
		files[i] = f.FileInfo
	}
	return files, nil
}

// Open resolves name to a log file inside dir, rejecting path traversal.
func Open(dir, name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".csv") {
		return nil, fmt.Errorf("invalid log file %q", name)
	}
	return os.Open(filepath.Join(dir, name))
}
