package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaxi-taxi/jaxitaxi/internal/analysis"
	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
	"github.com/jaxi-taxi/jaxitaxi/internal/playlist"
	"github.com/jaxi-taxi/jaxitaxi/internal/showlog"
	"github.com/jaxi-taxi/jaxitaxi/internal/store"
	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

// ErrNoAnalyzer is recorded when no model is configured; every track then
// gets the local fallback.
var ErrNoAnalyzer = errors.New("analysis not configured")

// Store is the persistence the player needs.
type Store interface {
	GetSettings() (store.Settings, error)
	SaveSettings(store.Settings) (store.Settings, error)
	RecordAnalysis(store.HistoryEntry) (store.HistoryEntry, error)
	LastSuggestion() (lighting.Suggestion, bool, error)
}

// Deps wires a Player. Analyzer and Sender may be nil.
type Deps struct {
	Playlist   *playlist.Playlist
	Analyzer   analysis.Analyzer
	Translator *lighting.Translator
	Sender     wled.Sender
	Store      Store
	ShowLog    *showlog.Logger
	Logger     *slog.Logger
}

// State is a point-in-time copy of the player for the dashboard.
type State struct {
	Track        *playlist.Track       `json:"track"`
	TrackCount   int                   `json:"track_count"`
	Analyzing    bool                  `json:"analyzing"`
	Suggestion   *lighting.Suggestion  `json:"suggestion"`
	Source       store.Source          `json:"source,omitempty"`
	PreviewClass string                `json:"preview_class"`
	Command      *wled.State           `json:"command,omitempty"`
	Device       lighting.DeviceStatus `json:"device,omitempty"`
	DeviceError  string                `json:"device_error,omitempty"`
	Error        string                `json:"error,omitempty"`
	RunID        string                `json:"run_id,omitempty"`
	Settings     store.Settings        `json:"settings"`
}

// Player runs the flow track change -> analysis -> device command -> preview.
// Each track change cancels the analysis of the previous track.
type Player struct {
	playlist   *playlist.Playlist
	translator *lighting.Translator
	store      Store
	showlog    *showlog.Logger
	logger     *slog.Logger

	mu          sync.RWMutex
	analyzer    analysis.Analyzer
	sender      wled.Sender
	settings    store.Settings
	track       *playlist.Track
	analyzing   bool
	suggestion  *lighting.Suggestion
	previous    *lighting.Suggestion
	source      store.Source
	command     *wled.State
	device      lighting.DeviceStatus
	deviceError string
	lastErr     string
	runID       string

	baseCtx context.Context
	cancel  context.CancelFunc
	gen     uint64
	wg      sync.WaitGroup
}

func New(d Deps) *Player {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		playlist:   d.Playlist,
		analyzer:   d.Analyzer,
		translator: d.Translator,
		sender:     d.Sender,
		store:      d.Store,
		showlog:    d.ShowLog,
		logger:     logger,
		settings:   store.DefaultSettings(),
		baseCtx:    context.Background(),
	}
}

// Start loads persisted settings and analyzes the current track.
// Call Stop to cancel in-flight work.
func (p *Player) Start(ctx context.Context) error {
	settings, err := p.store.GetSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	last, ok, err := p.store.LastSuggestion()
	if err != nil {
		p.logger.Warn("load last suggestion failed", "err", err)
	}

	p.mu.Lock()
	p.baseCtx = ctx
	p.settings = settings
	if ok {
		p.previous = &last
	}
	p.mu.Unlock()

	t, err := p.playlist.Current()
	if errors.Is(err, playlist.ErrEmpty) {
		p.logger.Warn("no audio files found", "dir", p.playlist.Dir())
		return nil
	}
	if err != nil {
		return err
	}
	p.begin(t)
	return nil
}

// Stop cancels the in-flight analysis and waits for it to finish.
func (p *Player) Stop() {
	p.mu.Lock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Next advances to the next track (wrapping) and analyzes it.
func (p *Player) Next() (playlist.Track, error) {
	return p.change(p.playlist.Next)
}

// Prev moves to the previous track (wrapping) and analyzes it.
func (p *Player) Prev() (playlist.Track, error) {
	return p.change(p.playlist.Prev)
}

// Select jumps to track i and analyzes it.
func (p *Player) Select(i int) (playlist.Track, error) {
	return p.change(func() (playlist.Track, error) {
		return p.playlist.Select(i)
	})
}

// Reanalyze runs the analysis again for the current track.
func (p *Player) Reanalyze() (playlist.Track, error) {
	return p.change(p.playlist.Current)
}

func (p *Player) change(move func() (playlist.Track, error)) (playlist.Track, error) {
	t, err := move()
	if err != nil {
		return playlist.Track{}, err
	}
	p.begin(t)
	return t, nil
}

// PlaylistChanged re-analyzes when a rescan moved the cursor to a
// different file.
func (p *Player) PlaylistChanged() {
	t, err := p.playlist.Current()
	if err != nil {
		return
	}
	p.mu.RLock()
	same := p.track != nil && p.track.File == t.File
	p.mu.RUnlock()
	if same {
		p.mu.Lock()
		p.track = &t
		p.mu.Unlock()
		return
	}
	p.logger.Info("current track changed after rescan", "file", t.File)
	p.begin(t)
}

// UpdateSettings validates, persists and applies s.
func (p *Player) UpdateSettings(s store.Settings) (store.Settings, error) {
	saved, err := p.store.SaveSettings(s)
	if err != nil {
		return store.Settings{}, err
	}
	p.mu.Lock()
	p.settings = saved
	p.mu.Unlock()
	p.logger.Info("⚙️ settings updated", "volume", saved.Volume, "default_effect", saved.DefaultEffect, "ui_scale", saved.UIScale)
	return saved, nil
}

func (p *Player) Settings() store.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// SetSender swaps the device sender (config reload). nil disables the device.
func (p *Player) SetSender(s wled.Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = s
}

// SetAnalyzer swaps the analyzer (config reload). nil forces the fallback.
func (p *Player) SetAnalyzer(a analysis.Analyzer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.analyzer = a
}

// Snapshot returns a copy of the current state.
func (p *Player) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := State{
		TrackCount:   p.playlist.Len(),
		Analyzing:    p.analyzing,
		Source:       p.source,
		PreviewClass: lighting.PreviewClass(""),
		Device:       p.device,
		DeviceError:  p.deviceError,
		Error:        p.lastErr,
		RunID:        p.runID,
		Settings:     p.settings,
	}
	if p.track != nil {
		t := *p.track
		st.Track = &t
	}
	if p.suggestion != nil {
		s := *p.suggestion
		st.Suggestion = &s
		st.PreviewClass = lighting.PreviewClass(s.Effect)
	}
	if p.command != nil {
		c := *p.command
		c.Seg = append([]wled.Segment(nil), p.command.Seg...)
		st.Command = &c
	}
	return st
}

// begin cancels the running analysis and starts one for t.
func (p *Player) begin(t playlist.Track) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(p.baseCtx)
	p.cancel = cancel
	p.track = &t
	p.analyzing = true
	p.lastErr = ""

	analyzer := p.analyzer
	settings := p.settings
	input := varietyInput(settings.DefaultEffect, p.previous)
	p.mu.Unlock()

	p.logger.Info("▶️ track changed", "index", t.Index, "file", t.File)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.analyze(ctx, gen, t, analyzer, settings, input)
	}()
}

func (p *Player) current(gen uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen == gen
}

func (p *Player) analyze(ctx context.Context, gen uint64, t playlist.Track, analyzer analysis.Analyzer, settings store.Settings, input string) {
	sug, err := p.suggest(ctx, t, analyzer, input)
	if ctx.Err() != nil || !p.current(gen) {
		p.logger.Debug("stale analysis dropped", "file", t.File)
		return
	}

	source := store.SourceAI
	var tr lighting.Translation
	if err != nil {
		p.logger.Warn("AI analysis failed, using fallback lighting", "file", t.File, "err", err)
		source = store.SourceFallback
		sug = lighting.Fallback(settings.DefaultEffect)
		tr = p.translator.Translate(sug)
		tr.Device = lighting.DeviceSkipped
	} else {
		p.mu.RLock()
		sender := p.sender
		p.mu.RUnlock()
		tr = p.translator.Apply(ctx, sug, sender)
	}

	// gen may have moved during the device call; record under the lock.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		p.logger.Debug("stale analysis dropped after device call", "file", t.File)
		return
	}

	entry := store.HistoryEntry{
		Track:       t.File,
		Source:      source,
		Suggestion:  sug,
		FX:          tr.State.Seg[0].FX,
		Bri:         tr.State.Bri,
		Device:      tr.Device,
		DeviceError: tr.DeviceError,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	saved, herr := p.store.RecordAnalysis(entry)
	if herr != nil {
		p.logger.Error("record history failed", "err", herr)
	}

	if lerr := p.showlog.Write(showlog.Entry{
		Track:     t.File,
		Source:    string(source),
		Effect:    tr.Effect,
		FX:        tr.State.Seg[0].FX,
		Bri:       tr.State.Bri,
		Primary:   sug.PrimaryColor,
		Secondary: sug.SecondaryColor,
		Device:    string(tr.Device),
	}); lerr != nil {
		p.logger.Error("showlog write failed", "err", lerr)
	}

	p.analyzing = false
	p.suggestion = &sug
	p.source = source
	cmd := tr.State
	p.command = &cmd
	p.device = tr.Device
	p.deviceError = tr.DeviceError
	p.runID = saved.RunID
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.previous = &sug
	}
}

func (p *Player) suggest(ctx context.Context, t playlist.Track, analyzer analysis.Analyzer, input string) (lighting.Suggestion, error) {
	if analyzer == nil {
		return lighting.Suggestion{}, ErrNoAnalyzer
	}
	uri, err := p.playlist.LoadDataURI(t)
	if err != nil {
		return lighting.Suggestion{}, err
	}
	return analyzer.Analyze(ctx, uri, input)
}

// varietyInput serializes the settings the model sees so it can pick
// something different from the previous track.
func varietyInput(defaultEffect string, previous *lighting.Suggestion) string {
	b, err := json.Marshal(struct {
		DefaultEffect string               `json:"defaultEffect"`
		Previous      *lighting.Suggestion `json:"previous"`
	}{defaultEffect, previous})
	if err != nil {
		return ""
	}
	return string(b)
}
