package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
	"github.com/jaxi-taxi/jaxitaxi/internal/player"
	"github.com/jaxi-taxi/jaxitaxi/internal/playlist"
	"github.com/jaxi-taxi/jaxitaxi/internal/store"
	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

type fakePlayer struct {
	mu       sync.Mutex
	pl       *playlist.Playlist
	settings store.Settings
	moves    []string
}

func (f *fakePlayer) record(action string, t playlist.Track, err error) (playlist.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.moves = append(f.moves, action)
	}
	return t, err
}

func (f *fakePlayer) Snapshot() player.State {
	t, _ := f.pl.Current()
	s := lighting.Fallback("bpm")
	return player.State{
		Track:        &t,
		TrackCount:   f.pl.Len(),
		Suggestion:   &s,
		Source:       store.SourceFallback,
		PreviewClass: lighting.PreviewClass(s.Effect),
		Settings:     f.Settings(),
	}
}

func (f *fakePlayer) Next() (playlist.Track, error) {
	t, err := f.pl.Next()
	return f.record("next", t, err)
}

func (f *fakePlayer) Prev() (playlist.Track, error) {
	t, err := f.pl.Prev()
	return f.record("prev", t, err)
}

func (f *fakePlayer) Select(i int) (playlist.Track, error) {
	t, err := f.pl.Select(i)
	return f.record("select", t, err)
}

func (f *fakePlayer) Reanalyze() (playlist.Track, error) {
	t, err := f.pl.Current()
	return f.record("analyze", t, err)
}

func (f *fakePlayer) Settings() store.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakePlayer) UpdateSettings(s store.Settings) (store.Settings, error) {
	s, err := s.Normalize()
	if err != nil {
		return store.Settings{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s
	return s, nil
}

type fakeDevice struct {
	enabled bool
	err     error
}

func (d fakeDevice) Enabled() bool   { return d.enabled }
func (d fakeDevice) BaseURL() string { return "http://wled.local" }
func (d fakeDevice) Info(context.Context) (*wled.Info, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &wled.Info{Name: "Taxi", Version: "0.14.0"}, nil
}

type env struct {
	srv    *Server
	http   *httptest.Server
	player *fakePlayer
	store  *store.Store
	logDir string
}

func newEnv(t *testing.T, username, password string) *env {
	t.Helper()
	dir := t.TempDir()
	audioDir := filepath.Join(dir, "audio")
	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(audioDir, 0o755))
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "a.mp3"), []byte("mp3 data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "b.wav"), []byte("wav data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "show_1.csv"), []byte("time,track\n"), 0o644))

	pl, err := playlist.New(audioDir, false, 0)
	require.NoError(t, err)

	st, err := store.NewStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fp := &fakePlayer{pl: pl, settings: store.DefaultSettings()}
	srv := NewServer(Options{
		Username: username,
		Password: password,
		Player:   fp,
		Playlist: pl,
		Store:    st,
		Device:   fakeDevice{enabled: true},
		LogDir:   logDir,
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &env{srv: srv, http: hs, player: fp, store: st, logDir: logDir}
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	e := newEnv(t, "admin", "pw")
	res, err := http.Get(e.http.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]string
	decode(t, res, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestIndexAndState(t *testing.T) {
	e := newEnv(t, "", "")

	res, err := http.Get(e.http.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(page), "Jaxi Taxi")

	res, err = http.Get(e.http.URL + "/api/state")
	require.NoError(t, err)
	var st player.State
	decode(t, res, &st)
	require.NotNil(t, st.Track)
	assert.Equal(t, "a.mp3", st.Track.File)
	assert.Equal(t, store.SourceFallback, st.Source)
	assert.Equal(t, "effect-pulse", st.PreviewClass)

	res, err = http.Get(e.http.URL + "/nope")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPlayerControls(t *testing.T) {
	e := newEnv(t, "", "")

	res, err := http.Post(e.http.URL+"/api/next", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	var tr playlist.Track
	decode(t, res, &tr)
	assert.Equal(t, "b.wav", tr.File)

	res, err = http.Post(e.http.URL+"/api/prev", "", nil)
	require.NoError(t, err)
	decode(t, res, &tr)
	assert.Equal(t, "a.mp3", tr.File)

	res, err = http.Post(e.http.URL+"/api/select?index=1", "", nil)
	require.NoError(t, err)
	decode(t, res, &tr)
	assert.Equal(t, 1, tr.Index)

	res, err = http.Post(e.http.URL+"/api/analyze", "", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	res, err = http.Post(e.http.URL+"/api/select?index=9", "", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Post(e.http.URL+"/api/select?index=abc", "", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Get(e.http.URL + "/api/next")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	assert.Equal(t, []string{"next", "prev", "select", "analyze"}, e.player.moves)

	res, err = http.Get(e.http.URL + "/api/playlist")
	require.NoError(t, err)
	var pl struct {
		Tracks  []playlist.Track `json:"tracks"`
		Current int              `json:"current"`
	}
	decode(t, res, &pl)
	assert.Len(t, pl.Tracks, 2)
	assert.Equal(t, 1, pl.Current)
}

func TestSettings(t *testing.T) {
	e := newEnv(t, "", "")

	res, err := http.Post(e.http.URL+"/api/settings", "application/json",
		strings.NewReader(`{"volume":0.25,"defaultEffect":"Ripple","uiScale":1.5}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var saved store.Settings
	decode(t, res, &saved)
	assert.Equal(t, store.Settings{Volume: 0.25, DefaultEffect: "ripple", UIScale: 1.5}, saved)

	res, err = http.Get(e.http.URL + "/api/settings")
	require.NoError(t, err)
	var got store.Settings
	decode(t, res, &got)
	assert.Equal(t, saved, got)

	res, err = http.Post(e.http.URL+"/api/settings", "application/json", strings.NewReader(`{"defaultEffect":"disco"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Post(e.http.URL+"/api/settings", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Get(e.http.URL + "/api/audit?limit=10")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var audit []store.AuditEntry
	decode(t, res, &audit)
	require.Len(t, audit, 1)
	assert.Equal(t, "settings", audit[0].Action)
	assert.Equal(t, "anonymous", audit[0].Username)
	assert.Contains(t, audit[0].Detail, `"defaultEffect":"ripple"`)
}

func TestAuditEmpty(t *testing.T) {
	e := newEnv(t, "", "")

	res, err := http.Get(e.http.URL + "/api/audit")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var audit []store.AuditEntry
	decode(t, res, &audit)
	assert.Empty(t, audit)
}

func TestEffectsAndHistory(t *testing.T) {
	e := newEnv(t, "", "")

	res, err := http.Get(e.http.URL + "/api/effects")
	require.NoError(t, err)
	var fx struct {
		Featured []string      `json:"featured"`
		All      []wled.Effect `json:"all"`
	}
	decode(t, res, &fx)
	assert.Equal(t, wled.FeaturedEffects, fx.Featured)
	assert.Equal(t, wled.Effects(), fx.All)

	_, err = e.store.RecordAnalysis(store.HistoryEntry{Track: "a.mp3", Source: store.SourceAI, Suggestion: lighting.Suggestion{Effect: "bpm"}, FX: 68, Device: lighting.DeviceSent})
	require.NoError(t, err)

	res, err = http.Get(e.http.URL + "/api/history?limit=5")
	require.NoError(t, err)
	var h []store.HistoryEntry
	decode(t, res, &h)
	require.Len(t, h, 1)
	assert.Equal(t, 68, h[0].FX)
}

func TestDevice(t *testing.T) {
	e := newEnv(t, "", "")

	var d deviceStatus
	res, err := http.Get(e.http.URL + "/api/device")
	require.NoError(t, err)
	decode(t, res, &d)
	assert.True(t, d.Enabled)
	require.NotNil(t, d.Info)
	assert.Equal(t, "Taxi", d.Info.Name)

	e.srv.SetDevice(fakeDevice{enabled: true, err: errors.New("timeout")})
	d = deviceStatus{}
	res, err = http.Get(e.http.URL + "/api/device")
	require.NoError(t, err)
	decode(t, res, &d)
	assert.Equal(t, "timeout", d.Error)
	assert.Nil(t, d.Info)

	e.srv.SetDevice(nil)
	d = deviceStatus{}
	res, err = http.Get(e.http.URL + "/api/device")
	require.NoError(t, err)
	decode(t, res, &d)
	assert.False(t, d.Enabled)
}

func TestLogsAndAudio(t *testing.T) {
	e := newEnv(t, "", "")

	res, err := http.Get(e.http.URL + "/api/logs")
	require.NoError(t, err)
	var files []map[string]any
	decode(t, res, &files)
	require.Len(t, files, 1)
	assert.Equal(t, "show_1.csv", files[0]["name"])

	res, err = http.Get(e.http.URL + "/logs/show_1.csv")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "time,track\n", string(body))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "show_1.csv")

	res, err = http.Get(e.http.URL + "/logs/" + url.PathEscape("../test.db"))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Get(e.http.URL + "/audio/b.wav")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "wav data", string(body))
	assert.Equal(t, "audio/wav", res.Header.Get("Content-Type"))

	res, err = http.Get(e.http.URL + "/audio/missing.mp3")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAuth(t *testing.T) {
	e := newEnv(t, "admin", "secret")
	client := noRedirect()

	res, err := client.Get(e.http.URL + "/api/state")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = client.Get(e.http.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, err = client.PostForm(e.http.URL+"/api/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = client.PostForm(e.http.URL+"/api/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var token *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == sessionCookie {
			token = c
		}
	}
	require.NotNil(t, token)

	authed := func(method, path string, body io.Reader) *http.Response {
		req, err := http.NewRequest(method, e.http.URL+path, body)
		require.NoError(t, err)
		req.AddCookie(token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		res, err := client.Do(req)
		require.NoError(t, err)
		return res
	}

	res = authed(http.MethodGet, "/api/state", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = authed(http.MethodGet, "/login", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)

	res = authed(http.MethodPost, "/api/settings", strings.NewReader(`{"volume":0.4,"defaultEffect":"solid","uiScale":1}`))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = authed(http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var audit []store.AuditEntry
	decode(t, res, &audit)
	require.Len(t, audit, 2)
	assert.Equal(t, "settings", audit[0].Action)
	assert.Equal(t, "admin", audit[0].Username)
	assert.Equal(t, "login", audit[1].Action)

	res, err = noRedirect().Get(e.http.URL + "/api/audit")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// A new server on the same database restores the session.
	restored := NewServer(Options{Username: "admin", Password: "secret", Player: e.player, Playlist: e.player.pl, Store: e.store})
	hs := httptest.NewServer(restored.Handler())
	defer hs.Close()
	req, _ := http.NewRequest(http.MethodGet, hs.URL+"/api/state", nil)
	req.AddCookie(token)
	res, err = client.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = authed(http.MethodGet, "/api/logout", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)

	res = authed(http.MethodGet, "/api/state", nil)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
