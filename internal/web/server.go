package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jaxi-taxi/jaxitaxi/internal/player"
	"github.com/jaxi-taxi/jaxitaxi/internal/playlist"
	"github.com/jaxi-taxi/jaxitaxi/internal/showlog"
	"github.com/jaxi-taxi/jaxitaxi/internal/store"
	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

const (
	sessionCookie = "jaxitaxi_token"
	sessionTTL    = 24 * time.Hour
)

// Player is the part of the player the dashboard drives.
type Player interface {
	Snapshot() player.State
	Next() (playlist.Track, error)
	Prev() (playlist.Track, error)
	Select(i int) (playlist.Track, error)
	Reanalyze() (playlist.Track, error)
	Settings() store.Settings
	UpdateSettings(s store.Settings) (store.Settings, error)
}

// Device reports on the configured WLED controller.
type Device interface {
	Enabled() bool
	BaseURL() string
	Info(ctx context.Context) (*wled.Info, error)
}

type Options struct {
	Port     int
	Username string // login is required when both are set
	Password string
	Player   Player
	Playlist *playlist.Playlist
	Store    *store.Store
	Device   Device
	LogDir   string
}

// Server serves the dashboard and its JSON API.
type Server struct {
	port     int
	player   Player
	playlist *playlist.Playlist
	store    *store.Store
	logDir   string
	auth     bool

	mu       sync.RWMutex
	device   Device
	sessions sync.Map // token → *store.Session

	srv *http.Server
}

func NewServer(o Options) *Server {
	s := &Server{
		port:     o.Port,
		player:   o.Player,
		playlist: o.Playlist,
		store:    o.Store,
		logDir:   o.LogDir,
		device:   o.Device,
		auth:     o.Username != "" && o.Password != "",
	}

	if s.auth {
		if err := s.store.EnsureAdmin(o.Username, o.Password); err != nil {
			slog.Error("ensure admin failed", "err", err)
		}
		s.store.CleanExpiredSessions()
		sessions, err := s.store.LoadSessions()
		if err != nil {
			slog.Error("load sessions failed", "err", err)
		}
		for token, sess := range sessions {
			s.sessions.Store(token, sess)
		}
		slog.Info("web auth enabled", "username", o.Username, "restored_sessions", len(sessions))
	} else {
		slog.Info("web auth disabled (no username/password configured)")
	}
	return s
}

// SetDevice swaps the device used by /api/device (config reload).
func (s *Server) SetDevice(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = d
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		if s.auth {
			return s.requireAuth(h)
		}
		return h
	}

	if s.auth {
		mux.HandleFunc("GET /login", s.handleLoginPage)
		mux.HandleFunc("POST /api/login", s.handleLogin)
		mux.HandleFunc("GET /api/logout", s.handleLogout)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", guard(s.handleIndex))

	mux.HandleFunc("GET /api/state", guard(s.handleState))
	mux.HandleFunc("GET /api/playlist", guard(s.handlePlaylist))
	mux.HandleFunc("POST /api/next", guard(s.handleMove(s.player.Next, "next")))
	mux.HandleFunc("POST /api/prev", guard(s.handleMove(s.player.Prev, "prev")))
	mux.HandleFunc("POST /api/analyze", guard(s.handleMove(s.player.Reanalyze, "analyze")))
	mux.HandleFunc("POST /api/select", guard(s.handleSelect))
	mux.HandleFunc("GET /api/settings", guard(s.handleGetSettings))
	mux.HandleFunc("POST /api/settings", guard(s.handleSaveSettings))
	mux.HandleFunc("GET /api/effects", guard(s.handleEffects))
	mux.HandleFunc("GET /api/history", guard(s.handleHistory))
	mux.HandleFunc("GET /api/audit", guard(s.handleAudit))
	mux.HandleFunc("GET /api/device", guard(s.handleDevice))
	mux.HandleFunc("GET /api/logs", guard(s.handleLogs))
	mux.HandleFunc("GET /logs/{name}", guard(s.handleLogDownload))
	mux.HandleFunc("GET /audio/{file}", guard(s.handleAudio))

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("🌐 dashboard started", "addr", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// --- auth ---

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Server) session(r *http.Request) (*store.Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	v, ok := s.sessions.Load(cookie.Value)
	if !ok {
		return nil, false
	}
	sess := v.(*store.Session)
	if time.Now().After(sess.Expiry) {
		s.sessions.Delete(cookie.Value)
		s.store.DeleteSession(cookie.Value)
		return nil, false
	}
	return sess, true
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.session(r); ok {
			next(w, r)
			return
		}
		// API calls get 401, page requests redirect to login
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	username := r.FormValue("username")

	user, err := s.store.Authenticate(username, r.FormValue("password"))
	if err != nil {
		slog.Error("authenticate failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		slog.Warn("login rejected", "username", username, "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := generateToken()
	expiry := time.Now().Add(sessionTTL)
	s.sessions.Store(token, &store.Session{UserID: user.ID, Expiry: expiry})
	if err := s.store.SaveSession(token, user.ID, expiry); err != nil {
		slog.Error("save session failed", "err", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.store.Log(user.Username, "login", "", r.RemoteAddr)
	slog.Info("user logged in", "username", user.Username, "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Delete(cookie.Value)
		if err := s.store.DeleteSession(cookie.Value); err != nil {
			slog.Error("delete session failed", "err", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// actor names the user behind a request for the audit log.
func (s *Server) actor(r *http.Request) string {
	if !s.auth {
		return "anonymous"
	}
	sess, ok := s.session(r)
	if !ok {
		return "anonymous"
	}
	u, err := s.store.GetUser(sess.UserID)
	if err != nil || u == nil {
		return "unknown"
	}
	return u.Username
}

// --- pages ---

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(r); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginHTML)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- player ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	st := s.player.Snapshot()
	current := -1
	if st.Track != nil {
		current = st.Track.Index
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tracks":  s.playlist.Tracks(),
		"current": current,
	})
}

func (s *Server) handleMove(move func() (playlist.Track, error), action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := move()
		if err != nil {
			writeTrackError(w, err)
			return
		}
		slog.Info("player "+action, "index", t.Index, "file", t.File, "ip", r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, t)
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	t, err := s.player.Select(idx)
	if err != nil {
		writeTrackError(w, err)
		return
	}
	slog.Info("player select", "index", t.Index, "file", t.File, "ip", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, t)
}

func writeTrackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playlist.ErrEmpty):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, playlist.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- settings ---

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Settings())
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var in store.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings JSON")
		return
	}
	saved, err := s.player.UpdateSettings(in)
	if errors.Is(err, store.ErrUnknownEffect) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("save settings failed", "err", err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	detail, _ := json.Marshal(saved)
	s.store.Log(s.actor(r), "settings", string(detail), r.RemoteAddr)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"featured": wled.FeaturedEffects,
		"all":      wled.Effects(),
	})
}

// --- history, audit, device, logs ---

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := s.store.RecentHistory(limit)
	if err != nil {
		slog.Error("load history failed", "err", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.store.GetAuditLog(limit)
	if err != nil {
		slog.Error("load audit log failed", "err", err)
		writeError(w, http.StatusInternalServerError, "audit log unavailable")
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type deviceStatus struct {
	Enabled bool       `json:"enabled"`
	URL     string     `json:"url,omitempty"`
	Info    *wled.Info `json:"info,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	d := s.device
	s.mu.RUnlock()

	if d == nil || !d.Enabled() {
		writeJSON(w, http.StatusOK, deviceStatus{})
		return
	}

	out := deviceStatus{Enabled: true, URL: d.BaseURL()}
	info, err := d.Info(r.Context())
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Info = info
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logDir == "" {
		writeJSON(w, http.StatusOK, []showlog.FileInfo{})
		return
	}
	files, err := showlog.ListFiles(s.logDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleLogDownload(w http.ResponseWriter, r *http.Request) {
	if s.logDir == "" {
		http.NotFound(w, r)
		return
	}
	name := r.PathValue("name")
	f, err := showlog.Open(s.logDir, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	path, err := s.playlist.Path(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", playlist.MimeType(file))
	http.ServeContent(w, r, file, info.ModTime(), f)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
