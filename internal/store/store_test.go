package store_test

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
	"github.com/jaxi-taxi/jaxitaxi/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_DefaultsWhenUnsaved(t *testing.T) {
	s := newStore(t)
	st, err := s.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, store.DefaultSettings(), st)
}

func TestSettings_SaveAndNormalize(t *testing.T) {
	s := newStore(t)

	saved, err := s.SaveSettings(store.Settings{Volume: 1.7, DefaultEffect: "  Fire Flicker ", UIScale: 5})
	require.NoError(t, err)
	assert.Equal(t, store.Settings{Volume: 1, DefaultEffect: "fire flicker", UIScale: 2}, saved)

	got, err := s.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	saved, err = s.SaveSettings(store.Settings{Volume: -1, DefaultEffect: "", UIScale: 0.1})
	require.NoError(t, err)
	assert.Equal(t, store.Settings{Volume: 0, DefaultEffect: "bpm", UIScale: 0.5}, saved)
}

func TestSettings_UnknownEffectRejected(t *testing.T) {
	s := newStore(t)
	_, err := s.SaveSettings(store.Settings{Volume: 0.5, DefaultEffect: "pulse", UIScale: 1})
	assert.ErrorIs(t, err, store.ErrUnknownEffect)

	got, err := s.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, store.DefaultSettings(), got)
}

func TestSettings_NormalizeNaN(t *testing.T) {
	st, err := store.Settings{Volume: math.NaN(), DefaultEffect: "solid", UIScale: math.NaN()}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 0.5, st.Volume)
	assert.Equal(t, 1.0, st.UIScale)
}

func TestHistory(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.LastSuggestion()
	require.NoError(t, err)
	assert.False(t, ok)

	ai := lighting.Suggestion{PrimaryColor: "#FF0000", SecondaryColor: "#00FF00", Intensity: 0.5, Effect: "BPM", Speed: 200, EffectIntensity: 90}
	e1, err := s.RecordAnalysis(store.HistoryEntry{
		Track:      "song.mp3",
		Source:     store.SourceAI,
		Suggestion: ai,
		FX:         68,
		Bri:        128,
		Device:     lighting.DeviceSent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e1.RunID)
	assert.NotZero(t, e1.ID)

	_, err = s.RecordAnalysis(store.HistoryEntry{
		Track:      "other.mp3",
		Source:     store.SourceFallback,
		Suggestion: lighting.Fallback("bpm"),
		Device:     lighting.DeviceSkipped,
		Error:      "model unavailable",
	})
	require.NoError(t, err)

	entries, err := s.RecentHistory(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "other.mp3", entries[0].Track)
	assert.Equal(t, store.SourceFallback, entries[0].Source)
	assert.Equal(t, "model unavailable", entries[0].Error)
	assert.Equal(t, e1.RunID, entries[1].RunID)
	assert.Equal(t, ai, entries[1].Suggestion)
	assert.Equal(t, lighting.DeviceSent, entries[1].Device)
	assert.WithinDuration(t, time.Now(), entries[1].Time, time.Minute)

	last, ok, err := s.LastSuggestion()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ai, last)

	limited, err := s.RecentHistory(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUsersAndSessions(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.EnsureAdmin("admin", "secret"))

	u, err := s.Authenticate("admin", "secret")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.IsAdmin)

	u2, err := s.Authenticate("admin", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u2)

	u3, err := s.Authenticate("nobody", "secret")
	require.NoError(t, err)
	assert.Nil(t, u3)

	// Password reset keeps the same user.
	require.NoError(t, s.EnsureAdmin("admin", "changed"))
	again, err := s.Authenticate("admin", "changed")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, u.ID, again.ID)

	require.NoError(t, s.SaveSession("live", u.ID, time.Now().Add(time.Hour)))
	require.NoError(t, s.SaveSession("stale", u.ID, time.Now().Add(-time.Hour)))

	sessions, err := s.LoadSessions()
	require.NoError(t, err)
	require.Contains(t, sessions, "live")
	assert.NotContains(t, sessions, "stale")
	assert.Equal(t, u.ID, sessions["live"].UserID)

	s.CleanExpiredSessions()
	require.NoError(t, s.DeleteSession("live"))
	sessions, err = s.LoadSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	got, err := s.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	missing, err := s.GetUser(999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAuditLog(t *testing.T) {
	s := newStore(t)
	s.Log("admin", "settings", `{"volume":0.4}`, "127.0.0.1")
	s.Log("admin", "next", "", "127.0.0.1")

	entries, err := s.GetAuditLog(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "next", entries[0].Action)
	assert.Equal(t, "settings", entries[1].Action)
}
