package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

var ErrUnknownEffect = errors.New("unknown effect")

// Settings are the user-adjustable dashboard settings.
type Settings struct {
	Volume        float64 `json:"volume"`
	DefaultEffect string  `json:"defaultEffect"`
	UIScale       float64 `json:"uiScale"`
}

func DefaultSettings() Settings {
	return Settings{
		Volume:        0.5,
		DefaultEffect: "bpm",
		UIScale:       1,
	}
}

// Normalize clamps the numeric fields and canonicalizes the effect name.
// An empty effect takes the default; an unknown one is an error.
func (s Settings) Normalize() (Settings, error) {
	if math.IsNaN(s.Volume) {
		s.Volume = DefaultSettings().Volume
	}
	s.Volume = clamp(s.Volume, 0, 1)

	if s.UIScale == 0 || math.IsNaN(s.UIScale) {
		s.UIScale = DefaultSettings().UIScale
	}
	s.UIScale = clamp(s.UIScale, 0.5, 2)

	s.DefaultEffect = strings.ToLower(strings.TrimSpace(s.DefaultEffect))
	if s.DefaultEffect == "" {
		s.DefaultEffect = DefaultSettings().DefaultEffect
	}
	if _, ok := wled.EffectID(s.DefaultEffect); !ok {
		return Settings{}, fmt.Errorf("%w: %q", ErrUnknownEffect, s.DefaultEffect)
	}
	return s, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// GetSettings returns the saved settings, or the defaults if none were saved.
func (s *Store) GetSettings() (Settings, error) {
	var st Settings
	err := s.db.QueryRow(
		`SELECT volume, default_effect, ui_scale FROM settings WHERE id = 1`,
	).Scan(&st.Volume, &st.DefaultEffect, &st.UIScale)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st, nil
}

// SaveSettings validates and stores st, returning the normalized value.
func (s *Store) SaveSettings(st Settings) (Settings, error) {
	st, err := st.Normalize()
	if err != nil {
		return Settings{}, err
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (id, volume, default_effect, ui_scale, updated_at)
		VALUES (1, ?, ?, ?, datetime('now', 'localtime'))
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume,
			default_effect = excluded.default_effect,
			ui_scale = excluded.ui_scale,
			updated_at = excluded.updated_at`,
		st.Volume, st.DefaultEffect, st.UIScale,
	)
	if err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return st, nil
}
