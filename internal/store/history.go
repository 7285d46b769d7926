package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
)

// Source says where a suggestion came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// HistoryEntry is one analysis run.
type HistoryEntry struct {
	ID          int64                 `json:"id"`
	RunID       string                `json:"run_id"`
	Time        time.Time             `json:"time"`
	Track       string                `json:"track"`
	Source      Source                `json:"source"`
	Suggestion  lighting.Suggestion   `json:"suggestion"`
	FX          int                   `json:"fx"`
	Bri         int                   `json:"bri"`
	Device      lighting.DeviceStatus `json:"device"`
	DeviceError string                `json:"device_error,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// RecordAnalysis stores e, assigning a run ID and timestamp when missing.
func (s *Store) RecordAnalysis(e HistoryEntry) (HistoryEntry, error) {
	if e.RunID == "" {
		e.RunID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO history (run_id, ts, track, source, primary_color, secondary_color,
			intensity, effect, speed, effect_intensity, fx, bri, device, device_error, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time.UTC().Format(sqliteTime), e.Track, string(e.Source),
		e.Suggestion.PrimaryColor, e.Suggestion.SecondaryColor, e.Suggestion.Intensity,
		e.Suggestion.Effect, e.Suggestion.Speed, e.Suggestion.EffectIntensity,
		e.FX, e.Bri, string(e.Device), e.DeviceError, e.Error,
	)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("record analysis: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return e, nil
}

const historyColumns = `id, run_id, ts, track, source, primary_color, secondary_color,
	intensity, effect, speed, effect_intensity, fx, bri, device,
	COALESCE(device_error, ''), COALESCE(error, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (HistoryEntry, error) {
	var (
		e              HistoryEntry
		ts             string
		source, device string
	)
	err := row.Scan(&e.ID, &e.RunID, &ts, &e.Track, &source,
		&e.Suggestion.PrimaryColor, &e.Suggestion.SecondaryColor, &e.Suggestion.Intensity,
		&e.Suggestion.Effect, &e.Suggestion.Speed, &e.Suggestion.EffectIntensity,
		&e.FX, &e.Bri, &device, &e.DeviceError, &e.Error)
	if err != nil {
		return HistoryEntry{}, err
	}
	e.Source = Source(source)
	e.Device = lighting.DeviceStatus(device)
	if t, err := parseTime(ts); err == nil {
		e.Time = t.Local()
	}
	return e, nil
}

// RecentHistory returns up to limit runs, newest first.
func (s *Store) RecentHistory(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+historyColumns+` FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastSuggestion returns the newest AI suggestion. ok is false when no
// AI run has been recorded yet.
func (s *Store) LastSuggestion() (sug lighting.Suggestion, ok bool, err error) {
	e, err := scanHistory(s.db.QueryRow(
		`SELECT `+historyColumns+` FROM history WHERE source = ? ORDER BY id DESC LIMIT 1`,
		string(SourceAI),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return lighting.Suggestion{}, false, nil
	}
	if err != nil {
		return lighting.Suggestion{}, false, fmt.Errorf("last suggestion: %w", err)
	}
	return e.Suggestion, true, nil
}
