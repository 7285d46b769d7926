package lighting

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

// DeviceStatus is the outcome of pushing a state to the device.
type DeviceStatus string

const (
	DeviceSent     DeviceStatus = "sent"
	DeviceFailed   DeviceStatus = "failed"
	DeviceDisabled DeviceStatus = "disabled"
	DeviceSkipped  DeviceStatus = "skipped"
)

// Translation is a Suggestion resolved into a device state.
type Translation struct {
	State       wled.State   `json:"state"`
	Effect      string       `json:"effect"`       // table name actually used
	EffectKnown bool         `json:"effect_known"` // false when fx fell back to Solid
	Device      DeviceStatus `json:"device"`
	DeviceError string       `json:"device_error,omitempty"`
}

// Translator turns suggestions into WLED states.
type Translator struct {
	mu       sync.RWMutex
	defaults Defaults
	logger   *slog.Logger
}

// NewTranslator creates a translator with the given defaults.
func NewTranslator(d Defaults, logger *slog.Logger) *Translator {
	return &Translator{defaults: d.withZeroesFilled(), logger: logger}
}

// SetDefaults replaces the defaults (config hot reload).
func (t *Translator) SetDefaults(d Defaults) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defaults = d.withZeroesFilled()
}

// Defaults returns the active defaults.
func (t *Translator) Defaults() Defaults {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.defaults
}

// Translate builds the device state for s. It never fails.
func (t *Translator) Translate(s Suggestion) Translation {
	d := t.Defaults()

	fx, known := wled.EffectID(s.Effect)
	if !known {
		t.logger.Warn("unknown effect, using solid", "effect", s.Effect)
	}

	intensity := s.Intensity
	if intensity <= 0 || math.IsNaN(intensity) {
		intensity = d.Intensity
	}
	if intensity > 1 {
		intensity = 1
	}

	primary := s.PrimaryColor
	if primary == "" {
		primary = d.PrimaryColor
	}
	secondary := s.SecondaryColor
	if secondary == "" {
		secondary = d.SecondaryColor
	}

	return Translation{
		State: wled.State{
			On:  true,
			Bri: int(math.Round(intensity * 255)),
			Seg: []wled.Segment{{
				FX: fx,
				SX: byteOr(s.Speed, d.Speed),
				IX: byteOr(s.EffectIntensity, d.EffectIntensity),
				Col: [3]wled.RGB{
					HexToRGB(primary),
					HexToRGB(secondary),
					wled.Black,
				},
			}},
		},
		Effect:      wled.EffectName(fx),
		EffectKnown: known,
	}
}

// byteOr returns v clamped to a byte, or def when v is absent (zero or negative).
func byteOr(v, def int) int {
	if v <= 0 {
		v = def
	}
	if v > 255 {
		v = 255
	}
	return v
}

// enabler is implemented by senders that can be switched off by config.
type enabler interface {
	Enabled() bool
}

// Apply translates s and sends the result once. A nil or disabled sender
// means no device is configured. Send errors are logged and recorded on the
// returned Translation; they never reach the caller.
func (t *Translator) Apply(ctx context.Context, s Suggestion, sender wled.Sender) Translation {
	tr := t.Translate(s)

	if e, ok := sender.(enabler); sender == nil || (ok && !e.Enabled()) {
		t.logger.Debug("device url not configured, skipping hardware command")
		tr.Device = DeviceDisabled
		return tr
	}

	if err := sender.Send(ctx, tr.State); err != nil {
		t.logger.Error("failed to send command to wled", "err", err, "fx", tr.State.Seg[0].FX)
		tr.Device = DeviceFailed
		tr.DeviceError = err.Error()
		return tr
	}

	t.logger.Info("💡 lighting sent", "effect", tr.Effect, "fx", tr.State.Seg[0].FX, "bri", tr.State.Bri)
	tr.Device = DeviceSent
	return tr
}
