package lighting

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jaxi-taxi/jaxitaxi/internal/wled"
)

// Suggestion is the model's lighting proposal for one track.
// Zero numeric fields and empty strings mean "not provided".
type Suggestion struct {
	PrimaryColor    string  `json:"primaryColor"`
	SecondaryColor  string  `json:"secondaryColor"`
	Intensity       float64 `json:"intensity"`
	Effect          string  `json:"effect"`
	Speed           int     `json:"speed"`
	EffectIntensity int     `json:"effectIntensity"`
}

// Defaults fills the fields a Suggestion leaves out.
type Defaults struct {
	Intensity       float64
	Speed           int
	EffectIntensity int
	PrimaryColor    string
	SecondaryColor  string
}

// DefaultDefaults returns the documented translation defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Intensity:       0.8,
		Speed:           128,
		EffectIntensity: 128,
		PrimaryColor:    "#FFFFFF",
		SecondaryColor:  "#000000",
	}
}

// withZeroesFilled guards against a partially configured Defaults.
func (d Defaults) withZeroesFilled() Defaults {
	base := DefaultDefaults()
	if d.Intensity <= 0 {
		d.Intensity = base.Intensity
	}
	if d.Speed <= 0 {
		d.Speed = base.Speed
	}
	if d.EffectIntensity <= 0 {
		d.EffectIntensity = base.EffectIntensity
	}
	if d.PrimaryColor == "" {
		d.PrimaryColor = base.PrimaryColor
	}
	if d.SecondaryColor == "" {
		d.SecondaryColor = base.SecondaryColor
	}
	return d
}

var hexColor = regexp.MustCompile(`(?i)^#?([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})$`)

// HexToRGB converts exactly "#RRGGBB" or "RRGGBB". Anything else, padded
// input included, is black.
func HexToRGB(s string) wled.RGB {
	m := hexColor.FindStringSubmatch(s)
	if m == nil {
		return wled.Black
	}
	var rgb wled.RGB
	for i := 0; i < 3; i++ {
		v, _ := strconv.ParseUint(m[i+1], 16, 8)
		rgb[i] = int(v)
	}
	return rgb
}

// Fallback is the local lighting used when analysis fails.
func Fallback(defaultEffect string) Suggestion {
	return Suggestion{
		PrimaryColor:    "#AEEA00",
		SecondaryColor:  "#000000",
		Intensity:       0.8,
		Effect:          defaultEffect,
		Speed:           128,
		EffectIntensity: 128,
	}
}

// PreviewClass maps an effect name to the dashboard's CSS animation class.
func PreviewClass(effect string) string {
	name := strings.ToLower(strings.TrimSpace(effect))
	switch name {
	case "bpm", "chase", "fireworks":
		return "effect-pulse"
	case "solid", "":
		return "effect-static"
	}
	var sb strings.Builder
	sb.WriteString("effect-")
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('-')
		}
	}
	return sb.String()
}
