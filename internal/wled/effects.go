package wled

import (
	"sort"
	"strings"
)

// SolidEffect is the firmware's static color effect. It is also the
// fallback for any effect name the table does not know.
const SolidEffect = 0

// effectIDs maps lowercase WLED effect names to firmware effect IDs.
// IDs 48, 50 and 53 are not assigned by this firmware revision.
var effectIDs = map[string]int{
	"solid":           0,
	"blink":           1,
	"breathe":         2,
	"wipe":            3,
	"wipe random":     4,
	"random colors":   5,
	"sweep":           6,
	"dynamic":         7,
	"colorloop":       8,
	"rainbow":         9,
	"scan":            10,
	"scan dual":       11,
	"fade":            12,
	"theater":         13,
	"theater rainbow": 14,
	"running":         15,
	"saw":             16,
	"twinkle":         17,
	"dissolve":        18,
	"dissolve rnd":    19,
	"sparkle":         20,
	"sparkle dark":    21,
	"sparkle+":        22,
	"strobe":          23,
	"strobe rainbow":  24,
	"strobe mega":     25,
	"blink rainbow":   26,
	"android":         27,
	"chase":           28,
	"chase random":    29,
	"chase rainbow":   30,
	"chase flash":     31,
	"chase flash rnd": 32,
	"rainbow runner":  33,
	"colorful":        34,
	"traffic light":   35,
	"sweep random":    36,
	"chase 2":         37,
	"aurora":          38,
	"stream":          39,
	"scanner":         40,
	"lighthouse":      41,
	"fireworks":       42,
	"rain":            43,
	"tetrix":          44,
	"fire flicker":    45,
	"gradient":        46,
	"loading":         47,
	"fairy":           49,
	"fairytwinkle":    51,
	"running dual":    52,
	"chase 3":         54,
	"tri wipe":        55,
	"tri fade":        56,
	"lightning":       57,
	"icu":             58,
	"multi comet":     59,
	"scanner dual":    60,
	"stream 2":        61,
	"oscillate":       62,
	"pride 2015":      63,
	"juggle":          64,
	"palette":         65,
	"fire 2012":       66,
	"colorwaves":      67,
	"bpm":             68,
	"fill noise":      69,
	"noise 1":         70,
	"noise 2":         71,
	"noise 3":         72,
	"noise 4":         73,
	"colortwinkles":   74,
	"lake":            75,
	"meteor":          76,
	"meteor smooth":   77,
	"railway":         78,
	"ripple":          79,
}

// effectNames is the reverse of effectIDs, built once at init.
var effectNames = func() map[int]string {
	m := make(map[int]string, len(effectIDs))
	for name, id := range effectIDs {
		m[id] = name
	}
	return m
}()

// EffectID returns the firmware ID for an effect name. Matching ignores case
// but nothing else.
// Unknown or empty names return (SolidEffect, false).
func EffectID(name string) (int, bool) {
	key := strings.ToLower(name)
	if key == "" {
		return SolidEffect, false
	}
	id, ok := effectIDs[key]
	if !ok {
		return SolidEffect, false
	}
	return id, true
}

// EffectName returns the lowercase table name for id, or "" if id is unassigned.
func EffectName(id int) string {
	return effectNames[id]
}

// Effect is one entry of the effect table, as exposed to the dashboard.
type Effect struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Effects returns the whole table ordered by firmware ID.
func Effects() []Effect {
	out := make([]Effect, 0, len(effectIDs))
	for name, id := range effectIDs {
		out = append(out, Effect{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// EffectNames returns the table names ordered by firmware ID.
func EffectNames() []string {
	effects := Effects()
	names := make([]string, len(effects))
	for i, e := range effects {
		names[i] = e.Name
	}
	return names
}

// FeaturedEffects are the effects offered to the model and in the settings
// panel. They all exist in the table.
var FeaturedEffects = []string{
	"solid",
	"bpm",
	"fireworks",
	"meteor",
	"lightning",
	"rainbow",
	"chase random",
	"fire flicker",
	"ripple",
	"scan",
	"strobe",
}
