package analysis

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// effectGuide describes the effects offered to the model. Every name is in
// the WLED effect table.
var effectGuide = []struct {
	name string
	hint string
}{
	{"Solid", "A static, solid color. Best for intros, outros, or very calm, ambient songs."},
	{"BPM", "The classic choice for pop, rock, and most electronic music. Pulses colors to a clear, driving rhythm."},
	{"Fireworks", "Bursts of random colors. Perfect for high-energy moments, crescendos, or celebratory songs."},
	{"Meteor", "A streak of light with a fading trail. Excellent for sweeping sounds, arpeggios, or a sense of motion."},
	{"Lightning", "Flashes of light. Use sparingly for dramatic moments, intense breakdowns, or stormy songs."},
	{"Rainbow", "Smoothly cycles through all colors along the strip. Good for upbeat and positive tracks."},
	{"Chase Random", "Colors chase each other down the strip. Good for playful, energetic, or unpredictable music."},
	{"Fire Flicker", "A gentle, warm fire. Ideal for acoustic, folk, or intimate, warm-sounding tracks."},
	{"Ripple", "A water-like ripple. Best for chill-out, lofi, or ambient tracks with a flowing quality."},
	{"Scan", "A dot of light moving back and forth. Fits synth-heavy, retro, or futuristic music."},
	{"Strobe", "High-energy flashing. Reserve for intense dance music or powerful drops."},
}

func buildPrompt(currentSettings string) string {
	var sb strings.Builder
	sb.WriteString(`You are an expert AI DJ controlling a 60-LED light strip for a system called Jaxi Taxi. Listen to the song and create a two-color light show using the WLED effects listed below.

RULES:
1. Be varied. The previous settings are provided; pick something different from them when the song allows it.
2. Choose the effect name exactly as it appears in the list.
3. Match the song's energy, genre, and mood.

EFFECT LIST:
`)
	for _, e := range effectGuide {
		fmt.Fprintf(&sb, "- '%s': %s\n", e.name, e.hint)
	}
	sb.WriteString(`
OUTPUT:
- primaryColor: the main hex color (e.g. '#FF5733') for the song's primary emotion.
- secondaryColor: a contrasting or complementary hex color.
- intensity: overall brightness from 0.0 (dim) to 1.0 (bright).
- effect: the effect name from the list.
- speed: 0 (slow) to 255 (fast), based on tempo.
- effectIntensity: 0 (subtle) to 255 (intense), based on energy.

Current settings (for variety): `)
	if strings.TrimSpace(currentSettings) == "" {
		sb.WriteString("none")
	} else {
		sb.WriteString(currentSettings)
	}
	sb.WriteString("\nAudio for analysis follows.")
	return sb.String()
}

func effectEnum() []string {
	out := make([]string, len(effectGuide))
	for i, e := range effectGuide {
		out[i] = e.name
	}
	return out
}

// suggestionSchema is the structured output the model must return.
var suggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"primaryColor": {
			Type:        genai.TypeString,
			Description: "Primary hex color, e.g. #FF5733.",
		},
		"secondaryColor": {
			Type:        genai.TypeString,
			Description: "Secondary hex color, e.g. #33FF57.",
		},
		"intensity": {
			Type:        genai.TypeNumber,
			Description: "Overall brightness 0.0 to 1.0.",
			Minimum:     genai.Ptr(0.0),
			Maximum:     genai.Ptr(1.0),
		},
		"effect": {
			Type:        genai.TypeString,
			Description: "WLED effect name from the list.",
			Enum:        effectEnum(),
		},
		"speed": {
			Type:        genai.TypeInteger,
			Description: "Effect speed 0 to 255.",
			Minimum:     genai.Ptr(0.0),
			Maximum:     genai.Ptr(255.0),
		},
		"effectIntensity": {
			Type:        genai.TypeInteger,
			Description: "Effect intensity 0 to 255.",
			Minimum:     genai.Ptr(0.0),
			Maximum:     genai.Ptr(255.0),
		},
	},
	Required:         []string{"primaryColor", "secondaryColor", "intensity", "effect", "speed", "effectIntensity"},
	PropertyOrdering: []string{"primaryColor", "secondaryColor", "intensity", "effect", "speed", "effectIntensity"},
}
