package generate

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/cbegin/beatsmith-go/internal/score"
)

var archetypes = []string{
	"Young Chop: Simplistic, hard-hitting, signature bell melodies, usually 130-140 BPM.",
	"Zaytoven: Complex, fast piano runs, organ swells, soulful but trap-tempo (140+ BPM).",
	"Metro Boomin: Dark, cinematic, moody pads and eerie melodies, heavy 808-focused sub-melodies.",
	"Lex Luger/Southside: Orchestral brass hits, high-energy aggressive synth-strings.",
	"808Melo/AXL: Sliding drill bass patterns, dark piano riffs with syncopation.",
	"DJ Paul/Juicy J: Eerie Memphis horror loops, cowbells, dark chants.",
	"RZA/Prince Paul: Gritty, dusty, experimental horror vibes, minor-key keys.",
	`J Dilla/Madlib: Soulful jazz chords, "drunk" rhythmic placement (slight swing), minor 7ths.`,
	"The Neptunes/Timbaland: Futuristic, minimalist, strange percussion-like leads, unconventional intervals.",
	"Scott Storch: High-class synth leads, Middle Eastern melodic scales, piano virtuosity.",
	"Necro/Esham: Maximum dissonance, industrial-horror crossover, very aggressive.",
}

// Prompt builds the user prompt for req.
func Prompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %d-bar rap melody loop in the SPECIFIC style of legendary producer: %s (%s).\n", score.BarsPerLoop, req.Producer, req.Category)
	fmt.Fprintf(&b, "Vibe Context: %s.\n", req.Vibe)
	fmt.Fprintf(&b, "Musical Key: %s.\n\n", req.Key)
	b.WriteString("Style Archetypes to follow:\n")
	for _, a := range archetypes {
		b.WriteString("- " + a + "\n")
	}
	b.WriteString("\nInstructions:\n")
	fmt.Fprintf(&b, "1. Ensure the melody captures the ESSENCE of %s.\n", req.Producer)
	fmt.Fprintf(&b, "2. Length: Exactly %d Bars.\n", score.BarsPerLoop)
	fmt.Fprintf(&b, "3. Scale: Adhere to %s (use minor/harmonic scales for dark vibes).\n", req.Key)
	return b.String()
}

// Schema is the structured-output schema the model must follow.
func Schema() *genai.Schema {
	instruments := make([]string, len(score.Instruments))
	for i, inst := range score.Instruments {
		instruments[i] = string(inst)
	}
	note := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"note":     {Type: genai.TypeString, Description: "Scientific pitch notation"},
			"time":     {Type: genai.TypeString, Description: "Tone.js time format 'bar:beat:sixteenth'"},
			"duration": {Type: genai.TypeString, Description: "Duration like '4n', '8n', '16n', '32n', '8t'"},
			"velocity": {Type: genai.TypeNumber, Description: "Velocity from 0 to 1"},
		},
		Required: []string{"note", "time", "duration", "velocity"},
	}
	layer := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":       {Type: genai.TypeString},
			"instrument": {Type: genai.TypeString, Enum: instruments},
			"notes":      {Type: genai.TypeArray, Items: note},
		},
		Required: []string{"name", "instrument", "notes"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"bpm":    {Type: genai.TypeNumber, Description: "BPM appropriate for the producer's typical style."},
			"layers": {Type: genai.TypeArray, Items: layer},
		},
		Required: []string{"bpm", "layers"},
	}
}
