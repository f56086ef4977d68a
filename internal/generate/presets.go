package generate

import (
	"fmt"
	"strings"
)

// Group is one producer category.
type Group struct {
	Category  string   `json:"category"`
	Producers []string `json:"producers"`
}

// ProducerGroups lists the selectable producer archetypes by category.
var ProducerGroups = []Group{
	{"Drill", []string{"Young Chop", "808Melo", "AXL Beats", "Carns Hill"}},
	{"Trap", []string{"Metro Boomin", "Shawty Redd", "Zaytoven", "Lex Luger", "Southside", "TM88", "Murda Beatz", "Tay Keith"}},
	{"Horrorcore", []string{"Prince Paul", "RZA", "Esham", "Mike E. Clark", "DJ Paul", "Juicy J", "Necro"}},
	{"Crunk", []string{"Lil Jon", "DJ Paul", "Juicy J"}},
	{"Alternative", []string{"J Dilla", "Madlib", "The Alchemist", "El-P", "Dan the Automator"}},
	{"Shiny Suit", []string{"The Neptunes", "Timbaland", "Swizz Beatz", "Just Blaze", "Scott Storch"}},
	{"Dirty South", []string{"Organized Noize", "Mannie Fresh", "DJ Screw", "DJ Paul", "Juicy J", "Lil Jon"}},
}

// Vibes are the mood presets.
var Vibes = []string{
	"Dark/Evil",
	"Aggressive",
	"Melancholic",
	"High Energy",
	"Hallucinogenic",
	"Gritty/Lo-fi",
}

// Keys are the selectable tonics.
var Keys = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Category returns the first category listing producer.
func Category(producer string) (string, bool) {
	for _, g := range ProducerGroups {
		for _, p := range g.Producers {
			if strings.EqualFold(p, producer) {
				return g.Category, true
			}
		}
	}
	return "", false
}

// Normalize fills a missing category and checks the preset selection.
// Producers outside the table are allowed when a category is given.
func (r *Request) Normalize() error {
	r.Producer = strings.TrimSpace(r.Producer)
	if r.Producer == "" {
		return &GenerationError{Stage: StageRequest, Cause: fmt.Errorf("producer is required")}
	}
	if r.Category == "" {
		cat, ok := Category(r.Producer)
		if !ok {
			return &GenerationError{Stage: StageRequest, Cause: fmt.Errorf("unknown producer %q and no category", r.Producer)}
		}
		r.Category = cat
	}
	if r.Vibe == "" {
		r.Vibe = Vibes[0]
	}
	if r.Key == "" {
		r.Key = Keys[0]
	}
	return nil
}
