package score

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a Composition document and validates it. A document that
// fails to parse or validate is rejected whole.
func Decode(r io.Reader) (*Composition, error) {
	var c Composition
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidComposition, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load decodes a Composition from a JSON file.
func Load(path string) (*Composition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Save writes c as indented JSON.
func Save(path string, c *Composition) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
