// Package script reads recorded pointer gestures from YAML and replays them
// against a crop session, so a crop made interactively can be repeated
// headlessly.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
	"github.com/menta2k/image-cropper/pkg/logger"
)

// Display is the screen rectangle the whole image was drawn in while the
// gestures were recorded.
type Display struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Rect returns the display as a screen rectangle.
func (d Display) Rect() geom.Rect {
	return geom.R(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

// Gesture is one press, a series of per-frame movements and a release.
type Gesture struct {
	Name  string       `yaml:"name,omitempty"`
	Start [2]float64   `yaml:"start"`
	Moves [][2]float64 `yaml:"moves"`
}

// Script is a recorded editing session.
type Script struct {
	Display  Display   `yaml:"display"`
	Mode     string    `yaml:"mode,omitempty"`
	Gestures []Gesture `yaml:"gestures"`
}

// Target receives replayed pointer events.
type Target interface {
	PointerDown(pos geom.Point, display geom.Rect) handle.Kind
	PointerMove(delta geom.Point) bool
	PointerUp()
}

// Parse decodes a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("gesture script is empty")
		}
		return nil, fmt.Errorf("failed to parse gesture script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gesture script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks the display size.
func (s *Script) Validate() error {
	if s.Display.Width <= 0 || s.Display.Height <= 0 {
		return fmt.Errorf("display width and height must be positive, got %gx%g",
			s.Display.Width, s.Display.Height)
	}
	return nil
}

// Replay feeds every gesture to t and returns the handle each one grabbed.
// Gestures that grab nothing still send their moves, which t ignores.
func (s *Script) Replay(t Target, log *logger.Logger) []handle.Kind {
	if log == nil {
		log = logger.Nop()
	}
	display := s.Display.Rect()
	grabbed := make([]handle.Kind, 0, len(s.Gestures))

	for i, g := range s.Gestures {
		h := t.PointerDown(geom.Pt(g.Start[0], g.Start[1]), display)
		for _, m := range g.Moves {
			t.PointerMove(geom.Pt(m[0], m[1]))
		}
		t.PointerUp()

		log.Debug("gesture replayed", "index", i, "name", g.Name, "handle", h.String(), "moves", len(g.Moves))
		grabbed = append(grabbed, h)
	}
	return grabbed
}
