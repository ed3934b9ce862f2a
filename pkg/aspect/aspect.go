// Package aspect resolves crop aspect-ratio selections into numeric ratios.
//
// Ratios come in two flavours. A pixel ratio is width/height measured in
// image pixels. A normalized ratio is the same ratio expressed on normalized
// rectangle coordinates, which are stretched by the image's own shape; it is
// what the solver needs when it does arithmetic on a normalized rectangle.
package aspect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// Kind selects how the crop rectangle is constrained.
type Kind int

const (
	Free Kind = iota
	Original
	Square
	R3_2
	R4_3
	R16_9
	R16_10
	R2_3
	R3_4
	R9_16
	R10_16
	Custom
)

// Custom ratio terms are kept within [MinTerm, MaxTerm] and start at 4:3.
const (
	MinTerm = 1
	MaxTerm = 100

	DefaultCustomW = 4
	DefaultCustomH = 3
)

type named struct {
	label string
	w, h  int
}

var namedRatios = map[Kind]named{
	Square: {"1:1", 1, 1},
	R3_2:   {"3:2", 3, 2},
	R4_3:   {"4:3", 4, 3},
	R16_9:  {"16:9", 16, 9},
	R16_10: {"16:10", 16, 10},
	R2_3:   {"2:3", 2, 3},
	R3_4:   {"3:4", 3, 4},
	R9_16:  {"9:16", 9, 16},
	R10_16: {"10:16", 10, 16},
}

var counterparts = map[Kind]Kind{
	R3_2:   R2_3,
	R4_3:   R3_4,
	R16_9:  R9_16,
	R16_10: R10_16,
	R2_3:   R3_2,
	R3_4:   R4_3,
	R9_16:  R16_9,
	R10_16: R16_10,
}

// Counterpart returns the same ratio in the other orientation. Kinds without
// an orientation map to themselves.
func (k Kind) Counterpart() Kind {
	if c, ok := counterparts[k]; ok {
		return c
	}
	return k
}

// IsLandscape reports whether k is one of the wide named ratios.
func (k Kind) IsLandscape() bool {
	switch k {
	case R3_2, R4_3, R16_9, R16_10:
		return true
	}
	return false
}

// IsPortrait reports whether k is one of the tall named ratios.
func (k Kind) IsPortrait() bool {
	switch k {
	case R2_3, R3_4, R9_16, R10_16:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case Free:
		return "Free"
	case Original:
		return "Original"
	case Custom:
		return "Custom"
	}
	if n, ok := namedRatios[k]; ok {
		return n.label
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Landscape lists the wide named ratios in menu order.
func Landscape() []Kind {
	return []Kind{R3_2, R4_3, R16_9, R16_10}
}

// Portrait lists the tall named ratios in menu order.
func Portrait() []Kind {
	return []Kind{R2_3, R3_4, R9_16, R10_16}
}

// Choices returns the selectable kinds for one orientation, as a menu would
// show them.
func Choices(portrait bool) []Kind {
	out := []Kind{Free, Original, Square}
	if portrait {
		out = append(out, Portrait()...)
	} else {
		out = append(out, Landscape()...)
	}
	return append(out, Custom)
}

// Mode is a Kind plus the custom ratio terms. W and H only take part in
// resolution when Kind is Custom, but they are kept across kind changes so a
// user returning to Custom gets their last ratio back.
type Mode struct {
	Kind Kind `json:"kind"`
	W    int  `json:"w,omitempty"`
	H    int  `json:"h,omitempty"`
}

// NewCustom returns a Custom mode with both terms clamped to [MinTerm, MaxTerm].
func NewCustom(w, h int) Mode {
	return Mode{Kind: Custom, W: ClampTerm(w), H: ClampTerm(h)}
}

// ClampTerm limits a custom ratio term to [MinTerm, MaxTerm].
func ClampTerm(v int) int {
	if v < MinTerm {
		return MinTerm
	}
	if v > MaxTerm {
		return MaxTerm
	}
	return v
}

// Sanitized returns m with its custom terms clamped.
func (m Mode) Sanitized() Mode {
	m.W = ClampTerm(m.W)
	m.H = ClampTerm(m.H)
	return m
}

// Toggled flips m to the other orientation: named ratios switch to their
// counterpart and Custom swaps its terms.
func (m Mode) Toggled() Mode {
	if m.Kind == Custom {
		m.W, m.H = m.H, m.W
		return m
	}
	m.Kind = m.Kind.Counterpart()
	return m
}

// Locked reports whether m constrains the rectangle at all.
func (m Mode) Locked() bool {
	return m.Kind != Free
}

func (m Mode) String() string {
	if m.Kind == Custom {
		s := m.Sanitized()
		return fmt.Sprintf("%d:%d", s.W, s.H)
	}
	return m.Kind.String()
}

// Resolve returns the pixel ratio selected by m for an image of the given
// dimensions. ok is false when m is Free, or when m is Original and dims are
// not valid.
func Resolve(m Mode, dims geom.Dimensions) (ratio float64, ok bool) {
	switch m.Kind {
	case Free:
		return 0, false
	case Original:
		if !dims.Valid() {
			return 0, false
		}
		return dims.Ratio(), true
	case Custom:
		s := m.Sanitized()
		return float64(s.W) / float64(s.H), true
	}
	if n, found := namedRatios[m.Kind]; found {
		return float64(n.w) / float64(n.h), true
	}
	return 0, false
}

// ToNormalized converts a pixel ratio to normalized rectangle space.
func ToNormalized(pixelRatio float64, dims geom.Dimensions) float64 {
	return pixelRatio * (float64(dims.Height) / float64(dims.Width))
}

// FromNormalized converts a normalized ratio back to a pixel ratio.
func FromNormalized(normRatio float64, dims geom.Dimensions) float64 {
	return normRatio * (float64(dims.Width) / float64(dims.Height))
}

// Normalized resolves m and converts the result to normalized space in one
// step.
func Normalized(m Mode, dims geom.Dimensions) (float64, bool) {
	r, ok := Resolve(m, dims)
	if !ok || !dims.Valid() {
		return 0, false
	}
	return ToNormalized(r, dims), true
}

// ParseMode reads a mode from its textual form. Accepted forms are "free",
// "original", "square", any named label such as "16:9", "custom" (with the
// default terms), "custom:W:H", and any other "W:H" which becomes a Custom
// mode.
func ParseMode(s string) (Mode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "free":
		return Mode{Kind: Free}, nil
	case "original":
		return Mode{Kind: Original}, nil
	case "square":
		return Mode{Kind: Square}, nil
	case "custom":
		return NewCustom(DefaultCustomW, DefaultCustomH), nil
	}

	if rest, ok := strings.CutPrefix(v, "custom:"); ok {
		w, h, err := parseTerms(rest)
		if err != nil {
			return Mode{}, fmt.Errorf("invalid custom ratio %q: %w", s, err)
		}
		return NewCustom(w, h), nil
	}

	for k, n := range namedRatios {
		if n.label == v {
			return Mode{Kind: k}, nil
		}
	}

	w, h, err := parseTerms(v)
	if err != nil {
		return Mode{}, fmt.Errorf("unknown aspect mode %q", s)
	}
	return NewCustom(w, h), nil
}

// ParseCustom reads "W:H" into clamped custom terms.
func ParseCustom(s string) (int, int, error) {
	w, h, err := parseTerms(strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid custom ratio %q: %w", s, err)
	}
	return ClampTerm(w), ClampTerm(h), nil
}

func parseTerms(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected W:H")
	}
	w, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}
