// Package handle locates the crop handle under a pointer.
package handle

import (
	"math"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// Kind identifies what a drag acts on.
type Kind int

const (
	None Kind = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
	Top
	Bottom
	Left
	Right
	Move
)

// DefaultTolerance is the hit radius around corners and edges, in screen
// units.
const DefaultTolerance = 10.0

var names = [...]string{
	None:        "none",
	TopLeft:     "top-left",
	TopRight:    "top-right",
	BottomLeft:  "bottom-left",
	BottomRight: "bottom-right",
	Top:         "top",
	Bottom:      "bottom",
	Left:        "left",
	Right:       "right",
	Move:        "move",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// IsCorner reports whether k is one of the four corner handles.
func (k Kind) IsCorner() bool {
	return k >= TopLeft && k <= BottomRight
}

// IsEdge reports whether k is one of the four edge handles.
func (k Kind) IsEdge() bool {
	return k >= Top && k <= Right
}

// Corner returns the screen point of a corner handle of r.
func Corner(k Kind, r geom.Rect) geom.Point {
	switch k {
	case TopLeft:
		return r.Min
	case TopRight:
		return geom.Pt(r.Max.X, r.Min.Y)
	case BottomLeft:
		return geom.Pt(r.Min.X, r.Max.Y)
	case BottomRight:
		return r.Max
	}
	return r.Center()
}

var corners = [...]Kind{TopLeft, TopRight, BottomLeft, BottomRight}

// HitTest returns the handle of the screen rectangle r under pos. Corners win
// over edges, edges over the interior. None means pos is outside r and its
// tolerance band.
func HitTest(pos geom.Point, r geom.Rect, tolerance float64) Kind {
	for _, k := range corners {
		if pos.Dist(Corner(k, r)) < tolerance {
			return k
		}
	}

	insideY := pos.Y > r.Min.Y && pos.Y < r.Max.Y
	insideX := pos.X > r.Min.X && pos.X < r.Max.X

	switch {
	case math.Abs(pos.X-r.Min.X) < tolerance && insideY:
		return Left
	case math.Abs(pos.X-r.Max.X) < tolerance && insideY:
		return Right
	case math.Abs(pos.Y-r.Min.Y) < tolerance && insideX:
		return Top
	case math.Abs(pos.Y-r.Max.Y) < tolerance && insideX:
		return Bottom
	}

	if r.Contains(pos) {
		return Move
	}
	return None
}

// Anchor is a drawable handle position.
type Anchor struct {
	Kind Kind
	Pos  geom.Point
}

// Anchors returns the eight resize handle positions of the screen rectangle r.
func Anchors(r geom.Rect) []Anchor {
	c := r.Center()
	return []Anchor{
		{TopLeft, r.Min},
		{BottomRight, r.Max},
		{BottomLeft, geom.Pt(r.Min.X, r.Max.Y)},
		{TopRight, geom.Pt(r.Max.X, r.Min.Y)},
		{Top, geom.Pt(c.X, r.Min.Y)},
		{Bottom, geom.Pt(c.X, r.Max.Y)},
		{Left, geom.Pt(r.Min.X, c.Y)},
		{Right, geom.Pt(r.Max.X, c.Y)},
	}
}
