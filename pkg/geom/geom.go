// Package geom holds the float geometry shared by the crop engine: points,
// rectangles, and the transforms between normalized image space and screen
// space.
//
// Normalized coordinates run from 0 to 1 across the image width and height.
// Screen coordinates are whatever unit the caller draws in.
package geom

import (
	"fmt"
	"math"
)

// Point is a 2D point or vector.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Mul scales p by s.
func (p Point) Mul(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

// Scale multiplies p component-wise by q.
func (p Point) Scale(q Point) Point {
	return Point{p.X * q.X, p.Y * q.Y}
}

// Div divides p component-wise by q.
func (p Point) Div(q Point) Point {
	return Point{p.X / q.X, p.Y / q.Y}
}

// Abs returns p with both components made non-negative.
func (p Point) Abs() Point {
	return Point{math.Abs(p.X), math.Abs(p.Y)}
}

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// LenSq returns the squared length of p.
func (p Point) LenSq() float64 {
	return p.Dot(p)
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Rect is an axis-aligned rectangle. A well-formed Rect has Min <= Max on
// both axes; Canon repairs one that does not.
type Rect struct {
	Min, Max Point
}

// Unit is the full image in normalized space.
var Unit = Rect{Min: Pt(0, 0), Max: Pt(1, 1)}

// R builds a Rect from its corner coordinates without reordering them.
func R(x0, y0, x1, y1 float64) Rect {
	return Rect{Min: Pt(x0, y0), Max: Pt(x1, y1)}
}

// FromCenterSize returns the rectangle of the given size centred on c.
func FromCenterSize(c, size Point) Rect {
	half := size.Mul(0.5)
	return Rect{Min: c.Sub(half), Max: c.Add(half)}
}

// Dx returns the width of r.
func (r Rect) Dx() float64 {
	return r.Max.X - r.Min.X
}

// Dy returns the height of r.
func (r Rect) Dy() float64 {
	return r.Max.Y - r.Min.Y
}

// Size returns the width and height of r.
func (r Rect) Size() Point {
	return r.Max.Sub(r.Min)
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Translate moves r by d.
func (r Rect) Translate(d Point) Rect {
	return Rect{Min: r.Min.Add(d), Max: r.Max.Add(d)}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return r.Min.X <= p.X && p.X <= r.Max.X &&
		r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

// Canon returns r with Min and Max swapped per axis where inverted.
func (r Rect) Canon() Rect {
	if r.Min.X > r.Max.X {
		r.Min.X, r.Max.X = r.Max.X, r.Min.X
	}
	if r.Min.Y > r.Max.Y {
		r.Min.Y, r.Max.Y = r.Max.Y, r.Min.Y
	}
	return r
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y
}

// Lerp maps t, given as fractions of r's width and height, to a point in r.
func (r Rect) Lerp(t Point) Point {
	return r.Min.Add(t.Scale(r.Size()))
}

func (r Rect) String() string {
	return r.Min.String() + "-" + r.Max.String()
}

// Dimensions is the pixel size of a loaded image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both sides are positive.
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// Ratio returns width/height in pixels.
func (d Dimensions) Ratio() float64 {
	return float64(d.Width) / float64(d.Height)
}

// Vec returns the dimensions as a float vector.
func (d Dimensions) Vec() Point {
	return Point{float64(d.Width), float64(d.Height)}
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// NormalizedToScreen maps a normalized point onto the display rectangle the
// image is drawn in.
func NormalizedToScreen(p Point, display Rect) Point {
	return display.Lerp(p)
}

// ScreenToNormalized is the inverse of NormalizedToScreen. A display with
// zero width or height maps every point to its origin.
func ScreenToNormalized(pos Point, display Rect) Point {
	size := display.Size()
	var out Point
	if size.X != 0 {
		out.X = (pos.X - display.Min.X) / size.X
	}
	if size.Y != 0 {
		out.Y = (pos.Y - display.Min.Y) / size.Y
	}
	return out
}

// RectToScreen maps a normalized rectangle onto the display rectangle.
func RectToScreen(r Rect, display Rect) Rect {
	return Rect{
		Min: NormalizedToScreen(r.Min, display),
		Max: NormalizedToScreen(r.Max, display),
	}
}

// ClampRect clamps both corners of r into the unit square and then restores
// Min <= Max on each axis.
func ClampRect(r Rect) Rect {
	r.Min = clampPoint(r.Min)
	r.Max = clampPoint(r.Max)
	return r.Canon()
}

// BoundedTranslate shrinks d so that r translated by it stays inside the unit
// square.
func BoundedTranslate(r Rect, d Point) Point {
	if r.Min.X+d.X < 0 {
		d.X = -r.Min.X
	}
	if r.Max.X+d.X > 1 {
		d.X = 1 - r.Max.X
	}
	if r.Min.Y+d.Y < 0 {
		d.Y = -r.Min.Y
	}
	if r.Max.Y+d.Y > 1 {
		d.Y = 1 - r.Max.Y
	}
	return d
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPoint(p Point) Point {
	return Point{Clamp(p.X, 0, 1), Clamp(p.Y, 0, 1)}
}
