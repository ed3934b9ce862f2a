// Package cropper resolves pointer drags on a normalized crop rectangle into
// a new rectangle, optionally holding an aspect ratio.
//
// All functions are pure: they take a rectangle by value and return a new
// one. Callers clamp the result with geom.ClampRect after every frame.
package cropper

import (
	"image"
	"math"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
)

// Drag describes one frame of pointer movement on a handle.
type Drag struct {
	Handle handle.Kind
	// Delta is this frame's pointer movement in screen units, not the total
	// since the drag started.
	Delta geom.Point
	// Display is the on-screen size of the whole image.
	Display geom.Point
	// Ratio is the locked aspect ratio in normalized space. Zero or negative
	// means the drag is unconstrained.
	Ratio float64
}

// Locked reports whether d holds an aspect ratio.
func (d Drag) Locked() bool {
	return d.Ratio > 0 && !math.IsInf(d.Ratio, 0) && !math.IsNaN(d.Ratio)
}

// quadrant gives, per corner handle, the direction from the fixed anchor to
// the dragged corner.
var quadrant = map[handle.Kind]geom.Point{
	handle.TopLeft:     {X: -1, Y: -1},
	handle.TopRight:    {X: 1, Y: -1},
	handle.BottomLeft:  {X: -1, Y: 1},
	handle.BottomRight: {X: 1, Y: 1},
}

// Resize applies d to r and returns the unclamped candidate rectangle.
func Resize(r geom.Rect, d Drag) geom.Rect {
	if d.Display.X <= 0 || d.Display.Y <= 0 {
		return r
	}
	dn := d.Delta.Div(d.Display)

	if d.Handle == handle.Move {
		return r.Translate(geom.BoundedTranslate(r, dn))
	}
	if !d.Locked() {
		return resizeFree(r, d.Handle, dn)
	}

	switch {
	case d.Handle.IsCorner():
		return resizeCorner(r, d.Handle, dn, d.Display, d.Ratio)
	case d.Handle == handle.Left || d.Handle == handle.Right:
		return resizeWidth(r, d.Handle, dn, d.Ratio)
	case d.Handle == handle.Top || d.Handle == handle.Bottom:
		return resizeHeight(r, d.Handle, dn, d.Ratio)
	}
	return r
}

func resizeFree(r geom.Rect, h handle.Kind, dn geom.Point) geom.Rect {
	switch h {
	case handle.TopLeft:
		r.Min = r.Min.Add(dn)
	case handle.TopRight:
		r.Min.Y += dn.Y
		r.Max.X += dn.X
	case handle.BottomLeft:
		r.Min.X += dn.X
		r.Max.Y += dn.Y
	case handle.BottomRight:
		r.Max = r.Max.Add(dn)
	case handle.Top:
		r.Min.Y += dn.Y
	case handle.Bottom:
		r.Max.Y += dn.Y
	case handle.Left:
		r.Min.X += dn.X
	case handle.Right:
		r.Max.X += dn.X
	}
	return r
}

// anchorAndCorner returns the corner opposite h, which stays put, and the
// corner h drags.
func anchorAndCorner(r geom.Rect, q geom.Point) (anchor, corner geom.Point) {
	pick := func(sign, lo, hi float64) (float64, float64) {
		if sign < 0 {
			return hi, lo
		}
		return lo, hi
	}
	anchor.X, corner.X = pick(q.X, r.Min.X, r.Max.X)
	anchor.Y, corner.Y = pick(q.Y, r.Min.Y, r.Max.Y)
	return anchor, corner
}

// resizeCorner projects the unconstrained drag target onto the line of
// rectangles with the locked ratio that share the anchor. The projection is
// done in screen units so that both axes weigh the same.
func resizeCorner(r geom.Rect, h handle.Kind, dn, display geom.Point, ratio float64) geom.Rect {
	q := quadrant[h]
	anchor, corner := anchorAndCorner(r, q)
	corner = corner.Add(dn)

	raw := corner.Sub(anchor).Abs().Scale(display)

	u := geom.Pt(ratio*display.X/display.Y, 1)
	lambda := raw.Dot(u) / u.LenSq()
	dim := u.Mul(lambda).Div(display)

	far := anchor.Add(dim.Scale(q))
	return geom.Rect{Min: anchor, Max: far}.Canon()
}

// resizeWidth moves a vertical edge and derives the height from the ratio,
// centred on the old horizontal midline.
func resizeWidth(r geom.Rect, h handle.Kind, dn geom.Point, ratio float64) geom.Rect {
	w := r.Dx()
	if h == handle.Left {
		r.Min.X += dn.X
		w -= dn.X
	} else {
		r.Max.X += dn.X
		w += dn.X
	}

	newH := w / ratio
	cy := r.Center().Y
	r.Min.Y = cy - newH*0.5
	r.Max.Y = cy + newH*0.5
	return r
}

// resizeHeight moves a horizontal edge and derives the width from the ratio,
// centred on the old vertical midline.
func resizeHeight(r geom.Rect, h handle.Kind, dn geom.Point, ratio float64) geom.Rect {
	hgt := r.Dy()
	if h == handle.Top {
		r.Min.Y += dn.Y
		hgt -= dn.Y
	} else {
		r.Max.Y += dn.Y
		hgt += dn.Y
	}

	newW := hgt * ratio
	cx := r.Center().X
	r.Min.X = cx - newW*0.5
	r.Max.X = cx + newW*0.5
	return r
}

// ApplyAspectRatio reshapes r to the normalized ratio when the mode changes.
// The larger side of r is kept, the other is derived, and the result is
// recentred, shifted back inside the unit square and finally hard-clamped.
// When the ratio is too extreme for the space the hard clamp wins over the
// ratio. A non-positive ratio returns r unchanged.
func ApplyAspectRatio(r geom.Rect, ratio float64) geom.Rect {
	if !(Drag{Ratio: ratio}).Locked() {
		return r
	}

	center := r.Center()
	maxDim := math.Max(r.Dx(), r.Dy())

	var w, h float64
	if ratio >= 1 {
		w, h = maxDim, maxDim/ratio
	} else {
		w, h = maxDim*ratio, maxDim
	}

	if w > 1 {
		w = 1
		h = w / ratio
	}
	if h > 1 {
		h = 1
		w = h * ratio
	}

	out := geom.FromCenterSize(center, geom.Pt(w, h))

	if out.Min.X < 0 {
		out = out.Translate(geom.Pt(-out.Min.X, 0))
	}
	if out.Min.Y < 0 {
		out = out.Translate(geom.Pt(0, -out.Min.Y))
	}
	if out.Max.X > 1 {
		out = out.Translate(geom.Pt(1-out.Max.X, 0))
	}
	if out.Max.Y > 1 {
		out = out.Translate(geom.Pt(0, 1-out.Max.Y))
	}

	return geom.ClampRect(out)
}

// PixelWindow converts a normalized rectangle to the pixel window to cut from
// an image of the given dimensions. The window is at least one pixel on each
// side and never reaches past the image.
func PixelWindow(r geom.Rect, dims geom.Dimensions) image.Rectangle {
	if !dims.Valid() {
		return image.Rectangle{}
	}
	r = geom.ClampRect(r)
	W, H := float64(dims.Width), float64(dims.Height)

	x := int(math.Floor(r.Min.X * W))
	y := int(math.Floor(r.Min.Y * H))
	w := int(math.Round(r.Dx() * W))
	h := int(math.Round(r.Dy() * H))

	x = clampInt(x, 0, dims.Width-1)
	y = clampInt(y, 0, dims.Height-1)
	w = clampInt(w, 1, dims.Width-x)
	h = clampInt(h, 1, dims.Height-y)

	return image.Rect(x, y, x+w, y+h)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
