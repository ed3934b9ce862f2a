// Package session owns the crop rectangle of one image and sequences the
// geometry calls that pointer events and mode changes trigger.
//
// A Session is driven from a single goroutine, the way a UI event loop drives
// it, and does no locking of its own.
package session

import (
	"image"

	"github.com/google/uuid"

	"github.com/menta2k/image-cropper/pkg/aspect"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
	"github.com/menta2k/image-cropper/pkg/logger"
)

// Session holds the crop state for the currently loaded image.
type Session struct {
	id  uuid.UUID
	log *logger.Logger

	tolerance float64

	loaded bool
	dims   geom.Dimensions
	rect   geom.Rect

	mode     aspect.Mode
	portrait bool

	active  handle.Kind
	display geom.Rect
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; the session adds its id to every entry.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithTolerance sets the handle hit radius in screen units.
func WithTolerance(tol float64) Option {
	return func(s *Session) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// WithMode sets the initial aspect mode. Nothing is applied until an image
// is installed and the mode changes again.
func WithMode(m aspect.Mode) Option {
	return func(s *Session) {
		s.mode = m.Sanitized()
		s.portrait = m.Kind.IsPortrait()
	}
}

// New creates an empty session. The custom ratio starts at 4:3.
func New(opts ...Option) *Session {
	s := &Session{
		id:        uuid.New(),
		tolerance: handle.DefaultTolerance,
		rect:      geom.Unit,
		mode:      aspect.Mode{Kind: aspect.Free, W: aspect.DefaultCustomW, H: aspect.DefaultCustomH},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With("session", s.id.String())
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Loaded reports whether an image has been installed.
func (s *Session) Loaded() bool { return s.loaded }

// Dimensions returns the installed image size.
func (s *Session) Dimensions() geom.Dimensions { return s.dims }

// Rect returns the current normalized crop rectangle.
func (s *Session) Rect() geom.Rect { return s.rect }

// Mode returns the current aspect mode.
func (s *Session) Mode() aspect.Mode { return s.mode }

// Portrait reports which orientation group of named ratios is selected.
func (s *Session) Portrait() bool { return s.portrait }

// Handle returns the handle being dragged, or handle.None.
func (s *Session) Handle() handle.Kind { return s.active }

// Dragging reports whether a drag is in progress.
func (s *Session) Dragging() bool { return s.active != handle.None }

// Tolerance returns the handle hit radius.
func (s *Session) Tolerance() float64 { return s.tolerance }

// Install replaces the image the session works on. The crop resets to the
// whole image and any drag in progress is dropped. Invalid dimensions are
// ignored and leave the session untouched.
func (s *Session) Install(dims geom.Dimensions) bool {
	if !dims.Valid() {
		s.log.Warn("ignoring image with invalid dimensions", "dims", dims.String())
		return false
	}
	s.dims = dims
	s.loaded = true
	s.rect = geom.Unit
	s.active = handle.None
	s.log.Debug("image installed", "dims", dims.String())
	return true
}

// SetRect replaces the crop rectangle, clamped into the image.
func (s *Session) SetRect(r geom.Rect) {
	if !s.loaded {
		return
	}
	s.rect = geom.ClampRect(r)
}

// FitRect installs r, clamped, and reshapes it to the current mode.
func (s *Session) FitRect(r geom.Rect) {
	if !s.loaded {
		return
	}
	s.rect = geom.ClampRect(r)
	s.applyAspect()
}

// ratio returns the normalized ratio the current mode locks to.
func (s *Session) ratio() (float64, bool) {
	if !s.loaded {
		return 0, false
	}
	return aspect.Normalized(s.mode, s.dims)
}

// applyAspect reshapes the rectangle to the current mode.
func (s *Session) applyAspect() {
	if r, ok := s.ratio(); ok {
		s.rect = cropper.ApplyAspectRatio(s.rect, r)
	}
	s.log.Debug("aspect applied", "mode", s.mode.String(), "rect", s.rect.String())
}

// SetMode switches the aspect mode and reshapes the rectangle once.
func (s *Session) SetMode(m aspect.Mode) {
	s.mode = m.Sanitized()
	if m.Kind.IsPortrait() {
		s.portrait = true
	} else if m.Kind.IsLandscape() {
		s.portrait = false
	}
	s.applyAspect()
}

// SetKind switches the aspect kind, keeping the stored custom terms.
func (s *Session) SetKind(k aspect.Kind) {
	m := s.mode
	m.Kind = k
	s.SetMode(m)
}

// SetCustomRatio updates the custom terms, clamped to the allowed range, and
// reshapes the rectangle once.
func (s *Session) SetCustomRatio(w, h int) {
	m := s.mode
	m.W, m.H = aspect.ClampTerm(w), aspect.ClampTerm(h)
	s.mode = m
	s.applyAspect()
}

// ToggleOrientation flips between landscape and portrait: named ratios move
// to their counterpart and a custom ratio swaps its terms.
func (s *Session) ToggleOrientation() {
	s.portrait = !s.portrait
	s.mode = s.mode.Toggled()
	s.applyAspect()
}

// PointerDown starts a drag at pos. display is the screen rectangle the whole
// image is drawn in. It returns the selected handle, handle.None when pos
// misses the crop rectangle, in which case no drag starts.
func (s *Session) PointerDown(pos geom.Point, display geom.Rect) handle.Kind {
	if !s.loaded {
		return handle.None
	}
	screen := geom.RectToScreen(s.rect, display)
	s.active = handle.HitTest(pos, screen, s.tolerance)
	s.display = display
	if s.active != handle.None {
		s.log.Debug("drag started", "handle", s.active.String())
	}
	return s.active
}

// PointerMove feeds one frame of pointer movement, in screen units, to the
// active drag. It reports whether the rectangle was updated.
func (s *Session) PointerMove(delta geom.Point) bool {
	if !s.loaded || s.active == handle.None {
		return false
	}
	ratio, _ := s.ratio()
	s.rect = geom.ClampRect(cropper.Resize(s.rect, cropper.Drag{
		Handle:  s.active,
		Delta:   delta,
		Display: s.display.Size(),
		Ratio:   ratio,
	}))
	return true
}

// PointerUp ends the drag. Calling it with no drag in progress is harmless.
func (s *Session) PointerUp() {
	if s.active != handle.None {
		s.log.Debug("drag finished", "handle", s.active.String(), "rect", s.rect.String())
	}
	s.active = handle.None
}

// ScreenRect returns the crop rectangle mapped onto display.
func (s *Session) ScreenRect(display geom.Rect) geom.Rect {
	return geom.RectToScreen(s.rect, display)
}

// PixelWindow returns the pixel rectangle to export, or an empty rectangle
// when no image is installed.
func (s *Session) PixelWindow() image.Rectangle {
	if !s.loaded {
		return image.Rectangle{}
	}
	return cropper.PixelWindow(s.rect, s.dims)
}
