package session

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/menta2k/image-cropper/pkg/aspect"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

// newLoaded returns a session with a 1000x500 image drawn 1:1 at (20,20).
func newLoaded(t *testing.T, opts ...Option) (*Session, geom.Rect) {
	t.Helper()
	s := New(opts...)
	if !s.Install(geom.Dimensions{Width: 1000, Height: 500}) {
		t.Fatal("Install failed")
	}
	return s, geom.R(20, 20, 1020, 520)
}

func TestNewSession(t *testing.T) {
	s := New()
	if s.Loaded() {
		t.Error("New session should not be loaded")
	}
	if s.Rect() != geom.Unit {
		t.Errorf("Expected unit rect, got %v", s.Rect())
	}
	if m := s.Mode(); m.Kind != aspect.Free || m.W != 4 || m.H != 3 {
		t.Errorf("Expected Free with 4:3 custom terms, got %+v", m)
	}
	if s.Tolerance() != handle.DefaultTolerance {
		t.Errorf("Expected default tolerance, got %v", s.Tolerance())
	}
}

func TestGeometryGatedOnLoad(t *testing.T) {
	s := New()
	if h := s.PointerDown(geom.Pt(0, 0), geom.R(0, 0, 100, 100)); h != handle.None {
		t.Errorf("Expected no handle before load, got %s", h)
	}
	if s.PointerMove(geom.Pt(10, 10)) {
		t.Error("Expected no update before load")
	}
	if !s.PixelWindow().Empty() {
		t.Error("Expected empty window before load")
	}
	s.SetKind(aspect.Square)
	if s.Rect() != geom.Unit {
		t.Errorf("Mode change before load should not touch rect, got %v", s.Rect())
	}
}

func TestInstall(t *testing.T) {
	s, display := newLoaded(t)
	s.SetRect(geom.R(0.1, 0.1, 0.5, 0.5))
	if h := s.PointerDown(geom.Pt(320, 170), display); h != handle.Move {
		t.Fatalf("Expected move, got %s", h)
	}
	if !s.PointerMove(geom.Pt(-50, -20)) {
		t.Fatal("Expected the move to update the rect")
	}

	if !s.Install(geom.Dimensions{Width: 10, Height: 10}) {
		t.Fatal("Install failed")
	}
	if s.Rect() != geom.Unit {
		t.Errorf("Expected reset rect, got %v", s.Rect())
	}
	if s.Dragging() {
		t.Error("Expected install to drop the drag")
	}

	if s.Install(geom.Dimensions{Width: 0, Height: 10}) {
		t.Error("Expected invalid dimensions to be rejected")
	}
	if s.Dimensions().Width != 10 {
		t.Errorf("Expected previous dimensions kept, got %v", s.Dimensions())
	}
}

func TestFreeDragSequence(t *testing.T) {
	s, display := newLoaded(t)

	if h := s.PointerDown(geom.Pt(22, 21), display); h != handle.TopLeft {
		t.Fatalf("Expected top-left, got %s", h)
	}
	if !s.Dragging() {
		t.Error("Expected drag in progress")
	}

	// Two incremental frames add up.
	s.PointerMove(geom.Pt(50, 25))
	s.PointerMove(geom.Pt(50, 25))

	r := s.Rect()
	if !near(r.Min.X, 0.1) || !near(r.Min.Y, 0.1) || r.Max != geom.Pt(1, 1) {
		t.Errorf("Expected (0.1,0.1)-(1,1), got %v", r)
	}

	s.PointerUp()
	if s.Dragging() || s.Handle() != handle.None {
		t.Error("Expected drag cleared")
	}
	s.PointerUp()
	if s.PointerMove(geom.Pt(5, 5)) {
		t.Error("Expected move after pointer-up to be ignored")
	}
}

func TestPointerDownOutside(t *testing.T) {
	s, display := newLoaded(t)
	s.SetRect(geom.R(0.4, 0.4, 0.6, 0.6))

	if h := s.PointerDown(geom.Pt(25, 25), display); h != handle.None {
		t.Errorf("Expected none, got %s", h)
	}
	before := s.Rect()
	if s.PointerMove(geom.Pt(100, 100)) {
		t.Error("Expected no drag")
	}
	if s.Rect() != before {
		t.Errorf("Rect changed without a drag: %v", s.Rect())
	}
}

func TestMoveStaysInside(t *testing.T) {
	s, display := newLoaded(t)
	s.SetRect(geom.R(0.3, 0.3, 0.6, 0.7))

	if h := s.PointerDown(geom.Pt(470, 270), display); h != handle.Move {
		t.Fatalf("Expected move, got %s", h)
	}
	for i := 0; i < 20; i++ {
		s.PointerMove(geom.Pt(-300, 400))
		r := s.Rect()
		if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > 1 || r.Max.Y > 1 {
			t.Fatalf("Frame %d left the image: %v", i, r)
		}
	}
	r := s.Rect()
	if !near(r.Min.X, 0) || !near(r.Max.Y, 1) {
		t.Errorf("Expected rect parked bottom-left, got %v", r)
	}
	if !near(r.Dx(), 0.3) || !near(r.Dy(), 0.4) {
		t.Errorf("Move changed size: %v", r)
	}
}

func TestLockedCornerDragKeepsPixelRatio(t *testing.T) {
	s, display := newLoaded(t)
	s.SetKind(aspect.R3_2)

	start := s.ScreenRect(display)
	if h := s.PointerDown(start.Max, display); h != handle.BottomRight {
		t.Fatalf("Expected bottom-right, got %s", h)
	}
	s.PointerMove(geom.Pt(-120, -40))
	s.PointerMove(geom.Pt(-15, -30))
	s.PointerUp()

	r := s.Rect()
	got := (r.Dx() * 1000) / (r.Dy() * 500)
	if math.Abs(got-1.5) > 1e-9 {
		t.Errorf("Expected pixel ratio 1.5, got %v", got)
	}
}

func TestSetModeAppliesOnce(t *testing.T) {
	s := New()
	s.Install(geom.Dimensions{Width: 1920, Height: 1080})
	s.SetKind(aspect.Square)

	r := s.Rect()
	if !near(r.Dx(), 0.5625) || !near(r.Dy(), 1) {
		t.Errorf("Expected 0.5625 x 1, got %v x %v", r.Dx(), r.Dy())
	}
	win := s.PixelWindow()
	if win.Dx() != win.Dy() {
		t.Errorf("Expected square export window, got %v", win)
	}

	s.SetKind(aspect.Free)
	if s.Rect() != r {
		t.Errorf("Switching to Free should keep the rect, got %v", s.Rect())
	}
}

func TestSetModeMatchingImageRatio(t *testing.T) {
	s := New()
	s.Install(geom.Dimensions{Width: 4000, Height: 3000})
	s.SetKind(aspect.R4_3)

	r := s.Rect()
	if !near(r.Min.X, 0) || !near(r.Min.Y, 0) || !near(r.Max.X, 1) || !near(r.Max.Y, 1) {
		t.Errorf("Expected unchanged full rect, got %v", r)
	}
}

func TestToggleOrientation(t *testing.T) {
	s, _ := newLoaded(t)
	s.SetKind(aspect.R16_9)
	if s.Portrait() {
		t.Error("16:9 should be landscape")
	}

	s.ToggleOrientation()
	if s.Mode().Kind != aspect.R9_16 || !s.Portrait() {
		t.Errorf("Expected 9:16 portrait, got %s portrait=%v", s.Mode(), s.Portrait())
	}
	r := s.Rect()
	if got := (r.Dx() * 1000) / (r.Dy() * 500); math.Abs(got-9.0/16.0) > 1e-9 {
		t.Errorf("Expected 9:16 pixel ratio, got %v", got)
	}

	s.SetCustomRatio(5, 2)
	s.SetKind(aspect.Custom)
	s.ToggleOrientation()
	if m := s.Mode(); m.Kind != aspect.Custom || m.W != 2 || m.H != 5 {
		t.Errorf("Expected custom 2:5, got %+v", m)
	}

	s.SetKind(aspect.Original)
	portrait := s.Portrait()
	s.ToggleOrientation()
	if s.Mode().Kind != aspect.Original || s.Portrait() == portrait {
		t.Errorf("Original should stay while the orientation flag flips")
	}
}

func TestSetCustomRatioClamps(t *testing.T) {
	s, _ := newLoaded(t)
	s.SetKind(aspect.Custom)
	s.SetCustomRatio(0, 500)

	if m := s.Mode(); m.W != 1 || m.H != 100 {
		t.Errorf("Expected 1:100, got %d:%d", m.W, m.H)
	}
	r := s.Rect()
	if r.Min.X < 0 || r.Max.X > 1 || r.Min.Y < 0 || r.Max.Y > 1 {
		t.Errorf("Extreme custom ratio left the image: %v", r)
	}
}

func TestFitRect(t *testing.T) {
	s, _ := newLoaded(t)
	s.FitRect(geom.R(0.2, 0.2, 0.4, 0.9))
	if r := s.Rect(); r != geom.R(0.2, 0.2, 0.4, 0.9) {
		t.Errorf("Free mode should keep the rect, got %v", r)
	}

	s.SetKind(aspect.Square)
	s.FitRect(geom.R(-0.5, 0.1, 0.5, 0.5))
	r := s.Rect()
	if r.Min.X < 0 || r.Max.X > 1 || r.Min.Y < 0 || r.Max.Y > 1 {
		t.Fatalf("Rect left the image: %v", r)
	}
	if win := s.PixelWindow(); win.Dx() != win.Dy() {
		t.Errorf("Expected square window, got %v", win)
	}
}

func TestWithOptions(t *testing.T) {
	s := New(WithTolerance(4), WithMode(aspect.Mode{Kind: aspect.R2_3}))
	if s.Tolerance() != 4 {
		t.Errorf("Expected tolerance 4, got %v", s.Tolerance())
	}
	if s.Mode().Kind != aspect.R2_3 || !s.Portrait() {
		t.Errorf("Expected 2:3 portrait, got %s", s.Mode())
	}

	s.Install(geom.Dimensions{Width: 100, Height: 100})
	display := geom.R(0, 0, 100, 100)
	if h := s.PointerDown(geom.Pt(6, 50), display); h != handle.Move {
		t.Errorf("Expected the tighter tolerance to miss the edge, got %s", h)
	}
}

func TestLoaderSupersede(t *testing.T) {
	var l Loader
	ctx1, t1 := l.Begin(context.Background())
	_, t2 := l.Begin(context.Background())

	if l.Current(t1) {
		t.Error("First token should be stale")
	}
	if !l.Current(t2) {
		t.Error("Second token should be current")
	}
	if ctx1.Err() == nil {
		t.Error("Expected the superseded load to be cancelled")
	}
}

func TestGoDeliversOnce(t *testing.T) {
	var l Loader

	slow := Go(context.Background(), &l, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	fast := Go(context.Background(), &l, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	select {
	case res := <-fast:
		if res.Err != nil || res.Value != 42 {
			t.Fatalf("Unexpected fast result %+v", res)
		}
		if !l.Current(res.Token) {
			t.Error("Fast result should be current")
		}
		l.Finish(res.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("fast load never finished")
	}

	select {
	case res := <-slow:
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("Expected cancellation, got %v", res.Err)
		}
		if l.Current(res.Token) {
			t.Error("Slow result should be stale")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("slow load never finished")
	}

	if _, ok := <-fast; ok {
		t.Error("Expected the channel to be closed")
	}
}
