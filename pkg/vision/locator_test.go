package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-cropper/pkg/detection"
)

// createTestImage creates a grey image with a white square centred at (cx, cy)
func createTestImage(width, height, cx, cy, side int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= cx-side/2 && x < cx+side/2 && y >= cy-side/2 && y < cy+side/2 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{128, 128, 128, 255})
			}
		}
	}
	return img
}

func createUniformImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeB64(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestNewWithConfigDefaults(t *testing.T) {
	l := NewWithConfig(Config{WorkSize: 128})
	if l.config.WorkSize != 128 {
		t.Errorf("Expected work size 128, got %d", l.config.WorkSize)
	}
	if l.config.ContrastWeight != 0.3 || l.config.MaxRegions != 10 {
		t.Errorf("Expected defaults to fill zero fields, got %+v", l.config)
	}
}

func TestRegionHelpers(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}

	if cx, cy := region.Center(); cx != 60 || cy != 60 {
		t.Errorf("Expected center (60, 60), got (%d, %d)", cx, cy)
	}
	if region.Area() != 8000 {
		t.Errorf("Expected area 8000, got %d", region.Area())
	}

	box := region.Box(200, 160)
	if box.X != 0.05 || box.Y != 0.125 || box.W != 0.5 || box.H != 0.5 {
		t.Errorf("Unexpected box %+v", box)
	}

	u := region.union(Region{X: 50, Y: 0, Width: 100, Height: 50})
	if u.X != 10 || u.Y != 0 || u.Width != 140 || u.Height != 100 {
		t.Errorf("Unexpected union %+v", u)
	}
	if region.overlaps(Region{X: 110, Y: 20, Width: 5, Height: 5}) {
		t.Error("Touching regions should not overlap")
	}
}

func TestSaliencyMapMean(t *testing.T) {
	l := New()
	img := createUniformImage(20, 10, color.RGBA{255, 255, 255, 255})
	m := l.calculateSaliencyMap(imaging.Clone(img))
	if got := m.mean(0, 0, 20, 10); got < 0.1999 || got > 0.2001 {
		t.Errorf("Expected mean 0.2 for a white image, got %f", got)
	}
	if got := m.mean(3, 3, 0, 4); got != 0 {
		t.Errorf("Expected 0 for an empty window, got %f", got)
	}
}

func TestDetectSubjects(t *testing.T) {
	img := createTestImage(200, 150, 100, 75, 60)

	regions := New().DetectSubjects(img)
	if len(regions) == 0 {
		t.Fatal("Expected to detect at least one region")
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Score > regions[i-1].Score {
			t.Errorf("Regions not sorted by score at %d", i)
		}
	}
	cx, cy := regions[0].Center()
	if cx < 70 || cx > 130 || cy < 45 || cy > 105 {
		t.Errorf("Best region center (%d, %d) is outside the white square", cx, cy)
	}
}

func TestSubjectLargeImage(t *testing.T) {
	// Reduced to the work size before scoring; results come back in source pixels.
	img := createTestImage(1000, 600, 700, 300, 240)

	r, conf, err := New().Subject(img)
	if err != nil {
		t.Fatalf("Subject failed: %v", err)
	}
	cx, cy := r.Center()
	if cx < 580 || cx > 820 || cy < 180 || cy > 420 {
		t.Errorf("Subject center (%d, %d) is outside the white square", cx, cy)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > 1000 || r.Y+r.Height > 600 {
		t.Errorf("Subject %+v extends outside the image", r)
	}
	if conf <= 0.25 || conf > 1 {
		t.Errorf("Expected confidence in (0.25, 1], got %f", conf)
	}
}

func TestSubjectUniform(t *testing.T) {
	for _, c := range []color.Color{color.Black, color.White, color.RGBA{90, 30, 200, 255}} {
		_, _, err := New().Subject(createUniformImage(120, 90, c))
		if !errors.Is(err, ErrNoSubject) {
			t.Errorf("Expected ErrNoSubject for %v, got %v", c, err)
		}
	}
}

func TestLocateSubject(t *testing.T) {
	l := New()
	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	res, err := l.LocateSubject(context.Background(), "", "", encodeB64(t, createTestImage(200, 150, 100, 75, 60)))
	if err != nil {
		t.Fatalf("LocateSubject failed: %v", err)
	}
	p := res.Primary
	if p.Label != "salient region" {
		t.Errorf("Expected label 'salient region', got %q", p.Label)
	}
	if p.Cx < 0.35 || p.Cx > 0.65 || p.Cy < 0.3 || p.Cy > 0.7 {
		t.Errorf("Center (%f, %f) is outside the white square", p.Cx, p.Cy)
	}

	res, err = l.LocateSubject(context.Background(), "", "", encodeB64(t, createUniformImage(50, 50, color.White)))
	if err != nil {
		t.Fatalf("LocateSubject failed: %v", err)
	}
	if res.Primary.Label != "none" {
		t.Errorf("Expected label none for a blank image, got %q", res.Primary.Label)
	}

	if _, err := l.LocateSubject(context.Background(), "", "", "!!!"); err == nil {
		t.Error("Expected error for invalid image data")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.LocateSubject(ctx, "", "", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDetectorWithLocator(t *testing.T) {
	d := detection.NewDetector(New(), "")

	s, err := d.Suggest(context.Background(), encodeB64(t, createTestImage(200, 150, 100, 75, 60)))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if !s.Rect.Contains(s.Subject.Center()) {
		t.Errorf("Suggested rect %v should contain the subject center", s.Rect)
	}

	_, err = d.Suggest(context.Background(), encodeB64(t, createUniformImage(60, 40, color.Black)))
	if !errors.Is(err, detection.ErrNoSubject) {
		t.Errorf("Expected detection.ErrNoSubject, got %v", err)
	}
}

func BenchmarkSubject(b *testing.B) {
	l := New()
	img := createTestImage(1600, 1200, 500, 400, 300)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Subject(img)
	}
}
