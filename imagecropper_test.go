package imagecropper

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/aspect"
	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
	"github.com/menta2k/image-cropper/pkg/session"
	"github.com/menta2k/image-cropper/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

// writeTestImage saves a width x height PNG in a temp dir and returns its path
func writeTestImage(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, createTestImage(width, height)); err != nil {
		t.Fatal(err)
	}
	return path
}

type sessionResult = session.Result[Loaded]

type fakeVision struct{}

func (fakeVision) Ping(ctx context.Context) error { return nil }

func (fakeVision) LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	return &types.AnalysisResult{
		Primary: types.Primary{Label: "dog", Confidence: 0.9, Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25}},
	}, nil
}

func TestNoImage(t *testing.T) {
	ed := New()
	out := filepath.Join(t.TempDir(), "out.png")

	if _, err := ed.Export(out, types.ExportOptions{Format: "png"}); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
	if err := ed.Preview(out, types.ExportOptions{Format: "png"}); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
	if _, err := ed.Suggest(context.Background()); !errors.Is(err, ErrNoDetector) {
		t.Errorf("Expected ErrNoDetector, got %v", err)
	}
	if h := ed.PointerDown(geom.Pt(1, 1), geom.R(0, 0, 10, 10)); h != handle.None {
		t.Errorf("Expected no handle, got %s", h)
	}
}

func TestOpenAndExportSquare(t *testing.T) {
	ed := New()
	if err := ed.Open(context.Background(), writeTestImage(t, 1920, 1080)); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ed.Dimensions() != (geom.Dimensions{Width: 1920, Height: 1080}) {
		t.Errorf("Unexpected dimensions %s", ed.Dimensions())
	}
	if ed.Rect() != geom.Unit {
		t.Errorf("Expected full-image crop, got %v", ed.Rect())
	}

	ed.SetMode(aspect.Mode{Kind: aspect.Square})

	out := filepath.Join(t.TempDir(), "square.png")
	report, err := ed.Export(out, types.ExportOptions{Format: "png"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if report.Window != [4]int{420, 0, 1080, 1080} {
		t.Errorf("Unexpected window %v", report.Window)
	}
	if report.Mode != "1:1" || report.Output != out {
		t.Errorf("Unexpected report %+v", report)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Exported file is not a PNG: %v", err)
	}
	if cfg.Width != 1080 || cfg.Height != 1080 {
		t.Errorf("Expected 1080x1080, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestDragThenExport(t *testing.T) {
	ed := New()
	if err := ed.Open(context.Background(), writeTestImage(t, 400, 200)); err != nil {
		t.Fatal(err)
	}

	display := geom.R(0, 0, 800, 400)
	if h := ed.PointerDown(geom.Pt(1, 1), display); h != handle.TopLeft {
		t.Fatalf("Expected top-left, got %s", h)
	}
	ed.PointerMove(geom.Pt(80, 40))
	ed.PointerUp()

	if win := ed.Window(); win != image.Rect(40, 20, 400, 200) {
		t.Errorf("Unexpected window %v", win)
	}
}

func TestOpenFailureKeepsState(t *testing.T) {
	ed := New()
	src := writeTestImage(t, 300, 300)
	if err := ed.Open(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	ed.SetRect(geom.R(0.1, 0.1, 0.5, 0.5))

	if err := ed.Open(context.Background(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("Expected error for missing file")
	}
	if ed.Source() != src || ed.Rect() != geom.R(0.1, 0.1, 0.5, 0.5) {
		t.Errorf("Failed open changed state: %s %v", ed.Source(), ed.Rect())
	}
}

func TestOpenRejectsSmallImage(t *testing.T) {
	ed := New(WithAnalyzer(analyzer.Config{MinImageSize: 100}))
	if err := ed.Open(context.Background(), writeTestImage(t, 50, 50)); err == nil {
		t.Error("Expected error for small image")
	}
	if ed.Image() != nil {
		t.Error("Expected no image installed")
	}
}

func TestOpenAsyncSupersede(t *testing.T) {
	ed := New()
	first := ed.OpenAsync(context.Background(), writeTestImage(t, 100, 50))
	second := ed.OpenAsync(context.Background(), writeTestImage(t, 60, 80))

	recv := func(ch <-chan sessionResult) sessionResult {
		select {
		case res := <-ch:
			return res
		case <-time.After(10 * time.Second):
			t.Fatal("load never finished")
		}
		return sessionResult{}
	}

	ok, err := ed.Accept(recv(first))
	if ok || err != nil {
		t.Errorf("Expected stale first load to be dropped, got %v %v", ok, err)
	}
	if ed.Image() != nil {
		t.Error("Stale load must not install")
	}

	ok, err = ed.Accept(recv(second))
	if !ok || err != nil {
		t.Fatalf("Expected second load to install, got %v %v", ok, err)
	}
	if ed.Dimensions() != (geom.Dimensions{Width: 60, Height: 80}) {
		t.Errorf("Unexpected dimensions %s", ed.Dimensions())
	}
}

func TestSuggest(t *testing.T) {
	det := detection.NewDetector(fakeVision{}, "test", detection.WithMargin(0))
	ed := New(WithDetector(det))
	if _, err := ed.Suggest(context.Background()); !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}

	if err := ed.Open(context.Background(), writeTestImage(t, 200, 200)); err != nil {
		t.Fatal(err)
	}
	s, err := ed.Suggest(context.Background())
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if s.Label != "dog" {
		t.Errorf("Expected dog, got %s", s.Label)
	}
	if ed.Rect() != geom.R(0.5, 0.5, 0.75, 0.75) {
		t.Errorf("Expected crop on the subject, got %v", ed.Rect())
	}
}

func TestPreview(t *testing.T) {
	ed := New(WithPreviewLabel(false))
	if err := ed.Open(context.Background(), writeTestImage(t, 120, 80)); err != nil {
		t.Fatal(err)
	}
	ed.SetRect(geom.R(0.25, 0.25, 0.75, 0.75))

	out := filepath.Join(t.TempDir(), "preview.jpg")
	if err := ed.Preview(out, types.ExportOptions{Format: "jpg", Quality: 80}); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("Preview not written: %v", err)
	}
}
