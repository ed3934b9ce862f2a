package analyzer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8(128)
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

func TestNew(t *testing.T) {
	analyzer := New()
	if analyzer == nil {
		t.Fatal("New() returned nil")
	}

	if analyzer.config.MinImageSize != 1 {
		t.Errorf("Expected min size 1, got %d", analyzer.config.MinImageSize)
	}
}

func TestNewWithConfig(t *testing.T) {
	analyzer := NewWithConfig(Config{MinImageSize: 200})
	if analyzer == nil {
		t.Fatal("NewWithConfig() returned nil")
	}

	if analyzer.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", analyzer.config.MinImageSize)
	}

	if !analyzer.IsFormatSupported("webp") {
		t.Error("Expected default formats when none are configured")
	}

	if NewWithConfig(Config{MinImageSize: -5}).config.MinImageSize != 1 {
		t.Error("Expected min size raised to 1")
	}
}

func TestGetImageInfo(t *testing.T) {
	analyzer := New()
	img := createTestImage(400, 300)

	info := analyzer.GetImageInfo(img)

	if info.Width != 400 {
		t.Errorf("Expected width 400, got %d", info.Width)
	}

	if info.Height != 300 {
		t.Errorf("Expected height 300, got %d", info.Height)
	}

	expectedRatio := float64(400) / float64(300)
	if info.AspectRatio != expectedRatio {
		t.Errorf("Expected aspect ratio %f, got %f", expectedRatio, info.AspectRatio)
	}

	if info.Area != 120000 {
		t.Errorf("Expected area 120000, got %d", info.Area)
	}

	if d := info.Dimensions(); d != (geom.Dimensions{Width: 400, Height: 300}) {
		t.Errorf("Expected 400x300, got %s", d)
	}
}

func TestInspect(t *testing.T) {
	analyzer := New()

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(64, 32)); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "sample.png")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := analyzer.InspectFile(path)
	if err != nil {
		t.Fatalf("InspectFile failed: %v", err)
	}
	if info.Width != 64 || info.Height != 32 || info.Format != "png" {
		t.Errorf("Unexpected info %+v", info)
	}

	if _, err := analyzer.Inspect(strings.NewReader("definitely not an image")); err == nil {
		t.Error("Expected error for garbage input")
	}

	pngOnly := NewWithConfig(Config{SupportedFormats: []string{"jpeg"}})
	if _, err := pngOnly.Inspect(bytes.NewReader(buf.Bytes())); err == nil {
		t.Error("Expected png to be rejected")
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := NewWithConfig(Config{MinImageSize: 100})

	// Valid image
	validImg := createTestImage(200, 200)
	if err := analyzer.ValidateImage(validImg); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	// Invalid image (too small)
	invalidImg := createTestImage(50, 50)
	if err := analyzer.ValidateImage(invalidImg); err == nil {
		t.Error("Small image should fail validation")
	}

	if err := New().ValidateDimensions(geom.Dimensions{Width: 0, Height: 10}); err == nil {
		t.Error("Empty image should fail validation")
	}
}

func TestIsFormatSupported(t *testing.T) {
	analyzer := New()

	supportedFormats := []string{"jpg", "jpeg", "png", "JPG", "JPEG", "PNG", "bmp", "webp"}
	for _, format := range supportedFormats {
		if !analyzer.IsFormatSupported(format) {
			t.Errorf("Format %s should be supported", format)
		}
	}

	unsupportedFormats := []string{"gif", "tiff", ""}
	for _, format := range unsupportedFormats {
		if analyzer.IsFormatSupported(format) {
			t.Errorf("Format %s should not be supported", format)
		}
	}
}

func BenchmarkGetImageInfo(b *testing.B) {
	analyzer := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.GetImageInfo(img)
	}
}

func BenchmarkValidateImage(b *testing.B) {
	analyzer := New()
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.ValidateImage(img)
	}
}
