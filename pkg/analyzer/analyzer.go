package analyzer

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// ImageAnalyzer inspects images before they are handed to a crop session
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"jpeg", "png", "bmp", "webp"},
			MinImageSize:     1,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = New().config.SupportedFormats
	}
	if config.MinImageSize < 1 {
		config.MinImageSize = 1
	}
	return &ImageAnalyzer{config: config}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Format      string  `json:"format,omitempty"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

// Dimensions returns the size as crop-session dimensions
func (i ImageInfo) Dimensions() geom.Dimensions {
	return geom.Dimensions{Width: i.Width, Height: i.Height}
}

func newInfo(width, height int, format string) ImageInfo {
	info := ImageInfo{
		Width:  width,
		Height: height,
		Format: format,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	return newInfo(bounds.Dx(), bounds.Dy(), "")
}

// Inspect reads only the image header from r
func (a *ImageAnalyzer) Inspect(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to read image header: %w", err)
	}
	if !a.IsFormatSupported(format) {
		return ImageInfo{}, fmt.Errorf("unsupported image format: %s", format)
	}
	return newInfo(cfg.Width, cfg.Height, format), nil
}

// InspectFile reads the header of the image at path
func (a *ImageAnalyzer) InspectFile(path string) (ImageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()
	return a.Inspect(file)
}

// IsFormatSupported reports whether format is accepted
func (a *ImageAnalyzer) IsFormatSupported(format string) bool {
	if strings.EqualFold(format, "jpg") {
		format = "jpeg"
	}
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	return a.ValidateDimensions(a.GetImageInfo(img).Dimensions())
}

// ValidateDimensions checks a size against the minimum edge length
func (a *ImageAnalyzer) ValidateDimensions(d geom.Dimensions) error {
	if !d.Valid() {
		return fmt.Errorf("image has no pixels: %s", d)
	}
	if d.Width < a.config.MinImageSize || d.Height < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			d.Width, d.Height, a.config.MinImageSize)
	}
	return nil
}
