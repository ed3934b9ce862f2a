package processing

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
)

// PreviewOptions controls how RenderPreview draws the crop overlay
type PreviewOptions struct {
	DimAlpha     float64 // opacity of the shade outside the crop, 0..1
	HandleRadius float64
	StrokeWidth  float64
	Label        string
	Face         font.Face // nil uses basicfont
}

// DefaultPreviewOptions returns the overlay used by the interactive editor
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{
		DimAlpha:     150.0 / 255.0,
		HandleRadius: 6,
		StrokeWidth:  1,
	}
}

// RenderPreview draws the crop overlay for the normalized rect r on top of a
// copy of img: the area outside the crop is shaded, the crop gets a white
// border and the eight drag handles are drawn as filled circles.
func (p *Processor) RenderPreview(img image.Image, r geom.Rect, opts PreviewOptions) image.Image {
	// Clone rebases the bounds to (0,0).
	dc := gg.NewContextForImage(imaging.Clone(img))

	w, h := float64(dc.Width()), float64(dc.Height())
	sr := geom.RectToScreen(geom.ClampRect(r), geom.R(0, 0, w, h))

	alpha := int(geom.Clamp(opts.DimAlpha, 0, 1)*255 + 0.5)
	if alpha > 0 {
		dc.SetRGBA255(0, 0, 0, alpha)
		dc.DrawRectangle(0, 0, w, sr.Min.Y)
		dc.DrawRectangle(0, sr.Max.Y, w, h-sr.Max.Y)
		dc.DrawRectangle(0, sr.Min.Y, sr.Min.X, sr.Dy())
		dc.DrawRectangle(sr.Max.X, sr.Min.Y, w-sr.Max.X, sr.Dy())
		dc.Fill()
	}

	dc.SetColor(color.White)
	if opts.StrokeWidth > 0 {
		dc.SetLineWidth(opts.StrokeWidth)
		dc.DrawRectangle(sr.Min.X, sr.Min.Y, sr.Dx(), sr.Dy())
		dc.Stroke()
	}

	if opts.HandleRadius > 0 {
		for _, a := range handle.Anchors(sr) {
			dc.DrawCircle(a.Pos.X, a.Pos.Y, opts.HandleRadius)
		}
		dc.Fill()
	}

	if opts.Label != "" {
		face := opts.Face
		if face == nil {
			face = basicfont.Face7x13
		}
		dc.SetFontFace(face)
		pad := opts.HandleRadius + 4
		dc.DrawStringAnchored(opts.Label, sr.Min.X+pad, sr.Min.Y+pad, 0, 1)
	}

	return dc.Image()
}

// LoadFontFace loads a TrueType font for preview labels
func LoadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
