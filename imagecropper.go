// Package imagecropper is an interactive image cropping engine.
//
// An Editor loads a raster image, lets a pointer drag the edges, corners or
// body of a crop rectangle, optionally locks the rectangle to a fixed or
// custom aspect ratio, and exports the selected pixels. The rectangle lives in
// normalized image space (0..1 on both axes); the caller tells the editor
// where on screen the image is drawn and feeds it pointer events.
//
// Basic usage:
//
//	ed := imagecropper.New()
//	if err := ed.Open(ctx, "photo.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	ed.SetMode(aspect.Mode{Kind: aspect.R16_9})
//
//	display := geom.R(0, 0, 800, 600) // where the image is drawn
//	ed.PointerDown(geom.Pt(2, 3), display)
//	ed.PointerMove(geom.Pt(40, 25))
//	ed.PointerUp()
//
//	report, err := ed.Export("photo_cropped.jpg", types.ExportOptions{Format: "jpg", Quality: 90})
//
// The package is built from small pieces that can be used on their own:
//
//   - pkg/geom: points, rectangles and normalized/screen mapping
//   - pkg/aspect: aspect modes and ratio resolution
//   - pkg/handle: handle hit testing
//   - pkg/cropper: the drag constraint solver
//   - pkg/session: crop state for one image
//   - pkg/processing: image loading, cropping, encoding and previews
//   - pkg/detection: crop suggestions from a vision model
package imagecropper

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/aspect"
	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/handle"
	"github.com/menta2k/image-cropper/pkg/logger"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/session"
	"github.com/menta2k/image-cropper/pkg/types"
)

// Version of the image cropper library
const Version = "1.0.0"

var (
	// ErrNoImage is returned by operations that need an open image.
	ErrNoImage = errors.New("imagecropper: no image loaded")
	// ErrNoDetector is returned by Suggest when no detector is configured.
	ErrNoDetector = errors.New("imagecropper: no subject detector configured")
)

// Loaded is a decoded image waiting to be installed by Accept.
type Loaded struct {
	Source string
	Image  image.Image
}

// Editor drives one crop session. It is not safe for concurrent use; only
// the decode started by OpenAsync runs on another goroutine.
type Editor struct {
	processor *processing.Processor
	analyzer  *analyzer.ImageAnalyzer
	detector  *detection.Detector
	session   *session.Session
	loader    session.Loader
	log       *logger.Logger

	sessionOpts []session.Option
	preview     processing.PreviewOptions
	autoLabel   bool
	send        sendOptions

	img    image.Image
	source string
}

type sendOptions struct {
	format  string
	maxDim  int
	quality int
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger used by the editor and its session.
func WithLogger(l *logger.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithAnalyzer replaces the image validation settings.
func WithAnalyzer(cfg analyzer.Config) Option {
	return func(e *Editor) { e.analyzer = analyzer.NewWithConfig(cfg) }
}

// WithDetector enables Suggest.
func WithDetector(d *detection.Detector) Option {
	return func(e *Editor) { e.detector = d }
}

// WithSessionOptions passes options through to the crop session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(e *Editor) { e.sessionOpts = append(e.sessionOpts, opts...) }
}

// WithPreviewOptions sets how Preview draws the overlay.
func WithPreviewOptions(p processing.PreviewOptions) Option {
	return func(e *Editor) { e.preview = p }
}

// WithPreviewLabel turns the mode and size label on previews on or off.
func WithPreviewLabel(on bool) Option {
	return func(e *Editor) { e.autoLabel = on }
}

// WithSuggestImage sets how the image is encoded for the vision model.
func WithSuggestImage(format string, maxDim, quality int) Option {
	return func(e *Editor) {
		e.send = sendOptions{format: format, maxDim: maxDim, quality: quality}
	}
}

// New creates an editor with no image loaded
func New(opts ...Option) *Editor {
	e := &Editor{
		processor: processing.NewProcessor(),
		analyzer:  analyzer.New(),
		log:       logger.Nop(),
		preview:   processing.DefaultPreviewOptions(),
		autoLabel: true,
		send:      sendOptions{format: "jpg", maxDim: 1024, quality: 85},
	}
	for _, o := range opts {
		o(e)
	}
	sopts := append([]session.Option{session.WithLogger(e.log)}, e.sessionOpts...)
	e.session = session.New(sopts...)
	return e
}

// Session exposes the underlying crop session.
func (e *Editor) Session() *session.Session { return e.session }

// Image returns the open image, or nil.
func (e *Editor) Image() image.Image { return e.img }

// Source returns the path or URL of the open image.
func (e *Editor) Source() string { return e.source }

// Dimensions returns the size of the open image.
func (e *Editor) Dimensions() geom.Dimensions { return e.session.Dimensions() }

// Rect returns the normalized crop rectangle.
func (e *Editor) Rect() geom.Rect { return e.session.Rect() }

// Mode returns the aspect mode.
func (e *Editor) Mode() aspect.Mode { return e.session.Mode() }

// Window returns the pixel rectangle Export would cut.
func (e *Editor) Window() image.Rectangle { return e.session.PixelWindow() }

// Open loads source, a file path or http(s) URL, and resets the crop to the
// whole image. On failure the previous image and crop stay in place.
func (e *Editor) Open(ctx context.Context, source string) error {
	ctx, token := e.loader.Begin(ctx)
	defer e.loader.Finish(token)

	l, err := e.load(ctx, source)
	if err != nil {
		return err
	}
	return e.install(l)
}

// OpenAsync decodes source on its own goroutine. Pass the result to Accept
// from the goroutine that owns the editor. Starting another open makes the
// earlier one stale.
func (e *Editor) OpenAsync(ctx context.Context, source string) <-chan session.Result[Loaded] {
	return session.Go(ctx, &e.loader, func(ctx context.Context) (Loaded, error) {
		return e.load(ctx, source)
	})
}

// Accept installs the result of OpenAsync. It reports false without error
// when a newer open has superseded res.
func (e *Editor) Accept(res session.Result[Loaded]) (bool, error) {
	if !e.loader.Current(res.Token) {
		e.log.Debug("discarding superseded load", "source", res.Value.Source)
		return false, nil
	}
	defer e.loader.Finish(res.Token)

	if res.Err != nil {
		return false, res.Err
	}
	if err := e.install(res.Value); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Editor) load(ctx context.Context, source string) (Loaded, error) {
	img, err := e.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return Loaded{}, fmt.Errorf("failed to load %s: %w", source, err)
	}
	if err := e.analyzer.ValidateImage(img); err != nil {
		return Loaded{}, fmt.Errorf("%s: %w", source, err)
	}
	if err := ctx.Err(); err != nil {
		return Loaded{}, err
	}
	return Loaded{Source: source, Image: img}, nil
}

func (e *Editor) install(l Loaded) error {
	dims := e.analyzer.GetImageInfo(l.Image).Dimensions()
	if !e.session.Install(dims) {
		return fmt.Errorf("%s: invalid image dimensions %s", l.Source, dims)
	}
	e.img = l.Image
	e.source = l.Source
	e.log.Info("image opened", "source", l.Source, "dims", dims.String())
	return nil
}

// SetMode switches the aspect mode.
func (e *Editor) SetMode(m aspect.Mode) { e.session.SetMode(m) }

// ToggleOrientation flips between landscape and portrait ratios.
func (e *Editor) ToggleOrientation() { e.session.ToggleOrientation() }

// SetCustomRatio sets the custom ratio terms, clamped to 1..100.
func (e *Editor) SetCustomRatio(w, h int) { e.session.SetCustomRatio(w, h) }

// SetRect replaces the crop with r, clamped and fitted to the current mode.
func (e *Editor) SetRect(r geom.Rect) { e.session.FitRect(r) }

// PointerDown starts a drag. display is where the whole image is drawn.
func (e *Editor) PointerDown(pos geom.Point, display geom.Rect) handle.Kind {
	return e.session.PointerDown(pos, display)
}

// PointerMove feeds one frame of pointer movement in screen units.
func (e *Editor) PointerMove(delta geom.Point) bool {
	return e.session.PointerMove(delta)
}

// PointerUp ends the drag.
func (e *Editor) PointerUp() { e.session.PointerUp() }

// Suggest asks the configured detector for the main subject and moves the
// crop onto it, fitted to the current mode.
func (e *Editor) Suggest(ctx context.Context) (*detection.Suggestion, error) {
	if e.detector == nil {
		return nil, ErrNoDetector
	}
	if e.img == nil {
		return nil, ErrNoImage
	}

	b64, err := e.processor.PrepareImageForModel(e.img, e.send.format, e.send.maxDim, e.send.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %w", err)
	}

	s, err := e.detector.Suggest(ctx, b64)
	if err != nil {
		return nil, err
	}
	e.session.FitRect(s.Rect)
	e.log.Info("crop suggested", "label", s.Label, "confidence", s.Confidence, "rect", e.Rect().String())
	return s, nil
}

// Export cuts the crop window out of the image and writes it to path.
func (e *Editor) Export(path string, opts types.ExportOptions) (*types.CropReport, error) {
	if e.img == nil {
		return nil, ErrNoImage
	}

	win := e.Window()
	cropped, err := e.processor.Crop(e.img, win)
	if err != nil {
		return nil, err
	}
	if err := e.processor.SaveImage(cropped, path, opts.Format, opts.Quality, opts.Lossless); err != nil {
		e.log.Error("export failed", "output", path, "error", err)
		return nil, err
	}

	report := e.report(path)
	e.log.Info("crop exported", "output", path, "window", win.String())
	return report, nil
}

// Preview renders the crop overlay on the full image and writes it to path.
func (e *Editor) Preview(path string, opts types.ExportOptions) error {
	if e.img == nil {
		return ErrNoImage
	}

	popts := e.preview
	if popts.Label == "" && e.autoLabel {
		win := e.Window()
		popts.Label = fmt.Sprintf("%s  %dx%d", e.Mode(), win.Dx(), win.Dy())
	}
	out := e.processor.RenderPreview(e.img, e.Rect(), popts)
	if err := e.processor.SaveImage(out, path, opts.Format, opts.Quality, opts.Lossless); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}

func (e *Editor) report(output string) *types.CropReport {
	win := e.Window()
	return &types.CropReport{
		Source: e.source,
		Output: output,
		Image:  e.Dimensions(),
		Mode:   e.Mode().String(),
		Rect:   types.BoxFromRect(e.Rect()),
		Window: [4]int{win.Min.X, win.Min.Y, win.Dx(), win.Dy()},
	}
}
