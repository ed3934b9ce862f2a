// Package vision locates the visually dominant region of an image without a
// model server. It scores pixels by local contrast and brightness and slides
// square windows over the result.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/types"
)

// ErrNoSubject is returned when no window stands out from the image mean.
var ErrNoSubject = errors.New("vision: no salient region")

// Config holds configuration for saliency scoring
type Config struct {
	WorkSize        int     // longest side scored, larger images are reduced first
	ContrastWeight  float64 // weight of the 8-neighbour colour difference
	ColorWeight     float64 // weight of pixel brightness
	MinContrast     float64 // a window must beat the image mean by this fraction
	MinSubjectRatio float64 // smallest window area as a fraction of the image
	MaxRegions      int
	MergeTop        int // regions merged into the reported subject
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		WorkSize:        256,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinContrast:     0.15,
		MinSubjectRatio: 0.02,
		MaxRegions:      10,
		MergeTop:        3,
	}
}

// Locator finds salient regions. It satisfies client.VisionClient so it can
// stand in for a model backend.
type Locator struct {
	config    Config
	processor *processing.Processor
}

// New creates a Locator with the default configuration.
func New() *Locator {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Locator. Zero fields take their defaults.
func NewWithConfig(cfg Config) *Locator {
	def := DefaultConfig()
	if cfg.WorkSize <= 0 {
		cfg.WorkSize = def.WorkSize
	}
	if cfg.ContrastWeight == 0 && cfg.ColorWeight == 0 {
		cfg.ContrastWeight, cfg.ColorWeight = def.ContrastWeight, def.ColorWeight
	}
	if cfg.MinContrast <= 0 {
		cfg.MinContrast = def.MinContrast
	}
	if cfg.MinSubjectRatio <= 0 {
		cfg.MinSubjectRatio = def.MinSubjectRatio
	}
	if cfg.MaxRegions <= 0 {
		cfg.MaxRegions = def.MaxRegions
	}
	if cfg.MergeTop <= 0 {
		cfg.MergeTop = def.MergeTop
	}
	return &Locator{config: cfg, processor: processing.NewProcessor()}
}

// Region is a rectangle in source image pixels, relative to Bounds().Min.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Box normalizes the region against a w by h image.
func (r Region) Box(w, h int) types.Box {
	return types.Box{
		X: float64(r.X) / float64(w),
		Y: float64(r.Y) / float64(h),
		W: float64(r.Width) / float64(w),
		H: float64(r.Height) / float64(h),
	}
}

func (r Region) overlaps(o Region) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

func (r Region) union(o Region) Region {
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.X+r.Width, o.X+o.Width), max(r.Y+r.Height, o.Y+o.Height)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Score: r.Score}
}

// saliencyMap is a summed-area table over per-pixel saliency.
type saliencyMap struct {
	w, h int
	sum  []float64
}

func (m *saliencyMap) at(x, y int) float64 {
	return m.sum[y*(m.w+1)+x]
}

// mean returns the average saliency of the w by h window at x, y.
func (m *saliencyMap) mean(x, y, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	total := m.at(x+w, y+h) - m.at(x, y+h) - m.at(x+w, y) + m.at(x, y)
	return total / float64(w*h)
}

var neighbors = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

func (l *Locator) calculateSaliencyMap(img *image.NRGBA) *saliencyMap {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	m := &saliencyMap{w: w, h: h, sum: make([]float64, (w+1)*(h+1))}

	px := func(x, y int) (float64, float64, float64) {
		i := y*img.Stride + x*4
		return float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r1, g1, b1 := px(x, y)

			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				for _, off := range neighbors {
					r2, g2, b2 := px(x+off[0], y+off[1])
					dr, dg, db := r1-r2, g1-g2, b1-b2
					edge += math.Sqrt(dr*dr + dg*dg + db*db)
				}
				edge /= 8 * 255
			}
			brightness := (r1 + g1 + b1) / (3 * 255)

			s := l.config.ContrastWeight*edge + l.config.ColorWeight*brightness
			m.sum[(y+1)*(w+1)+x+1] = s + m.at(x+1, y) + m.at(x, y+1) - m.at(x, y)
		}
	}
	return m
}

// analysis holds regions in work-image pixels and the image-wide mean.
type analysis struct {
	regions []Region
	mean    float64
	scaleX  float64
	scaleY  float64
	srcW    int
	srcH    int
}

func (l *Locator) analyze(img image.Image) analysis {
	b := img.Bounds()
	work := imaging.Fit(img, l.config.WorkSize, l.config.WorkSize, imaging.Box)
	w, h := work.Rect.Dx(), work.Rect.Dy()

	a := analysis{
		scaleX: float64(b.Dx()) / float64(w),
		scaleY: float64(b.Dy()) / float64(h),
		srcW:   b.Dx(),
		srcH:   b.Dy(),
	}
	m := l.calculateSaliencyMap(work)
	a.mean = m.mean(0, 0, w, h)

	short := min(w, h)
	minArea := l.config.MinSubjectRatio * float64(w*h)
	threshold := a.mean * (1 + l.config.MinContrast)

	for _, frac := range []float64{1.0 / 4, 1.0 / 3, 1.0 / 2, 2.0 / 3} {
		size := int(float64(short) * frac)
		if size < 4 || float64(size*size) < minArea {
			continue
		}
		step := max(1, size/4)
		for y := 0; y+size <= h; y += step {
			for x := 0; x+size <= w; x += step {
				score := m.mean(x, y, size, size)
				if score > threshold {
					a.regions = append(a.regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}

	sort.SliceStable(a.regions, func(i, j int) bool {
		return a.regions[i].Score > a.regions[j].Score
	})
	if len(a.regions) > l.config.MaxRegions {
		a.regions = a.regions[:l.config.MaxRegions]
	}
	return a
}

// toSource maps a work-image region back to source pixels.
func (a analysis) toSource(r Region) Region {
	x0 := int(math.Round(float64(r.X) * a.scaleX))
	y0 := int(math.Round(float64(r.Y) * a.scaleY))
	x1 := min(a.srcW, int(math.Round(float64(r.X+r.Width)*a.scaleX)))
	y1 := min(a.srcH, int(math.Round(float64(r.Y+r.Height)*a.scaleY)))
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Score: r.Score}
}

// DetectSubjects returns the highest-scoring windows, best first.
func (l *Locator) DetectSubjects(img image.Image) []Region {
	a := l.analyze(img)
	out := make([]Region, len(a.regions))
	for i, r := range a.regions {
		out[i] = a.toSource(r)
	}
	return out
}

// Subject returns the best window merged with the top windows that overlap
// it, and a confidence in [0,1] measuring how far it stands out.
func (l *Locator) Subject(img image.Image) (Region, float64, error) {
	a := l.analyze(img)
	if len(a.regions) == 0 {
		return Region{}, 0, ErrNoSubject
	}

	best := a.regions[0]
	subject := best
	for _, r := range a.regions[1:min(len(a.regions), l.config.MergeTop)] {
		if best.overlaps(r) {
			subject = subject.union(r)
		}
	}

	conf := (best.Score - a.mean) / best.Score
	conf = math.Max(0, math.Min(1, conf))
	return a.toSource(subject), conf, nil
}

// Ping always succeeds.
func (l *Locator) Ping(ctx context.Context) error {
	return nil
}

// LocateSubject decodes imgB64 and reports its salient region. The model and
// prompt are ignored. An image with nothing salient is reported with the
// label "none".
func (l *Locator) LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := l.processor.LoadImageFromReader(base64.NewDecoder(base64.StdEncoding, strings.NewReader(imgB64)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	subject, conf, err := l.Subject(img)
	if errors.Is(err, ErrNoSubject) {
		return &types.AnalysisResult{Primary: types.Primary{Label: "none"}}, nil
	}
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	box := subject.Box(b.Dx(), b.Dy())
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      "salient region",
			Confidence: conf,
			Box:        box,
			Cx:         box.X + box.W/2,
			Cy:         box.Y + box.H/2,
		},
		Description: "high contrast region",
		Tags:        []string{"saliency"},
	}, nil
}
