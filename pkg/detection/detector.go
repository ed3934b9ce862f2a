package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/image-cropper/pkg/client"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/types"
)

// DefaultPrompt asks the model for the bounding box of the main subject
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most salient object).
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, set "label" to "none" and "confidence" to 0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ErrNoSubject means the model found nothing worth cropping to.
var ErrNoSubject = errors.New("detection: no subject found")

// DefaultMinConfidence is the confidence below which a subject is ignored.
const DefaultMinConfidence = 0.25

// Suggestion is a crop rectangle proposed from a detected subject.
type Suggestion struct {
	Label       string
	Confidence  float64
	Description string
	Tags        []string
	Subject     geom.Rect // tight subject box, normalized
	Rect        geom.Rect // Subject grown by the margin and clamped
}

// Detector handles image subject detection using vision models
type Detector struct {
	client        client.VisionClient
	model         string
	prompt        string
	margin        float64
	minConfidence float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithPrompt replaces DefaultPrompt.
func WithPrompt(p string) Option {
	return func(d *Detector) {
		if strings.TrimSpace(p) != "" {
			d.prompt = p
		}
	}
}

// WithMargin grows the suggested crop by m of the subject size on each side.
func WithMargin(m float64) Option {
	return func(d *Detector) {
		if m >= 0 {
			d.margin = m
		}
	}
}

// WithMinConfidence sets the confidence threshold.
func WithMinConfidence(c float64) Option {
	return func(d *Detector) { d.minConfidence = geom.Clamp(c, 0, 1) }
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, model string, opts ...Option) *Detector {
	d := &Detector{
		client:        c,
		model:         model,
		prompt:        DefaultPrompt,
		margin:        0.1,
		minConfidence: DefaultMinConfidence,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Model returns the model name requests are sent to.
func (d *Detector) Model() string { return d.model }

// Suggest locates the main subject in the base64 encoded image and turns it
// into a normalized crop rectangle. It returns ErrNoSubject when the model
// reports nothing, reports low confidence or returns an empty box.
func (d *Detector) Suggest(ctx context.Context, imageB64 string) (*Suggestion, error) {
	result, err := d.client.LocateSubject(ctx, d.model, d.prompt, imageB64)
	if err != nil {
		return nil, fmt.Errorf("locate subject: %w", err)
	}

	p := result.Primary
	label := strings.ToLower(strings.TrimSpace(p.Label))
	if label == "" || label == "none" || p.Confidence < d.minConfidence {
		return nil, ErrNoSubject
	}

	subject := normalizeBox(p.Box).Rect()
	if subject.Dx() <= 0 || subject.Dy() <= 0 {
		return nil, ErrNoSubject
	}

	return &Suggestion{
		Label:       label,
		Confidence:  p.Confidence,
		Description: strings.TrimSpace(result.Description),
		Tags:        normalizeTags(result.Tags),
		Subject:     subject,
		Rect:        grow(subject, d.margin),
	}, nil
}

// grow pads r by m of its size on each side, clamped to the unit square.
func grow(r geom.Rect, m float64) geom.Rect {
	pad := r.Size().Mul(m)
	return geom.ClampRect(geom.Rect{Min: r.Min.Sub(pad), Max: r.Max.Add(pad)})
}

// normalizeBox clamps b into the unit square. Boxes that overflow it are cut
// at the edge rather than shifted.
func normalizeBox(b types.Box) types.Box {
	x0 := geom.Clamp(b.X, 0, 1)
	y0 := geom.Clamp(b.Y, 0, 1)
	x1 := geom.Clamp(b.X+b.W, 0, 1)
	y1 := geom.Clamp(b.Y+b.H, 0, 1)
	return types.BoxFromRect(geom.R(x0, y0, x1, y1))
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
