package types

import "github.com/menta2k/image-cropper/pkg/geom"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect converts b to a min/max rectangle.
func (b Box) Rect() geom.Rect {
	return geom.R(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// BoxFromRect converts a min/max rectangle to a Box.
func BoxFromRect(r geom.Rect) Box {
	r = r.Canon()
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the subject reported by the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// ExportOptions controls how a crop is encoded
type ExportOptions struct {
	Format   string
	Quality  int
	Lossless bool
}

// CropReport describes a finished export
type CropReport struct {
	Source string          `json:"source"`
	Output string          `json:"output"`
	Image  geom.Dimensions `json:"image"`
	Mode   string          `json:"mode"`
	Rect   Box             `json:"rect"`
	Window [4]int          `json:"window"`
}
