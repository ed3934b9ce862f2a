package client

import (
	"context"

	"github.com/menta2k/image-cropper/pkg/types"
)

// VisionClient is a vision-model backend that can locate the main subject
// of an image. Images are passed base64 encoded.
type VisionClient interface {
	Ping(ctx context.Context) error
	LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
