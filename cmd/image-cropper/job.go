package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/aspect"
	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/logger"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/session"
	"github.com/menta2k/image-cropper/pkg/types"
)

// newEditor builds an editor from the shared options. Each job gets its own
// editor; font faces are not safe to share between goroutines.
func newEditor(o *options, log *logger.Logger) (*imagecropper.Editor, error) {
	cfg := o.cfg

	popts := processing.PreviewOptions{
		DimAlpha:     cfg.Preview.DimAlpha,
		HandleRadius: cfg.Preview.HandleRadius,
		StrokeWidth:  cfg.Preview.StrokeWidth,
	}
	if o.preview && cfg.Preview.Label && cfg.Preview.FontPath != "" {
		face, err := processing.LoadFontFace(cfg.Preview.FontPath, cfg.Preview.FontSize)
		if err != nil {
			return nil, err
		}
		popts.Face = face
	}

	opts := []imagecropper.Option{
		imagecropper.WithLogger(log),
		imagecropper.WithAnalyzer(analyzer.Config{MinImageSize: cfg.Editor.MinImageSize}),
		imagecropper.WithSessionOptions(session.WithTolerance(cfg.Editor.HandleTolerance)),
		imagecropper.WithPreviewOptions(popts),
		imagecropper.WithPreviewLabel(cfg.Preview.Label),
		imagecropper.WithSuggestImage(cfg.Suggest.SendFormat, cfg.Suggest.SendSize, cfg.Suggest.SendQuality),
	}
	if o.detector != nil {
		opts = append(opts, imagecropper.WithDetector(o.detector))
	}
	return imagecropper.New(opts...), nil
}

// runJob opens one input, shapes the crop and writes the outputs.
// The crop is built up in order: mode, explicit rect, suggestion, gestures.
func runJob(ctx context.Context, input string, o *options, log *logger.Logger) (*types.CropReport, error) {
	ed, err := newEditor(o, log)
	if err != nil {
		return nil, err
	}
	if err := ed.Open(ctx, input); err != nil {
		return nil, err
	}

	ed.SetMode(o.mode)

	if o.rect != nil {
		ed.SetRect(*o.rect)
	}

	if o.detector != nil {
		s, err := ed.Suggest(ctx)
		switch {
		case errors.Is(err, detection.ErrNoSubject):
			log.Warn("no subject found, keeping crop", "rect", ed.Rect().String())
		case err != nil:
			return nil, fmt.Errorf("suggest: %w", err)
		default:
			log.Debug("subject", "label", s.Label, "description", s.Description, "tags", s.Tags)
		}
	}

	if g := o.gestures; g != nil {
		if g.Mode != "" {
			m, err := aspect.ParseMode(g.Mode)
			if err != nil {
				return nil, fmt.Errorf("gesture script: %w", err)
			}
			ed.SetMode(m)
		}
		g.Replay(ed.Session(), log)
	}

	out := o.cfg.Output
	exportOpts := types.ExportOptions{Format: out.Format, Quality: out.Quality, Lossless: out.Lossless}

	path := utils.GenerateOutputFilename(input, out.Dir, out.Prefix, out.Suffix, out.Format)
	report, err := ed.Export(path, exportOpts)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil {
		log.Debug("crop written", "output", path, "size", utils.FormatFileSize(info.Size()))
	}

	if o.preview {
		ppath := utils.GenerateOutputFilename(input, out.Dir, out.Prefix, out.Suffix+"_preview", out.Format)
		if err := ed.Preview(ppath, exportOpts); err != nil {
			log.Warn("preview failed", "output", ppath, "error", err)
		}
	}
	return report, nil
}
