package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/internal/script"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/aspect"
	"github.com/menta2k/image-cropper/pkg/client"
	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/llamacpp"
	"github.com/menta2k/image-cropper/pkg/logger"
	"github.com/menta2k/image-cropper/pkg/ollama"
	"github.com/menta2k/image-cropper/pkg/types"
	"github.com/menta2k/image-cropper/pkg/vision"
)

// options are the resolved per-run settings shared by every job
type options struct {
	cfg      *config.Config
	mode     aspect.Mode
	rect     *geom.Rect
	gestures *script.Script
	preview  bool
	detector *detection.Detector
}

func main() {
	var (
		in, outDir, modeStr, custom, rectStr, gesturesPath string
		backend, backendURL, model, ext, cfgPath, logMode  string
		saveCfg                                            string
		quality, jobs                                      int
		portrait, lossless, preview, suggest               bool
	)

	flag.StringVar(&in, "in", "", "input image path, directory or URL (more may follow as arguments)")
	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&modeStr, "mode", "", "aspect mode: free|original|square|3:2|4:3|16:9|16:10|2:3|3:4|9:16|10:16|custom|W:H")
	flag.BoolVar(&portrait, "portrait", false, "use the portrait counterpart of a landscape ratio")
	flag.StringVar(&custom, "custom", "", "custom ratio W:H (terms 1..100), used by -mode custom")
	flag.StringVar(&rectStr, "rect", "", "initial crop x0,y0,x1,y1 in normalized coordinates")
	flag.StringVar(&gesturesPath, "gestures", "", "YAML gesture script to replay on every image")
	flag.BoolVar(&preview, "preview", false, "also write the full image with the crop overlay")
	flag.BoolVar(&suggest, "suggest", false, "ask a vision model for the subject and crop to it")
	flag.StringVar(&backend, "backend", "", "vision backend: ollama|llamacpp|saliency (offline)")
	flag.StringVar(&backendURL, "backend-url", "", "vision backend server URL")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&ext, "ext", "", "output format: jpg|png|bmp|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP lossless output")
	flag.StringVar(&cfgPath, "config", "", "JSON config file (default "+config.GetConfigPath()+" when present)")
	flag.StringVar(&saveCfg, "save-config", "", "write the effective configuration to this file and exit")
	flag.StringVar(&logMode, "log", "", "log mode: dev|debug|prod")
	flag.IntVar(&jobs, "jobs", 0, "images processed in parallel")
	flag.Parse()

	inputs := flag.Args()
	if in != "" {
		inputs = append([]string{in}, inputs...)
	}
	if len(inputs) == 0 && saveCfg == "" {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] -in image|dir|URL [more ...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	if cfgPath == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			cfgPath = p
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the config file and env.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Dir = outDir
		case "mode":
			cfg.Editor.DefaultMode = modeStr
		case "backend":
			cfg.Suggest.Backend = backend
		case "backend-url":
			cfg.Suggest.URL = backendURL
		case "model":
			cfg.Suggest.Model = model
		case "ext":
			cfg.Output.Format = ext
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "log":
			cfg.Log.Mode = logMode
		case "jobs":
			cfg.Jobs = jobs
		}
	})
	if custom != "" {
		w, h, err := aspect.ParseCustom(custom)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg.Editor.CustomW, cfg.Editor.CustomH = w, h
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if saveCfg != "" {
		if err := cfg.SaveToFile(saveCfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "configuration written to %s\n", saveCfg)
		return
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	opts, err := buildOptions(cfg, portrait, rectStr, gesturesPath, preview)
	if err != nil {
		log.Fatal("invalid arguments", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if suggest {
		opts.detector, err = newDetector(ctx, cfg, log)
		if err != nil {
			log.Fatal("vision backend unavailable", "backend", cfg.Suggest.Backend, "url", cfg.Suggest.URL, "error", err)
		}
	}

	files, err := utils.ExpandInputs(inputs)
	if err != nil {
		log.Fatal("failed to expand inputs", "error", err)
	}
	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		log.Fatal("failed to create output directory", "dir", cfg.Output.Dir, "error", err)
	}

	reports := make([]*types.CropReport, len(files))
	failed := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)
	for i, file := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			jl := log.With("input", file)
			report, err := runJob(gctx, file, opts, jl)
			if err != nil {
				jl.Error("crop failed", "error", err)
				failed[i] = true
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("interrupted", "error", err)
	}

	out := make([]*types.CropReport, 0, len(reports))
	nFailed := 0
	for i, r := range reports {
		if failed[i] || r == nil {
			nFailed++
			continue
		}
		out = append(out, r)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error("failed to write report", "error", err)
	}

	log.Info("done", "cropped", len(out), "failed", nFailed)
	if nFailed > 0 {
		log.Sync()
		os.Exit(1)
	}
}

// buildOptions resolves the settings shared by all jobs
func buildOptions(cfg *config.Config, portrait bool, rectStr, gesturesPath string, preview bool) (*options, error) {
	mode, err := aspect.ParseMode(cfg.Editor.DefaultMode)
	if err != nil {
		return nil, err
	}
	if mode.Kind != aspect.Custom {
		mode.W, mode.H = cfg.Editor.CustomW, cfg.Editor.CustomH
	} else if strings.EqualFold(strings.TrimSpace(cfg.Editor.DefaultMode), "custom") {
		mode = aspect.NewCustom(cfg.Editor.CustomW, cfg.Editor.CustomH)
	}
	if portrait && mode.Kind.IsLandscape() {
		mode.Kind = mode.Kind.Counterpart()
	}

	o := &options{cfg: cfg, mode: mode, preview: preview}

	if rectStr != "" {
		r, err := parseRect(rectStr)
		if err != nil {
			return nil, err
		}
		o.rect = &r
	}

	if gesturesPath != "" {
		s, err := script.Load(gesturesPath)
		if err != nil {
			return nil, err
		}
		o.gestures = s
	}
	return o, nil
}

// parseRect reads "x0,y0,x1,y1"
func parseRect(s string) (geom.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geom.Rect{}, fmt.Errorf("invalid -rect %q: want x0,y0,x1,y1", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Rect{}, fmt.Errorf("invalid -rect %q: %w", s, err)
		}
		v[i] = f
	}
	return geom.R(v[0], v[1], v[2], v[3]), nil
}

// newDetector connects to the configured vision backend
func newDetector(ctx context.Context, cfg *config.Config, log *logger.Logger) (*detection.Detector, error) {
	c, err := newVisionClient(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		return nil, err
	}
	log.Info("vision backend ready", "backend", cfg.Suggest.Backend, "url", cfg.Suggest.URL, "model", cfg.Suggest.Model)
	return detection.NewDetector(c, cfg.Suggest.Model,
		detection.WithPrompt(cfg.Suggest.Prompt),
		detection.WithMargin(cfg.Suggest.Margin),
		detection.WithMinConfidence(cfg.Suggest.MinConfidence),
	), nil
}

func newVisionClient(cfg *config.Config) (client.VisionClient, error) {
	timeout := time.Duration(cfg.Suggest.TimeoutSecs) * time.Second
	switch cfg.Suggest.Backend {
	case "saliency":
		return vision.New(), nil
	case "llamacpp":
		return llamacpp.NewClient(cfg.Suggest.URL, llamacpp.WithTimeout(timeout))
	case "ollama", "":
		return ollama.NewClient(cfg.Suggest.URL, ollama.WithTimeout(timeout))
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.Suggest.Backend)
	}
}
