package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/menta2k/image-cropper/pkg/aspect"
)

// EnvPrefix prefixes every environment override, e.g. IMAGECROPPER_OUTPUT_QUALITY.
const EnvPrefix = "IMAGECROPPER"

// Config holds the application configuration
type Config struct {
	Editor  EditorConfig  `json:"editor" envconfig:"EDITOR"`
	Output  OutputConfig  `json:"output" envconfig:"OUTPUT"`
	Preview PreviewConfig `json:"preview" envconfig:"PREVIEW"`
	Suggest SuggestConfig `json:"suggest" envconfig:"SUGGEST"`
	Log     LogConfig     `json:"log" envconfig:"LOG"`
	Jobs    int           `json:"jobs" envconfig:"JOBS"`
}

// EditorConfig holds crop interaction settings
type EditorConfig struct {
	HandleTolerance float64 `json:"handle_tolerance" envconfig:"HANDLE_TOLERANCE"`
	DefaultMode     string  `json:"default_mode" envconfig:"DEFAULT_MODE"`
	CustomW         int     `json:"custom_w" envconfig:"CUSTOM_W"`
	CustomH         int     `json:"custom_h" envconfig:"CUSTOM_H"`
	MinImageSize    int     `json:"min_image_size" envconfig:"MIN_IMAGE_SIZE"`
}

// OutputConfig holds configuration for exported crops
type OutputConfig struct {
	Format   string `json:"format" envconfig:"FORMAT"`
	Quality  int    `json:"quality" envconfig:"QUALITY"`
	Lossless bool   `json:"lossless" envconfig:"LOSSLESS"`
	Dir      string `json:"dir" envconfig:"DIR"`
	Prefix   string `json:"prefix" envconfig:"PREFIX"`
	Suffix   string `json:"suffix" envconfig:"SUFFIX"`
}

// PreviewConfig controls the rendered crop overlay
type PreviewConfig struct {
	DimAlpha     float64 `json:"dim_alpha" envconfig:"DIM_ALPHA"`
	HandleRadius float64 `json:"handle_radius" envconfig:"HANDLE_RADIUS"`
	StrokeWidth  float64 `json:"stroke_width" envconfig:"STROKE_WIDTH"`
	Label        bool    `json:"label" envconfig:"LABEL"`
	FontPath     string  `json:"font_path" envconfig:"FONT_PATH"`
	FontSize     float64 `json:"font_size" envconfig:"FONT_SIZE"`
}

// SuggestConfig holds the vision model backend used for crop suggestions
type SuggestConfig struct {
	Backend     string `json:"backend" envconfig:"BACKEND"`
	URL         string `json:"url" envconfig:"URL"`
	Model       string `json:"model" envconfig:"MODEL"`
	Prompt      string `json:"prompt,omitempty" envconfig:"PROMPT"`
	SendFormat  string `json:"send_format" envconfig:"SEND_FORMAT"`
	SendSize    int    `json:"send_size" envconfig:"SEND_SIZE"`
	SendQuality int    `json:"send_quality" envconfig:"SEND_QUALITY"`
	TimeoutSecs int    `json:"timeout_secs" envconfig:"TIMEOUT_SECS"`

	Margin        float64 `json:"margin" envconfig:"MARGIN"`
	MinConfidence float64 `json:"min_confidence" envconfig:"MIN_CONFIDENCE"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Mode string `json:"mode" envconfig:"MODE"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			HandleTolerance: 10,
			DefaultMode:     "free",
			CustomW:         4,
			CustomH:         3,
			MinImageSize:    1,
		},
		Output: OutputConfig{
			Format:  "jpg",
			Quality: 90,
			Dir:     "./out",
			Suffix:  "_cropped",
		},
		Preview: PreviewConfig{
			DimAlpha:     150.0 / 255.0,
			HandleRadius: 6,
			StrokeWidth:  1,
			Label:        true,
			FontSize:     14,
		},
		Suggest: SuggestConfig{
			Backend:     "ollama",
			URL:         "http://localhost:11434",
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
			TimeoutSecs: 300,

			Margin:        0.1,
			MinConfidence: 0.25,
		},
		Log: LogConfig{
			Mode: "dev",
		},
		Jobs: 4,
	}
}

// Load returns the defaults, overlaid with filename when it is not empty,
// then with environment overrides.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from IMAGECROPPER_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Editor.HandleTolerance <= 0 {
		return fmt.Errorf("editor.handle_tolerance must be positive")
	}

	if _, err := aspect.ParseMode(c.Editor.DefaultMode); err != nil {
		return fmt.Errorf("editor.default_mode: %w", err)
	}

	if c.Editor.CustomW < aspect.MinTerm || c.Editor.CustomW > aspect.MaxTerm ||
		c.Editor.CustomH < aspect.MinTerm || c.Editor.CustomH > aspect.MaxTerm {
		return fmt.Errorf("editor.custom_w and editor.custom_h must be between %d and %d", aspect.MinTerm, aspect.MaxTerm)
	}

	if c.Editor.MinImageSize < 1 {
		return fmt.Errorf("editor.min_image_size must be positive")
	}

	switch strings.ToLower(c.Output.Format) {
	case "jpg", "jpeg", "png", "bmp", "webp":
	default:
		return fmt.Errorf("output.format must be one of jpg, png, bmp, webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Preview.DimAlpha < 0 || c.Preview.DimAlpha > 1 {
		return fmt.Errorf("preview.dim_alpha must be between 0 and 1")
	}

	if c.Preview.HandleRadius < 0 || c.Preview.StrokeWidth < 0 || c.Preview.FontSize < 0 {
		return fmt.Errorf("preview.handle_radius, preview.stroke_width and preview.font_size cannot be negative")
	}

	switch c.Suggest.Backend {
	case "ollama", "llamacpp", "saliency":
	default:
		return fmt.Errorf("suggest.backend must be ollama, llamacpp or saliency")
	}

	if c.Suggest.SendQuality < 1 || c.Suggest.SendQuality > 100 {
		return fmt.Errorf("suggest.send_quality must be between 1 and 100")
	}

	if c.Suggest.Margin < 0 {
		return fmt.Errorf("suggest.margin cannot be negative")
	}

	if c.Suggest.MinConfidence < 0 || c.Suggest.MinConfidence > 1 {
		return fmt.Errorf("suggest.min_confidence must be between 0 and 1")
	}

	if c.Suggest.SendSize < 0 {
		return fmt.Errorf("suggest.send_size cannot be negative")
	}

	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-cropper", "config.json")
}
