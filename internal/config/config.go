// Package config handles platform configuration.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all platform settings. Pipeline thresholds are tuning knobs,
// not structural invariants; defaults reflect field calibration.
type Config struct {
	// Server
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Verification backend
	VerifyMode    string        `envconfig:"VERIFY_MODE" default:"http"` // http or local
	VerifyURL     string        `envconfig:"VERIFY_URL" default:"http://localhost:5005"`
	VerifyTimeout time.Duration `envconfig:"VERIFY_TIMEOUT" default:"0"` // 0 disables the per-call deadline
	VerifyRetries int           `envconfig:"VERIFY_RETRIES" default:"0"`
	DatabaseURL   string        `envconfig:"DATABASE_URL" default:""`

	// Target identity for the session
	EmployeeID string `envconfig:"EMPLOYEE_ID" default:""`

	// Face analysis thresholds
	MaxRollDegrees float64 `envconfig:"MAX_ROLL_DEGREES" default:"15"`
	MaxYawDegrees  float64 `envconfig:"MAX_YAW_DEGREES" default:"15"`
	MinBrightness  float64 `envconfig:"MIN_BRIGHTNESS" default:"0.25"`
	MaxBrightness  float64 `envconfig:"MAX_BRIGHTNESS" default:"0.85"`
	MinSharpness   float64 `envconfig:"MIN_SHARPNESS" default:"0.2"`

	// Frame collection window
	CollectWindow    time.Duration `envconfig:"COLLECT_WINDOW" default:"800ms"`
	QualityHighWater float64       `envconfig:"QUALITY_HIGH_WATER" default:"0.9"`

	// Session
	SessionTimeout time.Duration `envconfig:"SESSION_TIMEOUT" default:"0"` // 0 disables

	// Models
	OnnxLibPath       string `envconfig:"ONNX_LIB_PATH" default:""` // empty uses the default search path
	DetectorModelPath string `envconfig:"DETECTOR_MODEL_PATH" default:"models/detector.onnx"`
	EmbedderModelPath string `envconfig:"EMBEDDER_MODEL_PATH" default:"models/embedder.onnx"`
	EmbeddingDim      int    `envconfig:"EMBEDDING_DIM" default:"512"`

	// Camera replay source (development)
	ReplayDir string  `envconfig:"REPLAY_DIR" default:""`
	ReplayFPS float64 `envconfig:"REPLAY_FPS" default:"30"`

	// Duplicate-frame triage
	DedupEnabled     bool `envconfig:"DEDUP_ENABLED" default:"true"`
	DedupMaxDistance int  `envconfig:"DEDUP_MAX_DISTANCE" default:"3"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.QualityHighWater <= 0 || c.QualityHighWater > 1 {
		return fmt.Errorf("QUALITY_HIGH_WATER must be in (0,1], got %v", c.QualityHighWater)
	}
	if c.CollectWindow <= 0 {
		return fmt.Errorf("COLLECT_WINDOW must be positive, got %v", c.CollectWindow)
	}
	if c.MinBrightness >= c.MaxBrightness {
		return fmt.Errorf("brightness band invalid: [%v, %v]", c.MinBrightness, c.MaxBrightness)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	switch c.VerifyMode {
	case "http", "local":
	default:
		return fmt.Errorf("VERIFY_MODE must be http or local, got %q", c.VerifyMode)
	}
	return nil
}

// IsDevelopment reports whether the platform runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
