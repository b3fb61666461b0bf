package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use the usual
// human-readable forms ("2s", "1h30m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	// API Keys
	OpenAIKey string `yaml:"openai_key"`

	// Backend endpoints
	ServerURL    string `yaml:"server_url"`
	InferenceURL string `yaml:"inference_url"`
	EmailURL     string `yaml:"email_url"`
	OpenAIURL    string `yaml:"openai_url"`

	// Summarization model
	SummaryModel string `yaml:"summary_model"`

	// Detection Configuration
	Detection DetectionConfig `yaml:"detection"`

	// Email Configuration
	Email EmailConfig `yaml:"email"`

	// Capture Configuration
	Capture CaptureConfig `yaml:"capture"`

	// Runtime Configuration
	Runtime RuntimeConfig `yaml:"runtime"`
}

// DetectionConfig holds detection threshold configuration
type DetectionConfig struct {
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	ConsecutiveRequired int      `yaml:"consecutive_required"`
	ReasonHoldoff       Duration `yaml:"reason_holdoff"`
	DetectedHold        Duration `yaml:"detected_hold"`
}

// EmailConfig holds alert email configuration
type EmailConfig struct {
	ToAddress      string   `yaml:"to_address"`
	UpdateInterval Duration `yaml:"update_interval"`
	PostDetection  Duration `yaml:"post_detection"`
	ClipGrace      Duration `yaml:"clip_grace"`
}

// CaptureConfig holds frame capture configuration
type CaptureConfig struct {
	FPS          int      `yaml:"fps"`
	ImageQuality float64  `yaml:"image_quality"`
	ClipRotation Duration `yaml:"clip_rotation"`
}

// RuntimeConfig holds runtime configuration
type RuntimeConfig struct {
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
	EnableMetrics     bool   `yaml:"enable_metrics"`
	MetricsAddr       string `yaml:"metrics_addr"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	// Load API key from environment if not in config
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Email.ToAddress == "" {
		cfg.Email.ToAddress = os.Getenv("SENTINELA_EMAIL_TO")
	}

	return &cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	}
	cfg.Email.ToAddress = os.Getenv("SENTINELA_EMAIL_TO")
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080"
	}
	if c.InferenceURL == "" {
		c.InferenceURL = "ws://localhost:8765/infer"
	}
	if c.EmailURL == "" {
		c.EmailURL = "http://localhost:8080/send-email"
	}
	if c.SummaryModel == "" {
		c.SummaryModel = "gpt-4o-mini"
	}
	if c.Detection.ConfidenceThreshold == 0 {
		c.Detection.ConfidenceThreshold = 90
	}
	if c.Detection.ConsecutiveRequired == 0 {
		c.Detection.ConsecutiveRequired = 2
	}
	if c.Detection.ReasonHoldoff == 0 {
		c.Detection.ReasonHoldoff = Duration(2 * time.Second)
	}
	if c.Detection.DetectedHold == 0 {
		c.Detection.DetectedHold = Duration(5 * time.Second)
	}
	if c.Email.PostDetection == 0 {
		c.Email.PostDetection = Duration(4 * time.Second)
	}
	if c.Email.ClipGrace == 0 {
		c.Email.ClipGrace = Duration(5 * time.Second)
	}
	if c.Capture.FPS == 0 {
		c.Capture.FPS = 3
	}
	if c.Capture.ImageQuality == 0 {
		c.Capture.ImageQuality = 0.9
	}
	if c.Capture.ClipRotation == 0 {
		c.Capture.ClipRotation = Duration(5 * time.Second)
	}
	if c.Runtime.ChannelBufferSize == 0 {
		c.Runtime.ChannelBufferSize = 100
	}
	if c.Runtime.MetricsAddr == "" {
		c.Runtime.MetricsAddr = ":9090"
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("openai_key is required for log summarization")
	}

	if c.Capture.ImageQuality <= 0 || c.Capture.ImageQuality > 1 {
		return fmt.Errorf("image_quality must be in (0, 1]")
	}

	if c.Capture.FPS < 1 || c.Capture.FPS > 30 {
		return fmt.Errorf("fps must be between 1 and 30")
	}

	return nil
}
