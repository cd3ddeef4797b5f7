package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Detector DetectorConfig
	Engine   EngineConfig
	Web      WebConfig
	Defaults DefaultsConfig
}

type DetectorConfig struct {
	URL string // face detection sidecar, defaults to http://localhost:8000
}

type EngineConfig struct {
	OutputDir  string  // root directory for annotated output, one subdirectory per job
	Threshold  float64 // default similarity threshold, overridable per request
	MaxSeconds int     // default wall-clock budget per batch run
}

type WebConfig struct {
	Port int
	Host string
}

// DefaultsConfig holds settings loaded from the embedded defaults.yaml.
type DefaultsConfig struct {
	Annotation AnnotationConfig `yaml:"annotation"`
	Images     ImagesConfig     `yaml:"images"`
}

type AnnotationConfig struct {
	Color     string `yaml:"color"` // hex RGB, e.g. "#00ff00"
	LineWidth int    `yaml:"line_width"`
	Padding   int    `yaml:"padding"`
}

type ImagesConfig struct {
	Extensions []string `yaml:"extensions"` // lowercase, with leading dot
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable, falling back to a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL: envString("DETECTOR_URL", "http://localhost:8000"),
		},
		Engine: EngineConfig{
			OutputDir:  envString("OUTPUT_DIR", "output"),
			Threshold:  envFloat("SIM_THRESHOLD", 0.7),
			MaxSeconds: envInt("MAX_SECONDS", 300),
		},
		Web: WebConfig{
			Port: envInt("WEB_PORT", 8080),
			Host: envString("WEB_HOST", "0.0.0.0"),
		},
		Defaults: defaults,
	}
}
