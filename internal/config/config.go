package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxFileSize is the default per-input size limit (200MB)
	DefaultMaxFileSize = int64(200 * 1024 * 1024)

	// DefaultStaleAfter is how old a leftover temp resource must be before the startup sweep removes it
	DefaultStaleAfter = 24 * time.Hour

	// DefaultOCRLanguage is the tesseract language used when a request names none
	DefaultOCRLanguage = "eng"

	// TempPrefix marks every temp resource this process creates
	TempPrefix = "fileconv-"

	ConfigPathEnvVar           = "FILECONV_CONFIG"
	TempRootEnvVar             = "FILECONV_TEMP_ROOT"
	MaxFileSizeEnvVar          = "FILECONV_MAX_FILE_SIZE"
	DisabledCapabilitiesEnvVar = "FILECONV_DISABLED_CAPABILITIES"
	TesseractPathEnvVar        = "FILECONV_TESSERACT_PATH"
	SofficePathEnvVar          = "FILECONV_SOFFICE_PATH"
	FFmpegPathEnvVar           = "FILECONV_FFMPEG_PATH"
	FFmpegArgsEnvVar           = "FILECONV_FFMPEG_ARGS"
	OCRLanguageEnvVar          = "FILECONV_OCR_LANGUAGE"
	StaleAfterEnvVar           = "FILECONV_STALE_AFTER"
	PDFValidationEnvVar        = "FILECONV_PDF_VALIDATION"
)

// PDFValidation selects how strictly pdfcpu validates documents it reads
type PDFValidation string

const (
	PDFValidationRelaxed PDFValidation = "relaxed"
	PDFValidationStrict  PDFValidation = "strict"
)

// Config holds the settings for the conversion core
type Config struct {
	// TempRoot is the shared directory holding every request's temp resources
	TempRoot string `yaml:"temp_root"`

	// MaxFileSize is the per-input size limit in bytes
	MaxFileSize int64 `yaml:"max_file_size"`

	// DisabledCapabilities forces the named capabilities to be reported absent
	DisabledCapabilities []string `yaml:"disabled_capabilities"`

	// External tool locations; empty means look up on PATH
	TesseractPath string `yaml:"tesseract_path"`
	SofficePath   string `yaml:"soffice_path"`
	FFmpegPath    string `yaml:"ffmpeg_path"`

	// FFmpegArgs are extra arguments placed before the output file
	FFmpegArgs []string `yaml:"ffmpeg_args"`

	OCRLanguage   string        `yaml:"ocr_language"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	PDFValidation PDFValidation `yaml:"pdf_validation"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		TempRoot:      filepath.Join(os.TempDir(), "mcp-fileconv"),
		MaxFileSize:   DefaultMaxFileSize,
		FFmpegArgs:    []string{"-hide_banner", "-loglevel", "error"},
		OCRLanguage:   DefaultOCRLanguage,
		StaleAfter:    DefaultStaleAfter,
		PDFValidation: PDFValidationRelaxed,
	}
}

// Load builds the configuration: defaults, then the YAML file (if any), then
// a .env file in the working directory, then environment variables
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFile(configPath()); err != nil {
		return nil, err
	}

	// .env never overrides variables that are already set
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath returns the YAML config location
func configPath() string {
	if customPath := os.Getenv(ConfigPathEnvVar); customPath != "" {
		return customPath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".mcp-fileconv", "config.yaml")
}

// loadFile overlays values from a YAML file; a missing file is not an error
func (c *Config) loadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv(TempRootEnvVar); v != "" {
		c.TempRoot = v
	}

	if v := os.Getenv(MaxFileSizeEnvVar); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", MaxFileSizeEnvVar, err)
		}
		c.MaxFileSize = size
	}

	if v := os.Getenv(DisabledCapabilitiesEnvVar); v != "" {
		c.DisabledCapabilities = splitList(v)
	}

	if v := os.Getenv(TesseractPathEnvVar); v != "" {
		c.TesseractPath = v
	}
	if v := os.Getenv(SofficePathEnvVar); v != "" {
		c.SofficePath = v
	}
	if v := os.Getenv(FFmpegPathEnvVar); v != "" {
		c.FFmpegPath = v
	}

	if v := os.Getenv(FFmpegArgsEnvVar); v != "" {
		args, err := shlex.Split(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", FFmpegArgsEnvVar, err)
		}
		c.FFmpegArgs = args
	}

	if v := os.Getenv(OCRLanguageEnvVar); v != "" {
		c.OCRLanguage = strings.TrimSpace(v)
	}

	if v := os.Getenv(StaleAfterEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", StaleAfterEnvVar, err)
		}
		c.StaleAfter = d
	}

	if v := os.Getenv(PDFValidationEnvVar); v != "" {
		c.PDFValidation = PDFValidation(strings.ToLower(strings.TrimSpace(v)))
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TempRoot == "" {
		return fmt.Errorf("temp root is required")
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be greater than 0")
	}

	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after duration must be greater than 0")
	}

	if c.OCRLanguage == "" {
		return fmt.Errorf("an OCR language must be specified")
	}

	switch c.PDFValidation {
	case PDFValidationRelaxed, PDFValidationStrict:
	default:
		return fmt.Errorf("pdf validation must be %q or %q, got %q", PDFValidationRelaxed, PDFValidationStrict, c.PDFValidation)
	}

	return nil
}

// IsCapabilityDisabled reports whether name was switched off by configuration.
// Names are compared case-insensitively with hyphens and underscores equivalent.
func (c *Config) IsCapabilityDisabled(name string) bool {
	want := normaliseName(name)
	for _, disabled := range c.DisabledCapabilities {
		if normaliseName(disabled) == want {
			return true
		}
	}
	return false
}

func normaliseName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}

func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
