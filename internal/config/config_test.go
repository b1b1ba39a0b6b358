package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config path at dir and runs from there so neither a
// home config nor a stray .env leaks into the test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "config.yaml"))
	t.Chdir(dir)
	for _, key := range []string{
		TempRootEnvVar, MaxFileSizeEnvVar, DisabledCapabilitiesEnvVar, TesseractPathEnvVar,
		SofficePathEnvVar, FFmpegPathEnvVar, FFmpegArgsEnvVar, OCRLanguageEnvVar,
		StaleAfterEnvVar, PDFValidationEnvVar,
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, DefaultStaleAfter, cfg.StaleAfter)
	assert.Equal(t, "eng", cfg.OCRLanguage)
	assert.Equal(t, PDFValidationRelaxed, cfg.PDFValidation)
	assert.NotEmpty(t, cfg.TempRoot)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)

	yaml := `
temp_root: /var/tmp/fileconv
max_file_size: 1024
disabled_capabilities: [ocr_engine]
ocr_language: deu
stale_after: 2h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600))

	t.Setenv(OCRLanguageEnvVar, "fra")
	t.Setenv(FFmpegArgsEnvVar, `-hide_banner -metadata "title=My Song"`)
	t.Setenv(DisabledCapabilitiesEnvVar, "rasterizer, audio-transcoder")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/fileconv", cfg.TempRoot)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
	assert.Equal(t, 2*time.Hour, cfg.StaleAfter)
	assert.Equal(t, "fra", cfg.OCRLanguage)
	assert.Equal(t, []string{"-hide_banner", "-metadata", "title=My Song"}, cfg.FFmpegArgs)

	assert.True(t, cfg.IsCapabilityDisabled("rasterizer"))
	assert.True(t, cfg.IsCapabilityDisabled("audio_transcoder"))
	assert.False(t, cfg.IsCapabilityDisabled("ocr_engine"), "env replaces the file list")
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FILECONV_PDF_VALIDATION=strict\n"), 0600))
	// godotenv never overrides a set variable, so unset the blank one
	require.NoError(t, os.Unsetenv(PDFValidationEnvVar))
	t.Cleanup(func() { _ = os.Unsetenv(PDFValidationEnvVar) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, PDFValidationStrict, cfg.PDFValidation)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad size", env: map[string]string{MaxFileSizeEnvVar: "big"}},
		{name: "zero size", env: map[string]string{MaxFileSizeEnvVar: "0"}},
		{name: "bad duration", env: map[string]string{StaleAfterEnvVar: "soon"}},
		{name: "bad validation", env: map[string]string{PDFValidationEnvVar: "paranoid"}},
		{name: "unbalanced quotes", env: map[string]string{FFmpegArgsEnvVar: `-metadata "title`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("max_file_size: [1"), 0600))

	_, err := Load()
	assert.Error(t, err)
}
