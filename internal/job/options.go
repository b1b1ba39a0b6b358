package job

import (
	"strconv"
	"strings"
)

// Options carries recognised option values keyed by their wire names
type Options map[string]string

// Recognised option keys
const (
	OptPageRanges     = "page_ranges"
	OptPages          = "pages"
	OptQuality        = "quality"
	OptUserPassword   = "user_password"
	OptOwnerPassword  = "owner_password"
	OptPassword       = "password"
	OptRotation       = "rotation"
	OptWatermarkText  = "watermark_text"
	OptPosition       = "position"
	OptOpacity        = "opacity"
	OptFormat         = "format"
	OptDPI            = "dpi"
	OptLanguage       = "language"
	OptOutputName     = "output_name"
	OptCustomFilename = "custom_filename"
	OptBitrate        = "bitrate"
)

// Get returns the trimmed value for key, or "" when absent
func (o Options) Get(key string) string {
	if o == nil {
		return ""
	}
	return strings.TrimSpace(o[key])
}

// GetDefault returns the value for key, or def when it is absent or blank
func (o Options) GetDefault(key, def string) string {
	if v := o.Get(key); v != "" {
		return v
	}
	return def
}

// Int parses key as an integer. ok is false when the key is absent.
func (o Options) Int(key string) (value int, ok bool, err error) {
	raw := o.Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, InvalidOptions("%s must be an integer, got %q", key, raw)
	}
	return v, true, nil
}

// Float parses key as a float. ok is false when the key is absent.
func (o Options) Float(key string) (value float64, ok bool, err error) {
	raw := o.Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, InvalidOptions("%s must be a number, got %q", key, raw)
	}
	return v, true, nil
}

// Clone returns a copy so callers cannot mutate a constructed request
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// FromArgs builds Options from loosely typed arguments (e.g. decoded JSON),
// keeping only string, number and boolean values
func FromArgs(args map[string]any) Options {
	out := make(Options, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out
}
