// Package capability detects optional conversion backends once at process
// start and exposes the result as a read-only map.
package capability

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"
)

// Name identifies an optional backend
type Name string

const (
	// PDFLibrary is the low-level PDF reader/writer
	PDFLibrary Name = "pdf_library"
	// Rasterizer renders PDF pages to images
	Rasterizer Name = "rasterizer"
	// OCREngine recognises text in images
	OCREngine Name = "ocr_engine"
	// OfficeConverter converts office documents to PDF
	OfficeConverter Name = "office_converter"
	// AudioTranscoder converts between audio formats
	AudioTranscoder Name = "audio_transcoder"
)

// All lists every known capability in probe order
var All = []Name{PDFLibrary, Rasterizer, OCREngine, OfficeConverter, AudioTranscoder}

// Checker answers availability questions. Implementations never do I/O.
type Checker interface {
	IsAvailable(name Name) bool
}

// Capability is one probed backend
type Capability struct {
	Name      Name   `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Registry is the immutable result of probing. Safe for concurrent use
// because nothing mutates it after construction.
type Registry struct {
	entries map[Name]Capability
}

// Probe is a single backend detection function. It returns a short detail
// string (version, path) on success.
type Probe func() (detail string, err error)

// ProbeAll runs each probe once, converting errors and panics into
// available=false, and logs one line per capability
func ProbeAll(logger *logrus.Logger, probes map[Name]Probe, disabled func(Name) bool) *Registry {
	r := &Registry{entries: make(map[Name]Capability, len(probes))}

	names := slices.Sorted(maps.Keys(probes))
	for _, name := range names {
		c := Capability{Name: name}

		switch {
		case disabled != nil && disabled(name):
			c.Detail = "disabled by configuration"
		default:
			detail, err := runProbe(probes[name])
			if err != nil {
				c.Detail = err.Error()
			} else {
				c.Available = true
				c.Detail = detail
			}
		}

		r.entries[name] = c
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"capability": name,
				"available":  c.Available,
				"detail":     c.Detail,
			}).Info("Capability probed")
		}
	}

	return r
}

// runProbe calls p, recovering from panics raised by native bindings
func runProbe(p Probe) (detail string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	if p == nil {
		return "", fmt.Errorf("no probe")
	}
	return p()
}

// NewStatic builds a registry from fixed values, used where probing is not wanted
func NewStatic(available map[Name]bool) *Registry {
	r := &Registry{entries: make(map[Name]Capability, len(available))}
	for name, ok := range available {
		r.entries[name] = Capability{Name: name, Available: ok, Detail: "static"}
	}
	return r
}

// IsAvailable reports whether name was detected. Unknown names are unavailable.
func (r *Registry) IsAvailable(name Name) bool {
	if r == nil {
		return false
	}
	return r.entries[name].Available
}

// Snapshot returns a copy of the availability map
func (r *Registry) Snapshot() map[Name]bool {
	out := make(map[Name]bool, len(r.entries))
	for name, c := range r.entries {
		out[name] = c.Available
	}
	return out
}

// List returns every capability sorted by name
func (r *Registry) List() []Capability {
	out := make([]Capability, 0, len(r.entries))
	for _, name := range slices.Sorted(maps.Keys(r.entries)) {
		out = append(out, r.entries[name])
	}
	return out
}
