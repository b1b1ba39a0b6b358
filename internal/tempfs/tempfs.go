// Package tempfs manages per-request temporary files and directories under a
// shared root. Every resource gets a collision-free name and is released no
// later than the end of the scope that acquired it.
package tempfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind distinguishes file and directory resources
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "directory"
	}
	return "file"
}

// Resource is one temp file or directory owned by a single scope
type Resource struct {
	Path  string
	Kind  Kind
	Owner string

	released bool
}

// Manager creates resources under Root. It holds no per-request state, so one
// Manager is shared by all concurrent requests.
type Manager struct {
	root   string
	prefix string
	logger *logrus.Logger
}

// NewManager ensures root exists and returns a Manager that names every
// resource with namePrefix
func NewManager(root, namePrefix string, logger *logrus.Logger) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("temp root is required")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create temp root %s: %w", root, err)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Manager{root: root, prefix: namePrefix, logger: logger}, nil
}

// Root returns the shared temp root
func (m *Manager) Root() string {
	return m.root
}

// name builds {managerPrefix}{prefix}{uuid}{suffix}; the random 128-bit
// token keeps concurrent requests from aliasing a path
func (m *Manager) name(prefix, suffix string) string {
	return m.prefix + sanitise(prefix) + uuid.NewString() + sanitise(suffix)
}

// Acquire creates an empty file and returns it as a resource. The file is
// created with O_EXCL so an existing path is never reused.
func (m *Manager) Acquire(owner, prefix, suffix string) (*Resource, error) {
	path := filepath.Join(m.root, m.name(prefix, suffix))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"path":  path,
		"owner": owner,
	}).Debug("Acquired temp file")
	return &Resource{Path: path, Kind: KindFile, Owner: owner}, nil
}

// AcquireDir creates a uniquely named directory
func (m *Manager) AcquireDir(owner, prefix string) (*Resource, error) {
	path := filepath.Join(m.root, m.name(prefix, ""))
	if err := os.Mkdir(path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"path":  path,
		"owner": owner,
	}).Debug("Acquired temp directory")
	return &Resource{Path: path, Kind: KindDir, Owner: owner}, nil
}

// Release removes the resource. Failures are logged and never returned:
// cleanup must not mask the outcome of the work that used the resource.
func (m *Manager) Release(r *Resource) {
	if r == nil || r.released {
		return
	}
	r.released = true

	var err error
	if r.Kind == KindDir {
		err = os.RemoveAll(r.Path)
	} else {
		err = os.Remove(r.Path)
	}

	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"path":  r.Path,
			"kind":  r.Kind.String(),
			"owner": r.Owner,
		}).Warn("Failed to release temp resource")
		return
	}
	m.logger.WithField("path", r.Path).Debug("Released temp resource")
}

// Scope tracks the resources of one request so they can be released together
type Scope struct {
	manager *Manager
	owner   string

	mu        sync.Mutex
	resources []*Resource
}

// NewScope starts a scope for owner. Callers must call Close; WithScope does
// that automatically.
func (m *Manager) NewScope(owner string) *Scope {
	if owner == "" {
		owner = uuid.NewString()
	}
	return &Scope{manager: m, owner: owner}
}

// Owner returns the request identifier the scope was created for
func (s *Scope) Owner() string {
	return s.owner
}

// File acquires a temp file tracked by the scope
func (s *Scope) File(prefix, suffix string) (*Resource, error) {
	r, err := s.manager.Acquire(s.owner, prefix, suffix)
	if err != nil {
		return nil, err
	}
	s.track(r)
	return r, nil
}

// Dir acquires a temp directory tracked by the scope
func (s *Scope) Dir(prefix string) (*Resource, error) {
	r, err := s.manager.AcquireDir(s.owner, prefix)
	if err != nil {
		return nil, err
	}
	s.track(r)
	return r, nil
}

// Write materialises content into a new tracked temp file
func (s *Scope) Write(prefix, suffix string, content io.Reader, limit int64) (*Resource, error) {
	r, err := s.File(prefix, suffix)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(r.Path, os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open temp file: %w", err)
	}

	src := content
	if limit > 0 {
		src = io.LimitReader(content, limit+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if limit > 0 && n > limit {
		return nil, &SizeLimitError{Limit: limit}
	}
	return r, nil
}

// Resources returns a copy of the tracked resources
func (s *Scope) Resources() []*Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

func (s *Scope) track(r *Resource) {
	s.mu.Lock()
	s.resources = append(s.resources, r)
	s.mu.Unlock()
}

// Close releases every tracked resource in reverse acquisition order
func (s *Scope) Close() {
	s.mu.Lock()
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()

	for i := len(resources) - 1; i >= 0; i-- {
		s.manager.Release(resources[i])
	}
}

// WithScope runs work inside a fresh scope and releases the scope's
// resources on every exit path, including a panic in work
func WithScope[R any](m *Manager, owner string, work func(*Scope) (R, error)) (R, error) {
	s := m.NewScope(owner)
	defer s.Close()
	return work(s)
}

// SizeLimitError reports an input larger than the configured limit
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("input exceeds the maximum size of %d bytes", e.Limit)
}

// IsSizeLimit reports whether err is a SizeLimitError
func IsSizeLimit(err error) bool {
	var target *SizeLimitError
	return errors.As(err, &target)
}

// sanitise keeps prefixes and suffixes to a conservative character set so a
// client-supplied fragment cannot escape the temp root
func sanitise(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
