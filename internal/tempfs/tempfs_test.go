package tempfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), "fileconv-", nil)
	require.NoError(t, err)
	return m
}

// entries lists what is left in the root, ignoring the sweep lock
func entries(t *testing.T, m *Manager) []string {
	t.Helper()
	dirEntries, err := os.ReadDir(m.Root())
	require.NoError(t, err)
	var names []string
	for _, e := range dirEntries {
		if e.Name() != sweepLockName {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestAcquireNamesAreUnique(t *testing.T) {
	m := newTestManager(t)

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := m.Acquire("req", "in-", ".pdf")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			assert.False(t, seen[r.Path], "duplicate path %s", r.Path)
			seen[r.Path] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for path := range seen {
		name := filepath.Base(path)
		assert.True(t, strings.HasPrefix(name, "fileconv-in-"))
		assert.True(t, strings.HasSuffix(name, ".pdf"))
	}
}

func TestSanitiseKeepsNamesInsideRoot(t *testing.T) {
	m := newTestManager(t)

	r, err := m.Acquire("req", "../../escape/", "/../x")
	require.NoError(t, err)
	assert.Equal(t, m.Root(), filepath.Dir(r.Path))
}

func TestScopeReleasesOnSuccessAndError(t *testing.T) {
	m := newTestManager(t)

	_, err := WithScope(m, "ok", func(s *Scope) (int, error) {
		_, err := s.File("a-", ".txt")
		require.NoError(t, err)
		dir, err := s.Dir("work-")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir.Path, "page.png"), []byte("x"), 0600))
		assert.Len(t, s.Resources(), 2)
		return 1, nil
	})
	require.NoError(t, err)
	assert.Empty(t, entries(t, m))

	boom := errors.New("boom")
	_, err = WithScope(m, "fail", func(s *Scope) (int, error) {
		_, err := s.File("b-", "")
		require.NoError(t, err)
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, entries(t, m))
}

func TestScopeReleasesOnPanic(t *testing.T) {
	m := newTestManager(t)

	assert.Panics(t, func() {
		_, _ = WithScope(m, "panic", func(s *Scope) (int, error) {
			_, err := s.File("c-", "")
			require.NoError(t, err)
			panic("engine crashed")
		})
	})
	assert.Empty(t, entries(t, m))
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	r, err := m.Acquire("req", "", "")
	require.NoError(t, err)
	m.Release(r)
	m.Release(r)
	m.Release(nil)

	_, err = os.Stat(r.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseToleratesAlreadyRemoved(t *testing.T) {
	m := newTestManager(t)

	_, err := WithScope(m, "gone", func(s *Scope) (int, error) {
		r, err := s.File("d-", "")
		require.NoError(t, err)
		require.NoError(t, os.Remove(r.Path))
		return 0, nil
	})
	assert.NoError(t, err)
}

func TestWriteEnforcesLimit(t *testing.T) {
	m := newTestManager(t)

	_, err := WithScope(m, "limit", func(s *Scope) (int, error) {
		r, err := s.Write("in-", ".txt", strings.NewReader("hello"), 5)
		require.NoError(t, err)
		data, err := os.ReadFile(r.Path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		_, err = s.Write("in-", ".txt", strings.NewReader("hello!"), 5)
		return 0, err
	})
	require.Error(t, err)
	assert.True(t, IsSizeLimit(err))
	assert.Empty(t, entries(t, m))
}

func TestSweepRemovesOnlyStalePrefixedEntries(t *testing.T) {
	m := newTestManager(t)
	old := time.Now().Add(-48 * time.Hour)

	stale := filepath.Join(m.Root(), "fileconv-in-stale.pdf")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0600))
	require.NoError(t, os.Chtimes(stale, old, old))

	staleDir := filepath.Join(m.Root(), "fileconv-pdf-stale")
	require.NoError(t, os.Mkdir(staleDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(staleDir, "1.png"), []byte("x"), 0600))
	require.NoError(t, os.Chtimes(staleDir, old, old))

	fresh := filepath.Join(m.Root(), "fileconv-in-fresh.pdf")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0600))

	foreign := filepath.Join(m.Root(), "someone-else.tmp")
	require.NoError(t, os.WriteFile(foreign, []byte("x"), 0600))
	require.NoError(t, os.Chtimes(foreign, old, old))

	removed, err := m.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"fileconv-in-fresh.pdf", "someone-else.tmp"}, entries(t, m))
}
