package mirror

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVersionStore keeps versions per name, newest first.
type fakeVersionStore struct {
	mu        sync.Mutex
	versions  map[string][]string
	listErr   error
	deleteErr error
	deleted   []string
}

func newFakeVersionStore() *fakeVersionStore {
	return &fakeVersionStore{versions: make(map[string][]string)}
}

func (s *fakeVersionStore) add(name string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// ids given oldest first
	for _, id := range ids {
		s.versions[name] = append([]string{id}, s.versions[name]...)
	}
}

func (s *fakeVersionStore) ListVersions(_ context.Context, startName string, max int) ([]ObjectVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		if strings.HasPrefix(name, startName) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []ObjectVersion
	for _, name := range names {
		for _, id := range s.versions[name] {
			if len(out) == max {
				return out, nil
			}
			out = append(out, ObjectVersion{Name: name, VersionID: id})
		}
	}
	return out, nil
}

func (s *fakeVersionStore) DeleteVersion(_ context.Context, name, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	ids := s.versions[name]
	for i, id := range ids {
		if id == versionID {
			s.versions[name] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.versions[name]) == 0 {
		delete(s.versions, name)
	}
	s.deleted = append(s.deleted, name+"@"+versionID)
	return nil
}

func TestPrunerKeepsNewest(t *testing.T) {
	store := newFakeVersionStore()
	store.add("a.txt", "v1", "v2", "v3")

	n, err := NewPruner(store, 0).Prune(context.Background(), "a.txt", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"v3"}, store.versions["a.txt"])
}

func TestPrunerKeepZeroDeletesAll(t *testing.T) {
	store := newFakeVersionStore()
	store.add("a.txt", "v1", "v2")

	n, err := NewPruner(store, 0).Prune(context.Background(), "a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotContains(t, store.versions, "a.txt")
}

func TestPrunerStopsAtNextName(t *testing.T) {
	store := newFakeVersionStore()
	store.add("a.txt", "a1", "a2")
	store.add("a.txt.bak", "b1", "b2")

	n, err := NewPruner(store, 0).Prune(context.Background(), "a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b2", "b1"}, store.versions["a.txt.bak"])
}

func TestPrunerNothingToDo(t *testing.T) {
	store := newFakeVersionStore()
	store.add("a.txt", "v1")

	n, err := NewPruner(store, 0).Prune(context.Background(), "a.txt", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = NewPruner(store, 0).Prune(context.Background(), "missing", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrunerPageCap(t *testing.T) {
	store := newFakeVersionStore()
	store.add("a", "1", "2", "3", "4", "5", "6")
	p := NewPruner(store, 4)

	n, err := p.Prune(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.versions["a"], 3)

	// a second call finishes the job
	n, err = p.Prune(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"6"}, store.versions["a"])
}

func TestPrunerErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	store := newFakeVersionStore()
	store.add("a", "1", "2")
	store.listErr = boom
	_, err := NewPruner(store, 0).Prune(ctx, "a", 0)
	assert.ErrorIs(t, err, boom)

	store.listErr = nil
	store.deleteErr = boom
	n, err := NewPruner(store, 0).Prune(ctx, "a", 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)

	_, err = NewPruner(store, 0).Prune(ctx, "a", -1)
	assert.ErrorIs(t, err, ErrPrecondition)
}
