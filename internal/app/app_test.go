package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dpedu/b2mirror/internal/blob"
	"github.com/dpedu/b2mirror/internal/config"
	"github.com/dpedu/b2mirror/internal/mirror"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	src   string
	store *blob.MemoryClient
	cfg   *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		src:   t.TempDir(),
		store: blob.NewMemoryClient(),
	}
	f.cfg = &config.Config{
		Source:      f.src,
		Destination: "b2://bucket/pre",
		AccessKey:   "key",
		SecretKey:   "secret",
		IndexPath:   filepath.Join(t.TempDir(), "index.db"),
		Workers:     4,
		BatchSize:   2,
	}
	require.NoError(t, f.cfg.Validate())
	return f
}

func (f *fixture) write(rel, body string, mtime time.Time) {
	f.t.Helper()
	abs := filepath.Join(f.src, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(f.t, os.WriteFile(abs, []byte(body), 0o644))
	require.NoError(f.t, os.Chtimes(abs, mtime, mtime))
}

func (f *fixture) remove(rel string) {
	f.t.Helper()
	require.NoError(f.t, os.Remove(filepath.Join(f.src, filepath.FromSlash(rel))))
}

func (f *fixture) sync() (mirror.Stats, error) {
	f.t.Helper()
	a, err := New(f.cfg, WithObjectStore(f.store))
	require.NoError(f.t, err)
	return a.Sync(context.Background())
}

func (f *fixture) index() *mirror.Index {
	f.t.Helper()
	idx := mirror.NewIndex(f.cfg.IndexPath)
	require.NoError(f.t, idx.Open())
	f.t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSync_TwoFileScenario(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "alpha", baseTime)
	f.write("dir/b.txt", "bravo", baseTime)

	stats, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Uploaded)
	assert.Equal(t, int64(10), stats.Bytes)
	assert.Equal(t, []string{"pre/" + blob.IndexObjectName, "pre/a.txt", "pre/dir/b.txt"}, f.store.Keys())
	assert.Equal(t, [][]byte{[]byte("alpha")}, f.store.Versions("pre/a.txt"))

	// second run with nothing changed
	stats, err = f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Uploaded)
	assert.Equal(t, int64(2), stats.Skipped)
	assert.Len(t, f.store.Versions("pre/a.txt"), 1)
	assert.Len(t, f.store.Versions("pre/"+blob.IndexObjectName), 1)

	// a.txt modified, b.txt deleted
	f.write("a.txt", "alpha2", baseTime.Add(10*time.Second))
	f.remove("dir/b.txt")

	stats, err = f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Uploaded)
	assert.Equal(t, int64(1), stats.Purged)
	assert.Equal(t, []string{"pre/" + blob.IndexObjectName, "pre/a.txt"}, f.store.Keys())
	assert.Equal(t, [][]byte{[]byte("alpha2")}, f.store.Versions("pre/a.txt"))

	idx := f.index()
	entry, err := idx.Get("a.txt")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, baseTime.Add(10*time.Second).Unix(), entry.ModTime)
	assert.Equal(t, int64(6), entry.Size)

	gone, err := idx.Get("dir/b.txt")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSync_Idempotent(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"1", "2", "3", "4", "5"} {
		f.write("files/"+name, name, baseTime)
	}

	_, err := f.sync()
	require.NoError(t, err)
	puts := f.store.Puts()

	stats, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Uploaded)
	assert.Equal(t, int64(5), stats.Skipped)
	assert.Equal(t, int64(0), stats.Purged)
	// only the index is stored again
	assert.Equal(t, puts+1, f.store.Puts())
}

func TestSync_ExclusionPurges(t *testing.T) {
	f := newFixture(t)
	f.write("keep.txt", "k", baseTime)
	f.write("logs/app.log", "l", baseTime)

	_, err := f.sync()
	require.NoError(t, err)
	assert.Contains(t, f.store.Keys(), "pre/logs/app.log")

	f.cfg.Excludes = []string{"**/*.log"}
	stats, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Excluded)
	assert.Equal(t, int64(1), stats.Purged)
	assert.NotContains(t, f.store.Keys(), "pre/logs/app.log")
	assert.Contains(t, f.store.Keys(), "pre/keep.txt")
}

func TestSync_ExcludeFile(t *testing.T) {
	f := newFixture(t)
	f.write("a.tmp", "x", baseTime)
	f.write("b.txt", "x", baseTime)

	ignore := filepath.Join(t.TempDir(), "ignore")
	require.NoError(t, os.WriteFile(ignore, []byte("# temp files\n*.tmp\n"), 0o644))
	f.cfg.ExcludeFrom = ignore

	_, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, []string{"pre/" + blob.IndexObjectName, "pre/b.txt"}, f.store.Keys())
}

func TestSync_FailFastSkipsPurge(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "a", baseTime)
	f.write("orphan.txt", "o", baseTime)

	_, err := f.sync()
	require.NoError(t, err)

	f.remove("orphan.txt")
	f.write("a.txt", "a2", baseTime.Add(time.Minute))
	boom := errors.New("boom")
	f.store.SetHooks(blob.MemoryHooks{
		BeforePut: func(key string) error {
			if key == "pre/a.txt" {
				return boom
			}
			return nil
		},
	})

	stats, err := f.sync()
	require.Error(t, err)
	assert.ErrorIs(t, err, mirror.ErrTransfer)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), stats.Purged)
	assert.Contains(t, f.store.Keys(), "pre/orphan.txt")

	// the failed file keeps its old row so the next run retries it
	entry, err := f.index().Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, baseTime.Unix(), entry.ModTime)
}

func TestSync_RestoresIndexFromDestination(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "a", baseTime)
	f.write("b.txt", "b", baseTime)

	_, err := f.sync()
	require.NoError(t, err)

	// a fresh machine has no local cache
	require.NoError(t, os.Remove(f.cfg.IndexPath))

	stats, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Uploaded)
	assert.Equal(t, int64(2), stats.Skipped)
}

func TestSync_EmptyDestinationIgnoresLocalCache(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "a", baseTime)

	_, err := f.sync()
	require.NoError(t, err)
	require.FileExists(t, f.cfg.IndexPath)

	// bucket emptied out of band, local cache still claims a.txt
	f.store = blob.NewMemoryClient()

	stats, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Uploaded)
	assert.Equal(t, int64(0), stats.Skipped)
	assert.Contains(t, f.store.Keys(), "pre/a.txt")
	assert.Contains(t, f.store.Keys(), "pre/"+blob.IndexObjectName)
}

func TestSync_SizeCompare(t *testing.T) {
	f := newFixture(t)
	f.cfg.Compare = mirror.CompareSize
	f.write("a.txt", "abc", baseTime)

	_, err := f.sync()
	require.NoError(t, err)

	// same size, newer mtime: not transferred
	f.write("a.txt", "xyz", baseTime.Add(time.Hour))
	stats, err := f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Uploaded)

	f.write("a.txt", "longer", baseTime.Add(time.Hour))
	stats, err = f.sync()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Uploaded)
}

func TestSync_KeepVersions(t *testing.T) {
	f := newFixture(t)
	f.cfg.Keep = 2
	for i := range 4 {
		f.write("a.txt", string(rune('a'+i)), baseTime.Add(time.Duration(i)*time.Minute))
		_, err := f.sync()
		require.NoError(t, err)
	}
	assert.Equal(t, [][]byte{[]byte("d"), []byte("c")}, f.store.Versions("pre/a.txt"))
}

func TestSync_IndexInsideSource(t *testing.T) {
	f := newFixture(t)
	f.cfg.IndexPath = filepath.Join(f.src, ".cache", "index.db")
	f.write("a.txt", "a", baseTime)

	_, err := f.sync()
	require.NoError(t, err)
	for _, key := range f.store.Keys() {
		assert.NotContains(t, key, ".cache")
	}
}

func TestSync_LockedIndex(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.cfg.IndexPath), 0o755))
	other := flock.New(f.cfg.IndexPath + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	_, err = f.sync()
	assert.ErrorIs(t, err, ErrIndexLocked)
	assert.Empty(t, f.store.Keys())
}

func TestSync_PathTooLong(t *testing.T) {
	f := newFixture(t)
	long := ""
	for len(long) < mirror.MaxPathLength {
		long += "d123456789/"
	}
	// individual components stay under the filesystem's name limit
	f.write(long+"file", "x", baseTime)

	_, err := f.sync()
	assert.ErrorIs(t, err, mirror.ErrPrecondition)
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "1", baseTime)
	_, err := f.sync()
	require.NoError(t, err)

	ctx := context.Background()
	for _, body := range []string{"2", "3", "4"} {
		_, err := f.store.PutObject(ctx, &blob.PutObjectParams{Key: "pre/a.txt", Body: strings.NewReader(body)})
		require.NoError(t, err)
	}

	a, err := New(f.cfg, WithObjectStore(f.store))
	require.NoError(t, err)

	deleted, err := a.Prune(ctx, "a.txt", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, [][]byte{[]byte("4"), []byte("3")}, f.store.Versions("pre/a.txt"))

	deleted, err = a.Prune(ctx, "a.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NotContains(t, f.store.Keys(), "pre/a.txt")

	_, err = a.Prune(ctx, "a.txt", -1)
	assert.ErrorIs(t, err, mirror.ErrConfig)
}

func TestNewRequiresValidatedConfig(t *testing.T) {
	_, err := New(&config.Config{})
	assert.ErrorIs(t, err, mirror.ErrConfig)
}
