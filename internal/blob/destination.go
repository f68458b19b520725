package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/dpedu/b2mirror/internal/mirror"
	"github.com/dpedu/b2mirror/internal/utils"
)

// IndexObjectName is the name, relative to the destination prefix, under
// which the tracking index is stored between runs.
const IndexObjectName = ".b2mirror.db"

// DefaultKeep is how many versions of an uploaded object are retained.
const DefaultKeep = 1

type DestinationOption func(*Destination)

// WithKeep sets how many versions of a re-uploaded object are retained.
// Values below 1 are ignored.
func WithKeep(keep int) DestinationOption {
	return func(d *Destination) {
		if keep >= 1 {
			d.keep = keep
		}
	}
}

// WithIndexPath makes the destination carry the local index file at path:
// FetchIndex restores it and Teardown uploads it.
func WithIndexPath(path string) DestinationOption {
	return func(d *Destination) {
		d.indexPath = path
	}
}

func WithPageSize(size int) DestinationOption {
	return func(d *Destination) {
		d.pageSize = size
	}
}

// Destination mirrors files into an ObjectStore below a key prefix.
type Destination struct {
	store     ObjectStore
	prefix    string
	keep      int
	pageSize  int
	indexPath string
	pruner    *mirror.Pruner
}

func NewDestination(store ObjectStore, prefix string, opts ...DestinationOption) *Destination {
	d := &Destination{
		store:    store,
		prefix:   strings.Trim(prefix, "/"),
		keep:     DefaultKeep,
		pageSize: mirror.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pruner = mirror.NewPruner(d, d.pageSize)
	return d
}

func (d *Destination) Prefix() string {
	return d.prefix
}

func (d *Destination) Keep() int {
	return d.keep
}

// Key maps a relative path to its object key.
func (d *Destination) Key(relPath string) string {
	if d.prefix == "" {
		return relPath
	}
	return path.Join(d.prefix, relPath)
}

func (d *Destination) name(key string) string {
	if d.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, d.prefix+"/")
}

// ===================================================================================================

func (d *Destination) Put(ctx context.Context, f *mirror.FileInfo, pruneHistory bool) error {
	if err := d.upload(ctx, f.AbsPath, f.RelPath); err != nil {
		return err
	}
	if !pruneHistory {
		return nil
	}
	if _, err := d.pruner.Prune(ctx, f.RelPath, d.keep); err != nil {
		return err
	}
	return nil
}

func (d *Destination) Purge(ctx context.Context, relPath string) error {
	_, err := d.pruner.Prune(ctx, relPath, 0)
	return err
}

// Prune keeps the newest keep versions of relPath and deletes the rest of
// one listing page. It returns how many versions were deleted.
func (d *Destination) Prune(ctx context.Context, relPath string, keep int) (int, error) {
	return d.pruner.Prune(ctx, relPath, keep)
}

func (d *Destination) upload(ctx context.Context, absPath, relPath string) error {
	file, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", absPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", absPath, err)
	}

	_, err = d.store.PutObject(ctx, &PutObjectParams{
		Key:  d.Key(relPath),
		Size: info.Size(),
		Body: file,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", d.Key(relPath), err)
	}
	return nil
}

// ===================================================================================================

func (d *Destination) ListVersions(ctx context.Context, startName string, max int) ([]mirror.ObjectVersion, error) {
	versions, err := d.store.ListObjectVersions(ctx, &ListVersionsParams{
		Prefix:  d.Key(startName),
		MaxKeys: max,
	})
	if err != nil {
		return nil, err
	}

	out := make([]mirror.ObjectVersion, 0, len(versions))
	for _, v := range versions {
		out = append(out, mirror.ObjectVersion{
			Name:      d.name(v.Key),
			VersionID: v.VersionID,
		})
	}
	return out, nil
}

func (d *Destination) DeleteVersion(ctx context.Context, name, versionID string) error {
	return d.store.DeleteObjectVersion(ctx, d.Key(name), versionID)
}

// ===================================================================================================

// FetchIndex downloads the stored index over the local index path. It
// reports false when the destination holds no index yet, in which case any
// local copy is removed so the run starts from an empty index.
func (d *Destination) FetchIndex(ctx context.Context) (bool, error) {
	if d.indexPath == "" {
		return false, nil
	}

	resp, err := d.store.GetObject(ctx, d.Key(IndexObjectName))
	if errors.Is(err, ErrObjectNotFound) {
		if err := d.discardLocalIndex(); err != nil {
			return false, err
		}
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("fetch index: %w", err)
	}
	defer resp.Body.Close()

	if err := utils.EnsureParent(d.indexPath); err != nil {
		return false, err
	}

	tmp := d.indexPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return false, fmt.Errorf("download index: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return false, err
	}

	// a stale journal would be replayed over the fetched copy
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(d.indexPath + suffix)
	}
	if err := os.Rename(tmp, d.indexPath); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("replace index: %w", err)
	}

	slog.Debug("index fetched", "key", d.Key(IndexObjectName), "size", resp.Size)
	return true, nil
}

func (d *Destination) discardLocalIndex() error {
	for _, suffix := range []string{"", "-wal", "-shm", ".tmp"} {
		if err := os.Remove(d.indexPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("discard local index: %w", err)
		}
	}
	slog.Debug("local index discarded", "path", d.indexPath)
	return nil
}

// Teardown uploads the local index, if one is carried, and drops its
// previous copies.
func (d *Destination) Teardown(ctx context.Context) error {
	if d.indexPath == "" {
		return nil
	}
	if !utils.FileExists(d.indexPath) {
		return nil
	}

	if err := d.upload(ctx, d.indexPath, IndexObjectName); err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	if _, err := d.pruner.Prune(ctx, IndexObjectName, 1); err != nil {
		return fmt.Errorf("prune index: %w", err)
	}
	slog.Debug("index stored", "key", d.Key(IndexObjectName))
	return nil
}

var (
	_ mirror.Destination  = (*Destination)(nil)
	_ mirror.VersionStore = (*Destination)(nil)
)
