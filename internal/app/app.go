// Package app assembles a sync run from a validated config: it picks the
// object store, restores the index, builds the source and hands everything
// to a mirror.Manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dpedu/b2mirror/internal/blob"
	"github.com/dpedu/b2mirror/internal/config"
	"github.com/dpedu/b2mirror/internal/mirror"
	"github.com/dpedu/b2mirror/internal/utils"
)

type App struct {
	config *config.Config
	store  blob.ObjectStore
}

type Option func(*App)

// WithObjectStore replaces the S3 client derived from the config.
func WithObjectStore(store blob.ObjectStore) Option {
	return func(a *App) {
		a.store = store
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil || cfg.DestLoc == nil {
		return nil, fmt.Errorf("%w: config not validated", mirror.ErrConfig)
	}
	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *App) objectStore(ctx context.Context) (blob.ObjectStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s3cfg, err := a.config.S3Config()
	if err != nil {
		return nil, err
	}
	client, err := blob.NewS3ClientWithConfig(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mirror.ErrConfig, err)
	}
	a.store = client
	return client, nil
}

// Sync mirrors the source tree into the destination once.
func (a *App) Sync(ctx context.Context) (mirror.Stats, error) {
	cfg := a.config
	if cfg.SourceLoc == nil {
		return mirror.Stats{}, fmt.Errorf("%w: no source", mirror.ErrConfig)
	}

	slog.Info("b2mirror sync start",
		"source", cfg.SourceLoc,
		"destination", cfg.DestLoc,
		"index", cfg.IndexPath,
		"workers", cfg.Workers,
		"compare", cfg.Compare,
		"keep", cfg.Keep,
		"access_key", utils.MaskSecret(cfg.AccessKey),
	)

	detector, err := mirror.NewChangeDetector(cfg.Compare)
	if err != nil {
		return mirror.Stats{}, err
	}

	excludes, err := mirror.NewExcludeList(append([]string{blob.IndexObjectName}, cfg.Excludes...)...)
	if err != nil {
		return mirror.Stats{}, err
	}
	if cfg.ExcludeFrom != "" {
		if err := excludes.LoadFile(cfg.ExcludeFrom); err != nil {
			return mirror.Stats{}, err
		}
	}

	store, err := a.objectStore(ctx)
	if err != nil {
		return mirror.Stats{}, err
	}

	lock := newIndexLock(cfg.IndexPath)
	if err := lock.Lock(); err != nil {
		return mirror.Stats{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("unlock index", "error", err)
		}
	}()

	// the index may live inside the tree being mirrored
	source, err := mirror.NewLocalSource(cfg.SourceLoc.Path,
		cfg.IndexPath,
		cfg.IndexPath+"-wal",
		cfg.IndexPath+"-shm",
		cfg.IndexPath+".tmp",
		lock.Path(),
	)
	if err != nil {
		return mirror.Stats{}, err
	}

	dest := blob.NewDestination(store, cfg.DestLoc.Prefix,
		blob.WithKeep(cfg.Keep),
		blob.WithIndexPath(cfg.IndexPath),
	)

	found, err := dest.FetchIndex(ctx)
	if err != nil {
		return mirror.Stats{}, fmt.Errorf("%w: %w", mirror.ErrIndex, err)
	}
	if found {
		slog.Info("restored index from destination", "key", dest.Key(blob.IndexObjectName))
	} else {
		slog.Info("no index at destination, starting fresh")
	}

	idx := mirror.NewIndex(cfg.IndexPath)
	if err := idx.Open(); err != nil {
		return mirror.Stats{}, err
	}

	manager := mirror.NewManager(source, dest, idx,
		mirror.WithWorkers(cfg.Workers),
		mirror.WithBatchSize(cfg.BatchSize),
		mirror.WithDetector(detector),
		mirror.WithExcludes(excludes),
	)
	return manager.Run(ctx)
}

// Prune trims the stored history of one object down to keep versions,
// repeating the listing until a pass deletes nothing. keep=0 removes the
// object entirely.
func (a *App) Prune(ctx context.Context, relPath string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", mirror.ErrConfig)
	}
	if relPath == "" {
		return 0, fmt.Errorf("%w: empty path", mirror.ErrConfig)
	}

	store, err := a.objectStore(ctx)
	if err != nil {
		return 0, err
	}
	dest := blob.NewDestination(store, a.config.DestLoc.Prefix)

	total := 0
	for {
		n, err := dest.Prune(ctx, relPath, keep)
		total += n
		if err != nil {
			return total, errors.Join(mirror.ErrTransfer, err)
		}
		if n == 0 {
			break
		}
	}
	slog.Info("sync", "op", mirror.OpPrune, "path", relPath, "deleted", total, "keep", keep)
	return total, nil
}
