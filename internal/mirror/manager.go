package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 10
	DefaultBatchSize = 1000

	teardownTimeout = 5 * time.Minute
)

// Manager runs one reconciliation of a source against a destination: an
// upload pass that marks every file it sees, then a purge pass that removes
// whatever the index still holds unmarked.
//
// The manager owns the index for the duration of Run and closes it during
// teardown.
type Manager struct {
	source    Source
	dest      Destination
	index     *Index
	detector  ChangeDetector
	excludes  *ExcludeList
	workers   int
	batchSize int

	mu    sync.Mutex
	phase Phase
	stats runStats
}

type Option func(*Manager)

// WithWorkers bounds the number of concurrent work units.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithBatchSize sets how many files are dispatched before waiting for the
// batch to drain.
func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func WithDetector(d ChangeDetector) Option {
	return func(m *Manager) {
		if d != nil {
			m.detector = d
		}
	}
}

func WithExcludes(e *ExcludeList) Option {
	return func(m *Manager) {
		m.excludes = e
	}
}

// NewManager wires a run. idx must already be open.
func NewManager(source Source, dest Destination, idx *Index, opts ...Option) *Manager {
	m := &Manager{
		source:    source,
		dest:      dest,
		index:     idx,
		detector:  MtimeDetector{},
		workers:   DefaultWorkers,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the current state of the manager.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
	slog.Debug("sync phase", "phase", p)
}

// Run performs the upload and purge passes and always tears down. A failed
// upload pass skips the purge pass. Run can be called once.
func (m *Manager) Run(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return Stats{}, ErrAlreadyRun
	}
	m.phase = PhaseUpload
	m.mu.Unlock()
	slog.Debug("sync phase", "phase", PhaseUpload)

	tStart := time.Now()

	err := m.upload(ctx)
	if err == nil {
		err = m.purge(ctx)
	} else {
		slog.Error("upload failed, skipping purge", "error", err)
	}

	// teardown persists the index, so it must run even if ctx is done
	tdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	if tdErr := m.teardown(tdCtx); tdErr != nil {
		err = errors.Join(err, tdErr)
	}

	stats := m.stats.snapshot(time.Since(tStart))
	slog.Info("sync done",
		"uploaded", stats.Uploaded,
		"bytes", humanize.Bytes(uint64(stats.Bytes)),
		"skipped", stats.Skipped,
		"excluded", stats.Excluded,
		"deleted", stats.Purged,
		"took", stats.Duration,
	)
	return stats, err
}

func (m *Manager) upload(ctx context.Context) error {
	if err := m.index.ResetSeen(); err != nil {
		return err
	}

	batch := make([]*FileInfo, 0, m.batchSize)
	for f, err := range m.source.Files(ctx) {
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}

		if m.excludes.Excluded(f.RelPath) {
			slog.Debug("sync", "op", OpExclude, "path", f.RelPath)
			m.stats.excluded.Add(1)
			continue
		}

		if len(f.RelPath) >= MaxPathLength {
			return fmt.Errorf("%w: relative path of %s is %d bytes, limit is %d",
				ErrPrecondition, f.AbsPath, len(f.RelPath), MaxPathLength-1)
		}

		batch = append(batch, f)
		if len(batch) < m.batchSize {
			continue
		}
		if err := m.runBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
	}

	if len(batch) > 0 {
		return m.runBatch(ctx, batch)
	}
	return nil
}

// runBatch dispatches one work unit per file and waits for all of them.
// A failure does not cancel siblings that already started.
func (m *Manager) runBatch(ctx context.Context, batch []*FileInfo) error {
	results := make([]Result, len(batch))

	var eg errgroup.Group
	eg.SetLimit(m.workers)
	for i, f := range batch {
		eg.Go(func() error {
			res, err := m.process(ctx, f)
			results[i] = res
			return err
		})
	}
	err := eg.Wait()

	failed := 0
	for _, res := range results {
		if !res.Acceptable() {
			failed++
		}
	}
	if failed > 0 {
		if err == nil {
			err = ErrTransfer
		}
		return fmt.Errorf("batch of %d files had %d failures: %w", len(batch), failed, err)
	}
	return nil
}

// process is a single work unit: compare, transfer or skip, record.
func (m *Manager) process(ctx context.Context, f *FileInfo) (Result, error) {
	existing, err := m.index.Get(f.RelPath)
	if err != nil {
		slog.Error("sync", "op", OpUpload, "path", f.RelPath, "error", err)
		return ResultFailed, err
	}

	if !m.detector.ShouldTransfer(existing, f) {
		if err := m.index.MarkSeen(f.RelPath); err != nil {
			slog.Error("sync", "op", OpSkip, "path", f.RelPath, "error", err)
			return ResultFailed, err
		}
		slog.Info("sync", "op", OpSkip, "path", f.RelPath)
		m.stats.skipped.Add(1)
		return ResultSkipped, nil
	}

	slog.Info("sync", "op", OpUpload, "path", f.RelPath, "size", humanize.Bytes(uint64(f.Size)))
	if err := m.dest.Put(ctx, f, existing != nil); err != nil {
		err = &TransferError{Op: OpUpload, Path: f.RelPath, Err: err}
		slog.Error("sync", "op", OpUpload, "path", f.RelPath, "error", err)
		return ResultFailed, err
	}

	if err := m.index.Upsert(f.RelPath, f.ModTime, f.Size); err != nil {
		slog.Error("sync", "op", OpUpload, "path", f.RelPath, "error", err)
		return ResultFailed, err
	}

	m.stats.uploaded.Add(1)
	m.stats.bytes.Add(f.Size)
	return ResultOK, nil
}

// purge removes every entry the upload pass did not see. A destination
// failure leaves the row in place for the next run and moves on; an index
// failure stops the pass.
func (m *Manager) purge(ctx context.Context) error {
	m.setPhase(PhasePurge)

	paths, err := m.index.Unseen()
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		slog.Info("sync", "op", OpDelete, "path", path)
		if err := m.dest.Purge(ctx, path); err != nil {
			err = &TransferError{Op: OpDelete, Path: path, Err: err}
			slog.Error("sync", "op", OpDelete, "path", path, "error", err)
			errs = append(errs, err)
			continue
		}

		if err := m.index.Delete(path); err != nil {
			errs = append(errs, err)
			break
		}
		m.stats.purged.Add(1)
	}
	return errors.Join(errs...)
}

func (m *Manager) teardown(ctx context.Context) error {
	m.setPhase(PhaseTornDown)

	var errs []error
	if err := m.index.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.source.Teardown(); err != nil {
		errs = append(errs, fmt.Errorf("source teardown: %w", err))
	}
	if err := m.dest.Teardown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("destination teardown: %w", err))
	}
	return errors.Join(errs...)
}
