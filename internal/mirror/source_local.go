package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"

	"github.com/dpedu/b2mirror/internal/utils"
)

// LocalSource walks a local directory tree in lexical order. Only regular
// files are produced; symlinks and special files are skipped.
type LocalSource struct {
	root string
	skip map[string]struct{}
}

// NewLocalSource resolves root and checks that it is a directory. Files
// whose absolute path is listed in skip are never produced, which keeps the
// index database out of the mirror when it lives inside the tree.
func NewLocalSource(root string, skip ...string) (*LocalSource, error) {
	abs, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %w", ErrConfig, root, err)
	}
	if !utils.DirExists(abs) {
		return nil, fmt.Errorf("%w: source %q is not a directory", ErrConfig, root)
	}

	s := &LocalSource{root: abs, skip: make(map[string]struct{}, len(skip))}
	for _, p := range skip {
		if resolved, err := utils.ResolvePath(p); err == nil {
			s.skip[resolved] = struct{}{}
		}
	}
	return s, nil
}

func (s *LocalSource) Root() string {
	return s.root
}

func (s *LocalSource) String() string {
	return s.root
}

// Files walks the tree on demand: the walk advances only as the consumer
// pulls, and stops when the consumer stops.
func (s *LocalSource) Files(ctx context.Context) iter.Seq2[*FileInfo, error] {
	return func(yield func(*FileInfo, error) bool) {
		stopped := false
		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return fmt.Errorf("walk %s: %w", path, walkErr)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				if !d.IsDir() {
					slog.Debug("sync", "op", OpSkip, "reason", "not a regular file", "path", path)
				}
				return nil
			}
			if _, ok := s.skip[path]; ok {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			relPath, err := filepath.Rel(s.root, path)
			if err != nil {
				return fmt.Errorf("rel path %s: %w", path, err)
			}

			f := &FileInfo{
				AbsPath: path,
				RelPath: utils.NormPath(relPath),
				Size:    info.Size(),
				ModTime: info.ModTime().Unix(),
			}
			if !yield(f, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(nil, fmt.Errorf("scan %s: %w", s.root, err))
		}
	}
}

func (s *LocalSource) Teardown() error {
	return nil
}
