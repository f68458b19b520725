package mirror

import "fmt"

const (
	CompareMtime = "mtime"
	CompareSize  = "size"
)

// ChangeDetector decides whether a file needs to be transferred given its
// index entry, which is nil for files never transferred.
// Implementations are pure and safe for concurrent use.
type ChangeDetector interface {
	ShouldTransfer(existing *Entry, f *FileInfo) bool
}

// MtimeDetector transfers files whose modification time moved forward.
// A timestamp that is rolled back, or content changed without touching
// the mtime, goes unnoticed.
type MtimeDetector struct{}

func (MtimeDetector) ShouldTransfer(existing *Entry, f *FileInfo) bool {
	return existing == nil || existing.ModTime < f.ModTime
}

// SizeDetector transfers files whose size changed. Same-size edits go
// unnoticed.
type SizeDetector struct{}

func (SizeDetector) ShouldTransfer(existing *Entry, f *FileInfo) bool {
	return existing == nil || existing.Size != f.Size
}

// NewChangeDetector returns the detector for a compare method name. An empty
// name selects the mtime strategy.
func NewChangeDetector(method string) (ChangeDetector, error) {
	switch method {
	case CompareMtime, "":
		return MtimeDetector{}, nil
	case CompareSize:
		return SizeDetector{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown compare method %q", ErrConfig, method)
	}
}
