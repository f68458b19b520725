package mirror

import (
	"context"
	"iter"
)

// Source produces the files of the tree being mirrored. The sequence is
// pulled lazily and may be arbitrarily long.
type Source interface {
	Files(ctx context.Context) iter.Seq2[*FileInfo, error]
	Teardown() error
}

// Destination performs the remote side of a run. Put and Purge are called
// concurrently from up to `workers` work units.
type Destination interface {
	// Put uploads the file. When pruneHistory is set, older copies of the
	// object are pruned down to the destination's retention afterwards.
	Put(ctx context.Context, f *FileInfo, pruneHistory bool) error
	// Purge removes the object and every historical version of it.
	Purge(ctx context.Context, relPath string) error
	// Teardown releases resources and persists anything the destination
	// keeps on behalf of the run, such as the index.
	Teardown(ctx context.Context) error
}

// ObjectVersion is one stored version of a remote object.
type ObjectVersion struct {
	Name      string
	VersionID string
}

// VersionStore lists and deletes individual object versions.
type VersionStore interface {
	// ListVersions returns up to max versions starting at startName, sorted
	// by name and newest first within a name.
	ListVersions(ctx context.Context, startName string, max int) ([]ObjectVersion, error)
	DeleteVersion(ctx context.Context, name, versionID string) error
}
