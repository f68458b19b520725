package mirror

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPageSize caps how many versions one Prune call looks at.
const DefaultPageSize = 100

// Pruner deletes superseded versions of an object.
//
// It relies on the store listing versions grouped by name and newest first.
// An object with more versions than the page size needs more than one call
// to be fully pruned.
type Pruner struct {
	store    VersionStore
	pageSize int
}

func NewPruner(store VersionStore, pageSize int) *Pruner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pruner{store: store, pageSize: pageSize}
}

// Prune keeps the newest `keep` versions of name and deletes the rest of
// the listed page. keep=0 deletes every listed version.
// It returns the number of versions deleted.
func (p *Pruner) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: negative keep count %d", ErrPrecondition, keep)
	}

	versions, err := p.store.ListVersions(ctx, name, p.pageSize)
	if err != nil {
		return 0, fmt.Errorf("list versions of %s: %w", name, err)
	}

	deleted := 0
	for _, v := range versions {
		if v.Name != name {
			break
		}
		if keep > 0 {
			keep--
			continue
		}
		if err := p.store.DeleteVersion(ctx, v.Name, v.VersionID); err != nil {
			return deleted, fmt.Errorf("delete version %s of %s: %w", v.VersionID, name, err)
		}
		slog.Debug("sync", "op", OpPrune, "path", name, "version", v.VersionID)
		deleted++
	}
	return deleted, nil
}
