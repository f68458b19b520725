package mirror

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats summarizes one run.
type Stats struct {
	Uploaded int64
	Skipped  int64
	Excluded int64
	Purged   int64
	Bytes    int64
	Duration time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("%d uploaded (%s), %d skipped, %d excluded, %d deleted in %s",
		s.Uploaded, humanize.Bytes(uint64(s.Bytes)), s.Skipped, s.Excluded, s.Purged, s.Duration.Round(time.Millisecond))
}

type runStats struct {
	uploaded atomic.Int64
	skipped  atomic.Int64
	excluded atomic.Int64
	purged   atomic.Int64
	bytes    atomic.Int64
}

func (s *runStats) snapshot(d time.Duration) Stats {
	return Stats{
		Uploaded: s.uploaded.Load(),
		Skipped:  s.skipped.Load(),
		Excluded: s.excluded.Load(),
		Purged:   s.purged.Load(),
		Bytes:    s.bytes.Load(),
		Duration: d,
	}
}
