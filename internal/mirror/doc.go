// Package mirror reconciles a local tree with a remote bucket.
//
// A run is two passes over a persistent Index. The upload pass clears every
// row's seen flag, walks the Source in fixed-size batches, and for each file
// asks a ChangeDetector whether to transfer it; transferred and skipped files
// are both marked seen. The purge pass then deletes from the Destination, and
// from the index, every row that was not seen. Re-running after a failure is
// safe: current files are skipped and already purged objects are gone from
// the index.
package mirror
