package mirror

// MaxPathLength is the exclusive upper bound, in bytes, of a relative path.
// The index column is declared VARCHAR(1024).
const MaxPathLength = 1024

// FileInfo describes one file of the tree being mirrored.
type FileInfo struct {
	AbsPath string
	// RelPath is slash separated without a leading slash. It is the index key.
	RelPath string
	Size    int64
	// ModTime in unix seconds
	ModTime int64
}

// Entry is one row of the tracking index.
type Entry struct {
	Path    string `db:"path"`
	ModTime int64  `db:"mtime"`
	Size    int64  `db:"size"`
	Seen    bool   `db:"seen"`
}

// Result is the outcome of one work unit.
type Result int

const (
	ResultFailed Result = iota
	ResultOK
	ResultSkipped
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Acceptable reports whether the run may continue after this result.
func (r Result) Acceptable() bool {
	return r == ResultOK || r == ResultSkipped
}

type OpType string

const (
	OpUpload  OpType = "UPLOAD"
	OpSkip    OpType = "SKIP"
	OpDelete  OpType = "DELETE"
	OpExclude OpType = "EXCLUDE"
	OpPrune   OpType = "PRUNE"
)

// Phase is the state of a Manager.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUpload
	PhasePurge
	PhaseTornDown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUpload:
		return "upload"
	case PhasePurge:
		return "purge"
	case PhaseTornDown:
		return "torndown"
	}
	return "unknown"
}
