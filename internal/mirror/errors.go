package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks input the engine refuses to handle, such as a
	// relative path that does not fit the index.
	ErrPrecondition = errors.New("precondition violated")

	// ErrTransfer marks a failed put or delete against the destination.
	ErrTransfer = errors.New("transfer failed")

	// ErrIndex marks a read or write failure of the tracking index.
	ErrIndex = errors.New("index failure")

	// ErrConfig marks an invalid source, destination or option.
	ErrConfig = errors.New("invalid configuration")

	ErrAlreadyRun = errors.New("manager already ran")
)

// TransferError records which path a destination call failed for.
type TransferError struct {
	Op   OpType
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() []error {
	return []error{ErrTransfer, e.Err}
}

func indexErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIndex, op, err)
}
