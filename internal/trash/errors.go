package trash

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Sentinel errors for record-level failures.
var (
	// ErrNotFound means no trash record exists for the given id.
	ErrNotFound = errors.New("trash record not found")
	// ErrDestinationExists means a restore would overwrite a path that
	// reappeared since quarantine.
	ErrDestinationExists = errors.New("restore destination already exists")
	// ErrObjectMissing means the quarantined object vanished out from
	// under its record.
	ErrObjectMissing = errors.New("quarantined object missing")
)

// FailureReason categorizes why a filesystem operation failed.
type FailureReason int

const (
	ReasonPermissionDenied FailureReason = iota
	ReasonFileInUse
	ReasonFileNotFound
	ReasonCrossDevice
	ReasonUnknown
)

func (r FailureReason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonFileInUse:
		return "file in use"
	case ReasonFileNotFound:
		return "file not found"
	case ReasonCrossDevice:
		return "cross-device move"
	default:
		return "unknown"
	}
}

// OpError is a categorized filesystem failure. Retryable marks failures
// that may succeed on a later attempt without operator intervention.
type OpError struct {
	Path      string
	Reason    FailureReason
	Retryable bool
	Err       error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// categorize wraps a raw error with a failure reason.
func categorize(path string, err error) *OpError {
	if err == nil {
		return nil
	}
	op := &OpError{Path: path, Err: err, Reason: ReasonUnknown}

	if os.IsNotExist(err) {
		op.Reason = ReasonFileNotFound
		return op
	}
	if os.IsPermission(err) {
		op.Reason = ReasonPermissionDenied
		return op
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			op.Reason = ReasonPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			op.Reason = ReasonFileInUse
			op.Retryable = true
		case syscall.ENOENT:
			op.Reason = ReasonFileNotFound
		case syscall.EXDEV:
			op.Reason = ReasonCrossDevice
			op.Retryable = true
		}
	}
	return op
}
