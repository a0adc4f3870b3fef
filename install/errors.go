package install

import "fmt"

// InsufficientSpaceError means the fixed-size partition regions do not fit
// on the target disk. Raised before any destructive action.
type InsufficientSpaceError struct {
	Disk          string
	NeededBytes   uint64
	CapacityBytes uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("disk %s too small: fixed regions need %d bytes, capacity is %d bytes",
		e.Disk, e.NeededBytes, e.CapacityBytes)
}

// DeviceBusyError means a precondition on the target device failed.
// Raised before any destructive action.
type DeviceBusyError struct {
	Device string
	Reason string
}

func (e *DeviceBusyError) Error() string {
	return fmt.Sprintf("device %s: %s", e.Device, e.Reason)
}

// ToolFailureError means an external collaborator returned non-zero
type ToolFailureError struct {
	Tool string
	Err  error
}

func (e *ToolFailureError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolFailureError) Unwrap() error { return e.Err }

func toolErr(tool string, err error) error {
	if err == nil {
		return nil
	}
	return &ToolFailureError{Tool: tool, Err: err}
}

// VerificationError means a post-condition check failed, for example an
// expected device node never appeared after partitioning.
type VerificationError struct {
	What string
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification failed: %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("verification failed: %s", e.What)
}

func (e *VerificationError) Unwrap() error { return e.Err }
