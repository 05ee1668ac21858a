package driver

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Status classifies a failure of a live-migration operation
type Status int

// Status codes. Validation and allocation failures are raised before a
// command reaches the device; transport and device failures come back from it.
const (
	StatusSuccess           Status = 0
	StatusInvalidArgument   Status = 1
	StatusUnsupported       Status = 2
	StatusAllocationFailure Status = 3
	StatusIOFailure         Status = 4
	StatusTransportFailure  Status = 5
	StatusDeviceStatus      Status = 6
)

var statusMessages = map[Status]string{
	StatusSuccess:           "success",
	StatusInvalidArgument:   "invalid argument",
	StatusUnsupported:       "unsupported",
	StatusAllocationFailure: "allocation failure",
	StatusIOFailure:         "I/O failure",
	StatusTransportFailure:  "transport failure",
	StatusDeviceStatus:      "device status",
}

// String returns the human-readable status message
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status (%d)", int(s))
}

// Error is returned by every layer of the migration stack. DeviceCode is
// only meaningful for StatusDeviceStatus and holds the NVMe status word
// exactly as the controller reported it.
type Error struct {
	Status     Status
	Context    string
	DeviceCode uint16
	Cause      error
}

// Sentinels for errors.Is; matching compares Status only.
var (
	ErrInvalidArgument   = &Error{Status: StatusInvalidArgument}
	ErrUnsupported       = &Error{Status: StatusUnsupported}
	ErrAllocationFailure = &Error{Status: StatusAllocationFailure}
	ErrIOFailure         = &Error{Status: StatusIOFailure}
	ErrTransportFailure  = &Error{Status: StatusTransportFailure}
	ErrDeviceStatus      = &Error{Status: StatusDeviceStatus}
)

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Status.String()
	if e.Status == StatusDeviceStatus {
		msg = fmt.Sprintf("%s 0x%04x (%s)", msg, e.DeviceCode, NVMeStatusString(e.DeviceCode))
	}
	if e.Context != "" {
		msg = e.Context + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target status
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Status == t.Status
	}
	return false
}

// NewError creates a new Error with the given status
func NewError(status Status, context string) *Error {
	return &Error{
		Status:  status,
		Context: context,
	}
}

// NewErrorf creates a new Error with a formatted context
func NewErrorf(status Status, format string, args ...any) *Error {
	return NewError(status, fmt.Sprintf(format, args...))
}

// NewErrorWithCause creates a new Error with an underlying cause
func NewErrorWithCause(status Status, context string, cause error) *Error {
	return &Error{
		Status:  status,
		Context: context,
		Cause:   cause,
	}
}

// NewDeviceStatusError wraps a positive status returned by the controller
func NewDeviceStatusError(code uint16, context string) *Error {
	return &Error{
		Status:     StatusDeviceStatus,
		Context:    context,
		DeviceCode: code,
	}
}

// DeviceStatusCode extracts the controller status word from err, if any
func DeviceStatusCode(err error) (uint16, bool) {
	var e *Error
	if errors.As(err, &e) && e.Status == StatusDeviceStatus {
		return e.DeviceCode, true
	}
	return 0, false
}

// ErrnoToStatus converts a Linux errno raised outside of command submission
// (device open, buffer mapping) to a Status
func ErrnoToStatus(errno unix.Errno) Status {
	switch errno {
	case unix.ENOMEM, unix.ENOBUFS:
		return StatusAllocationFailure
	case unix.EINVAL:
		return StatusInvalidArgument
	case unix.ENOTTY, unix.EOPNOTSUPP:
		return StatusUnsupported
	default:
		return StatusTransportFailure
	}
}

// StatusFromErrno creates an Error from an errno
func StatusFromErrno(errno unix.Errno, context string) *Error {
	return &Error{
		Status:  ErrnoToStatus(errno),
		Context: context,
		Cause:   errno,
	}
}
