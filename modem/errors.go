package modem

import (
	"errors"
	"fmt"
	"strings"

	"i4.energy/across/emtool/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer reports success but yields
	// no Transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrNotOpen is returned when a command is issued on a Modem that is not open.
	ErrNotOpen = errors.New("modem not open")

	// ErrIncomplete is reported when no terminal result line arrived before
	// the command timeout. It is never retried.
	ErrIncomplete = errors.New("incomplete response")

	// ErrResponseTooLong is returned when a modem response exceeds the
	// maximum allowed length.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrResponseTooLong = errors.New("response too long")
)

// TransportError is an I/O failure of the underlying byte stream. The cause
// is kept unchanged and available through errors.Is and errors.As.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports response bytes that could not be interpreted. It is
// distinct from a DeviceError, where the device answered ERROR on purpose.
type ProtocolError struct {
	Verb string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("AT%s: protocol error: %v", e.Verb, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DeviceError is a terminal ERROR, +CME ERROR or +CMS ERROR line.
type DeviceError struct {
	Line string
}

func (e *DeviceError) Error() string {
	return "device rejected command: " + e.Line
}

// Code returns the numeric or verbose code of an extended error, or "" for
// a plain ERROR.
func (e *DeviceError) Code() string {
	for _, prefix := range []string{at.CmeError, at.CmsError} {
		if code, ok := strings.CutPrefix(e.Line, prefix); ok {
			return strings.TrimSpace(code)
		}
	}
	return ""
}

// MissingFieldError is returned by Info when a required field is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("device info has no %q field", e.Field)
}

// CheckResponse converts a classified response into an error: nil for Ok,
// a *DeviceError for Err and ErrIncomplete otherwise.
func CheckResponse(resp at.Response) error {
	switch resp.Status {
	case at.Ok:
		return nil
	case at.Err:
		return &DeviceError{Line: resp.Terminal()}
	default:
		return ErrIncomplete
	}
}
