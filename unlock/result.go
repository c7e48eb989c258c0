package unlock

import (
	"context"
	"errors"
	"fmt"

	"i4.energy/across/emtool/at"
	"i4.energy/across/emtool/modem"
)

// State is a position in a workflow run.
type State int

const (
	Idle State = iota
	AdvancedEnabled
	Unlocked
	NvImeiUnlocked
	ImeiEncrypted
	Verified
	ProfileApplied
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AdvancedEnabled:
		return "advanced-enabled"
	case Unlocked:
		return "unlocked"
	case NvImeiUnlocked:
		return "nv-imei-unlocked"
	case ImeiEncrypted:
		return "imei-encrypted"
	case Verified:
		return "verified"
	case ProfileApplied:
		return "profile-applied"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason names why a run ended in Failed.
type Reason string

const (
	ReasonOpenFailed            Reason = "open-failed"
	ReasonAdvancedModeDenied    Reason = "advanced-mode-denied"
	ReasonUnlockRejected        Reason = "unlock-rejected"
	ReasonDeviceInfoUnavailable Reason = "device-info-unavailable"
	ReasonImeiChecksumInvalid   Reason = "imei-checksum-invalid"
	ReasonNvUnlockFailed        Reason = "nv-unlock-failed"
	ReasonNvEncryptFailed       Reason = "nv-encrypt-failed"
	ReasonVerificationFailed    Reason = "verification-failed"
	ReasonProfileRejected       Reason = "profile-rejected"
	ReasonReadFailed            Reason = "read-failed"
)

// Class is the kind of error behind a failure.
type Class string

const (
	ClassNone           Class = ""
	ClassDeviceRejected Class = "device-rejected"
	ClassIncomplete     Class = "incomplete"
	ClassValidation     Class = "validation"
	ClassTransport      Class = "transport"
	ClassProtocol       Class = "protocol"
	ClassMissingField   Class = "missing-field"
	ClassMismatch       Class = "mismatch"
	ClassKeygen         Class = "keygen"
	ClassCanceled       Class = "canceled"
)

// ErrUnsafePartialFailure matches, through errors.Is, the error of a Result
// whose run failed after the device's NV state had already been touched.
var ErrUnsafePartialFailure = errors.New("unsafe partial failure: device state is uncertain")

// ErrNoChallenge is reported when AT!OPENLOCK? answers OK without a challenge.
var ErrNoChallenge = errors.New("no challenge in response")

// MismatchError reports a read back IMEI that differs from the one written.
type MismatchError struct {
	Want, Got string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("device reports IMEI %q, want %q", e.Got, e.Want)
}

type keygenError struct{ err error }

func (e *keygenError) Error() string { return "key derivation: " + e.err.Error() }
func (e *keygenError) Unwrap() error { return e.err }

// Result is the outcome of one workflow run.
type Result struct {
	// State is the final state, Failed when the run did not complete.
	State State
	// Reached is the last state entered before a failure.
	Reached State
	Reason  Reason
	// Step is the command or phase that failed, e.g. "AT!NVIMEIUNLOCK".
	Step  string
	Class Class
	Cause error
	// Unsafe is set when the run failed after an irreversible device step.
	Unsafe bool

	// IMEI repair only
	PreviousIMEI string
	TargetIMEI   string
	CurrentIMEI  string
}

// OK reports whether the run completed.
func (r Result) OK() bool {
	return r.State != Failed
}

// Err returns nil for a completed run and a *FailedError otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &FailedError{Result: r}
}

func (r *Result) enter(s State) {
	r.State = s
	r.Reached = s
}

func (r *Result) fail(reason Reason, step string, err error) {
	r.State = Failed
	r.Reason = reason
	r.Step = step
	r.Class = classify(err)
	r.Cause = err
}

// FailedError adapts a failed Result to the error interface.
type FailedError struct {
	Result Result
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("%s at %s (%s): %v", e.Result.Reason, e.Result.Step, e.Result.Class, e.Result.Cause)
	if e.Result.Unsafe {
		msg += "; device state is uncertain, a retry may be required"
	}
	return msg
}

func (e *FailedError) Unwrap() error { return e.Result.Cause }

func (e *FailedError) Is(target error) bool {
	return target == ErrUnsafePartialFailure && e.Result.Unsafe
}

func classify(err error) Class {
	var (
		deviceErr   *modem.DeviceError
		protoErr    *modem.ProtocolError
		encErr      *at.EncodingError
		missingErr  *modem.MissingFieldError
		validErr    *ValidationError
		mismatchErr *MismatchError
		kgErr       *keygenError
	)
	switch {
	case err == nil:
		return ClassNone
	case errors.As(err, &deviceErr):
		return ClassDeviceRejected
	case errors.Is(err, modem.ErrIncomplete):
		return ClassIncomplete
	case errors.As(err, &protoErr), errors.As(err, &encErr), errors.Is(err, ErrNoChallenge):
		return ClassProtocol
	case errors.As(err, &missingErr):
		return ClassMissingField
	case errors.As(err, &validErr):
		return ClassValidation
	case errors.As(err, &mismatchErr):
		return ClassMismatch
	case errors.As(err, &kgErr):
		return ClassKeygen
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	default:
		return ClassTransport
	}
}
