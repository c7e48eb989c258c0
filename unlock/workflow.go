package unlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"i4.energy/across/emtool/at"
	"i4.energy/across/emtool/keygen"
	"i4.energy/across/emtool/modem"
)

//go:generate go tool mockgen -source=workflow.go -destination=mock_modem.go -package=unlock

const (
	// UnlockKey enables the engineering command tier with AT!ENTERCND.
	UnlockKey = "A710"
	// DeviceClass selects the EM7455 key table of the key derivation.
	DeviceClass = "MDM9x30"
	// Variant is the key table variant used for !OPENLOCK.
	Variant = 0

	// FieldIMEI is the device info field holding the current IMEI.
	FieldIMEI = "IMEI"
)

// ErrNoSolver is the unlock failure cause when no key derivation is configured.
var ErrNoSolver = errors.New("no key derivation configured")

// Modem is the subset of *modem.Modem the workflows are built on.
type Modem interface {
	IsOpen() bool
	Open(ctx context.Context) error
	Close() error
	Exec(ctx context.Context, verb string, args ...at.Arg) (at.Response, error)
	Read(ctx context.Context, verb string) (at.Response, error)
	Set(ctx context.Context, verb string, args ...at.Arg) (at.Response, error)
	Info(ctx context.Context, required ...string) (map[string]string, error)
	Reset(ctx context.Context) error
}

var _ Modem = (*modem.Modem)(nil)

// Option configures a Workflow.
type Option func(*Workflow)

// WithSolver sets the key derivation used to answer !OPENLOCK challenges.
func WithSolver(solver keygen.Solver) Option {
	return func(w *Workflow) { w.solver = solver }
}

// WithLogger sets the logger for step transitions and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// WithProfile replaces GenericProfile for RestoreGenericProfile.
func WithProfile(profile Profile) Option {
	return func(w *Workflow) { w.profile = profile }
}

// Workflow runs the EM7455 engineering workflows on a borrowed Modem. Each
// call starts from Idle and keeps no state between runs. A Workflow opens the
// modem only when it is closed and then closes it again on return.
type Workflow struct {
	modem   Modem
	solver  keygen.Solver
	profile Profile
	logger  *slog.Logger
}

// New creates a Workflow on m.
func New(m Modem, opts ...Option) (*Workflow, error) {
	if m == nil {
		return nil, errors.New("unlock: modem is required")
	}
	w := &Workflow{
		modem:   m,
		profile: GenericProfile,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Unlock enables advanced commands and answers the !OPENLOCK challenge.
// On success the Result is in state Unlocked.
func (w *Workflow) Unlock(ctx context.Context) Result {
	var res Result
	release, ok := w.acquire(ctx, &res)
	if !ok {
		return res
	}
	defer release()

	w.unlock(ctx, &res)
	return res
}

// RepairIMEI writes imei to the device's NV memory and confirms it by
// reading device info back. The target is validated before the device is
// contacted and checked against the length of the current IMEI before
// anything is written. A successful run ends in Verified and resets the
// device.
func (w *Workflow) RepairIMEI(ctx context.Context, imei string) Result {
	res := Result{TargetIMEI: imei}
	if err := ValidateIMEI(imei); err != nil {
		res.fail(ReasonImeiChecksumInvalid, "validate", err)
		w.failed(&res)
		return res
	}

	release, ok := w.acquire(ctx, &res)
	if !ok {
		return res
	}
	defer release()

	info, err := w.modem.Info(ctx, FieldIMEI)
	if err != nil {
		res.fail(ReasonDeviceInfoUnavailable, "ATI", err)
		w.failed(&res)
		return res
	}
	res.PreviousIMEI = info[FieldIMEI]
	if len(res.PreviousIMEI) != len(imei) {
		res.fail(ReasonImeiChecksumInvalid, "validate", &ValidationError{
			Value:   imei,
			Problem: fmt.Sprintf("length %d does not match current IMEI length %d", len(imei), len(res.PreviousIMEI)),
		})
		w.failed(&res)
		return res
	}

	if !w.unlock(ctx, &res) {
		return res
	}

	if err := w.exec(ctx, at.CmdNvImeiUnlock); err != nil {
		res.fail(ReasonNvUnlockFailed, "AT"+at.CmdNvImeiUnlock, err)
		// Only a definite ERROR proves the NV lock was left untouched.
		res.Unsafe = res.Class != ClassDeviceRejected
		w.failed(&res)
		return res
	}
	w.enter(&res, NvImeiUnlocked)

	pairs, err := EncodeIMEI(imei)
	if err != nil {
		res.fail(ReasonNvEncryptFailed, "encode", err)
		w.failed(&res)
		return res
	}
	if err := w.exec(ctx, at.CmdNvEncryptImei, at.Raw(pairs)); err != nil {
		res.fail(ReasonNvEncryptFailed, "AT"+at.CmdNvEncryptImei, err)
		res.Unsafe = true
		w.failed(&res)
		return res
	}
	w.enter(&res, ImeiEncrypted)

	info, err = w.modem.Info(ctx, FieldIMEI)
	if err == nil && info[FieldIMEI] != imei {
		err = &MismatchError{Want: imei, Got: info[FieldIMEI]}
	}
	res.CurrentIMEI = info[FieldIMEI]
	if err != nil {
		res.fail(ReasonVerificationFailed, "ATI", err)
		res.Unsafe = true
		w.failed(&res)
		return res
	}
	w.enter(&res, Verified)

	w.reset(ctx)
	return res
}

// RestoreGenericProfile enables advanced commands, applies the configured
// profile with set commands and resets the device. The settings are
// declarative, so running it on a device that already carries the profile
// succeeds again. The first rejected setting aborts the remaining ones.
func (w *Workflow) RestoreGenericProfile(ctx context.Context) Result {
	var res Result
	release, ok := w.acquire(ctx, &res)
	if !ok {
		return res
	}
	defer release()

	if !w.enableAdvanced(ctx, &res) {
		return res
	}

	for i, setting := range w.profile {
		if _, err := expectOK(w.modem.Set(ctx, setting.Verb, setting.Args...)); err != nil {
			res.fail(ReasonProfileRejected, "AT"+setting.Verb, err)
			// An unanswered first setting may still have been applied.
			res.Unsafe = i > 0 || res.Class != ClassDeviceRejected
			w.failed(&res)
			return res
		}
		w.logger.Info("Profile setting applied", "verb", setting.Verb)
	}
	w.enter(&res, ProfileApplied)

	w.reset(ctx)
	return res
}

// USBInfo enables advanced commands and reads the USB identity and carrier
// profile settings. It returns the payload lines of all four reads in order.
func (w *Workflow) USBInfo(ctx context.Context) ([]string, Result) {
	var res Result
	release, ok := w.acquire(ctx, &res)
	if !ok {
		return nil, res
	}
	defer release()

	if !w.enableAdvanced(ctx, &res) {
		return nil, res
	}

	var lines []string
	for _, verb := range []string{at.CmdUsbVid, at.CmdUsbPid, at.CmdUsbProduct, at.CmdPriID} {
		resp, err := expectOK(w.modem.Read(ctx, verb))
		if err != nil {
			res.fail(ReasonReadFailed, "AT"+verb+"?", err)
			w.failed(&res)
			return lines, res
		}
		lines = append(lines, resp.Payload()...)
	}
	return lines, res
}

// acquire opens the modem unless it is already open. The returned release
// closes it again only if acquire opened it.
func (w *Workflow) acquire(ctx context.Context, res *Result) (func(), bool) {
	if w.modem.IsOpen() {
		return func() {}, true
	}
	if err := w.modem.Open(ctx); err != nil {
		res.fail(ReasonOpenFailed, "open", err)
		w.failed(res)
		return nil, false
	}
	return func() {
		if err := w.modem.Close(); err != nil {
			w.logger.Warn("Could not close modem", "error", err)
		}
	}, true
}

func (w *Workflow) enableAdvanced(ctx context.Context, res *Result) bool {
	step := "AT" + at.CmdEnterCnd
	if err := w.exec(ctx, at.CmdEnterCnd, at.String(UnlockKey)); err != nil {
		res.fail(ReasonAdvancedModeDenied, step, err)
		w.failed(res)
		return false
	}
	w.enter(res, AdvancedEnabled)
	return true
}

// unlock runs Idle -> AdvancedEnabled -> Unlocked. The challenge and the
// response token never leave this function.
func (w *Workflow) unlock(ctx context.Context, res *Result) bool {
	if !w.enableAdvanced(ctx, res) {
		return false
	}

	step := "AT" + at.CmdOpenLock + "?"
	resp, err := expectOK(w.modem.Read(ctx, at.CmdOpenLock))
	if err != nil {
		res.fail(ReasonUnlockRejected, step, err)
		w.failed(res)
		return false
	}
	challenge := parseChallenge(resp.Payload())
	if challenge == "" {
		res.fail(ReasonUnlockRejected, step, ErrNoChallenge)
		w.failed(res)
		return false
	}

	token, err := w.solve(ctx, challenge)
	if err != nil {
		res.fail(ReasonUnlockRejected, "keygen", &keygenError{err: err})
		w.failed(res)
		return false
	}

	if err := w.exec(ctx, at.CmdOpenLock, at.String(token)); err != nil {
		res.fail(ReasonUnlockRejected, "AT"+at.CmdOpenLock, err)
		w.failed(res)
		return false
	}
	w.enter(res, Unlocked)
	return true
}

func (w *Workflow) solve(ctx context.Context, challenge string) (string, error) {
	if w.solver == nil {
		return "", ErrNoSolver
	}
	token, err := w.solver.Solve(ctx, DeviceClass, challenge, Variant)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", keygen.ErrEmptyResponse
	}
	return token, nil
}

func (w *Workflow) exec(ctx context.Context, verb string, args ...at.Arg) error {
	_, err := expectOK(w.modem.Exec(ctx, verb, args...))
	return err
}

// reset is fire and forget: the device reboots and its answer is not awaited.
func (w *Workflow) reset(ctx context.Context) {
	if err := w.modem.Reset(ctx); err != nil {
		w.logger.Warn("Reset failed", "error", err)
	}
}

func (w *Workflow) enter(res *Result, s State) {
	res.enter(s)
	w.logger.Info("Workflow step completed", "state", s)
}

func (w *Workflow) failed(res *Result) {
	w.logger.Warn("Workflow failed",
		"reason", res.Reason,
		"step", res.Step,
		"class", res.Class,
		"reached", res.Reached,
		"unsafe", res.Unsafe,
		"error", res.Cause,
	)
}

func expectOK(resp at.Response, err error) (at.Response, error) {
	if err != nil {
		return resp, err
	}
	return resp, modem.CheckResponse(resp)
}

// parseChallenge takes the first payload line, without a "!OPENLOCK:" echo
// of the verb some firmware puts in front of it.
func parseChallenge(payload []string) string {
	if len(payload) == 0 {
		return ""
	}
	challenge, _ := strings.CutPrefix(payload[0], at.CmdOpenLock+":")
	return strings.TrimSpace(challenge)
}
