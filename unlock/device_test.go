package unlock_test

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"i4.energy/across/emtool/at"
	"i4.energy/across/emtool/keygen"
	"i4.energy/across/emtool/modem"
	"i4.energy/across/emtool/unlock"
)

// em7455 simulates the engineering command tier of an EM7455 behind a
// modem.TestTransport.
type em7455 struct {
	imei      string
	challenge string
	token     string
	// reject lists requests answered with ERROR
	reject   []string
	settings map[string]string

	advanced   bool
	unlocked   bool
	nvUnlocked bool
}

func newEM7455(imei string) *em7455 {
	return &em7455{
		imei:      imei,
		challenge: "deadbeef",
		token:     "cafef00d",
		settings:  map[string]string{},
	}
}

const (
	resultOK    = "\r\nOK\r\n"
	resultError = "\r\nERROR\r\n"
)

func (d *em7455) handle(request string) string {
	if slices.Contains(d.reject, request) {
		return resultError
	}

	verb, args, isSet := strings.Cut(request, "=")
	switch {
	case request == at.CmdEchoOff:
		return resultOK
	case request == at.CmdReset:
		// reboots without answering
		return ""
	case request == at.CmdInfo:
		return "\r\nManufacturer: Sierra Wireless, Incorporated\r\n" +
			"Model: EM7455\r\n" +
			"Revision: SWI9X30C_02.24.05.06 r7040 CARMD-EV-FRMWR2 2017/05/19 06:23:09\r\n" +
			"MEID: 35907206000000\r\n" +
			"IMEI: " + d.imei + "\r\n" +
			"IMEI SV: 9\r\n" +
			"FSN: LF123456789010\r\n" +
			"+GCAP: +CGSM\r\n" + resultOK
	case verb == at.CmdEnterCnd:
		if args != `"`+unlock.UnlockKey+`"` {
			return resultError
		}
		d.advanced = true
		return resultOK
	case request == at.CmdOpenLock+"?":
		if !d.advanced {
			return resultError
		}
		return "\r\n" + d.challenge + "\r\n" + resultOK
	case verb == at.CmdOpenLock && isSet:
		if !d.advanced || args != `"`+d.token+`"` {
			return resultError
		}
		d.unlocked = true
		return resultOK
	case request == at.CmdNvImeiUnlock:
		if !d.unlocked {
			return resultError
		}
		d.nvUnlocked = true
		return resultOK
	case verb == at.CmdNvEncryptImei:
		if !d.nvUnlocked {
			return resultError
		}
		digits := strings.ReplaceAll(args, ",", "")
		if len(digits) != 16 {
			return resultError
		}
		d.imei = digits[:15]
		return resultOK
	case strings.HasSuffix(request, "?"):
		if !d.advanced {
			return resultError
		}
		value, ok := d.settings[strings.TrimSuffix(request, "?")]
		if !ok {
			return resultError
		}
		return "\r\n" + value + "\r\n" + resultOK
	case isSet:
		if !d.advanced {
			return resultError
		}
		d.settings[verb] = args
		return resultOK
	}
	return resultError
}

func newDevice(t *testing.T, d *em7455, solver keygen.Solver) (*unlock.Workflow, *modem.TestTransport) {
	t.Helper()
	transport := modem.NewTestTransport(d.handle)

	config, err := modem.NewConfigBuilder().
		WithDialer(transport).
		WithATTimeout(time.Second).
		WithPollInterval(time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	m, err := modem.New(config)
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}

	w, err := unlock.New(m, unlock.WithSolver(solver))
	if err != nil {
		t.Fatalf("unexpected error from unlock.New(): %v", err)
	}
	return w, transport
}

func stubSolver(token string) keygen.Solver {
	return keygen.Func(func(_ context.Context, deviceClass, challenge string, variant int) (string, error) {
		if deviceClass != unlock.DeviceClass || challenge != "deadbeef" || variant != 0 {
			return "", fmt.Errorf("unexpected solve(%q, %q, %d)", deviceClass, challenge, variant)
		}
		return token, nil
	})
}

func TestDeviceUnlock(t *testing.T) {
	w, transport := newDevice(t, newEM7455(currentIMEI), stubSolver("cafef00d"))

	res := w.Unlock(context.Background())
	if res.State != unlock.Unlocked {
		t.Fatalf("Unlock() = %+v, want state Unlocked", res)
	}

	// String arguments are always quoted on the wire, so the token goes out
	// as !OPENLOCK="cafef00d" rather than bare.
	want := []string{"E0", `!ENTERCND="A710"`, "!OPENLOCK?", `!OPENLOCK="cafef00d"`}
	if got := transport.Requests(); !slices.Equal(got, want) {
		t.Errorf("requests = %q, want %q", got, want)
	}
}

func TestDeviceUnlockWrongToken(t *testing.T) {
	w, _ := newDevice(t, newEM7455(currentIMEI), stubSolver("00000000"))

	res := w.Unlock(context.Background())
	if res.Reason != unlock.ReasonUnlockRejected || res.Class != unlock.ClassDeviceRejected {
		t.Fatalf("Unlock() = %+v, want unlock-rejected device-rejected", res)
	}
}

func TestDeviceRepairIMEI(t *testing.T) {
	d := newEM7455(currentIMEI)
	w, transport := newDevice(t, d, stubSolver("cafef00d"))

	res := w.RepairIMEI(context.Background(), targetIMEI)
	if res.State != unlock.Verified {
		t.Fatalf("RepairIMEI() = %+v, want state Verified", res)
	}
	if d.imei != targetIMEI {
		t.Errorf("device IMEI = %q, want %q", d.imei, targetIMEI)
	}

	want := []string{
		"E0",
		"I",
		`!ENTERCND="A710"`,
		"!OPENLOCK?",
		`!OPENLOCK="cafef00d"`,
		"!NVIMEIUNLOCK",
		"!NVENCRYPTIMEI=" + targetPairs,
		"I",
		"!RESET",
	}
	if got := transport.Requests(); !slices.Equal(got, want) {
		t.Errorf("requests = %q, want %q", got, want)
	}
}

func TestDeviceRepairIMEINvUnlockRejected(t *testing.T) {
	d := newEM7455(currentIMEI)
	d.reject = []string{at.CmdNvImeiUnlock}
	w, transport := newDevice(t, d, stubSolver("cafef00d"))

	res := w.RepairIMEI(context.Background(), targetIMEI)
	if res.Reason != unlock.ReasonNvUnlockFailed {
		t.Fatalf("RepairIMEI() = %+v, want nv-unlock-failed", res)
	}
	for _, request := range transport.Requests() {
		if strings.HasPrefix(request, at.CmdNvEncryptImei) {
			t.Errorf("unexpected request %q after rejected NV unlock", request)
		}
	}
	if d.imei != currentIMEI {
		t.Errorf("device IMEI changed to %q", d.imei)
	}
}

func TestDeviceRepairIMEIInvalidTarget(t *testing.T) {
	w, transport := newDevice(t, newEM7455(currentIMEI), stubSolver("cafef00d"))

	res := w.RepairIMEI(context.Background(), "490154203237519")
	if res.Reason != unlock.ReasonImeiChecksumInvalid {
		t.Fatalf("RepairIMEI() = %+v, want imei-checksum-invalid", res)
	}
	if got := transport.Requests(); len(got) != 0 {
		t.Errorf("requests = %q, want none", got)
	}
}

func TestDeviceRestoreGenericProfileTwice(t *testing.T) {
	d := newEM7455(currentIMEI)
	w, transport := newDevice(t, d, nil)

	for run := range 2 {
		res := w.RestoreGenericProfile(context.Background())
		if res.State != unlock.ProfileApplied {
			t.Fatalf("run %d: RestoreGenericProfile() = %+v, want state ProfileApplied", run, res)
		}
	}

	wantSettings := map[string]string{
		at.CmdUsbVid:     "1199",
		at.CmdUsbPid:     "9071,9070",
		at.CmdUsbProduct: `"EM7455"`,
		at.CmdPriID:      `"9904609","002.026","Generic-M2M"`,
	}
	for verb, want := range wantSettings {
		if got := d.settings[verb]; got != want {
			t.Errorf("setting %s = %q, want %q", verb, got, want)
		}
	}

	resets := 0
	for _, request := range transport.Requests() {
		if request == at.CmdReset {
			resets++
		}
	}
	if resets != 2 {
		t.Errorf("resets = %d, want 2", resets)
	}
}

func TestDeviceUSBInfo(t *testing.T) {
	d := newEM7455(currentIMEI)
	d.settings = map[string]string{
		at.CmdUsbVid:     "1199",
		at.CmdUsbPid:     "9071,9070",
		at.CmdUsbProduct: "Sierra Wireless EM7455 Qualcomm Snapdragon X7 LTE-A",
		at.CmdPriID:      "PRI Part Number: 9904609",
	}
	w, _ := newDevice(t, d, nil)

	lines, res := w.USBInfo(context.Background())
	if !res.OK() {
		t.Fatalf("USBInfo() = %+v, want success", res)
	}
	if len(lines) != 4 || lines[0] != "1199" || lines[3] != "PRI Part Number: 9904609" {
		t.Errorf("USBInfo() lines = %q", lines)
	}
}
