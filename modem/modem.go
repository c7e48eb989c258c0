package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/emtool/at"
)

// Modem drives a cellular modem with AT commands over a single Transport.
//
// Exactly one command is outstanding at a time: every operation writes one
// request line and consumes one response before returning. Modem is not safe
// for concurrent use; callers sharing one instance must serialize access.
type Modem struct {
	// dialer opens the transport each time the modem is opened
	dialer Dialer
	// transport is the open connection, nil while closed
	transport Transport
	// atTimeout bounds a single command round trip
	atTimeout time.Duration
	// pollInterval is the transport read timeout
	pollInterval time.Duration
	// maxResponse caps the bytes accepted for one response
	maxResponse int
	logger      *slog.Logger
}

// New creates a closed Modem with the given configuration. Call Open before
// issuing commands.
func New(config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	return &Modem{
		dialer:       config.dialer,
		atTimeout:    config.atTimeout,
		pollInterval: config.pollInterval,
		maxResponse:  config.maxResponse,
		logger:       config.logger,
	}, nil
}

// IsOpen reports whether the transport is currently held.
func (m *Modem) IsOpen() bool {
	return m.transport != nil
}

// Open dials the transport and switches command echo off, since an echoed
// request line would be parsed as response payload. Opening an already open
// Modem does nothing.
func (m *Modem) Open(ctx context.Context) error {
	if m.transport != nil {
		m.logger.Info("Modem already open")
		return nil
	}

	transport, err := m.dialer.Dial(ctx)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	if transport == nil {
		return ErrNotInitialized
	}

	if err := transport.SetReadTimeout(m.pollInterval); err != nil {
		transport.Close()
		return &TransportError{Op: "set read timeout", Err: err}
	}
	m.transport = transport

	if err := m.expectOK(ctx, at.CmdEchoOff, at.ModeExec); err != nil {
		m.transport = nil
		transport.Close()
		return fmt.Errorf("could not disable echo: %w", err)
	}

	m.logger.Info("Modem opened")
	return nil
}

// Close releases the transport. Closing an already closed Modem does nothing.
func (m *Modem) Close() error {
	if m.transport == nil {
		m.logger.Info("Modem already closed")
		return nil
	}

	transport := m.transport
	m.transport = nil
	if err := transport.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}

	m.logger.Info("Modem closed")
	return nil
}

// Exec runs an execution command, AT<verb> or AT<verb>=<args>.
func (m *Modem) Exec(ctx context.Context, verb string, args ...at.Arg) (at.Response, error) {
	return m.roundTrip(ctx, verb, at.ModeExec, args...)
}

// Test asks whether a command is supported, AT<verb>=?.
func (m *Modem) Test(ctx context.Context, verb string) (at.Response, error) {
	return m.roundTrip(ctx, verb, at.ModeTest)
}

// Read queries a setting, AT<verb>?.
func (m *Modem) Read(ctx context.Context, verb string) (at.Response, error) {
	return m.roundTrip(ctx, verb, at.ModeRead)
}

// Set modifies a setting, AT<verb>=<args>.
func (m *Modem) Set(ctx context.Context, verb string, args ...at.Arg) (at.Response, error) {
	return m.roundTrip(ctx, verb, at.ModeSet, args...)
}

// Info runs ATI and parses its "key: value" payload. Every field named in
// required must be present, otherwise a *MissingFieldError is returned
// together with the fields that were parsed.
func (m *Modem) Info(ctx context.Context, required ...string) (map[string]string, error) {
	resp, err := m.Exec(ctx, at.CmdInfo)
	if err != nil {
		return nil, err
	}
	if err := CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("AT%s: %w", at.CmdInfo, err)
	}

	info := at.ParseInfo(resp.Payload())
	for _, field := range required {
		if _, ok := info[field]; !ok {
			return info, &MissingFieldError{Field: field}
		}
	}
	return info, nil
}

// Reset writes AT!RESET without waiting for an answer. The device reboots
// and usually drops the port before a result line would arrive.
func (m *Modem) Reset(ctx context.Context) error {
	if m.transport == nil {
		return ErrNotOpen
	}
	line, err := at.Encode(at.CmdReset, at.ModeExec)
	if err != nil {
		return err
	}
	if _, err := m.transport.Write([]byte(line)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	m.logger.Info("Reset requested")
	return nil
}

// expectOK runs a command and turns anything but an Ok response into an error.
func (m *Modem) expectOK(ctx context.Context, verb string, mode at.Mode, args ...at.Arg) error {
	resp, err := m.roundTrip(ctx, verb, mode, args...)
	if err != nil {
		return err
	}
	if err := CheckResponse(resp); err != nil {
		return fmt.Errorf("AT%s: %w", verb, err)
	}
	return nil
}

// roundTrip encodes and writes one request, then reads until a terminal line
// arrives or the command deadline passes. The deadline is the earlier of the
// context deadline and the configured AT timeout. Arguments are never logged,
// since some of them are unlock tokens.
func (m *Modem) roundTrip(ctx context.Context, verb string, mode at.Mode, args ...at.Arg) (at.Response, error) {
	if m.transport == nil {
		return at.Response{}, ErrNotOpen
	}

	line, err := at.Encode(verb, mode, args...)
	if err != nil {
		return at.Response{}, err
	}

	deadline := time.Now().Add(m.atTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	m.logger.Debug("Sending command", "verb", verb, "mode", mode)
	if _, err := m.transport.Write([]byte(line)); err != nil {
		return at.Response{}, &TransportError{Op: "write", Err: err}
	}

	raw, err := m.readResponse(ctx, deadline)
	if err != nil {
		return at.Response{}, err
	}

	resp, err := at.Decode(raw)
	if err != nil {
		m.drain(verb)
		return at.Response{}, &ProtocolError{Verb: verb, Err: err}
	}
	if resp.Status == at.Incomplete {
		m.drain(verb)
	}

	m.logger.Debug("Command finished", "verb", verb, "status", resp.Status, "lines", len(resp.Lines))
	return resp, nil
}

// readResponse accumulates transport bytes until they end in a terminal line
// or the deadline passes. Reads that time out return no bytes and no error.
func (m *Modem) readResponse(ctx context.Context, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 256)
	var raw []byte

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				m.drain("")
				return nil, err
			}
			break
		}

		n, err := m.transport.Read(buf)
		raw = append(raw, buf[:n]...)
		if len(raw) > m.maxResponse {
			m.drain("")
			return nil, ErrResponseTooLong
		}
		if err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
		if at.Terminated(raw) {
			return raw, nil
		}
	}
	return raw, nil
}

// drain discards late bytes so they do not end up in the next response.
func (m *Modem) drain(verb string) {
	m.logger.Warn("Discarding unread input", "verb", verb)
	if err := m.transport.ResetInputBuffer(); err != nil {
		m.logger.Warn("Could not reset input buffer", "error", err)
	}
}
