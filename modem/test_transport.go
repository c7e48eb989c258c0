package modem

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"i4.energy/across/emtool/at"
)

// Handler answers one request with the raw bytes the device would send.
// The request is passed without the AT prefix and the carriage return,
// for example "!OPENLOCK?" or "!ENTERCND=\"A710\"".
type Handler func(request string) string

// TestTransport is a test helper that simulates a modem behind a serial port.
// Each written request line is answered through a Handler and the answer is
// queued for reading. Like a real port, reads with nothing queued wait for the
// read timeout and return no data. Echo starts enabled and is switched off by
// ATE0, as on real hardware.
type TestTransport struct {
	mu          sync.Mutex
	handler     Handler
	pending     []byte
	requests    []string
	readTimeout time.Duration
	echo        bool
	closed      bool
	drains      int
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport(handler Handler) *TestTransport {
	return &TestTransport{
		handler:     handler,
		readTimeout: time.Millisecond,
		echo:        true,
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	line := strings.TrimRight(string(p), at.CRLF)
	request, _ := strings.CutPrefix(line, at.Prefix)
	t.requests = append(t.requests, request)

	if t.echo {
		t.pending = append(t.pending, line+at.CRLF...)
	}
	if request == at.CmdEchoOff {
		t.echo = false
	}
	if t.handler != nil {
		t.pending = append(t.pending, t.handler(request)...)
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.EOF
	}
	if len(t.pending) == 0 {
		timeout := t.readTimeout
		t.mu.Unlock()
		time.Sleep(timeout)
		return 0, nil
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	t.mu.Unlock()
	return n, nil
}

func (t *TestTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = d
	return nil
}

func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
	t.drains++
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SendData queues data to be read by the transport.
// This simulates late or unsolicited output from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, data...)
}

// Requests returns every request written so far, without the AT prefix.
func (t *TestTransport) Requests() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.requests...)
}

// Drains returns how often the input buffer was reset.
func (t *TestTransport) Drains() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drains
}

// Dial reopens the transport with echo enabled, so a TestTransport can serve
// as the Dialer of a Modem that is opened more than once.
func (t *TestTransport) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = false
	t.echo = true
	t.pending = nil
	return t, nil
}
