package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/emtool/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Dial expects the dialer to hand out the transport and the modem to set
// its read timeout.
func (b *MockSequenceBuilder) Dial(dialer *modem.MockDialer) *MockSequenceBuilder {
	b.calls = append(b.calls,
		dialer.EXPECT().Dial(gomock.Any()).Return(b.transport, nil),
		b.transport.EXPECT().SetReadTimeout(gomock.Any()).Return(nil),
	)
	return b
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Command("ATE0\r", "ATE0\r\r\nOK\r\n")
}

// Command expects request to be written and answers it with a single read.
func (b *MockSequenceBuilder) Command(request, response string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(request)).Return(len(request), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, response), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Close() *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().Close().Return(nil))
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
