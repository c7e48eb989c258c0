package modem_test

import (
	"testing"
	"time"

	"i4.energy/across/emtool/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Builds with dialer and overrides", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().
			WithDialer(modem.SerialDialer{PortName: "/dev/ttyUSB2"}).
			WithATTimeout(time.Second).
			WithPollInterval(10 * time.Millisecond).
			WithMaxResponseLength(1024).
			Build()

		if err != nil {
			t.Errorf("unexpected error from Build(): %v", err)
		}
	})
}
