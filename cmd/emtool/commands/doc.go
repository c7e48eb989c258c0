// Package commands defines the emtool CLI.
//
// Commands
//
//   - info             Print the ATI device information
//   - ports            List serial ports and mark the EM7455 AT port
//   - usb-info         Print USB identifiers and carrier profile
//   - unlock           Enter engineering mode and answer the OPENLOCK challenge
//   - repair-imei      Write and verify a new IMEI
//   - restore-generic  Restore the generic Sierra Wireless profile
//   - serve            Expose the workflows over HTTP
//
// Configuration is read from defaults, an optional YAML file, the
// environment and finally the command line, each overriding the previous.
package commands
