package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"i4.energy/across/emtool/keygen"
	"i4.energy/across/emtool/modem"
	"i4.energy/across/emtool/unlock"
)

var (
	configPath string
	config     *Config
	logger     *slog.Logger
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "emtool",
		Short:        "Sierra Wireless EM7455 engineering tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			config, err = LoadConfig(WithDefaults(), WithFile(configPath), WithEnv(), WithFlags(cmd.Flags()))
			if err != nil {
				return err
			}
			logger = newLogger(config.LogLevel)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.String("serial-port", "", "modem AT port (default: first attached EM7455)")
	flags.Int("baud-rate", modem.DefaultBaudRate, "baud rate for serial communication")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("at-timeout", "2s", "timeout of a single AT command")
	flags.String("keygen-command", "", "external key generator, called with <class> <challenge> <variant>")
	flags.String("keygen-mqtt-broker", "", "MQTT broker of a remote key service (e.g. tcp://localhost:1883)")
	flags.String("keygen-mqtt-topic", "emtool/keygen", "topic prefix of the remote key service")

	root.AddCommand(
		infoCmd(),
		portsCmd(),
		usbInfoCmd(),
		unlockCmd(),
		repairIMEICmd(),
		restoreGenericCmd(),
		serveCmd(),
	)

	root.SetErrPrefix("emtool:")
	return root
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// newModem builds a closed Modem for the configured serial port.
func newModem() (*modem.Modem, error) {
	portName := config.SerialPort
	if portName == "" {
		ports, err := modem.ListPorts()
		if err != nil {
			return nil, err
		}
		port, ok := modem.GuessModemPort(ports)
		if !ok {
			return nil, errors.New("no EM7455 found, use --serial-port")
		}
		logger.Info("Selected serial port", "port", port.Name, "product", port.Product)
		portName = port.Name
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(config.ATTimeout).
		WithLogger(logger.With("component", "modem")).
		WithDialer(modem.SerialDialer{
			PortName: portName,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("create modem config: %w", err)
	}
	return modem.New(modemConfig)
}

// newSolver returns the configured key derivation, or nil when none is set.
// The returned cleanup disconnects an MQTT client.
func newSolver() (keygen.Solver, func(), error) {
	kc := config.Keygen
	switch {
	case kc.Command != "":
		return keygen.CommandSolver{Path: kc.Command, Args: kc.Args}, func() {}, nil
	case kc.MQTTBroker != "":
		client, err := keygen.Connect(kc.MQTTBroker, "emtool-"+strings.ReplaceAll(hostname(), ".", "-"), kc.MQTTUsername, kc.MQTTPassword)
		if err != nil {
			return nil, nil, err
		}
		solver := keygen.MQTTSolver{Broker: client, Topic: kc.MQTTTopic, Timeout: kc.Timeout}
		return solver, func() { client.Disconnect(250) }, nil
	default:
		return nil, func() {}, nil
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return name
}

// newWorkflow wires a Modem and the key derivation into a Workflow.
func newWorkflow() (*unlock.Workflow, *modem.Modem, func(), error) {
	m, err := newModem()
	if err != nil {
		return nil, nil, nil, err
	}
	solver, cleanup, err := newSolver()
	if err != nil {
		return nil, nil, nil, err
	}
	w, err := unlock.New(m,
		unlock.WithSolver(solver),
		unlock.WithLogger(logger.With("component", "workflow")),
	)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return w, m, cleanup, nil
}
