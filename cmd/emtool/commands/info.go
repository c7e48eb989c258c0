package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"i4.energy/across/emtool/modem"
)

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print device information (ATI)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newModem()
			if err != nil {
				return err
			}
			if err := m.Open(cmd.Context()); err != nil {
				return err
			}
			defer m.Close()

			info, err := m.Info(cmd.Context())
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
	return cmd
}

func printInfo(w io.Writer, info map[string]string) {
	for _, key := range slices.Sorted(maps.Keys(info)) {
		fmt.Fprintf(w, "%s: %s\n", key, info[key])
	}
}

func portsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and guess the EM7455 AT port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := modem.ListPorts()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, port := range ports {
				fmt.Fprintln(out, port)
			}
			if guess, ok := modem.GuessModemPort(ports); ok {
				fmt.Fprintf(out, "modem: %s\n", guess.Name)
			} else {
				fmt.Fprintln(out, "modem: none found")
			}
			return nil
		},
	}
	return cmd
}
