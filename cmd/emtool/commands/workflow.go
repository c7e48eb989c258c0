package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"i4.energy/across/emtool/unlock"
)

func usbInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usb-info",
		Short: "Print USB identifiers and carrier profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, cleanup, err := newWorkflow()
			if err != nil {
				return err
			}
			defer cleanup()

			lines, res := w.USBInfo(cmd.Context())
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return res.Err()
		},
	}
	return cmd
}

func unlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Enter engineering mode and answer the OPENLOCK challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, cleanup, err := newWorkflow()
			if err != nil {
				return err
			}
			defer cleanup()

			res := w.Unlock(cmd.Context())
			printResult(cmd.OutOrStdout(), res)
			return res.Err()
		},
	}
	return cmd
}

func repairIMEICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair-imei [imei]",
		Short: "Write a new IMEI to NV memory and verify it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, cleanup, err := newWorkflow()
			if err != nil {
				return err
			}
			defer cleanup()

			res := w.RepairIMEI(cmd.Context(), args[0])
			printResult(cmd.OutOrStdout(), res)
			return res.Err()
		},
	}
	return cmd
}

func restoreGenericCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore-generic",
		Short: "Restore the generic Sierra Wireless USB identity and carrier profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, cleanup, err := newWorkflow()
			if err != nil {
				return err
			}
			defer cleanup()

			res := w.RestoreGenericProfile(cmd.Context())
			printResult(cmd.OutOrStdout(), res)
			return res.Err()
		},
	}
	return cmd
}

func printResult(w io.Writer, res unlock.Result) {
	fmt.Fprintf(w, "state: %s\n", res.State)
	if res.PreviousIMEI != "" {
		fmt.Fprintf(w, "previous IMEI: %s\n", res.PreviousIMEI)
	}
	if res.CurrentIMEI != "" {
		fmt.Fprintf(w, "current IMEI: %s\n", res.CurrentIMEI)
	}
	if res.OK() {
		return
	}
	fmt.Fprintf(w, "reason: %s\nstep: %s\nclass: %s\n", res.Reason, res.Step, res.Class)
	if res.Unsafe {
		fmt.Fprintln(w, "WARNING: device state is uncertain, check the IMEI and retry")
	}
}
