package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan for NVMe controllers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := driver.ScanDevices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No NVMe controllers found")
				return nil
			}
			fmt.Fprintf(out, "Found %d NVMe controller(s):\n", len(devices))
			for i, dev := range devices {
				fmt.Fprintf(out, "  [%d] %s\n", i, dev)
			}
			return nil
		},
	}
}

func newDebugCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Print IOCTL and structure layout information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "IOCTL Debug Information")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Struct Sizes:")
			fmt.Fprintf(out, "  PassthruCmd:               %d bytes\n", driver.SizeOfPassthruCmd)
			fmt.Fprintf(out, "  MigrationQueueEntry:       %d bytes\n", layout.SizeOfMigrationQueueEntry)
			fmt.Fprintf(out, "  ControllerStateHeader:     %d bytes\n", layout.SizeOfControllerStateHeader)
			fmt.Fprintf(out, "  NVMeControllerStateHeader: %d bytes\n", layout.SizeOfNVMeControllerStateHeader)
			fmt.Fprintf(out, "  SubmissionQueueData:       %d bytes\n", layout.SizeOfSubmissionQueueData)
			fmt.Fprintf(out, "  CompletionQueueData:       %d bytes\n", layout.SizeOfCompletionQueueData)
			fmt.Fprintf(out, "  CDQFeatureData:            %d bytes\n", layout.SizeOfCDQFeatureData)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "IOCTL Command Codes:")
			fmt.Fprintf(out, "  NVMeAdminCmd: 0x%08x\n", driver.GetIoctlNVMeAdminCmd())
			fmt.Fprintf(out, "  NVMeID:       0x%08x\n", driver.GetIoctlNVMeID())
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Admin Opcodes:")
			fmt.Fprintf(out, "  SetFeatures:         0x%02x\n", command.OpcodeSetFeatures)
			fmt.Fprintf(out, "  GetFeatures:         0x%02x\n", command.OpcodeGetFeatures)
			fmt.Fprintf(out, "  TrackSend:           0x%02x\n", command.OpcodeTrackSend)
			fmt.Fprintf(out, "  TrackReceive:        0x%02x\n", command.OpcodeTrackReceive)
			fmt.Fprintf(out, "  MigrationSend:       0x%02x\n", command.OpcodeMigrationSend)
			fmt.Fprintf(out, "  MigrationReceive:    0x%02x\n", command.OpcodeMigrationReceive)
			fmt.Fprintf(out, "  ControllerDataQueue: 0x%02x\n", command.OpcodeControllerDataQueue)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nvme-lm version %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Go version: %s\n", GoVersion)
		},
	}
}
