package main

import (
	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-nvme-lm/internal/config"
	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
)

func newCreateCDQCommand(a *app) *cobra.Command {
	var (
		op      command.CreateCDQ
		consent bool
	)
	cmd := &cobra.Command{
		Use:   "create-cdq",
		Short: "Create a Controller Data Queue",
		Long: `Create Controller Data Queue for controller of specific type and size.

The queue buffer belongs to this process. It is released when nvme-lm exits
while the controller keeps writing to it, so creation requires --consent.
Use "nvme-lm run" to create, drain and delete a queue in one process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !consent {
				return driver.NewError(driver.StatusInvalidArgument, "create-cdq requires --consent")
			}
			return a.single(cmd, config.Step{Kind: config.KindCreateCDQ, Op: op})
		},
	}

	cmd.Flags().Uint32VarP(&op.SizeDwords, "size", "s", 0, "CDQ size (in dwords)")
	cmd.Flags().Uint16VarP(&op.ControllerID, "cntlid", "c", 0, "Controller ID")
	cmd.Flags().Uint8VarP(&op.QueueType, "queue-type", "q", 0, "Queue Type (default: 0 = User Data Migration Queue)")
	cmd.Flags().BoolVar(&consent, "consent", false, "accept that the queue buffer does not outlive this process")
	return cmd
}

func newDeleteCDQCommand(a *app) *cobra.Command {
	var op command.DeleteCDQ
	cmd := &cobra.Command{
		Use:   "delete-cdq",
		Short: "Delete a Controller Data Queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.single(cmd, config.Step{Kind: config.KindDeleteCDQ, Op: op})
		},
	}
	cmd.Flags().Uint16VarP(&op.CDQID, "cdqid", "C", 0, "Controller Data Queue ID")
	return cmd
}

func newSetCDQCommand(a *app) *cobra.Command {
	var (
		op  command.FeatureSet
		tpt int32
	)
	cmd := &cobra.Command{
		Use:   "set-cdq",
		Short: "Set the CDQ head pointer feature",
		Long: `Update the head pointer of a Controller Data Queue and optionally
the tail pointer trigger slot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op.Trigger = command.TriggerFromSlot(tpt)
			return a.single(cmd, config.Step{Kind: config.KindSetCDQ, Op: op})
		},
	}
	cmd.Flags().Uint16VarP(&op.CDQID, "cdqid", "C", 0, "Controller Data Queue ID")
	cmd.Flags().Uint32VarP(&op.HeadPointer, "hp", "H", 0, "The slot of the head pointer for the specified CDQ")
	cmd.Flags().Int32VarP(&tpt, "tpt", "T", -1, "If specified, the slot that causes the controller to issue a CDQ tail pointer event")
	return cmd
}

func newGetCDQCommand(a *app) *cobra.Command {
	var (
		op     command.FeatureGet
		format string
	)
	cmd := &cobra.Command{
		Use:   "get-cdq",
		Short: "Get the CDQ head pointer feature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := command.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			return a.single(cmd, config.Step{Kind: config.KindGetCDQ, Op: op, Format: f})
		},
	}
	cmd.Flags().Uint16VarP(&op.CDQID, "cdqid", "C", 0, "Controller Data Queue ID")
	cmd.Flags().Uint8Var((*uint8)(&op.Select), "select", 0, "Feature select: 0 current, 1 default, 2 saved, 3 supported capabilities")
	cmd.Flags().StringVarP(&format, "output-format", "o", "normal", "Output format: normal, json, binary")
	return cmd
}
