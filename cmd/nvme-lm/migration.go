package main

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-nvme-lm/internal/config"
	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
)

// selectFlag converts an optional SEL flag; -1 means not given
func selectFlag(v int16) (*uint8, error) {
	if v < 0 {
		return nil, nil
	}
	if v > math.MaxUint8 {
		return nil, driver.NewErrorf(driver.StatusInvalidArgument, "invalid select %d", v)
	}
	sel := uint8(v)
	return &sel, nil
}

func newTrackSendCommand(a *app) *cobra.Command {
	var (
		op  command.TrackSend
		sel int16
	)
	cmd := &cobra.Command{
		Use:   "track-send",
		Short: "Manage the tracking of information by a controller",
		Long: `Track Send command used to manage the tracking of information by a controller.

Select 0 (Log User Data Changes) is the only supported select. --start and
--stop set the management operation to start or stop logging.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := selectFlag(sel)
			if err != nil {
				return err
			}
			if s != nil {
				ts := command.TrackSendSelect(*s)
				op.Select = &ts
			}
			return a.single(cmd, config.Step{Kind: config.KindTrackSend, Op: op})
		},
	}
	cmd.Flags().Int16VarP(&sel, "select", "s", -1, "Type of management operation to perform: 0 Log User Data Changes, 1 Track Memory Changes")
	cmd.Flags().Uint16VarP(&op.ManagementOperation, "mos", "m", 0, "Management operation specific")
	cmd.Flags().Uint16VarP(&op.CDQID, "cdqid", "C", 0, "Controller Data Queue ID")
	cmd.Flags().BoolVar(&op.Start, "start", false, "Equivalent to start tracking with defaults")
	cmd.Flags().BoolVar(&op.Stop, "stop", false, "Equivalent to stop tracking with defaults")
	return cmd
}

func newMigrationSendCommand(a *app) *cobra.Command {
	var (
		op     command.MigrationSend
		sel    int16
		stype  uint8
		seqind uint8
		input  string
	)
	cmd := &cobra.Command{
		Use:   "migration-send",
		Short: "Suspend, resume or load state into a controller",
		Long: `Migration Send command is used to manage the migration of a controller.

Select 0 suspends, 1 resumes and 2 sets the controller state from
--input-file, which must hold exactly --numd dwords.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := selectFlag(sel)
			if err != nil {
				return err
			}
			if s != nil {
				ms := command.MigrationSendSelect(*s)
				op.Select = &ms
			}
			op.SuspendType = command.SuspendType(stype)
			op.SequenceIndicator = command.SequenceIndicator(seqind)
			return a.single(cmd, config.Step{Kind: config.KindMigrationSend, Op: op, InputFile: input})
		},
	}
	cmd.Flags().Int16VarP(&sel, "select", "s", -1, "Select (SEL): 0 Suspend, 1 Resume, 2 Set Controller State")
	cmd.Flags().Uint16VarP(&op.ControllerID, "cntlid", "c", 0, "Controller Identifier (CDW11[15:00])")
	cmd.Flags().Uint8VarP(&stype, "suspend-type", "t", 0, "Type of suspend (CDW11[23:16]): 0 notification, 1 suspend")
	cmd.Flags().BoolVarP(&op.DeleteQueues, "delete", "d", false, "Delete user data migration queue as part of suspend operation (CDW11[31])")
	cmd.Flags().Uint8VarP(&seqind, "seq-ind", "S", 0, "Sequence Indicator (CDW10[17:16]): 0 middle, 1 first, 2 last, 3 entire")
	cmd.Flags().Uint8VarP(&op.UUIDIndex, "uuid-index", "U", 0, "Controller State UUID Index (CSUUIDI) (CDW11[31:24])")
	cmd.Flags().Uint8VarP(&op.VersionIndex, "version-index", "V", 0, "Controller State Version Index (CSVI) (CDW11[23:16])")
	cmd.Flags().Uint64VarP(&op.Offset, "offset", "o", 0, "Controller State Offset")
	cmd.Flags().Uint32VarP(&op.NumDwords, "numd", "n", 0, "Number of Dwords (NUMD)")
	cmd.Flags().StringVarP(&input, "input-file", "f", "", "Controller State Data input file")
	return cmd
}

func newMigrationRecvCommand(a *app) *cobra.Command {
	var (
		op     command.MigrationReceive
		output string
		format string
	)
	cmd := &cobra.Command{
		Use:   "migration-recv",
		Short: "Get the state of a controller",
		Long: `Migration Receive command is used to obtain information used to manage
a migratable controller.

The state is rendered to stdout unless --output-file is given, in which case
the first --numd dwords are written to the file. A non-zero --offset can only
be rendered with --output-format binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := command.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			op.Format = f
			return a.single(cmd, config.Step{Kind: config.KindMigrationReceive, Op: op, OutputFile: output, Format: f})
		},
	}
	cmd.Flags().Uint16VarP(&op.ControllerID, "cntlid", "c", 0, "Controller Identifier (CDW11[15:00])")
	cmd.Flags().Uint8VarP(&op.UUIDIndex, "uuid-index", "U", 0, "Controller State UUID Index (CSUUIDI) (CDW11[23:16])")
	cmd.Flags().Uint8VarP(&op.VersionIndex, "version-index", "V", 0, "Controller State Version Index (CSVI) (CDW10[23:16])")
	cmd.Flags().Uint64VarP(&op.Offset, "offset", "o", 0, "Controller State Offset")
	cmd.Flags().Uint32VarP(&op.NumDwords, "numd", "n", 0, "Number of Dwords (NUMD)")
	cmd.Flags().StringVarP(&output, "output-file", "f", "", "Controller State Data output file")
	cmd.Flags().StringVar(&format, "output-format", "normal", "Output format: normal, json, binary")
	cmd.Flags().BoolVarP(&op.Verbose, "human-readable", "H", false, "show info in readable format")
	return cmd
}
