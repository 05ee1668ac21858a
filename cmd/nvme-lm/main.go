package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-nvme-lm/internal/config"
	"github.com/emergingrobotics/go-nvme-lm/internal/logging"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/lm"
)

// Version information (set by ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// device is an open controller the commands submit to
type device interface {
	lm.Submitter
	Close() error
}

// app holds the global flags and the device opener shared by subcommands
type app struct {
	devicePath string
	timeout    time.Duration
	logLevel   string
	logJSON    bool

	open func(path string) (device, error)
}

func openDevice(path string) (device, error) {
	dev, err := driver.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&app{open: openDevice})
}

func newRootCommandWith(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nvme-lm",
		Short: "NVMe controller live migration admin commands",
		Long: `Issue the NVMe live migration admin commands (Controller Data Queue,
Track Send, Migration Send, Migration Receive and the CDQ feature) to a
controller through the kernel admin passthrough interface.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.devicePath, "device", "D", config.DefaultDevice, "NVMe controller character device")
	flags.DurationVar(&a.timeout, "timeout", driver.DefaultTimeoutMs*time.Millisecond, "admin command timeout, 0 uses the kernel default")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&a.logJSON, "log-json", false, "write logs as JSON")

	cmd.AddCommand(
		newCreateCDQCommand(a),
		newDeleteCDQCommand(a),
		newTrackSendCommand(a),
		newMigrationSendCommand(a),
		newMigrationRecvCommand(a),
		newSetCDQCommand(a),
		newGetCDQCommand(a),
		newRunCommand(a),
		newScanCommand(),
		newDebugCommand(),
		newVersionCommand(),
	)
	return cmd
}

// logger builds the command logger. Logs go to the command's stderr so
// rendered output on stdout stays parseable.
func (a *app) logger(cmd *cobra.Command, level string) (zerolog.Logger, error) {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	cfg.Out = cmd.ErrOrStderr()
	cfg.JSON = a.logJSON
	if cmd.Flag("log-level").Changed || level == "" {
		level = a.logLevel
	}
	if level != "" {
		lvl, ok := logging.ParseLevel(level)
		if !ok {
			return zerolog.Nop(), driver.NewErrorf(driver.StatusInvalidArgument, "log level %q", level)
		}
		cfg.Level = lvl
	}
	return logging.New(cfg), nil
}
