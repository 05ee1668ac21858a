package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/emergingrobotics/go-nvme-lm/internal/logging"
	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
)

// Operation kinds accepted in [[operation]] tables. They match the CLI
// subcommand names.
const (
	KindCreateCDQ        = "create-cdq"
	KindDeleteCDQ        = "delete-cdq"
	KindTrackSend        = "track-send"
	KindMigrationSend    = "migration-send"
	KindMigrationReceive = "migration-recv"
	KindSetCDQ           = "set-cdq"
	KindGetCDQ           = "get-cdq"
)

const DefaultDevice = "/dev/nvme0"

// Profile is a parsed operation profile
type Profile struct {
	Device   string
	Timeout  time.Duration
	LogLevel string
	Steps    []Step
}

// Step is one operation plus the file and rendering settings around it
type Step struct {
	Kind       string
	Op         command.Operation
	InputFile  string
	OutputFile string
	Format     command.OutputFormat
}

// nvme-lm profile file key mapping
type fileConfig struct {
	Device     string          `toml:"device"`
	TimeoutMs  int64           `toml:"timeout_ms"`
	LogLevel   string          `toml:"log_level"`
	Operations []operationFile `toml:"operation"`
}

type operationFile struct {
	Kind string `toml:"kind"`

	ControllerID int64  `toml:"cntlid"`
	QueueType    int64  `toml:"qt"`
	Size         int64  `toml:"size"`
	CDQID        int64  `toml:"cdqid"`
	Select       *int64 `toml:"sel"`
	MOS          int64  `toml:"mos"`
	Start        bool   `toml:"start"`
	Stop         bool   `toml:"stop"`

	SuspendType       int64  `toml:"stype"`
	Delete            bool   `toml:"delete"`
	SequenceIndicator int64  `toml:"seqind"`
	UUIDIndex         int64  `toml:"uuid_index"`
	VersionIndex      int64  `toml:"version_index"`
	Offset            int64  `toml:"offset"`
	NumDwords         int64  `toml:"numd"`
	InputFile         string `toml:"input_file"`
	OutputFile        string `toml:"output_file"`
	OutputFormat      string `toml:"output_format"`
	Verbose           bool   `toml:"verbose"`

	HeadPointer   int64  `toml:"head_pointer"`
	Trigger       *int64 `toml:"trigger"`
	FeatureSelect int64  `toml:"feature_select"`
}

// Load reads and validates a profile. Unknown keys are rejected so a
// typo cannot silently fall back to a zero field.
func Load(path string) (*Profile, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, driver.NewErrorf(driver.StatusInvalidArgument,
			"profile %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	p := &Profile{
		Device:   DefaultDevice,
		LogLevel: raw.LogLevel,
	}
	if meta.IsDefined("device") {
		p.Device = strings.TrimSpace(raw.Device)
	}
	if p.Device == "" {
		return nil, driver.NewErrorf(driver.StatusInvalidArgument, "profile %s: device is empty", path)
	}
	if raw.TimeoutMs < 0 || raw.TimeoutMs > math.MaxUint32 {
		return nil, driver.NewErrorf(driver.StatusInvalidArgument, "profile %s: timeout_ms %d out of range", path, raw.TimeoutMs)
	}
	p.Timeout = time.Duration(raw.TimeoutMs) * time.Millisecond
	if p.LogLevel != "" {
		if _, ok := logging.ParseLevel(p.LogLevel); !ok {
			return nil, driver.NewErrorf(driver.StatusInvalidArgument, "profile %s: log_level %q", path, p.LogLevel)
		}
	}

	for i, o := range raw.Operations {
		step, err := o.step()
		if err != nil {
			return nil, fmt.Errorf("profile %s: operation[%d] (%s): %w", path, i, o.Kind, err)
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

// checkRange rejects values that do not fit a field of the given width
func checkRange(name string, v int64, max uint64) error {
	if v < 0 || uint64(v) > max {
		return driver.NewErrorf(driver.StatusInvalidArgument, "%s %d out of range [0, %d]", name, v, max)
	}
	return nil
}

type rangeCheck struct {
	name string
	v    int64
	max  uint64
}

func checkRanges(checks ...rangeCheck) error {
	for _, c := range checks {
		if err := checkRange(c.name, c.v, c.max); err != nil {
			return err
		}
	}
	return nil
}

func (o operationFile) format() (command.OutputFormat, error) {
	if o.OutputFormat == "" {
		return command.FormatNormal, nil
	}
	return command.ParseOutputFormat(o.OutputFormat)
}

func (o operationFile) step() (Step, error) {
	s := Step{Kind: o.Kind, InputFile: o.InputFile, OutputFile: o.OutputFile}
	var err error

	switch o.Kind {
	case KindCreateCDQ:
		err = checkRanges(
			rangeCheck{"cntlid", o.ControllerID, math.MaxUint16},
			rangeCheck{"qt", o.QueueType, math.MaxUint8},
			rangeCheck{"size", o.Size, math.MaxUint32},
		)
		s.Op = command.CreateCDQ{
			QueueType:    uint8(o.QueueType),
			ControllerID: uint16(o.ControllerID),
			SizeDwords:   uint32(o.Size),
		}

	case KindDeleteCDQ:
		err = checkRange("cdqid", o.CDQID, math.MaxUint16)
		s.Op = command.DeleteCDQ{CDQID: uint16(o.CDQID)}

	case KindTrackSend:
		op := command.TrackSend{Start: o.Start, Stop: o.Stop}
		err = checkRanges(
			rangeCheck{"cdqid", o.CDQID, math.MaxUint16},
			rangeCheck{"mos", o.MOS, math.MaxUint16},
		)
		if err == nil && o.Select != nil {
			err = checkRange("sel", *o.Select, math.MaxUint8)
			sel := command.TrackSendSelect(*o.Select)
			op.Select = &sel
		}
		op.CDQID = uint16(o.CDQID)
		op.ManagementOperation = uint16(o.MOS)
		s.Op = op

	case KindMigrationSend:
		s.Op, err = o.migrationSend()

	case KindMigrationReceive:
		err = checkRanges(
			rangeCheck{"cntlid", o.ControllerID, math.MaxUint16},
			rangeCheck{"uuid_index", o.UUIDIndex, math.MaxUint8},
			rangeCheck{"version_index", o.VersionIndex, math.MaxUint8},
			rangeCheck{"offset", o.Offset, math.MaxInt64},
			rangeCheck{"numd", o.NumDwords, math.MaxUint32},
		)
		if err == nil {
			s.Format, err = o.format()
		}
		s.Op = command.MigrationReceive{
			ControllerID: uint16(o.ControllerID),
			UUIDIndex:    uint8(o.UUIDIndex),
			VersionIndex: uint8(o.VersionIndex),
			Offset:       uint64(o.Offset),
			NumDwords:    uint32(o.NumDwords),
			Format:       s.Format,
			Verbose:      o.Verbose,
		}

	case KindSetCDQ:
		err = checkRanges(
			rangeCheck{"cdqid", o.CDQID, math.MaxUint16},
			rangeCheck{"head_pointer", o.HeadPointer, math.MaxUint32},
		)
		op := command.FeatureSet{CDQID: uint16(o.CDQID), HeadPointer: uint32(o.HeadPointer)}
		if err == nil && o.Trigger != nil {
			if *o.Trigger < math.MinInt32 || *o.Trigger > math.MaxInt32 {
				err = driver.NewErrorf(driver.StatusInvalidArgument, "trigger %d out of range", *o.Trigger)
			}
			op.Trigger = command.TriggerFromSlot(int32(*o.Trigger))
		}
		s.Op = op

	case KindGetCDQ:
		err = checkRanges(
			rangeCheck{"cdqid", o.CDQID, math.MaxUint16},
			rangeCheck{"feature_select", o.FeatureSelect, math.MaxUint8},
		)
		if err == nil {
			s.Format, err = o.format()
		}
		s.Op = command.FeatureGet{CDQID: uint16(o.CDQID), Select: command.FeatureSelect(o.FeatureSelect)}

	case "":
		return Step{}, driver.NewError(driver.StatusInvalidArgument, "kind is required")
	default:
		return Step{}, driver.NewErrorf(driver.StatusInvalidArgument, "unknown kind %q", o.Kind)
	}

	if err != nil {
		return Step{}, err
	}
	if err := ValidateStep(s); err != nil {
		return Step{}, err
	}
	return s, nil
}

func (o operationFile) migrationSend() (command.Operation, error) {
	err := checkRanges(
		rangeCheck{"cntlid", o.ControllerID, math.MaxUint16},
		rangeCheck{"stype", o.SuspendType, math.MaxUint8},
		rangeCheck{"seqind", o.SequenceIndicator, 3},
		rangeCheck{"uuid_index", o.UUIDIndex, math.MaxUint8},
		rangeCheck{"version_index", o.VersionIndex, math.MaxUint8},
		rangeCheck{"offset", o.Offset, math.MaxInt64},
		rangeCheck{"numd", o.NumDwords, math.MaxUint32},
	)
	if err == nil && o.Select != nil {
		err = checkRange("sel", *o.Select, math.MaxUint8)
	}
	if err != nil {
		return nil, err
	}

	op := command.MigrationSend{
		ControllerID:      uint16(o.ControllerID),
		SuspendType:       command.SuspendType(o.SuspendType),
		DeleteQueues:      o.Delete,
		SequenceIndicator: command.SequenceIndicator(o.SequenceIndicator),
		UUIDIndex:         uint8(o.UUIDIndex),
		VersionIndex:      uint8(o.VersionIndex),
		Offset:            uint64(o.Offset),
		NumDwords:         uint32(o.NumDwords),
	}
	if o.Select != nil {
		sel := command.MigrationSendSelect(*o.Select)
		op.Select = &sel
	}
	return op, nil
}

// ValidateStep runs the operation's own validation. A Set Controller State
// payload is read from InputFile at run time, so it is checked here against
// a placeholder of the declared size.
func ValidateStep(s Step) error {
	op := s.Op
	if ms, ok := op.(command.MigrationSend); ok && ms.Select != nil {
		switch {
		case *ms.Select == command.MigrationSendSetControllerState && s.InputFile == "":
			return driver.NewError(driver.StatusInvalidArgument, "input_file is required for Set Controller State")
		case *ms.Select != command.MigrationSendSetControllerState && s.InputFile != "":
			return driver.NewErrorf(driver.StatusInvalidArgument, "input_file does not apply to %s", *ms.Select)
		case s.InputFile != "":
			ms.Payload = make([]byte, int(ms.NumDwords)*driver.DwordSize)
			op = ms
		}
	}
	return op.Validate()
}
