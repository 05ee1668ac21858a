package command

// Admin opcodes used by controller live migration
const (
	OpcodeSetFeatures         = 0x09
	OpcodeGetFeatures         = 0x0A
	OpcodeTrackSend           = 0x3D
	OpcodeTrackReceive        = 0x3E
	OpcodeMigrationSend       = 0x41
	OpcodeMigrationReceive    = 0x42
	OpcodeControllerDataQueue = 0x45
)

// Controller Data Queue management selectors (CDW10[15:0])
const (
	CDQSelectCreate = 0
	CDQSelectDelete = 1
)

// CDQ create flags (CDW11[0]): physically contiguous queue
const CDQCreatePhysicallyContiguous = 0x1

// FeatureIDControllerDataQueue is the CDQ head pointer / tail event feature
const FeatureIDControllerDataQueue = 0x21

// Migration Receive selectors
const MigrationReceiveGetControllerState = 0

// Bit positions shared by several commands
const (
	selectMask         = 0xff
	cdw11IDMask        = 0xffff
	hasTriggerBit      = 1 << 31
	deleteQueueBit     = 1 << 31
	sequenceIndMask    = 0x3
	featureSelectShift = 8
	featureSelectMask  = 0x7
	featureIDMask      = 0xff
	maxSequenceInd     = 3
)

func argString(names []string, idx int) string {
	if idx >= 0 && idx < len(names) && names[idx] != "" {
		return names[idx]
	}
	return "unrecognized"
}

// TrackSendSelect is the Track Send SEL field
type TrackSendSelect uint8

const (
	TrackSendLogUserDataChanges TrackSendSelect = 0
	TrackSendTrackMemoryChanges TrackSendSelect = 1
)

var trackSendSelectNames = []string{
	TrackSendLogUserDataChanges: "Log User Data Changes",
	TrackSendTrackMemoryChanges: "Track Memory Changes",
}

func (s TrackSendSelect) String() string {
	return argString(trackSendSelectNames, int(s))
}

// Management operations for TrackSendLogUserDataChanges
const (
	TrackSendStopLogging  uint16 = 0
	TrackSendStartLogging uint16 = 1
)

// MigrationSendSelect is the Migration Send SEL field
type MigrationSendSelect uint8

const (
	MigrationSendSuspend            MigrationSendSelect = 0
	MigrationSendResume             MigrationSendSelect = 1
	MigrationSendSetControllerState MigrationSendSelect = 2
)

var migrationSendSelectNames = []string{
	MigrationSendSuspend:            "Suspend",
	MigrationSendResume:             "Resume",
	MigrationSendSetControllerState: "Set Controller State",
}

func (s MigrationSendSelect) String() string {
	return argString(migrationSendSelectNames, int(s))
}

// SuspendType is the Migration Send suspend type (CDW11[23:16])
type SuspendType uint8

const (
	SuspendNotification SuspendType = 0
	Suspend             SuspendType = 1
)

// SequenceIndicator marks where a controller state chunk sits in a
// multi-part transfer (CDW10[17:16])
type SequenceIndicator uint8

const (
	SequenceMiddle SequenceIndicator = 0
	SequenceFirst  SequenceIndicator = 1
	SequenceLast   SequenceIndicator = 2
	SequenceEntire SequenceIndicator = 3
)

var sequenceIndicatorNames = []string{
	SequenceMiddle: "not first not last",
	SequenceFirst:  "first in two or more",
	SequenceLast:   "last in two or more",
	SequenceEntire: "entire state info",
}

func (s SequenceIndicator) String() string {
	return argString(sequenceIndicatorNames, int(s))
}

// FeatureSelect is the Get Features SEL field (CDW10[10:8])
type FeatureSelect uint8

const (
	FeatureSelectCurrent      FeatureSelect = 0
	FeatureSelectDefault      FeatureSelect = 1
	FeatureSelectSaved        FeatureSelect = 2
	FeatureSelectCapabilities FeatureSelect = 3
)

// OutputFormat selects how a decoded structure is rendered
type OutputFormat int

const (
	FormatNormal OutputFormat = iota
	FormatJSON
	FormatBinary
)

var outputFormatNames = []string{
	FormatNormal: "normal",
	FormatJSON:   "json",
	FormatBinary: "binary",
}

func (f OutputFormat) String() string {
	return argString(outputFormatNames, int(f))
}

// ParseOutputFormat accepts "normal", "json" or "binary"
func ParseOutputFormat(s string) (OutputFormat, error) {
	for i, name := range outputFormatNames {
		if s == name {
			return OutputFormat(i), nil
		}
	}
	return FormatNormal, invalidf("output format %q", s)
}
