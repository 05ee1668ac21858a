package ctrlstate

// Submission queue attributes (IOSQA)
const (
	sqPhysicallyContiguous = 0x1
	sqPriorityMask         = 0x6
	sqPriorityShift        = 1
)

// Completion queue attributes (IOCQA)
const (
	cqPhysicallyContiguous = 0x1
	cqInterruptsEnabled    = 0x2
	cqPhaseTag             = 0x4
	cqInterruptVectorShift = 16
)

// SQAttributes are the decoded IOSQA bits
type SQAttributes struct {
	Priority             uint8
	PhysicallyContiguous bool
}

// DecodeSQAttributes splits IOSQA into priority [2:1] and contiguity [0]
func DecodeSQAttributes(attrs uint16) SQAttributes {
	return SQAttributes{
		Priority:             uint8(attrs&sqPriorityMask) >> sqPriorityShift,
		PhysicallyContiguous: attrs&sqPhysicallyContiguous != 0,
	}
}

// CQAttributes are the decoded IOCQA bits
type CQAttributes struct {
	InterruptVector      uint16
	PhaseTag             uint8
	InterruptsEnabled    bool
	PhysicallyContiguous bool
}

// DecodeCQAttributes splits IOCQA into interrupt vector [31:16], phase
// tag [2], interrupt enable [1] and contiguity [0]
func DecodeCQAttributes(attrs uint32) CQAttributes {
	a := CQAttributes{
		InterruptVector:      uint16(attrs >> cqInterruptVectorShift),
		InterruptsEnabled:    attrs&cqInterruptsEnabled != 0,
		PhysicallyContiguous: attrs&cqPhysicallyContiguous != 0,
	}
	if attrs&cqPhaseTag != 0 {
		a.PhaseTag = 1
	}
	return a
}

func notUnless(set bool) string {
	if set {
		return ""
	}
	return "NOT "
}

func bit(set bool) uint8 {
	if set {
		return 1
	}
	return 0
}
