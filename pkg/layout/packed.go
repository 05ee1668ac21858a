// Package layout defines the fixed-size binary records exchanged with a
// migratable NVMe controller. Every record is a packed little-endian byte
// array with accessor methods; sub-byte fields are extracted with explicit
// masks so the wire layout does not depend on the host.
package layout

import (
	"encoding/binary"
	"unsafe"
)

// LBAChangeInfo is the LBA Change Information Attribute (LBACIR) of a
// migration queue entry
type LBAChangeInfo uint8

const (
	LBARangeValid    LBAChangeInfo = 0b00
	AllLogicalBlocks LBAChangeInfo = 0b01
	NoRangeReported  LBAChangeInfo = 0b10
)

var lbaChangeInfoNames = map[LBAChangeInfo]string{
	LBARangeValid:    "LBA range valid",
	AllLogicalBlocks: "all logical blocks changed",
	NoRangeReported:  "no range reported",
}

// String returns the attribute name
func (c LBAChangeInfo) String() string {
	if name, ok := lbaChangeInfoNames[c]; ok {
		return name
	}
	return "reserved"
}

// Attribute byte of a migration queue entry (byte 31)
const (
	entryPhaseTagMask    = 0x01
	entrySeqAttrShift    = 1
	entrySeqAttrMask     = 0x07
	entryDeallocatedBit  = 1 << 5
	entryChangeInfoShift = 6
	entryChangeInfoMask  = 0x03
)

// EntryAttributes holds the sub-fields packed into the last byte of a
// migration queue entry
type EntryAttributes struct {
	PhaseTag          uint8 // CDQP, 1 bit
	SequenceAttribute uint8 // ESA, 3 bits
	DeallocatedLBAs   bool  // DLBA
	ChangeInfo        LBAChangeInfo
}

// pack encodes the attributes into a single byte, truncating each field to its width
func (a EntryAttributes) pack() byte {
	b := a.PhaseTag & entryPhaseTagMask
	b |= (a.SequenceAttribute & entrySeqAttrMask) << entrySeqAttrShift
	if a.DeallocatedLBAs {
		b |= entryDeallocatedBit
	}
	b |= (uint8(a.ChangeInfo) & entryChangeInfoMask) << entryChangeInfoShift
	return b
}

// MigrationQueueEntry is an LBA Migration Queue Entry Type 0: 32 bytes
//
//	__u32 nsid;        // offset 0
//	__u32 nlb;         // offset 4
//	__u64 slba;        // offset 8
//	__u8  rsvd16[15];  // offset 16
//	__u8  attrs;       // offset 31: cdqp:1 esa:3 rsvd:1 dlba:1 lbacir:2
type MigrationQueueEntry [32]byte

// NewMigrationQueueEntry builds an entry as a controller would post it
func NewMigrationQueueEntry(nsid, nlb uint32, slba uint64, attrs EntryAttributes) MigrationQueueEntry {
	var e MigrationQueueEntry
	binary.LittleEndian.PutUint32(e[0:4], nsid)
	binary.LittleEndian.PutUint32(e[4:8], nlb)
	binary.LittleEndian.PutUint64(e[8:16], slba)
	e[31] = attrs.pack()
	return e
}

func (e *MigrationQueueEntry) NSID() uint32 {
	return binary.LittleEndian.Uint32(e[0:4])
}

func (e *MigrationQueueEntry) NLB() uint32 {
	return binary.LittleEndian.Uint32(e[4:8])
}

func (e *MigrationQueueEntry) SLBA() uint64 {
	return binary.LittleEndian.Uint64(e[8:16])
}

func (e *MigrationQueueEntry) PhaseTag() uint8 {
	return e[31] & entryPhaseTagMask
}

func (e *MigrationQueueEntry) SequenceAttribute() uint8 {
	return (e[31] >> entrySeqAttrShift) & entrySeqAttrMask
}

func (e *MigrationQueueEntry) DeallocatedLBAs() bool {
	return e[31]&entryDeallocatedBit != 0
}

func (e *MigrationQueueEntry) ChangeInfo() LBAChangeInfo {
	return LBAChangeInfo((e[31] >> entryChangeInfoShift) & entryChangeInfoMask)
}

// Attributes unpacks the attribute byte
func (e *MigrationQueueEntry) Attributes() EntryAttributes {
	return EntryAttributes{
		PhaseTag:          e.PhaseTag(),
		SequenceAttribute: e.SequenceAttribute(),
		DeallocatedLBAs:   e.DeallocatedLBAs(),
		ChangeInfo:        e.ChangeInfo(),
	}
}

// ControllerStateHeader: 48 bytes
//
//	__u16 ver;          // offset 0
//	__u8  csattr;       // offset 2, bit 0 = controller suspended
//	__u8  rsvd3[13];    // offset 3
//	__u8  nvmecss[16];  // offset 16, NVMe controller state size
//	__u8  vss[16];      // offset 32, vendor specific size
type ControllerStateHeader [48]byte

// ControllerSuspended is bit 0 of CSATTR
const ControllerSuspended = 0x1

func NewControllerStateHeader(version uint16, attrs uint8, nvmeStateSize, vendorSize Uint128) ControllerStateHeader {
	var h ControllerStateHeader
	binary.LittleEndian.PutUint16(h[0:2], version)
	h[2] = attrs
	nvmeStateSize.put(h[16:32])
	vendorSize.put(h[32:48])
	return h
}

func (h *ControllerStateHeader) Version() uint16 {
	return binary.LittleEndian.Uint16(h[0:2])
}

func (h *ControllerStateHeader) Attributes() uint8 {
	return h[2]
}

func (h *ControllerStateHeader) Suspended() bool {
	return h[2]&ControllerSuspended != 0
}

func (h *ControllerStateHeader) NVMeControllerStateSize() Uint128 {
	return uint128At(h[16:32])
}

func (h *ControllerStateHeader) VendorSpecificSize() Uint128 {
	return uint128At(h[32:48])
}

// NVMeControllerStateHeader: 8 bytes
//
//	__u16 ver;    // offset 0
//	__u16 niosq;  // offset 2
//	__u16 niocq;  // offset 4
//	__u16 rsvd;   // offset 6
type NVMeControllerStateHeader [8]byte

func NewNVMeControllerStateHeader(version, niosq, niocq uint16) NVMeControllerStateHeader {
	var h NVMeControllerStateHeader
	binary.LittleEndian.PutUint16(h[0:2], version)
	binary.LittleEndian.PutUint16(h[2:4], niosq)
	binary.LittleEndian.PutUint16(h[4:6], niocq)
	return h
}

func (h *NVMeControllerStateHeader) Version() uint16 {
	return binary.LittleEndian.Uint16(h[0:2])
}

func (h *NVMeControllerStateHeader) NIOSQ() uint16 {
	return binary.LittleEndian.Uint16(h[2:4])
}

func (h *NVMeControllerStateHeader) NIOCQ() uint16 {
	return binary.LittleEndian.Uint16(h[4:6])
}

// SubmissionQueueData: 24 bytes
//
//	__u64 prp1;    // offset 0
//	__u16 qsize;   // offset 8
//	__u16 qid;     // offset 10
//	__u16 cqid;    // offset 12
//	__u16 attrs;   // offset 14: [2:1] priority, [0] physically contiguous
//	__u16 hp;      // offset 16
//	__u16 tp;      // offset 18
//	__u8  rsvd[4]; // offset 20
type SubmissionQueueData [24]byte

// SubmissionQueueFields is the unpacked form of SubmissionQueueData
type SubmissionQueueFields struct {
	PRP1              uint64
	QueueSize         uint16
	QueueID           uint16
	CompletionQueueID uint16
	Attributes        uint16
	HeadPointer       uint16
	TailPointer       uint16
}

func NewSubmissionQueueData(f SubmissionQueueFields) SubmissionQueueData {
	var q SubmissionQueueData
	binary.LittleEndian.PutUint64(q[0:8], f.PRP1)
	binary.LittleEndian.PutUint16(q[8:10], f.QueueSize)
	binary.LittleEndian.PutUint16(q[10:12], f.QueueID)
	binary.LittleEndian.PutUint16(q[12:14], f.CompletionQueueID)
	binary.LittleEndian.PutUint16(q[14:16], f.Attributes)
	binary.LittleEndian.PutUint16(q[16:18], f.HeadPointer)
	binary.LittleEndian.PutUint16(q[18:20], f.TailPointer)
	return q
}

// Fields unpacks the record
func (q *SubmissionQueueData) Fields() SubmissionQueueFields {
	return SubmissionQueueFields{
		PRP1:              binary.LittleEndian.Uint64(q[0:8]),
		QueueSize:         binary.LittleEndian.Uint16(q[8:10]),
		QueueID:           binary.LittleEndian.Uint16(q[10:12]),
		CompletionQueueID: binary.LittleEndian.Uint16(q[12:14]),
		Attributes:        binary.LittleEndian.Uint16(q[14:16]),
		HeadPointer:       binary.LittleEndian.Uint16(q[16:18]),
		TailPointer:       binary.LittleEndian.Uint16(q[18:20]),
	}
}

// CompletionQueueData: 24 bytes
//
//	__u64 prp1;    // offset 0
//	__u16 qsize;   // offset 8
//	__u16 qid;     // offset 10
//	__u16 hp;      // offset 12
//	__u16 tp;      // offset 14
//	__u32 attrs;   // offset 16: [31:16] IV, [2] phase, [1] IEN, [0] PC
//	__u8  rsvd[4]; // offset 20
type CompletionQueueData [24]byte

// CompletionQueueFields is the unpacked form of CompletionQueueData
type CompletionQueueFields struct {
	PRP1        uint64
	QueueSize   uint16
	QueueID     uint16
	HeadPointer uint16
	TailPointer uint16
	Attributes  uint32
}

func NewCompletionQueueData(f CompletionQueueFields) CompletionQueueData {
	var q CompletionQueueData
	binary.LittleEndian.PutUint64(q[0:8], f.PRP1)
	binary.LittleEndian.PutUint16(q[8:10], f.QueueSize)
	binary.LittleEndian.PutUint16(q[10:12], f.QueueID)
	binary.LittleEndian.PutUint16(q[12:14], f.HeadPointer)
	binary.LittleEndian.PutUint16(q[14:16], f.TailPointer)
	binary.LittleEndian.PutUint32(q[16:20], f.Attributes)
	return q
}

// Fields unpacks the record
func (q *CompletionQueueData) Fields() CompletionQueueFields {
	return CompletionQueueFields{
		PRP1:        binary.LittleEndian.Uint64(q[0:8]),
		QueueSize:   binary.LittleEndian.Uint16(q[8:10]),
		QueueID:     binary.LittleEndian.Uint16(q[10:12]),
		HeadPointer: binary.LittleEndian.Uint16(q[12:14]),
		TailPointer: binary.LittleEndian.Uint16(q[14:16]),
		Attributes:  binary.LittleEndian.Uint32(q[16:20]),
	}
}

// CDQFeatureData is the Controller Data Queue feature payload: 512 bytes
//
//	__u32 hp;          // offset 0, head pointer
//	__u32 tpt;         // offset 4, tail pointer trigger
//	__u8  rsvd8[504];  // offset 8
type CDQFeatureData [512]byte

func NewCDQFeatureData(headPointer, tailPointerTrigger uint32) CDQFeatureData {
	var d CDQFeatureData
	binary.LittleEndian.PutUint32(d[0:4], headPointer)
	binary.LittleEndian.PutUint32(d[4:8], tailPointerTrigger)
	return d
}

func (d *CDQFeatureData) HeadPointer() uint32 {
	return binary.LittleEndian.Uint32(d[0:4])
}

func (d *CDQFeatureData) TailPointerTrigger() uint32 {
	return binary.LittleEndian.Uint32(d[4:8])
}

// Packed size constants
const (
	SizeOfMigrationQueueEntry       = int(unsafe.Sizeof(MigrationQueueEntry{}))
	SizeOfControllerStateHeader     = int(unsafe.Sizeof(ControllerStateHeader{}))
	SizeOfNVMeControllerStateHeader = int(unsafe.Sizeof(NVMeControllerStateHeader{}))
	SizeOfSubmissionQueueData       = int(unsafe.Sizeof(SubmissionQueueData{}))
	SizeOfCompletionQueueData       = int(unsafe.Sizeof(CompletionQueueData{}))
	SizeOfCDQFeatureData            = int(unsafe.Sizeof(CDQFeatureData{}))

	// MigrationQueueEntryDwords is the entry size in dwords; CDQ sizes are
	// expressed in dwords and must be a multiple of it
	MigrationQueueEntryDwords = SizeOfMigrationQueueEntry / 4
)

// Field widths of each record, summed from the C declarations
const (
	migrationQueueEntryFields       = 4 + 4 + 8 + 15 + 1
	controllerStateHeaderFields     = 2 + 1 + 13 + 16 + 16
	nvmeControllerStateHeaderFields = 2 + 2 + 2 + 2
	submissionQueueDataFields       = 8 + 2 + 2 + 2 + 2 + 2 + 2 + 4
	completionQueueDataFields       = 8 + 2 + 2 + 2 + 2 + 4 + 4
	cdqFeatureDataFields            = 4 + 4 + 504
)

// A size mismatch makes one of these array lengths negative and fails the build
var (
	_ [SizeOfMigrationQueueEntry - migrationQueueEntryFields]struct{}
	_ [migrationQueueEntryFields - SizeOfMigrationQueueEntry]struct{}
	_ [SizeOfControllerStateHeader - controllerStateHeaderFields]struct{}
	_ [controllerStateHeaderFields - SizeOfControllerStateHeader]struct{}
	_ [SizeOfNVMeControllerStateHeader - nvmeControllerStateHeaderFields]struct{}
	_ [nvmeControllerStateHeaderFields - SizeOfNVMeControllerStateHeader]struct{}
	_ [SizeOfSubmissionQueueData - submissionQueueDataFields]struct{}
	_ [submissionQueueDataFields - SizeOfSubmissionQueueData]struct{}
	_ [SizeOfCompletionQueueData - completionQueueDataFields]struct{}
	_ [completionQueueDataFields - SizeOfCompletionQueueData]struct{}
	_ [SizeOfCDQFeatureData - cdqFeatureDataFields]struct{}
	_ [cdqFeatureDataFields - SizeOfCDQFeatureData]struct{}
)
