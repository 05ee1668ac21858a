package layout

import "github.com/emergingrobotics/go-nvme-lm/pkg/driver"

// ParseMigrationQueue splits a CDQ buffer into entries. The buffer must
// hold a whole number of entries.
func ParseMigrationQueue(buf []byte) ([]MigrationQueueEntry, error) {
	if len(buf)%SizeOfMigrationQueueEntry != 0 {
		return nil, driver.NewErrorf(driver.StatusInvalidArgument,
			"migration queue length %d is not a multiple of %d", len(buf), SizeOfMigrationQueueEntry)
	}

	entries := make([]MigrationQueueEntry, len(buf)/SizeOfMigrationQueueEntry)
	for i := range entries {
		copy(entries[i][:], buf[i*SizeOfMigrationQueueEntry:])
	}
	return entries, nil
}

// EntryCount returns how many entries a buffer of n bytes holds
func EntryCount(n int) int {
	return n / SizeOfMigrationQueueEntry
}

// PutMigrationQueueEntry writes e into slot of a CDQ buffer
func PutMigrationQueueEntry(buf []byte, slot int, e MigrationQueueEntry) bool {
	off := slot * SizeOfMigrationQueueEntry
	if slot < 0 || off+SizeOfMigrationQueueEntry > len(buf) {
		return false
	}
	copy(buf[off:], e[:])
	return true
}
