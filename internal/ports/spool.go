package ports

import "github.com/ghalamif/VitalFlow/internal/domain"

type SpoolEntryID uint64

// Spool durably keeps messages the transport could not deliver so they can be
// replayed later.
type Spool interface {
	Append(msg *domain.Message) (SpoolEntryID, error)
	Iterate(from SpoolEntryID, fn func(id SpoolEntryID, msg *domain.Message) error) error
	Commit(upto SpoolEntryID) error
	Compact() error
	Stats() SpoolStats
	Close() error
}

type SpoolStats struct {
	OldestUncommitted SpoolEntryID
	LatestAppended    SpoolEntryID
	SizeBytes         int64
}

// Pending is the number of appended entries not yet committed.
func (s SpoolStats) Pending() uint64 {
	if s.LatestAppended < s.OldestUncommitted {
		return 0
	}
	return uint64(s.LatestAppended-s.OldestUncommitted) + 1
}
