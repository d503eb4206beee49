package courier

import (
	"errors"

	"github.com/talgya/courier-world/internal/jobs"
)

// ErrEmptyHistory is returned by Pop when nothing has been recorded.
var ErrEmptyHistory = errors.New("courier: undo history is empty")

// DefaultUndoDepth bounds how many player actions can be rewound.
const DefaultUndoDepth = 20

// Record is one rewind point: the courier as it stood before an action,
// plus every job status at that moment.
type Record struct {
	Courier State                  `json:"courier"`
	Jobs    map[string]jobs.Status `json:"jobs"`
}

// History is a bounded LIFO of rewind points. Pushing past the cap evicts
// the oldest record.
type History struct {
	records []Record
	cap     int
}

// NewHistory builds a history holding at most depth records. A depth of
// zero or less falls back to DefaultUndoDepth.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &History{records: make([]Record, 0, depth), cap: depth}
}

// Push records a rewind point, evicting the oldest when full.
func (h *History) Push(r Record) {
	if len(h.records) == h.cap {
		copy(h.records, h.records[1:])
		h.records = h.records[:h.cap-1]
	}
	h.records = append(h.records, r)
}

// Pop removes and returns the most recent record.
func (h *History) Pop() (Record, error) {
	if len(h.records) == 0 {
		return Record{}, ErrEmptyHistory
	}
	r := h.records[len(h.records)-1]
	h.records = h.records[:len(h.records)-1]
	return r, nil
}

// Len returns how many rewind points are held.
func (h *History) Len() int { return len(h.records) }

// Cap returns the retention limit.
func (h *History) Cap() int { return h.cap }

// Records exposes the held rewind points, oldest first, for snapshots.
func (h *History) Records() []Record {
	return append([]Record(nil), h.records...)
}

// SetRecords replaces the held rewind points from a snapshot, trimming to
// the newest cap entries if oversized.
func (h *History) SetRecords(rs []Record) {
	if len(rs) > h.cap {
		rs = rs[len(rs)-h.cap:]
	}
	h.records = append(h.records[:0], rs...)
}
