// Carried-job inventory: an ordered set with a focus cursor and the sort
// modes the HUD cycles through. Weight math stays in the registry; this
// tracks identity and order only.
package courier

import (
	"fmt"
	"sort"

	"github.com/talgya/courier-world/internal/jobs"
)

// SortMode orders the carried list.
type SortMode uint8

const (
	SortInsertion SortMode = iota // Acceptance order
	SortPriority                  // Most urgent tier first
	SortDeadline                  // Soonest deadline first
	SortPayout                    // Richest first
)

func (m SortMode) String() string {
	switch m {
	case SortInsertion:
		return "insertion"
	case SortPriority:
		return "priority"
	case SortDeadline:
		return "deadline"
	case SortPayout:
		return "payout"
	default:
		return "unknown"
	}
}

// Item is one carried job reference. Seq preserves acceptance order across
// re-sorts.
type Item struct {
	JobID string `json:"job_id"`
	Seq   int    `json:"seq"`
}

// Inventory is the ordered carried set. The focus cursor survives sorting
// and wraps on navigation.
type Inventory struct {
	Items   []Item   `json:"items"`
	Focus   int      `json:"focus"`
	Mode    SortMode `json:"mode"`
	NextSeq int      `json:"next_seq"`
}

func (inv *Inventory) clone() Inventory {
	c := *inv
	c.Items = append([]Item(nil), inv.Items...)
	return c
}

// Len returns the number of carried jobs.
func (inv *Inventory) Len() int { return len(inv.Items) }

// IDs returns the carried job ids in current display order.
func (inv *Inventory) IDs() []string {
	out := make([]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		out = append(out, it.JobID)
	}
	return out
}

// Contains reports whether a job id is carried.
func (inv *Inventory) Contains(id string) bool {
	for _, it := range inv.Items {
		if it.JobID == id {
			return true
		}
	}
	return false
}

// Add appends a job at the end of the list.
func (inv *Inventory) Add(id string) error {
	if inv.Contains(id) {
		return fmt.Errorf("job %s already carried", id)
	}
	inv.Items = append(inv.Items, Item{JobID: id, Seq: inv.NextSeq})
	inv.NextSeq++
	return nil
}

// Remove drops a job, keeping the focus on the same remaining entry when
// possible.
func (inv *Inventory) Remove(id string) {
	for i, it := range inv.Items {
		if it.JobID != id {
			continue
		}
		inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
		if inv.Focus > i || inv.Focus >= len(inv.Items) {
			inv.Focus--
		}
		if inv.Focus < 0 {
			inv.Focus = 0
		}
		return
	}
}

// Focused returns the job id under the cursor.
func (inv *Inventory) Focused() (string, bool) {
	if len(inv.Items) == 0 {
		return "", false
	}
	return inv.Items[inv.Focus].JobID, true
}

// Next moves the cursor forward, wrapping at the end.
func (inv *Inventory) Next() {
	if len(inv.Items) == 0 {
		return
	}
	inv.Focus = (inv.Focus + 1) % len(inv.Items)
}

// Prev moves the cursor backward, wrapping at the start.
func (inv *Inventory) Prev() {
	if len(inv.Items) == 0 {
		return
	}
	inv.Focus = (inv.Focus - 1 + len(inv.Items)) % len(inv.Items)
}

// SortBy reorders the list. Ties fall back to acceptance order, and the
// focused job stays focused wherever it lands.
func (inv *Inventory) SortBy(mode SortMode, byID map[string]*jobs.Job) {
	focused, hadFocus := inv.Focused()
	inv.Mode = mode

	sort.SliceStable(inv.Items, func(i, j int) bool {
		a, b := inv.Items[i], inv.Items[j]
		ja, jb := byID[a.JobID], byID[b.JobID]
		if ja == nil || jb == nil {
			return a.Seq < b.Seq
		}
		switch mode {
		case SortPriority:
			if ja.Priority != jb.Priority {
				return ja.Priority < jb.Priority
			}
		case SortDeadline:
			if ja.Deadline != jb.Deadline {
				return ja.Deadline < jb.Deadline
			}
		case SortPayout:
			if ja.Payout != jb.Payout {
				return ja.Payout > jb.Payout
			}
		}
		return a.Seq < b.Seq
	})

	if hadFocus {
		for i, it := range inv.Items {
			if it.JobID == focused {
				inv.Focus = i
				break
			}
		}
	}
}
