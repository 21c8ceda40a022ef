// Package analysis cross-checks device connectivity between subscription groups.
package analysis

import (
	"sort"

	"github.com/msgtrace/tracecheck/internal/devices"
	"github.com/msgtrace/tracecheck/internal/models"
)

// Pair names two subscription groups to compare.
type Pair struct {
	Left  string
	Right string
}

// Mismatch is a device whose connectivity differs between the two groups.
type Mismatch struct {
	ClientID  string
	Reference models.DeviceState
	Other     models.DeviceState
}

// Report is the result of comparing two groups.
type Report struct {
	Reference        string
	Other            string
	ReferenceMissing bool // the reference group was never established
	OtherMissing     bool // the other group was never established
	Matching         int
	Mismatched       []Mismatch
	Absent           []string // reference devices not present in the other group
}

// Total returns the number of reference devices classified.
func (r *Report) Total() int {
	return r.Matching + len(r.Mismatched) + len(r.Absent)
}

// Compare classifies every device of the larger group against the other.
// Ties are broken by name so the result does not depend on argument order.
func Compare(snap devices.Snapshot, p Pair) *Report {
	ref, other := p.Left, p.Right
	if len(snap[other]) > len(snap[ref]) ||
		(len(snap[other]) == len(snap[ref]) && other < ref) {
		ref, other = other, ref
	}

	_, refOK := snap[ref]
	_, otherOK := snap[other]
	r := &Report{
		Reference:        ref,
		Other:            other,
		ReferenceMissing: !refOK,
		OtherMissing:     !otherOK,
	}

	ids := make([]string, 0, len(snap[ref]))
	for id := range snap[ref] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		mine := snap[ref][id]
		theirs, ok := snap[other][id]
		switch {
		case !ok:
			r.Absent = append(r.Absent, id)
		case mine.IsConnected != theirs.IsConnected:
			r.Mismatched = append(r.Mismatched, Mismatch{ClientID: id, Reference: mine, Other: theirs})
		default:
			r.Matching++
		}
	}
	return r
}
