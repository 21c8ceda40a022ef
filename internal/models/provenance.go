// Package models contains domain types for the trace consistency checker.
package models

import (
	"fmt"
	"time"
)

// Provenance records where a piece of derived state came from.
type Provenance struct {
	File string    `json:"file"`
	Line int       `json:"line"`
	Time time.Time `json:"time,omitempty"` // zero for slot records
}

func (p Provenance) String() string {
	if p.Time.IsZero() {
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return fmt.Sprintf("%s:%d (%s)", p.File, p.Line, p.Time.Format(time.RFC3339Nano))
}
