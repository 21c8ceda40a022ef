package models

// SlotRecord is the current occupant of one transport connection slot.
// Slot identifiers are reused by unrelated connections over time, so the
// record is overwritten on every connect or disconnect and never deleted.
type SlotRecord struct {
	SlotID      string     `json:"slotId"`
	ClientID    string     `json:"clientId"`
	IsConnected bool       `json:"isConnected"`
	Source      Provenance `json:"source"`
}
