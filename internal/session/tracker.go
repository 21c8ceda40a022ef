package session

import (
	"sort"
	"strings"

	"github.com/msgtrace/tracecheck/internal/models"
)

// DefaultSubscriberMarker is the first segment of subscriber client IDs.
const DefaultSubscriberMarker = "A"

// DefaultTakeoverCode is the close code sent when a client ID is reused by a
// new connection; the logical session continues on the new slot.
const DefaultTakeoverCode = 288

// DisconnectOutcome describes what a disconnect record did.
type DisconnectOutcome int

const (
	DisconnectApplied DisconnectOutcome = iota
	// DisconnectIgnored means the slot was never seen connecting, typically
	// because the connection started before the trace window.
	DisconnectIgnored
)

// Tracker maps connection slots to the logical client occupying them.
// Bindings persist across input files.
type Tracker struct {
	slots        map[string]*models.SlotRecord
	marker       string
	takeoverCode int
}

// NewTracker creates an empty tracker.
func NewTracker(marker string, takeoverCode int) *Tracker {
	if marker == "" {
		marker = DefaultSubscriberMarker
	}
	return &Tracker{
		slots:        make(map[string]*models.SlotRecord),
		marker:       marker,
		takeoverCode: takeoverCode,
	}
}

// RecordConnect binds slot to client, replacing any previous occupant.
func (t *Tracker) RecordConnect(slot, client string, src models.Provenance) {
	t.slots[slot] = &models.SlotRecord{
		SlotID:      slot,
		ClientID:    client,
		IsConnected: true,
		Source:      src,
	}
}

// RecordDisconnect applies a disconnect to slot. A takeover close code keeps
// the record connected. A client other than the recorded occupant is fatal.
func (t *Tracker) RecordDisconnect(slot, client string, closeCode int, src models.Provenance) (DisconnectOutcome, error) {
	current, ok := t.slots[slot]
	if !ok {
		return DisconnectIgnored, nil
	}
	if current.ClientID != client {
		return DisconnectApplied, models.NewClientMismatchError(slot, current.ClientID, client, current.Source).At(src.File, src.Line)
	}
	t.slots[slot] = &models.SlotRecord{
		SlotID:      slot,
		ClientID:    client,
		IsConnected: closeCode == t.takeoverCode,
		Source:      src,
	}
	return DisconnectApplied, nil
}

// Resolve returns the client last recorded on slot.
func (t *Tracker) Resolve(slot string) (string, bool) {
	rec, ok := t.slots[slot]
	if !ok {
		return "", false
	}
	return rec.ClientID, true
}

// Slot returns a copy of the record for slot.
func (t *Tracker) Slot(slot string) (models.SlotRecord, bool) {
	rec, ok := t.slots[slot]
	if !ok {
		return models.SlotRecord{}, false
	}
	return *rec, true
}

// Len returns the number of slots ever seen.
func (t *Tracker) Len() int {
	return len(t.slots)
}

// Connected lists the slots whose occupant is currently connected, sorted by slot.
func (t *Tracker) Connected() []models.SlotRecord {
	out := make([]models.SlotRecord, 0, len(t.slots))
	for _, rec := range t.slots {
		if rec.IsConnected {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out
}

// IsSubscriber reports whether client has the shape "<marker>:<seg2>:<seg3>[:...]".
func (t *Tracker) IsSubscriber(client string) bool {
	_, ok := t.group(client)
	return ok
}

// SubscriptionGroup derives the aggregation key of a subscriber client:
// the concatenation of its second and third segments.
func (t *Tracker) SubscriptionGroup(client string) (string, error) {
	g, ok := t.group(client)
	if !ok {
		return "", models.NewInvalidClientIDError(client)
	}
	return g, nil
}

func (t *Tracker) group(client string) (string, bool) {
	parts := strings.Split(client, ":")
	if len(parts) < 3 || parts[0] != t.marker || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1] + parts[2], true
}
