// Package devices keeps the per-subscription view of device connectivity
// derived from reassembled notification payloads.
package devices

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/msgtrace/tracecheck/internal/models"
	"github.com/msgtrace/tracecheck/internal/parser"
)

// Outcome describes what an Upsert did with a payload.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
	OutcomeOutOfOrder // older than the stored state, discarded
	OutcomeIgnored    // FailedConnect, no state change
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeOutOfOrder:
		return "out-of-order"
	case OutcomeIgnored:
		return "ignored"
	}
	return "unknown"
}

// Snapshot is a detached copy of the store: group -> device -> state.
type Snapshot map[string]map[string]models.DeviceState

// GroupStats summarises one subscription group.
type GroupStats struct {
	Devices      int
	Connected    int
	Disconnected int
}

// Store maps subscription group -> device client ID -> last known state.
type Store struct {
	groups       map[string]map[string]*models.DeviceState
	takeoverCode int
	logger       zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(takeoverCode int, logger zerolog.Logger) *Store {
	return &Store{
		groups:       make(map[string]map[string]*models.DeviceState),
		takeoverCode: takeoverCode,
		logger:       logger,
	}
}

// EnsureGroup creates group if needed and reports whether it was created.
func (s *Store) EnsureGroup(group string) bool {
	if _, ok := s.groups[group]; ok {
		return false
	}
	s.groups[group] = make(map[string]*models.DeviceState)
	return true
}

// Upsert applies payload to the state of its device within group. Stored
// state always reflects the latest payload timestamp seen; an older payload
// is logged and discarded.
func (s *Store) Upsert(group string, p *models.Payload, src models.Provenance) (Outcome, error) {
	var connected bool
	switch p.Action {
	case models.ActionConnect:
		connected = true
	case models.ActionDisconnect:
		connected = p.HasCloseCode(s.takeoverCode)
	case models.ActionFailedConnect:
		s.logger.Info().
			Str("group", group).
			Str("device", p.ClientID).
			Str("source", src.String()).
			Msg("failed connect notification")
		return OutcomeIgnored, nil
	default:
		return OutcomeIgnored, models.NewUnknownActionError(p.Action).At(src.File, src.Line)
	}

	devices, ok := s.groups[group]
	if !ok {
		return OutcomeIgnored, models.NewUnknownGroupError(group).At(src.File, src.Line)
	}
	if p.ClientID == "" {
		return OutcomeIgnored, models.NewMalformedPayloadError("payload has no ClientID", nil).At(src.File, src.Line)
	}
	ts, err := parser.ParseTimestamp(p.Time)
	if err != nil {
		return OutcomeIgnored, models.NewMalformedPayloadError("payload Time is not a timestamp", err).At(src.File, src.Line)
	}
	src.Time = ts

	next := &models.DeviceState{ClientID: p.ClientID, IsConnected: connected, Source: src}
	current, ok := devices[p.ClientID]
	if !ok {
		devices[p.ClientID] = next
		return OutcomeInserted, nil
	}
	if ts.Before(current.Source.Time) {
		s.logger.Warn().
			Str("group", group).
			Str("device", p.ClientID).
			Str("stored", current.Source.String()).
			Str("received", src.String()).
			Msg("out of order payload discarded")
		return OutcomeOutOfOrder, nil
	}
	devices[p.ClientID] = next
	return OutcomeUpdated, nil
}

// Device returns the stored state of client within group.
func (s *Store) Device(group, client string) (models.DeviceState, bool) {
	st, ok := s.groups[group][client]
	if !ok {
		return models.DeviceState{}, false
	}
	return *st, true
}

// Group returns a copy of the devices of group.
func (s *Store) Group(name string) (map[string]models.DeviceState, bool) {
	devices, ok := s.groups[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]models.DeviceState, len(devices))
	for id, st := range devices {
		out[id] = *st
	}
	return out, true
}

// Groups returns the group names in sorted order.
func (s *Store) Groups() []string {
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats counts connected and disconnected devices of group.
func (s *Store) Stats(group string) GroupStats {
	var st GroupStats
	for _, d := range s.groups[group] {
		st.Devices++
		if d.IsConnected {
			st.Connected++
		} else {
			st.Disconnected++
		}
	}
	return st
}

// Snapshot returns a deep copy of the store for read-only reporting.
func (s *Store) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.groups))
	for name := range s.groups {
		snap[name], _ = s.Group(name)
	}
	return snap
}
