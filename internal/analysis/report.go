package analysis

import (
	"github.com/rs/zerolog"
)

// Log writes the report through logger: one warning per mismatch with
// both provenances, then the aggregate counts.
func (r *Report) Log(logger zerolog.Logger) {
	l := logger.With().Str("reference", r.Reference).Str("other", r.Other).Logger()

	if r.ReferenceMissing {
		l.Warn().Str("group", r.Reference).Msg("subscription group never connected")
	}
	if r.OtherMissing {
		l.Warn().Str("group", r.Other).Msg("subscription group never connected")
	}

	for _, m := range r.Mismatched {
		l.Warn().
			Str("device", m.ClientID).
			Bool("reference_connected", m.Reference.IsConnected).
			Str("reference_source", m.Reference.Source.String()).
			Bool("other_connected", m.Other.IsConnected).
			Str("other_source", m.Other.Source.String()).
			Msg("connectivity mismatch")
	}
	for _, id := range r.Absent {
		l.Debug().Str("device", id).Msg("device absent from other group")
	}

	l.Info().
		Int("devices", r.Total()).
		Int("matching", r.Matching).
		Int("mismatched", len(r.Mismatched)).
		Int("absent", len(r.Absent)).
		Msg("cross-subscription comparison")
}
