// Package interpreter replays gateway traces through the classifier, the
// slot tracker and the device store.
package interpreter

import (
	"bufio"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/msgtrace/tracecheck/internal/config"
	"github.com/msgtrace/tracecheck/internal/devices"
	"github.com/msgtrace/tracecheck/internal/models"
	"github.com/msgtrace/tracecheck/internal/parser"
	"github.com/msgtrace/tracecheck/internal/session"
)

// FileResult summarises one processed input.
type FileResult struct {
	Name         string
	Lines        int
	Messages     int // reassembled payloads applied to the store
	Unattributed int
}

// Interpreter owns all state derived from a sequence of trace files. Slot
// bindings and device state carry over from one file to the next.
type Interpreter struct {
	classifier   *parser.Classifier
	tracker      *session.Tracker
	store        *devices.Store
	chunkWidth   int
	unattributed int
	logger       zerolog.Logger
}

// New creates an interpreter with empty state.
func New(cfg config.InterpretConfig, logger zerolog.Logger) *Interpreter {
	return &Interpreter{
		classifier: parser.NewClassifier(),
		tracker:    session.NewTracker(cfg.SubscriberMarker, cfg.TakeoverCode),
		store:      devices.NewStore(cfg.TakeoverCode, logger),
		chunkWidth: cfg.ChunkWidth,
		logger:     logger,
	}
}

// ProcessFile opens path and processes it under name.
func (in *Interpreter) ProcessFile(name, path string) (*FileResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, models.NewIOError(path, "opening trace file", err)
	}
	defer file.Close()
	return in.ProcessReader(name, file)
}

// ProcessReader consumes every line of r. name is used for provenance and
// error locations. Any returned error is fatal for the run.
func (in *Interpreter) ProcessReader(name string, r io.Reader) (*FileResult, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024) // 1MB max line size

	res := &FileResult{Name: name}
	reasm := parser.NewReassembler(in.chunkWidth)

	for scanner.Scan() {
		res.Lines++
		lineNum := res.Lines

		rec, err := in.classifier.Classify(scanner.Text())
		if err != nil {
			return nil, locate(err, name, lineNum)
		}

		if reasm.State() == parser.StateAssembling {
			remaining := reasm.Remaining()
			msg, err := reasm.Feed(rec)
			if err != nil {
				in.logger.Debug().
					Stringer("record", rec.Kind).
					Int("remaining", remaining).
					Str("file", name).
					Int("line", lineNum).
					Msg("message dump interrupted")
				return nil, locate(err, name, lineNum)
			}
			if msg != nil {
				if err := in.apply(name, msg, res); err != nil {
					return nil, err
				}
			}
			continue
		}

		src := models.Provenance{File: name, Line: lineNum}
		switch rec.Kind {
		case parser.KindConnect:
			in.tracker.RecordConnect(rec.SlotID, rec.ClientID, src)
			if in.tracker.IsSubscriber(rec.ClientID) {
				group, err := in.tracker.SubscriptionGroup(rec.ClientID)
				if err != nil {
					return nil, locate(err, name, lineNum)
				}
				if in.store.EnsureGroup(group) {
					in.logger.Debug().Str("group", group).Str("source", src.String()).Msg("subscription group established")
				}
			}

		case parser.KindDisconnect:
			outcome, err := in.tracker.RecordDisconnect(rec.SlotID, rec.ClientID, rec.CloseCode, src)
			if err != nil {
				return nil, locate(err, name, lineNum)
			}
			if outcome == session.DisconnectIgnored {
				in.logger.Debug().
					Str("slot", rec.SlotID).
					Str("client", rec.ClientID).
					Str("source", src.String()).
					Msg("disconnect on unknown slot ignored")
			}

		case parser.KindPublish:
			client, ok := in.tracker.Resolve(rec.SlotID)
			if slot, known := in.tracker.Slot(rec.SlotID); known && !slot.IsConnected {
				in.logger.Debug().
					Str("slot", rec.SlotID).
					Str("client", client).
					Str("closed", slot.Source.String()).
					Msg("publish on slot after its client disconnected")
			}
			if !ok {
				in.unattributed++
				res.Unattributed++
				in.logger.Warn().
					Str("slot", rec.SlotID).
					Str("source", src.String()).
					Msg("publish on slot with no known client")
			}
			msg, err := reasm.Start(rec.Length, parser.MessageContext{
				SlotID:     rec.SlotID,
				ClientID:   client,
				Attributed: ok,
				Date:       rec.Date,
				Time:       rec.Time,
				Line:       lineNum,
			})
			if err != nil {
				return nil, locate(err, name, lineNum)
			}
			if msg != nil {
				if err := in.apply(name, msg, res); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, models.NewIOError(name, "reading trace file", err).At(name, res.Lines+1)
	}
	if err := reasm.Finish(); err != nil {
		return nil, locate(err, name, res.Lines)
	}
	return res, nil
}

// apply stores one reassembled payload under the subscription group of the
// client that received it. Unattributed messages are dropped.
func (in *Interpreter) apply(name string, msg *parser.Message, res *FileResult) error {
	if msg.Payload == nil {
		return nil
	}
	src := models.Provenance{File: name, Line: msg.Context.Line}

	group, err := in.tracker.SubscriptionGroup(msg.Context.ClientID)
	if err != nil {
		return locate(err, name, src.Line)
	}
	outcome, err := in.store.Upsert(group, msg.Payload, src)
	if err != nil {
		return locate(err, name, src.Line)
	}
	res.Messages++
	in.logger.Trace().
		Str("group", group).
		Str("device", msg.Payload.ClientID).
		Str("action", msg.Payload.Action).
		Stringer("outcome", outcome).
		Str("source", src.String()).
		Msg("notification applied")
	return nil
}

// ErrorCount returns the number of recoverable errors seen so far.
func (in *Interpreter) ErrorCount() int {
	return in.unattributed
}

// Devices returns the device store.
func (in *Interpreter) Devices() *devices.Store {
	return in.store
}

// Slots returns the slot tracker.
func (in *Interpreter) Slots() *session.Tracker {
	return in.tracker
}

func locate(err error, file string, line int) error {
	if te, ok := models.AsTraceError(err); ok {
		return te.At(file, line)
	}
	return err
}
