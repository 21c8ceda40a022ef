package parser

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/msgtrace/tracecheck/internal/models"
)

// DefaultChunkWidth is the number of message bytes per continuation line.
const DefaultChunkWidth = 32

// AssemblyState is the state of a Reassembler.
type AssemblyState int

const (
	StateIdle AssemblyState = iota
	StateAssembling
)

// MessageContext is the publish-start information that attributes a
// reassembled payload.
type MessageContext struct {
	SlotID     string
	ClientID   string // client bound to the slot when the publish started
	Attributed bool   // false when the slot had no known occupant
	Date       string
	Time       string
	Line       int
}

// Message is one reassembled payload. Payload is nil for unattributed
// messages, whose text is consumed but not decoded.
type Message struct {
	Context MessageContext
	Text    string
	Payload *models.Payload
}

// Reassembler rebuilds one traced message from its continuation lines.
// One instance is used per input file.
type Reassembler struct {
	chunkWidth int
	state      AssemblyState
	remaining  int
	buf        strings.Builder
	ctx        MessageContext
}

func NewReassembler(chunkWidth int) *Reassembler {
	if chunkWidth <= 0 {
		chunkWidth = DefaultChunkWidth
	}
	return &Reassembler{chunkWidth: chunkWidth}
}

// State returns the current state.
func (r *Reassembler) State() AssemblyState {
	return r.state
}

// Remaining returns how many continuation lines are still expected.
func (r *Reassembler) Remaining() int {
	return r.remaining
}

// ChunksFor returns the number of continuation lines a message of length bytes spans.
func (r *Reassembler) ChunksFor(length int) int {
	return (length + r.chunkWidth - 1) / r.chunkWidth
}

// Start arms the reassembler for a message of length bytes. A zero-length
// message completes immediately.
func (r *Reassembler) Start(length int, ctx MessageContext) (*Message, error) {
	if r.state == StateAssembling {
		return nil, models.NewInterleavedMessageError(r.remaining, "publish start")
	}
	r.state = StateAssembling
	r.remaining = r.ChunksFor(length)
	r.buf.Reset()
	r.ctx = ctx
	if r.remaining == 0 {
		return r.complete()
	}
	return nil, nil
}

// Feed consumes one classified line while assembling. It returns the
// message once the last expected fragment has been appended.
func (r *Reassembler) Feed(rec Record) (*Message, error) {
	if r.state != StateAssembling {
		return nil, nil
	}
	if rec.Kind != KindContinuation {
		return nil, models.NewInterleavedMessageError(r.remaining, rec.Raw)
	}
	r.buf.WriteString(rec.Fragment)
	r.remaining--
	if r.remaining > 0 {
		return nil, nil
	}
	return r.complete()
}

// Finish reports an error if the input ended in the middle of a message.
func (r *Reassembler) Finish() error {
	if r.state == StateAssembling {
		return models.NewTruncatedMessageError(r.remaining)
	}
	return nil
}

func (r *Reassembler) complete() (*Message, error) {
	msg := &Message{Context: r.ctx, Text: r.buf.String()}
	r.state = StateIdle
	r.remaining = 0
	r.buf.Reset()
	r.ctx = MessageContext{}

	if !msg.Context.Attributed {
		return msg, nil
	}
	payload, err := DecodePayload(msg.Text)
	if err != nil {
		return nil, err
	}
	msg.Payload = payload
	return msg, nil
}

// DecodePayload parses the structured data that starts at the first '{'
// of text. Bytes after the first complete value are ignored.
func DecodePayload(text string) (*models.Payload, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, models.NewMalformedPayloadError("no structured data in message", nil)
	}
	var p models.Payload
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&p); err != nil {
		return nil, models.NewMalformedPayloadError("cannot decode message payload", err)
	}
	return &p, nil
}
