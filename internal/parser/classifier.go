package parser

import (
	"regexp"
	"strings"
)

// tracePrefix matches "YYYY-MM-DDTHH:MM:SS.ffffff<zone> " and any free text
// up to the record keyword, capturing date and time.
const tracePrefix = `^(\d{4}-\d{2}-\d{2})T(\d{2}:\d{2}:\d{2}(?:\.\d+)?)\S*\s.*?`

// Classifier recognises the gateway trace records the checker cares about.
// Formats:
//
//	continuation:  "00032: 7b224163 74696f6e ...  [{"Action":"Connect","Time":"20]"
//	connect:       "<ts> ... Create MQTT connection: connect=<slot> client=<clientId>"
//	disconnect:    "<ts> ... Close MQTT connection: connect=<slot> client=<clientId> rc=<code>"
//	publish-start: "<ts> ... Send MQTT PUBLISH connect=<slot> <details>: len=<bytes>"
//
// Dump offsets are zero padded to five digits and grow wider past 99999.
type Classifier struct {
	registry *Registry
}

func NewClassifier() *Classifier {
	return &Classifier{
		registry: NewRegistry(
			Shape{
				Kind:    KindContinuation,
				Regex:   regexp.MustCompile(`^(\d{5,}): [0-9a-f ]+ \[(.*)\]$`),
				Extract: extractContinuation,
			},
			Shape{
				Kind:    KindConnect,
				Regex:   regexp.MustCompile(tracePrefix + `Create MQTT connection: connect=(\S+) client=(\S+)`),
				Extract: extractConnect,
			},
			Shape{
				Kind:    KindDisconnect,
				Regex:   regexp.MustCompile(tracePrefix + `Close MQTT connection: connect=(\S+) client=(\S+) rc=(\S+)`),
				Extract: extractDisconnect,
			},
			Shape{
				Kind:    KindPublish,
				Regex:   regexp.MustCompile(tracePrefix + `Send MQTT PUBLISH connect=(\S+) .*: len=(\S+)\s*$`),
				Extract: extractPublish,
			},
		),
	}
}

// Classify matches one raw line. Lines that match nothing come back as
// KindNone; a numeric capture that does not parse is a fatal error.
func (c *Classifier) Classify(line string) (Record, error) {
	return c.registry.Match(strings.TrimRight(line, "\r"))
}

func extractContinuation(m []string, rec *Record) error {
	offset, err := parseCount("offset", m[1])
	if err != nil {
		return err
	}
	rec.Offset = offset
	rec.Fragment = m[2]
	return nil
}

func extractConnect(m []string, rec *Record) error {
	slot, err := parseSlotID(m[3])
	if err != nil {
		return err
	}
	rec.Date, rec.Time = m[1], m[2]
	rec.SlotID = slot
	rec.ClientID = m[4]
	return nil
}

func extractDisconnect(m []string, rec *Record) error {
	slot, err := parseSlotID(m[3])
	if err != nil {
		return err
	}
	code, err := parseCount("rc", m[5])
	if err != nil {
		return err
	}
	rec.Date, rec.Time = m[1], m[2]
	rec.SlotID = slot
	rec.ClientID = m[4]
	rec.CloseCode = code
	return nil
}

func extractPublish(m []string, rec *Record) error {
	slot, err := parseSlotID(m[3])
	if err != nil {
		return err
	}
	length, err := parseCount("len", m[4])
	if err != nil {
		return err
	}
	rec.Date, rec.Time = m[1], m[2]
	rec.SlotID = slot
	rec.Length = length
	return nil
}
