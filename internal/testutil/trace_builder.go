// trace_builder.go - Synthetic gateway trace generation for tests
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// TakeoverCode is the close code a gateway uses when a client ID is reused.
const TakeoverCode = 288

// publishHeader stands in for the MQTT fixed header and topic that precede
// the JSON body in a traced PUBLISH.
var publishHeader = []byte("\x30\x8a\x01\x00\x0diot-2/monitor")

// TraceBuilder accumulates trace lines in the gateway's format. Each record
// advances the builder clock by one millisecond.
type TraceBuilder struct {
	clock time.Time
	lines []string
}

// NewTraceBuilder creates a builder whose first record is stamped at start.
func NewTraceBuilder(start time.Time) *TraceBuilder {
	return &TraceBuilder{clock: start.UTC()}
}

func (b *TraceBuilder) stamp() string {
	ts := b.clock.Format("2006-01-02T15:04:05.000000Z")
	b.clock = b.clock.Add(time.Millisecond)
	return ts
}

// Connect appends a connection-established record.
func (b *TraceBuilder) Connect(slot, client string) *TraceBuilder {
	b.lines = append(b.lines, fmt.Sprintf("%s 4711 tcp.0 mqtt.c:412: Create MQTT connection: connect=%s client=%s protocol=mqtt4",
		b.stamp(), slot, client))
	return b
}

// Disconnect appends a connection-closed record.
func (b *TraceBuilder) Disconnect(slot, client string, rc int) *TraceBuilder {
	b.lines = append(b.lines, fmt.Sprintf("%s 4711 tcp.0 mqtt.c:980: Close MQTT connection: connect=%s client=%s rc=%d",
		b.stamp(), slot, client, rc))
	return b
}

// Publish appends a publish-start record followed by the data dump of body
// behind a short binary header.
func (b *TraceBuilder) Publish(slot string, body []byte) *TraceBuilder {
	data := append(append([]byte{}, publishHeader...), body...)
	return b.PublishRaw(slot, len(data), data)
}

// PublishRaw appends a publish-start record declaring length and a dump of data.
func (b *TraceBuilder) PublishRaw(slot string, length int, data []byte) *TraceBuilder {
	b.lines = append(b.lines, fmt.Sprintf("%s 4711 tcp.0 mqtt.c:1533: Send MQTT PUBLISH connect=%s topic=iot-2/monitor qos=0: len=%d",
		b.stamp(), slot, length))
	b.lines = append(b.lines, DumpLines(data)...)
	return b
}

// Noise appends an unrelated trace record.
func (b *TraceBuilder) Noise(text string) *TraceBuilder {
	b.lines = append(b.lines, fmt.Sprintf("%s 4711 tcp.0 util.c:77: %s", b.stamp(), text))
	return b
}

// Raw appends a line as is.
func (b *TraceBuilder) Raw(line string) *TraceBuilder {
	b.lines = append(b.lines, line)
	return b
}

// Lines returns the accumulated lines.
func (b *TraceBuilder) Lines() []string {
	return b.lines
}

// String joins the lines with newlines.
func (b *TraceBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// WriteFile writes the trace into dir/name and returns its path.
func (b *TraceBuilder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write trace file: %v", err)
	}
	return path
}

// WriteGzip writes the trace gzip-compressed into dir/name and returns its path.
func (b *TraceBuilder) WriteGzip(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(b.String())); err != nil {
		t.Fatalf("Failed to compress trace: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finish archive: %v", err)
	}
	return path
}

// DumpLines renders data the way the gateway traces message buffers: a
// 5-digit offset, 32 bytes as hex in 4-byte groups, and the printable text.
func DumpLines(data []byte) []string {
	const hexdigit = "0123456789abcdef"
	var lines []string
	for pos := 0; pos < len(data); pos += 32 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%05d: ", pos)
		for i := 0; i < 32; i++ {
			if pos+i < len(data) {
				c := data[pos+i]
				sb.WriteByte(hexdigit[c>>4])
				sb.WriteByte(hexdigit[c&0x0f])
			} else {
				sb.WriteString("  ")
			}
			if i%4 == 3 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" [")
		end := min(pos+32, len(data))
		for _, c := range data[pos:end] {
			if c < 0x20 || c >= 0x7f {
				sb.WriteByte('.')
			} else {
				sb.WriteByte(c)
			}
		}
		sb.WriteString("]")
		lines = append(lines, sb.String())
	}
	return lines
}

// Notification builds a monitoring payload body.
func Notification(action, clientID string, ts time.Time, closeCode *int) []byte {
	body := map[string]any{
		"Action":     action,
		"Time":       ts.UTC().Format("2006-01-02T15:04:05.000Z"),
		"ClientAddr": "10.0.0.7",
		"ClientID":   clientID,
		"Protocol":   "mqtt4",
	}
	if closeCode != nil {
		body["CloseCode"] = *closeCode
		body["Reason"] = ""
	}
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return data
}

// Code returns a pointer to c for Notification close codes.
func Code(c int) *int {
	return &c
}
