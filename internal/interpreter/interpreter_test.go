package interpreter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgtrace/tracecheck/internal/config"
	"github.com/msgtrace/tracecheck/internal/models"
	"github.com/msgtrace/tracecheck/internal/parser"
	"github.com/msgtrace/tracecheck/internal/testutil"
)

var t0 = time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)

const (
	subscriber = "A:org1:app1"
	group      = "org1app1"
)

func newInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	return New(config.DefaultConfig().Interpret, zerolog.Nop())
}

func run(t *testing.T, in *Interpreter, name string, b *testutil.TraceBuilder) (*FileResult, error) {
	t.Helper()
	return in.ProcessReader(name, strings.NewReader(b.String()))
}

func TestInterpreter_ConnectNotification(t *testing.T) {
	in := newInterpreter(t)
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Publish("1", testutil.Notification(models.ActionConnect, "D1", t0, nil)).
		Connect("2", "A:org1:app2")

	res, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)

	assert.Equal(t, len(b.Lines()), res.Lines)
	assert.Equal(t, 1, res.Messages)
	assert.Equal(t, 0, in.ErrorCount())

	st, ok := in.Devices().Device(group, "D1")
	require.True(t, ok)
	assert.True(t, st.IsConnected)
	assert.Equal(t, "imatrace.log", st.Source.File)
	assert.Equal(t, 2, st.Source.Line, "provenance points at the publish record")
	assert.True(t, t0.Equal(st.Source.Time))

	// The line after the dump was classified normally.
	_, ok = in.Devices().Group("org1app2")
	assert.True(t, ok)
}

// Slot 1 and A:org1:app1 play the roles of S1 and C1: bind the slot, then
// replay a Connect notification for D1 through the full line loop.
func TestInterpreter_SubscriberSeesDeviceConnect(t *testing.T) {
	in := newInterpreter(t)
	body := testutil.Notification(models.ActionConnect, "D1", t0, nil)
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Publish("1", body)
	dumpLines := len(b.Lines()) - 2
	b.Connect("2", "A:org1:app2")

	pub, err := parser.NewClassifier().Classify(b.Lines()[1])
	require.NoError(t, err)
	require.Equal(t, parser.KindPublish, pub.Kind)
	assert.Equal(t, parser.NewReassembler(parser.DefaultChunkWidth).ChunksFor(pub.Length), dumpLines)

	res, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Messages)

	st, ok := in.Devices().Device(group, "D1")
	require.True(t, ok)
	assert.True(t, st.IsConnected)

	// the record right after the dump is not swallowed by the reassembler
	_, ok = in.Devices().Group("org1app2")
	assert.True(t, ok)
}

func TestInterpreter_OutOfOrderPayloadKeepsNewerState(t *testing.T) {
	var logs bytes.Buffer
	in := New(config.DefaultConfig().Interpret, zerolog.New(&logs))

	newer := t0.Add(time.Minute)
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Publish("1", testutil.Notification(models.ActionConnect, "D1", newer, nil)).
		Publish("1", testutil.Notification(models.ActionDisconnect, "D1", t0, testutil.Code(0)))

	_, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)

	st, ok := in.Devices().Device(group, "D1")
	require.True(t, ok)
	assert.True(t, st.IsConnected)
	assert.True(t, newer.Equal(st.Source.Time))
	assert.Contains(t, logs.String(), "out of order payload discarded")
	assert.Equal(t, 0, in.ErrorCount(), "out of order payloads are not counted as errors")
}

func TestInterpreter_DisconnectOnUnknownSlot(t *testing.T) {
	in := newInterpreter(t)
	b := testutil.NewTraceBuilder(t0).
		Disconnect("42", subscriber, 0).
		Noise("still running")

	res, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lines)
	assert.Equal(t, 0, in.Slots().Len())
	assert.Empty(t, in.Devices().Groups())
	assert.Equal(t, 0, in.ErrorCount())
}

func TestInterpreter_TakeoverKeepsSlotAttributed(t *testing.T) {
	in := newInterpreter(t)
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Disconnect("1", subscriber, testutil.TakeoverCode).
		Publish("1", testutil.Notification(models.ActionConnect, "D1", t0, nil))

	_, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)

	rec, ok := in.Slots().Slot("1")
	require.True(t, ok)
	assert.True(t, rec.IsConnected)
	_, ok = in.Devices().Device(group, "D1")
	assert.True(t, ok)
}

func TestInterpreter_DeviceTakeoverNotificationStaysConnected(t *testing.T) {
	in := newInterpreter(t)
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Publish("1", testutil.Notification(models.ActionConnect, "D1", t0, nil)).
		Publish("1", testutil.Notification(models.ActionDisconnect, "D1", t0.Add(time.Second), testutil.Code(testutil.TakeoverCode)))

	_, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)

	st, ok := in.Devices().Device(group, "D1")
	require.True(t, ok)
	assert.True(t, st.IsConnected)
}

func TestInterpreter_UnattributedPublish(t *testing.T) {
	in := newInterpreter(t)
	b := testutil.NewTraceBuilder(t0).
		Publish("7", testutil.Notification(models.ActionConnect, "D1", t0, nil)).
		Connect("7", subscriber)

	res, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)

	assert.Equal(t, 1, in.ErrorCount())
	assert.Equal(t, 1, res.Unattributed)
	assert.Equal(t, 0, res.Messages)
	_, ok := in.Devices().Device(group, "D1")
	assert.False(t, ok)

	client, ok := in.Slots().Resolve("7")
	require.True(t, ok, "the connect after the dump must still be seen")
	assert.Equal(t, subscriber, client)
}

func TestInterpreter_SlotsPersistAcrossFiles(t *testing.T) {
	in := newInterpreter(t)

	_, err := run(t, in, "imatrace_1.log", testutil.NewTraceBuilder(t0).Connect("3", subscriber))
	require.NoError(t, err)

	_, err = run(t, in, "imatrace.log", testutil.NewTraceBuilder(t0.Add(time.Hour)).
		Publish("3", testutil.Notification(models.ActionConnect, "D9", t0.Add(time.Hour), nil)))
	require.NoError(t, err)

	st, ok := in.Devices().Device(group, "D9")
	require.True(t, ok)
	assert.Equal(t, "imatrace.log", st.Source.File)
	assert.Equal(t, 0, in.ErrorCount())
}

func TestInterpreter_FailedConnectCreatesNothing(t *testing.T) {
	in := newInterpreter(t)
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Publish("1", testutil.Notification(models.ActionFailedConnect, "D1", t0, nil))

	_, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)
	assert.Equal(t, 0, in.Devices().Stats(group).Devices)
}

func TestInterpreter_PublishAfterDisconnectStillAttributed(t *testing.T) {
	var logs bytes.Buffer
	in := New(config.DefaultConfig().Interpret, zerolog.New(&logs))
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		Disconnect("1", subscriber, 0).
		Publish("1", testutil.Notification(models.ActionConnect, "D1", t0, nil))

	_, err := run(t, in, "imatrace.log", b)
	require.NoError(t, err)

	_, ok := in.Devices().Device(group, "D1")
	assert.True(t, ok)
	assert.Equal(t, 0, in.ErrorCount())
	assert.Contains(t, logs.String(), "publish on slot after its client disconnected")
	assert.Contains(t, logs.String(), `"closed":"imatrace.log:2"`)
}

func TestInterpreter_InterruptedDumpIsLogged(t *testing.T) {
	var logs bytes.Buffer
	in := New(config.DefaultConfig().Interpret, zerolog.New(&logs))
	b := testutil.NewTraceBuilder(t0).
		Connect("1", subscriber).
		PublishRaw("1", 64, []byte(`{"Action":"Connect"}`)).
		Disconnect("1", subscriber, 0)

	_, err := run(t, in, "imatrace.log", b)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInterleavedMessage))

	out := logs.String()
	assert.Contains(t, out, "message dump interrupted")
	assert.Contains(t, out, `"record":"disconnect"`)
	assert.Contains(t, out, `"remaining":1`)
}

func TestInterpreter_FatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *testutil.TraceBuilder)
		kind  models.ErrorKind
		line  int
	}{
		{
			name: "disconnect by another client",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", subscriber).Disconnect("1", "A:org1:other", 0)
			},
			kind: models.KindClientMismatch,
			line: 2,
		},
		{
			name: "record inside a message dump",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", subscriber).
					PublishRaw("1", 64, []byte(`{"Action":"Connect"}`)).
					Connect("2", subscriber)
			},
			kind: models.KindInterleavedMessage,
			line: 4,
		},
		{
			name: "input ends inside a message",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", subscriber).PublishRaw("1", 64, []byte(`{"Action":"Connect"}`))
			},
			kind: models.KindTruncatedMessage,
			line: 3,
		},
		{
			name: "unknown action",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", subscriber).Publish("1", testutil.Notification("Reboot", "D1", t0, nil))
			},
			kind: models.KindUnknownAction,
			line: 2,
		},
		{
			name: "notification received by a non-subscriber",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", "d:org1:type:dev").Publish("1", testutil.Notification(models.ActionConnect, "D1", t0, nil))
			},
			kind: models.KindInvalidClientID,
			line: 2,
		},
		{
			name: "payload without structured data",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", subscriber).PublishRaw("1", 8, []byte("no json!"))
			},
			kind: models.KindMalformedPayload,
			line: 3,
		},
		{
			name: "zero length attributed publish",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("1", subscriber).PublishRaw("1", 0, nil)
			},
			kind: models.KindMalformedPayload,
			line: 2,
		},
		{
			name: "non numeric slot",
			build: func(b *testutil.TraceBuilder) {
				b.Connect("x1", subscriber)
			},
			kind: models.KindMalformedField,
			line: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewTraceBuilder(t0)
			tt.build(b)

			_, err := run(t, newInterpreter(t), "imatrace.log", b)
			require.Error(t, err)

			te, ok := models.AsTraceError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, "imatrace.log", te.File)
			assert.Equal(t, tt.line, te.Line)
		})
	}
}

func TestInterpreter_ProcessFileMissing(t *testing.T) {
	_, err := newInterpreter(t).ProcessFile("gone.log", t.TempDir()+"/gone.log")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindIO))
}
