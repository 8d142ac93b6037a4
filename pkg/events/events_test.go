package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata() EventMetadata {
	return EventMetadata{
		ID:       uuid.New(),
		ThreadID: "t1",
		Node:     "respond",
	}
}

func decode(t *testing.T, e Event) Event {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	ret, err := NewEventFromJson(b)
	require.NoError(t, err)
	return ret
}

func TestNewEventFromJsonRestoresTypes(t *testing.T) {
	md := testMetadata()

	partial, ok := decode(t, NewPartialCompletionEvent(md, "lo", "Hello")).(*EventPartialCompletion)
	require.True(t, ok)
	assert.Equal(t, "lo", partial.Delta)
	assert.Equal(t, "Hello", partial.Completion)
	assert.Equal(t, "t1", partial.Metadata().ThreadID)
	assert.NotEmpty(t, partial.Payload())

	q, ok := decode(t, NewReformulatedEvent(md, "What is 9.80?", true)).(*EventReformulated)
	require.True(t, ok)
	assert.Equal(t, "What is 9.80?", q.Question)
	assert.True(t, q.Fallback)

	e, ok := decode(t, NewErrorEvent(md, errors.New("boom"))).(*EventError)
	require.True(t, ok)
	assert.Equal(t, "boom", e.ErrorString)

	_, ok = decode(t, NewInterruptEvent(md, "Hel")).(*EventInterrupt)
	assert.True(t, ok)
}

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) PublishEvent(e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestContextSinks(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("ignored")}
	ctx := WithEventSinks(context.Background(), a)
	ctx = WithEventSinks(ctx, b)

	PublishEventToContext(ctx, NewStartEvent(testMetadata()))
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)

	PublishEventToContext(context.Background(), NewStartEvent(testMetadata()))
	assert.Len(t, a.events, 1)
}

func TestChannelSinkCloseUnblocksPublisher(t *testing.T) {
	s := NewChannelSink(1)
	require.NoError(t, s.PublishEvent(NewStartEvent(testMetadata())))

	done := make(chan struct{})
	go func() {
		_ = s.PublishEvent(NewStartEvent(testMetadata()))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after Close")
	}
	assert.NoError(t, s.PublishEvent(NewStartEvent(testMetadata())))
}

func TestChannelSinkContextUnblocksPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewChannelSink(1, WithChannelSinkContext(ctx))
	require.NoError(t, s.PublishEvent(NewStartEvent(testMetadata())))

	done := make(chan struct{})
	go func() {
		_ = s.PublishEvent(NewStartEvent(testMetadata()))
		_ = s.PublishEvent(NewStartEvent(testMetadata()))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after the context was cancelled")
	}
	assert.Len(t, s.Events(), 1)
	s.Close()
}

func TestWatermillSinkThroughRouter(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)
	defer func() { _ = router.Close() }()

	var out bytes.Buffer
	received := make(chan string, 8)
	printer := StepPrinterFunc("", &out, WithShowQuestion(true))
	router.AddHandler("test", "chat", func(msg *message.Message) error {
		err := printer(msg)
		received <- msg.Metadata.Get("thread_id")
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	sink := NewWatermillSink(router.Publisher, "chat")
	md := testMetadata()
	require.NoError(t, sink.PublishEvent(NewReformulatedEvent(md, "Why?", false)))
	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(md, "Hel", "Hel")))
	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(md, "lo", "Hello")))
	require.NoError(t, sink.PublishEvent(NewFinalEvent(md, "Hello")))

	for i := 0; i < 4; i++ {
		select {
		case id := <-received:
			assert.Equal(t, "t1", id)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, "> Why?\nHello\n", out.String())
}

func TestDumpRawEventsStripsMetadata(t *testing.T) {
	var out bytes.Buffer
	router, err := NewEventRouter(WithRawOutput(&out))
	require.NoError(t, err)
	defer func() { _ = router.Close() }()

	b, err := json.Marshal(NewFinalEvent(testMetadata(), "done"))
	require.NoError(t, err)
	require.NoError(t, router.DumpRawEvents(message.NewMessage(watermill.NewUUID(), b)))

	assert.True(t, strings.Contains(out.String(), `"node": "respond"`))
	assert.False(t, strings.Contains(out.String(), `"meta"`))
}

func TestStepPrinterPrintsUnstreamedFinal(t *testing.T) {
	md := testMetadata()
	run := func(options ...PrinterOption) string {
		var out bytes.Buffer
		printer := StepPrinterFunc("", &out, options...)
		for _, e := range []Event{
			NewReformulatedEvent(md, "Why?", true),
			NewStartEvent(md),
			NewFinalEvent(md, "Because."),
		} {
			b, err := json.Marshal(e)
			require.NoError(t, err)
			require.NoError(t, printer(message.NewMessage(watermill.NewUUID(), b)))
		}
		return out.String()
	}

	assert.Equal(t, "> Why? (unchanged)\nBecause.\n", run(WithShowQuestion(true)))
	assert.Equal(t, "", run(WithPrintFinal(false)))
}
