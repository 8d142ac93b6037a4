package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/duet/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// EventSink is a destination for pipeline events.
type EventSink interface {
	PublishEvent(event Event) error
}

// NullSink discards all events.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// WatermillSink publishes events as JSON messages on a watermill topic.
// Each message carries the thread id of the event in its metadata.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: helpers.ThreadPublisherDecorator{Publisher: publisher},
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if threadID := event.Metadata().ThreadID; threadID != "" {
		msg.SetContext(helpers.ContextWithThreadID(context.Background(), threadID))
	}

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// ChannelSink forwards events to a buffered channel until it is closed.
// Publishing to a full channel blocks until a reader catches up, Close is called
// or the context given with WithChannelSinkContext is done.
// Events published after Close are dropped.
type ChannelSink struct {
	mu        sync.RWMutex
	c         chan Event
	done      chan struct{}
	ctxDone   <-chan struct{}
	closeOnce sync.Once
	closed    bool
}

type ChannelSinkOption func(*ChannelSink)

// WithChannelSinkContext stops blocking publishers once ctx is done. From then on
// events are only kept if the buffer has room.
func WithChannelSinkContext(ctx context.Context) ChannelSinkOption {
	return func(s *ChannelSink) {
		s.ctxDone = ctx.Done()
	}
}

func NewChannelSink(size int, options ...ChannelSinkOption) *ChannelSink {
	ret := &ChannelSink{
		c:    make(chan Event, size),
		done: make(chan struct{}),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *ChannelSink) PublishEvent(event Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.c <- event:
	case <-s.done:
	case <-s.ctxDone:
		// nobody is waiting for more updates
		select {
		case s.c <- event:
		default:
		}
	}
	return nil
}

func (s *ChannelSink) Events() <-chan Event {
	return s.c
}

func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		close(s.c)
	})
}

var _ EventSink = (*ChannelSink)(nil)
