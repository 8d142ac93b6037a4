package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
)

// WatermillZerologAdapter routes watermill's logging through zerolog.
type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(fields).Err(err).Caller(1).Msg(msg)
}

func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	// map INFO to DEBUG because watermill is chatty
	w.logger.Debug().Fields(fields).Caller(1).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(fields).Caller(1).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(fields).Caller(1).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.logger.With().Fields(fields).Logger()
	return &WatermillZerologAdapter{logger: l}
}

func NewWatermill(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{logger: logger}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}

const ThreadIDMetadataKey = "thread_id"

type threadIDKeyType string

const threadIDKey threadIDKeyType = "thread_id"

func ContextWithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey, threadID)
}

// ThreadIDFromContext returns the thread id stored in ctx.
// Without one, a "gen_" prefixed id is generated so that untagged messages stand out.
func ThreadIDFromContext(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(threadIDKey).(string); ok && v != "" {
			return v
		}
	}
	return "gen_" + shortuuid.New()
}

// ThreadPublisherDecorator stamps each outgoing message with the thread id from its context.
type ThreadPublisherDecorator struct {
	message.Publisher
}

func (c ThreadPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		if messages[i].Metadata.Get(ThreadIDMetadataKey) != "" {
			continue
		}
		messages[i].Metadata.Set(ThreadIDMetadataKey, ThreadIDFromContext(messages[i].Context()))
	}

	return c.Publisher.Publish(topic, messages...)
}
