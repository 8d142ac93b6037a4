package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart to EventTypeFinal describe the response model's completion
	EventTypeStart             EventType = "start"
	EventTypeFinal             EventType = "final"
	EventTypePartialCompletion EventType = "partial"

	EventTypeError     EventType = "error"
	EventTypeInterrupt EventType = "interrupt"

	// EventTypeReformulated is published once the reformulation node has settled on a question
	EventTypeReformulated EventType = "reformulated"

	EventTypeInfo EventType = "info"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Error_    error         `json:"-"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))

	if e.Error_ != nil {
		ev.Err(e.Error_)
	}

	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Error() error {
	return e.Error_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
	}
}

var _ Event = &EventPartialCompletionStart{}

type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// Completion is the accumulated answer so far, already resolved for the stream's mode
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

type EventInterrupt struct {
	EventImpl
	// Text is the partial answer that was discarded
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventInterrupt{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	ret := &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Error_:    err,
			Metadata_: metadata,
		},
	}
	if err != nil {
		ret.ErrorString = err.Error()
	}
	return ret
}

var _ Event = &EventError{}

type EventReformulated struct {
	EventImpl
	Question string `json:"question"`
	// Fallback is set when the raw user turn was used instead of a model rewrite
	Fallback bool `json:"fallback,omitempty"`
}

func NewReformulatedEvent(metadata EventMetadata, question string, fallback bool) *EventReformulated {
	return &EventReformulated{
		EventImpl: EventImpl{
			Type_:     EventTypeReformulated,
			Metadata_: metadata,
		},
		Question: question,
		Fallback: fallback,
	}
}

var _ Event = &EventReformulated{}

type EventInfo struct {
	EventImpl
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func NewInfoEvent(metadata EventMetadata, message string, data map[string]interface{}) *EventInfo {
	return &EventInfo{
		EventImpl: EventImpl{
			Type_:     EventTypeInfo,
			Metadata_: metadata,
		},
		Message: message,
		Data:    data,
	}
}

var _ Event = &EventInfo{}

func (e EventInfo) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("message", e.Message)
	if len(e.Data) > 0 {
		ev.Dict("data", zerolog.Dict().Fields(e.Data))
	}
}

// EventMetadata is attached to every event of a run.
type EventMetadata struct {
	LLMInferenceData
	ID       uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	ThreadID string    `json:"thread_id,omitempty" yaml:"thread_id,omitempty" mapstructure:"thread_id"`
	RunID    string    `json:"run_id,omitempty" yaml:"run_id,omitempty" mapstructure:"run_id"`
	Node     string    `json:"node,omitempty" yaml:"node,omitempty" mapstructure:"node"`
	// Extra carries provider-specific values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ThreadID != "" {
		e.Str("thread_id", em.ThreadID)
	}
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.Node != "" {
		e.Str("node", em.Node)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Temperature != nil {
		e.Float64("temperature", *em.Temperature)
	}
	if em.PromptTokens > 0 {
		e.Int("prompt_tokens", em.PromptTokens)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		return typedEvent[EventPartialCompletionStart](e)
	case EventTypePartialCompletion:
		return typedEvent[EventPartialCompletion](e)
	case EventTypeFinal:
		return typedEvent[EventFinal](e)
	case EventTypeInterrupt:
		return typedEvent[EventInterrupt](e)
	case EventTypeError:
		return typedEvent[EventError](e)
	case EventTypeReformulated:
		return typedEvent[EventReformulated](e)
	case EventTypeInfo:
		return typedEvent[EventInfo](e)
	}

	return e, nil
}

type payloadSetter interface {
	setPayload(b []byte)
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func typedEvent[T any](e Event) (Event, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, fmt.Errorf("could not cast event to %T", ret)
	}
	ev, ok := any(ret).(Event)
	if !ok {
		return nil, fmt.Errorf("%T is not an event", ret)
	}
	if s, ok := ev.(payloadSetter); ok {
		s.setPayload(e.Payload())
	}
	return ev, nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
