// Package stream defines the tagged event vocabulary delivered to the
// client during one conversation turn.
package stream

import (
	"context"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
)

type EventType string

const (
	// EventContent is one increment of generated text.
	EventContent EventType = "content"

	// EventError is a terminal, human-readable failure.
	EventError EventType = "error"

	// EventMessage is a system-authored prompt such as a clarifying
	// question, not produced by the model.
	EventMessage EventType = "message"

	// EventSources is the final event carrying the passages used this
	// turn. Absent when no retrieval happened.
	EventSources EventType = "sources"
)

// Event is one independently parseable unit of the outbound stream.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

func Content(text string) Event   { return Event{Type: EventContent, Data: text} }
func Error(message string) Event  { return Event{Type: EventError, Data: message} }
func Message(message string) Event { return Event{Type: EventMessage, Data: message} }
func Sources(sources any) Event   { return Event{Type: EventSources, Data: sources} }

// EmitFunc delivers one event to the caller. It returns false when the
// caller has gone away and the producer should stop.
type EmitFunc func(Event) bool

// Drain forwards generation chunks as content events while
// accumulating the concatenated response text. A chunk error becomes
// a terminal error event. The returned text is what gets recorded in
// session history.
func Drain(ctx context.Context, chunks <-chan llm.Chunk, emit EmitFunc) string {
	var full []byte
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return string(full)
			}
			if chunk.Err != nil {
				emit(Error("Ошибка генерации ответа: " + chunk.Err.Error()))
				return string(full)
			}
			if !emit(Content(chunk.Text)) {
				return string(full)
			}
			full = append(full, chunk.Text...)
		case <-ctx.Done():
			return string(full)
		}
	}
}
