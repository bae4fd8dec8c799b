package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
)

func TestDrainAccumulatesContent(t *testing.T) {
	chunks := make(chan llm.Chunk, 3)
	chunks <- llm.Chunk{Text: "не менее "}
	chunks <- llm.Chunk{Text: "20 мм"}
	close(chunks)

	var emitted []Event
	full := Drain(context.Background(), chunks, func(ev Event) bool {
		emitted = append(emitted, ev)
		return true
	})

	assert.Equal(t, "не менее 20 мм", full)
	assert.Len(t, emitted, 2)
	assert.Equal(t, EventContent, emitted[0].Type)
}

func TestDrainTurnsChunkErrorIntoErrorEvent(t *testing.T) {
	chunks := make(chan llm.Chunk, 2)
	chunks <- llm.Chunk{Text: "начало"}
	chunks <- llm.Chunk{Err: errors.New("upstream closed")}
	close(chunks)

	var emitted []Event
	full := Drain(context.Background(), chunks, func(ev Event) bool {
		emitted = append(emitted, ev)
		return true
	})

	// The partial text is preserved for history even though the turn
	// ended in an error event.
	assert.Equal(t, "начало", full)
	assert.Equal(t, EventError, emitted[len(emitted)-1].Type)
}

func TestDrainStopsWhenConsumerGone(t *testing.T) {
	chunks := make(chan llm.Chunk, 2)
	chunks <- llm.Chunk{Text: "первый"}
	chunks <- llm.Chunk{Text: "второй"}
	close(chunks)

	full := Drain(context.Background(), chunks, func(ev Event) bool {
		return false
	})

	assert.Equal(t, "", full)
}
