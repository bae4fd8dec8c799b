package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
)

// pumpSSE reads one server-sent-events response body and forwards text
// increments to out. It owns body and out and closes both on exit.
func pumpSSE(ctx context.Context, body io.ReadCloser, out chan<- llm.Chunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Single events can carry long text parts
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(data) == 0 || bytes.Equal(data, []byte("[DONE]")) {
			continue
		}

		var event geminiResponse
		if err := json.Unmarshal(data, &event); err != nil {
			// Skip keep-alives and partial frames
			continue
		}

		text := event.text()
		if text == "" {
			continue
		}

		select {
		case out <- llm.Chunk{Text: text}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case out <- llm.Chunk{Err: fmt.Errorf("stream read: %w", err)}:
		case <-ctx.Done():
		}
	}
}
