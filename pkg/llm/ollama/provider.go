package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
)

// OllamaProvider is the self-hosted fallback backend for deployments
// without access to the Gemini API.
type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	// 1. Process Options
	options := &llm.Options{
		Temperature: 0.1,
	}
	for _, opt := range opts {
		opt(options)
	}

	reqPayload := o.buildRequest([]llm.Message{{Role: llm.RoleUser, Content: prompt}}, "", options)

	// 2. Send Request
	bodyBytes, err := o.post(ctx, reqPayload)
	if err != nil {
		return "", err
	}

	// 3. Parse Response
	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) GenerateJSON(ctx context.Context, prompt string, schema llm.Schema, out any) error {
	options := &llm.Options{Temperature: 0.0}

	// Ollama has no response-schema support; describe the shape inline
	// and force JSON output mode.
	schemaJson, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	fullPrompt := fmt.Sprintf(
		"%s\n\nRespond with ONLY valid JSON matching this schema, no other text:\n%s",
		prompt, string(schemaJson),
	)

	reqPayload := o.buildRequest([]llm.Message{{Role: llm.RoleUser, Content: fullPrompt}}, "json", options)

	bodyBytes, err := o.post(ctx, reqPayload)
	if err != nil {
		return err
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if err := json.Unmarshal([]byte(ollamaResp.Message.Content), out); err != nil {
		return fmt.Errorf("parse structured response: %w | raw: %s", err, ollamaResp.Message.Content)
	}
	return nil
}

func (o *OllamaProvider) Stream(ctx context.Context, history []llm.Message, systemPrompt string, opts ...llm.Option) (<-chan llm.Chunk, error) {
	options := &llm.Options{
		Temperature: 0.2,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := history
	if systemPrompt != "" {
		messages = append([]llm.Message{{Role: "system", Content: systemPrompt}}, history...)
	}

	reqPayload := o.buildRequest(messages, "", options)
	reqPayload.Stream = true

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// Streamed responses arrive as one JSON object per line
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			var event ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
				continue
			}
			if event.Message.Content != "" {
				select {
				case out <- llm.Chunk{Text: event.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if event.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- llm.Chunk{Err: fmt.Errorf("stream read: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (o *OllamaProvider) buildRequest(history []llm.Message, format string, options *llm.Options) ollamaChatRequest {
	// Map generic messages to Ollama messages
	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == llm.RoleModel {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   false,
		Format:   format,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}

	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	return reqPayload
}

func (o *OllamaProvider) post(ctx context.Context, reqPayload ollamaChatRequest) ([]byte, error) {
	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}
