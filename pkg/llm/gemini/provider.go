package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type GeminiProvider struct {
	ApiKey    string
	ModelName string
	Client    *http.Client
}

// Ensure GeminiProvider implements Provider
var _ llm.Provider = &GeminiProvider{}

func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	return &GeminiProvider{
		ApiKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      *float64   `json:"temperature,omitempty"`
	MaxOutputTokens  int        `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string     `json:"responseMimeType,omitempty"`
	ResponseSchema   llm.Schema `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content *geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var buf bytes.Buffer
	for _, part := range r.Candidates[0].Content.Parts {
		buf.WriteString(part.Text)
	}
	return buf.String()
}

// --- Interface Implementation ---

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.1,
	}
	for _, opt := range opts {
		opt(options)
	}

	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}, Role: llm.RoleUser},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     &options.Temperature,
			MaxOutputTokens: options.MaxTokens,
		},
	}

	res, err := p.post(ctx, p.endpoint(options.Model, "generateContent"), payload)
	if err != nil {
		return "", err
	}

	return res.text(), nil
}

func (p *GeminiProvider) GenerateJSON(ctx context.Context, prompt string, schema llm.Schema, out any) error {
	zero := 0.0
	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}, Role: llm.RoleUser},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      &zero,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	res, err := p.post(ctx, p.endpoint("", "generateContent"), payload)
	if err != nil {
		return err
	}

	raw := stripMarkdownFence([]byte(res.text()))
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse structured response: %w | raw: %s", err, string(raw))
	}
	return nil
}

func (p *GeminiProvider) Stream(ctx context.Context, history []llm.Message, systemPrompt string, opts ...llm.Option) (<-chan llm.Chunk, error) {
	options := &llm.Options{
		Temperature: 0.2,
		MaxTokens:   8192,
	}
	for _, opt := range opts {
		opt(options)
	}

	contents := make([]geminiContent, 0, len(history))
	for _, msg := range history {
		contents = append(contents, geminiContent{
			Parts: []geminiPart{{Text: msg.Content}},
			Role:  msg.Role,
		})
	}

	payload := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     &options.Temperature,
			MaxOutputTokens: options.MaxTokens,
		},
	}
	if systemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.endpoint(options.Model, "streamGenerateContent") + "?alt=sse"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	out := make(chan llm.Chunk)
	go pumpSSE(ctx, res.Body, out)
	return out, nil
}

func (p *GeminiProvider) endpoint(modelOverride, method string) string {
	model := p.ModelName
	if modelOverride != "" {
		model = modelOverride
	}
	return fmt.Sprintf("%s/%s:%s", baseURL, model, method)
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, payload geminiRequest) (*geminiResponse, error) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	var geminiRes geminiResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(geminiRes.Candidates) == 0 {
		return nil, fmt.Errorf("empty candidates in response body %s", string(resBody))
	}

	return &geminiRes, nil
}

// stripMarkdownFence removes a ```json ... ``` wrapper some models add
// around structured output.
func stripMarkdownFence(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	raw = bytes.TrimPrefix(raw, []byte("```json"))
	raw = bytes.TrimPrefix(raw, []byte("```"))
	raw = bytes.TrimSuffix(raw, []byte("```"))
	return bytes.TrimSpace(raw)
}
