package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/pkg/catalog"
	"github.com/Prophet73/ai-chat-test/pkg/embedding"
	"github.com/Prophet73/ai-chat-test/pkg/embedding/jina"
	"github.com/Prophet73/ai-chat-test/pkg/llm/factory"
	"github.com/Prophet73/ai-chat-test/pkg/rag"
	"github.com/Prophet73/ai-chat-test/pkg/vectorstore"
)

// Retrieval diagnostic: runs a query against the whole corpus at a
// range of thresholds so index or threshold problems show up without
// starting the server.
//
// Usage: go run ./cmd/diag "размер защитного слоя бетона"
func main() {
	cfg := config.Load()

	query := "требования к защитному слою бетона"
	if len(os.Args) > 1 {
		query = os.Args[1]
	}

	var embeddingProvider embedding.Provider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaApiKey)
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiApiKey, cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.GeminiApiKey, cfg.Ai.OllamaBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}

	docCatalog, err := catalog.Load(cfg.Paths.ManifestPath, cfg.Paths.InstructionsDir)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}

	reader := vectorstore.NewReader(cfg.Paths.VectorStoreDir)
	engine := rag.NewEngine(embeddingProvider, llmProvider, reader, log.New(os.Stderr, "", log.LstdFlags))

	ctx := context.Background()

	color.Cyan("🔎 Retrieval diagnostic")
	color.Cyan("Query: %q", query)
	color.Cyan("Documents in manifest: %d", len(docCatalog.All()))

	thresholds := []float64{0.5, cfg.Retrieval.SimilarityThreshold, 0.3, 0.2}
	for _, threshold := range thresholds {
		color.Yellow("\n--- threshold=%.2f topK=%d ---", threshold, cfg.Retrieval.TopK)

		passages, _, err := engine.Retrieve(ctx, docCatalog.IDs(), query, cfg.Retrieval.TopK, threshold)
		if err != nil {
			color.Red("Retrieve failed: %v", err)
			continue
		}

		color.Green("%d passages", len(passages))
		for i, p := range passages {
			fmt.Printf("  %2d. [%.4f] %s | %s\n", i+1, p.Similarity, p.DocName, p.Header)
		}
	}
}
