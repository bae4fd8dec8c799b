package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Prophet73/ai-chat-test/pkg/catalog"
	"github.com/Prophet73/ai-chat-test/pkg/llm"
)

// DocumentRoute is one router selection with its justification.
type DocumentRoute struct {
	DocID  string `json:"doc_id"`
	Reason string `json:"reason"`
}

type routerResponse struct {
	RelevantDocuments []DocumentRoute `json:"relevant_documents"`
}

var routerSchema = llm.Schema{
	"type": "OBJECT",
	"properties": map[string]any{
		"relevant_documents": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"doc_id": map[string]any{"type": "STRING"},
					"reason": map[string]any{"type": "STRING"},
				},
				"required": []string{"doc_id", "reason"},
			},
		},
	},
	"required": []string{"relevant_documents"},
}

// Router selects candidate documents for a free-text query using the
// generation service.
type Router struct {
	llm     llm.Provider
	catalog *catalog.Catalog
	logger  *log.Logger
}

func NewRouter(llmProvider llm.Provider, cat *catalog.Catalog, logger *log.Logger) *Router {
	return &Router{
		llm:     llmProvider,
		catalog: cat,
		logger:  logger,
	}
}

// Route returns the ids of documents relevant to the query. An empty
// result is a valid outcome, including on classification failure; the
// caller decides how to treat "no matching documents".
func (r *Router) Route(ctx context.Context, query string) []string {
	docs := r.catalog.All()
	if len(docs) == 0 {
		return nil
	}

	var descriptions strings.Builder
	for _, d := range docs {
		if d.ID == "" {
			continue
		}
		fmt.Fprintf(&descriptions, "- ID: %s, Название: %s, Описание: %s\n", d.ID, d.Name, d.Description)
	}

	prompt := fmt.Sprintf(
		"Select the most relevant documents for the user query. "+
			"Return JSON with ALL relevant document IDs.\n\n"+
			"AVAILABLE DOCUMENTS:\n%s\nUSER QUERY: %q",
		descriptions.String(), query,
	)

	var response routerResponse
	if err := r.llm.GenerateJSON(ctx, prompt, routerSchema, &response); err != nil {
		r.logger.Printf("[ERROR] Document routing failed: %v", err)
		return nil
	}

	ids := make([]string, 0, len(response.RelevantDocuments))
	for _, doc := range response.RelevantDocuments {
		if doc.DocID != "" {
			ids = append(ids, doc.DocID)
		}
	}

	r.logger.Printf("[ROUTER] Selected documents: %v", ids)
	return ids
}
