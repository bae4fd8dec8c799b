package rag

import (
	"context"
	"fmt"
	"log"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
	"github.com/Prophet73/ai-chat-test/pkg/store"
)

// previousReplyBudget bounds how much of the prior model reply the
// follow-up detector sees.
const previousReplyBudget = 1500

type searchDecision struct {
	RequiresNewSearch bool   `json:"requires_new_search"`
	Reason            string `json:"reason"`
}

var decisionSchema = llm.Schema{
	"type": "OBJECT",
	"properties": map[string]any{
		"requires_new_search": map[string]any{
			"type":        "BOOLEAN",
			"description": "Set to true if the user asks a new, distinct question.",
		},
		"reason": map[string]any{
			"type":        "STRING",
			"description": "A brief explanation for the decision.",
		},
	},
	"required": []string{"requires_new_search", "reason"},
}

// Decider answers the binary cache-reuse question: does the new turn
// look like a topic change, or can cached retrieval context serve it?
type Decider struct {
	llm    llm.Provider
	logger *log.Logger
}

func NewDecider(llmProvider llm.Provider, logger *log.Logger) *Decider {
	return &Decider{llm: llmProvider, logger: logger}
}

// RequiresNewSearch reports whether a fresh retrieval must run. With
// fewer than two prior turns the answer is always yes, and any failed
// or ambiguous classification also defaults to yes: freshness over
// staleness.
func (d *Decider) RequiresNewSearch(ctx context.Context, history []store.Message) bool {
	if len(history) < 2 {
		return true
	}

	lastUserQuery := history[len(history)-1].Content
	previousReply := truncateRunes(history[len(history)-2].Content, previousReplyBudget)

	prompt := fmt.Sprintf(
		"You are analyzing a conversation. Decide if a new search is required.\n\n"+
			"Previous AI Response:\n---\n%s\n---\n\n"+
			"User's New Query: %q\n\n"+
			"- New topic = new search needed.\n"+
			"- Follow-up (\"tell me more\") = no new search.\n\n"+
			"Do we need a new search?",
		previousReply, lastUserQuery,
	)

	var decision searchDecision
	if err := d.llm.GenerateJSON(ctx, prompt, decisionSchema, &decision); err != nil {
		d.logger.Printf("[WARN] Cache-reuse classification failed, forcing new search: %v", err)
		return true
	}

	if decision.RequiresNewSearch {
		d.logger.Printf("[DECIDER] New search required: %s", decision.Reason)
	} else {
		d.logger.Printf("[DECIDER] Reusing cached context: %s", decision.Reason)
	}
	return decision.RequiresNewSearch
}
