// Package intent performs cheap lexical classification of user
// utterances. It is deliberately isolated behind Classify so the
// substring heuristics can later be swapped for a model-based
// classifier without touching the dialogue flow.
package intent

import (
	"strings"
)

// Intent is the coarse category of one user utterance.
type Intent string

const (
	// GeneralChat covers greetings and thanks with no question inside.
	GeneralChat Intent = "GENERAL_CHAT"

	// PrescriptionRequest starts or continues the guided violation
	// report workflow.
	PrescriptionRequest Intent = "PRESCRIPTION_REQUEST"

	// RAGQuery is everything else: a question to answer from the
	// document corpus.
	RAGQuery Intent = "RAG_QUERY"
)

// generalTriggers match the whole utterance, case-insensitive.
var generalTriggers = []string{
	"привет", "hello", "hi", "здравствуй", "добрый день",
	"спасибо", "благодарю", "thanks",
}

// prescriptionTriggers match anywhere in the utterance, in priority
// order. Text after the trigger becomes the initial work description.
var prescriptionTriggers = []string{
	"предписание", "prescript",
	"выдать предписание", "написать предписание", "составь предписание",
}

// prepositions are stripped once from the front of an extracted
// description ("предписание по кровле" -> "кровле").
var prepositions = []string{"по", "за", "на", "о", "об"}

// Classify maps an utterance to its intent. For PrescriptionRequest
// the second result carries the extracted initial description, empty
// when the trigger phrase stood alone.
func Classify(utterance string) (Intent, string) {
	trimmed := strings.TrimSpace(utterance)
	normalized := strings.ToLower(trimmed)

	for _, trigger := range generalTriggers {
		if normalized == trigger {
			return GeneralChat, ""
		}
	}

	for _, trigger := range prescriptionTriggers {
		idx := strings.Index(normalized, trigger)
		if idx == -1 {
			continue
		}
		description := extractDescription(trimmed, normalized, idx+len(trigger))
		return PrescriptionRequest, description
	}

	return RAGQuery, ""
}

// extractDescription slices the original (non-lowercased) utterance
// after the trigger and strips one leading preposition. Lowercasing
// Cyrillic is byte-length preserving, so the offset into the
// normalized string is valid in the original too.
func extractDescription(original, normalized string, offset int) string {
	if offset >= len(normalized) {
		return ""
	}
	description := strings.TrimSpace(original[offset:])

	lower := strings.ToLower(description)
	for _, prep := range prepositions {
		if strings.HasPrefix(lower, prep+" ") {
			description = strings.TrimSpace(description[len(prep)+1:])
			break
		}
	}
	return description
}
