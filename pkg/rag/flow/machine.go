// Package flow drives the guided, multi-step violation report
// workflow. The machine is transport-agnostic: a step consumes one
// user turn and produces either a system message, an error, or a
// generation request for the caller to execute.
package flow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Prophet73/ai-chat-test/internal/constant"
	"github.com/Prophet73/ai-chat-test/pkg/llm"
	"github.com/Prophet73/ai-chat-test/pkg/store"
)

// Retrieval parameters for the prescription flow; narrower than plain
// Q&A because whole sections feed a structured document.
const prescriptionTopK = 5

const (
	dataKeyWorkDescription = "work_description"
	dataKeyFoundSources    = "found_sources"
)

// DocRouter selects candidate document ids for free text.
type DocRouter interface {
	Route(ctx context.Context, query string) []string
}

// Retriever finds relevant passages in the given documents.
type Retriever interface {
	Retrieve(ctx context.Context, docIDs []string, query string, topK int, threshold float64) ([]store.Passage, string, error)
}

// OutputKind discriminates what the caller must do with a step result.
type OutputKind int

const (
	// OutputAsk delivers a system-authored clarifying question.
	OutputAsk OutputKind = iota

	// OutputGenerate asks the caller to run a generation stream with
	// the prepared history and system prompt.
	OutputGenerate

	// OutputError delivers a terminal error message for this turn.
	OutputError
)

// Output is the result of one state-machine step. The step has
// already applied its session state transition when Output returns.
type Output struct {
	Kind         OutputKind
	Message      string        // OutputAsk / OutputError text
	History      []llm.Message // OutputGenerate request
	SystemPrompt string
}

// Machine is the violation-report dialogue state machine. One session
// holds at most one workflow instance at a time.
type Machine struct {
	router    DocRouter
	retriever Retriever
	threshold float64
	logger    *log.Logger
}

func NewMachine(router DocRouter, retriever Retriever, threshold float64, logger *log.Logger) *Machine {
	return &Machine{
		router:    router,
		retriever: retriever,
		threshold: threshold,
		logger:    logger,
	}
}

// Step advances the workflow by one user turn. initialDescription is
// the text the intent classifier extracted after the trigger phrase,
// empty when the trigger stood alone. Every error path resets the
// session to IDLE so a failed attempt never wedges the workflow.
func (m *Machine) Step(ctx context.Context, sess *store.Session, userInput, initialDescription string) Output {
	switch {
	case sess.State == store.StateIdle && initialDescription == "":
		sess.State = store.StateAwaitingDetails
		m.logger.Printf("[FLOW] %s: IDLE -> AWAITING_DETAILS", sess.ID)
		return Output{
			Kind:    OutputAsk,
			Message: "Пожалуйста, уточните, по какому виду работ выявлено нарушение?",
		}

	case sess.State == store.StateIdle || sess.State == store.StateAwaitingDetails:
		workDescription := initialDescription
		if workDescription == "" {
			workDescription = userInput
		}
		return m.searchViolations(ctx, sess, workDescription)

	case sess.State == store.StateAwaitingConfirmation:
		return m.composePrescription(sess, userInput)

	default:
		m.logger.Printf("[FLOW] %s: unknown state %q, resetting", sess.ID, sess.State)
		sess.Reset()
		return Output{Kind: OutputError, Message: "Ошибка в логике предписаний."}
	}
}

// searchViolations is step 2 of the workflow: route the work
// description to documents, retrieve candidate clauses, and request a
// "list the violations" generation.
func (m *Machine) searchViolations(ctx context.Context, sess *store.Session, workDescription string) Output {
	sess.Data[dataKeyWorkDescription] = workDescription

	docIDs := m.router.Route(ctx, workDescription)
	if len(docIDs) == 0 {
		sess.Reset()
		return Output{
			Kind:    OutputError,
			Message: fmt.Sprintf("Не найдены документы для '%s'.", workDescription),
		}
	}

	sources, contextText, err := m.retriever.Retrieve(ctx, docIDs, workDescription, prescriptionTopK, m.threshold)
	if err != nil {
		m.logger.Printf("[FLOW] %s: retrieval failed: %v", sess.ID, err)
		sess.Reset()
		return Output{
			Kind:    OutputError,
			Message: fmt.Sprintf("Нет информации о '%s'.", workDescription),
		}
	}

	sess.State = store.StateAwaitingConfirmation
	sess.Data[dataKeyFoundSources] = sources
	m.logger.Printf("[FLOW] %s: -> AWAITING_CONFIRMATION (%d sources)", sess.ID, len(sources))

	prompt := fmt.Sprintf(
		"КОНТЕКСТ:\n%s\n\nЗАДАЧА: Сгенерируй список нарушений для '%s' (ШАГ 2).",
		contextText, workDescription,
	)
	return Output{
		Kind:         OutputGenerate,
		History:      []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		SystemPrompt: constant.PrescriptionSystemPrompt,
	}
}

// composePrescription is the terminal step: the user confirmed or
// edited the violation list, so request the final structured document
// and return the machine to IDLE for the next instance.
func (m *Machine) composePrescription(sess *store.Session, confirmedText string) Output {
	var sourcesText strings.Builder
	if sources, ok := sess.Data[dataKeyFoundSources].([]store.Passage); ok {
		for _, src := range sources {
			fmt.Fprintf(&sourcesText, "- Пункт %s из '%s': %s\n", src.Header, src.DocName, src.Text)
		}
	}

	prompt := fmt.Sprintf(
		"ПОДТВЕРЖДЕННЫЕ НАРУШЕНИЯ: '%s'\n\nДАННЫЕ:\n%s\nДАТА: %s\n\nЗАДАЧА: Сформируй предписание (ШАГ 3).",
		confirmedText, sourcesText.String(), time.Now().Format("02.01.2006"),
	)

	sess.Reset()
	m.logger.Printf("[FLOW] %s: AWAITING_CONFIRMATION -> IDLE (prescription requested)", sess.ID)

	return Output{
		Kind:         OutputGenerate,
		History:      []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		SystemPrompt: constant.PrescriptionSystemPrompt,
	}
}
