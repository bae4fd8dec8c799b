package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Prophet73/ai-chat-test/internal/constant"
	"github.com/Prophet73/ai-chat-test/internal/dto"
	"github.com/Prophet73/ai-chat-test/internal/repository/memory"
	"github.com/Prophet73/ai-chat-test/pkg/catalog"
	"github.com/Prophet73/ai-chat-test/pkg/llm"
	"github.com/Prophet73/ai-chat-test/pkg/rag"
	"github.com/Prophet73/ai-chat-test/pkg/rag/flow"
	"github.com/Prophet73/ai-chat-test/pkg/rag/intent"
	"github.com/Prophet73/ai-chat-test/pkg/rag/stream"
	"github.com/Prophet73/ai-chat-test/pkg/store"
)

// IChatService defines the chat orchestration interface
type IChatService interface {
	Chat(ctx context.Context, request *dto.ChatRequest) <-chan stream.Event
	SwitchSession(oldSessionID string) *dto.SwitchSessionResponse
	DocumentTree() []catalog.TreeNode
	Prompts() []dto.PromptInfoResponse
	SessionCount() int
}

// SearchDecider answers the cache-reuse question for a follow-up turn.
type SearchDecider interface {
	RequiresNewSearch(ctx context.Context, history []store.Message) bool
}

// chatService runs one conversation turn end to end: intent dispatch,
// retrieval, generation streaming, and session bookkeeping.
type chatService struct {
	sessionRepo *memory.SessionRepository
	llmProvider llm.Provider
	engine      flow.Retriever
	docRouter   flow.DocRouter
	decider     SearchDecider
	machine     *flow.Machine
	catalog     *catalog.Catalog

	topK      int
	threshold float64
	ragLogger *log.Logger
}

func NewChatService(
	sessionRepo *memory.SessionRepository,
	llmProvider llm.Provider,
	engine flow.Retriever,
	docRouter flow.DocRouter,
	decider SearchDecider,
	machine *flow.Machine,
	cat *catalog.Catalog,
	topK int,
	threshold float64,
	ragLogger *log.Logger,
) IChatService {
	return &chatService{
		sessionRepo: sessionRepo,
		llmProvider: llmProvider,
		engine:      engine,
		docRouter:   docRouter,
		decider:     decider,
		machine:     machine,
		catalog:     cat,
		topK:        topK,
		threshold:   threshold,
		ragLogger:   ragLogger,
	}
}

// Chat processes one user turn and returns the event stream for it.
// The session lock is held until the stream closes, so concurrent
// requests for the same session serialize instead of interleaving.
func (s *chatService) Chat(ctx context.Context, request *dto.ChatRequest) <-chan stream.Event {
	events := make(chan stream.Event, 8)

	go func() {
		defer close(events)

		unlock := s.sessionRepo.Lock(request.SessionID)
		defer unlock()

		sess := s.sessionRepo.GetOrCreate(request.SessionID)
		sess.Append(store.RoleUser, request.UserInput)

		emit := func(ev stream.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		detected, description := intent.Classify(request.UserInput)
		if sess.State != store.StateIdle {
			// A workflow in progress owns every turn until it finishes
			// or fails.
			detected = intent.PrescriptionRequest
		}
		s.ragLogger.Printf("[CHAT] session=%s intent=%s state=%s", sess.ID, detected, sess.State)

		switch detected {
		case intent.GeneralChat:
			s.handleGeneralChat(ctx, sess, emit)
		case intent.PrescriptionRequest:
			s.handlePrescription(ctx, sess, request.UserInput, description, emit)
		default:
			s.handleRAG(ctx, sess, request, emit)
		}

		sess.Trim()
		s.sessionRepo.Save(sess)
	}()

	return events
}

func (s *chatService) handleGeneralChat(ctx context.Context, sess *store.Session, emit stream.EmitFunc) {
	reply := s.streamGeneration(ctx, toLLMHistory(sess.History), constant.GeneralChatSystemPrompt, emit)
	if reply != "" {
		sess.Append(store.RoleModel, reply)
	}
}

func (s *chatService) handlePrescription(ctx context.Context, sess *store.Session, userInput, description string, emit stream.EmitFunc) {
	out := s.machine.Step(ctx, sess, userInput, description)

	switch out.Kind {
	case flow.OutputAsk:
		emit(stream.Message(out.Message))
		sess.Append(store.RoleModel, out.Message)

	case flow.OutputError:
		emit(stream.Error(out.Message))

	case flow.OutputGenerate:
		reply := s.streamGeneration(ctx, out.History, out.SystemPrompt, emit)
		if reply != "" {
			sess.Append(store.RoleModel, reply)
		}
	}
}

// handleRAG answers a corpus question. doc_id other than "0" switches
// to single-document grounding over the full normative text.
func (s *chatService) handleRAG(ctx context.Context, sess *store.Session, request *dto.ChatRequest, emit stream.EmitFunc) {
	if request.DocID != "" && request.DocID != catalog.WholeCorpusID {
		s.handleGrounded(ctx, sess, request, emit)
		return
	}

	contextText := sess.LastRAGContext
	sources := sess.LastRAGSources

	if contextText == "" || s.decider.RequiresNewSearch(ctx, sess.History) {
		docIDs := splitCategoryIDs(request.CategoryDocIDs)
		if len(docIDs) == 0 {
			// Routing sees the whole conversation, not just the last
			// message, so topic-dependent follow-ups land on the right
			// documents.
			docIDs = s.docRouter.Route(ctx, routingTranscript(sess.History))
		}
		if len(docIDs) == 0 {
			s.failTurn(sess, emit, rag.ErrRoutingEmpty)
			return
		}

		var err error
		sources, contextText, err = s.engine.Retrieve(ctx, docIDs, request.UserInput, s.topK, s.threshold)
		if err != nil {
			s.failTurn(sess, emit, err)
			return
		}

		sess.LastRAGContext = contextText
		sess.LastRAGSources = sources
	} else {
		s.ragLogger.Printf("[CHAT] session=%s reusing cached context (%d sources)", sess.ID, len(sources))
	}

	prompt := fmt.Sprintf("КОНТЕКСТ:\n%s\n\nВОПРОС: %s", contextText, request.UserInput)
	history := append(toLLMHistory(sess.History[:len(sess.History)-1]), llm.Message{Role: llm.RoleUser, Content: prompt})

	reply := s.streamGeneration(ctx, history, constant.RAGSystemPrompt, emit)
	if reply == "" {
		return
	}

	emit(stream.Sources(sources))
	sess.Append(store.RoleModel, reply)
}

// handleGrounded answers a question against the complete text of one
// document instead of retrieved fragments.
func (s *chatService) handleGrounded(ctx context.Context, sess *store.Session, request *dto.ChatRequest, emit stream.EmitFunc) {
	fullText, err := s.catalog.FullText(request.DocID)
	if err != nil {
		s.ragLogger.Printf("[ERROR] Full text load failed for doc %s: %v", request.DocID, err)
		s.failTurn(sess, emit, err)
		return
	}

	desc, _ := s.catalog.Find(request.DocID)
	prompt := fmt.Sprintf("ДОКУМЕНТ '%s':\n%s\n\nВОПРОС: %s", desc.Name, fullText, request.UserInput)
	// The grounded turn stands on the full document alone; prior
	// conversation is not sent alongside it.
	history := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	reply := s.streamGeneration(ctx, history, constant.GroundingSystemPrompt, emit)
	if reply != "" {
		sess.Append(store.RoleModel, reply)
	}
}

// streamGeneration runs one generation stream, forwarding chunks as
// content events, and returns the accumulated reply text.
func (s *chatService) streamGeneration(ctx context.Context, history []llm.Message, systemPrompt string, emit stream.EmitFunc) string {
	chunks, err := s.llmProvider.Stream(ctx, history, systemPrompt)
	if err != nil {
		s.ragLogger.Printf("[ERROR] Generation stream failed to start: %v", err)
		emit(stream.Error(turnErrorMessage(rag.ErrGenerationUnavailable)))
		return ""
	}
	return stream.Drain(ctx, chunks, emit)
}

// failTurn emits the single terminal error event for this turn and
// resets the session so the failure never wedges a workflow.
func (s *chatService) failTurn(sess *store.Session, emit stream.EmitFunc, err error) {
	emit(stream.Error(turnErrorMessage(err)))
	sess.Reset()
}

func turnErrorMessage(err error) string {
	switch {
	case errors.Is(err, rag.ErrRoutingEmpty):
		return "Не удалось подобрать документы по вашему запросу. Попробуйте переформулировать вопрос."
	case errors.Is(err, rag.ErrEmbeddingUnavailable):
		return "Сервис поиска временно недоступен. Повторите запрос позже."
	case errors.Is(err, rag.ErrGenerationUnavailable):
		return "Сервис генерации ответов временно недоступен. Повторите запрос позже."
	case errors.Is(err, rag.ErrNoIndexedContent):
		return "Для выбранных документов нет проиндексированного содержимого."
	case errors.Is(err, rag.ErrNoRelevantContent):
		return "В нормативных документах не найдено информации по вашему запросу."
	default:
		return "Произошла ошибка при обработке запроса. Повторите попытку позже."
	}
}

// routingTranscript renders the conversation as "role: content" lines
// for the document router.
func routingTranscript(history []store.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// splitCategoryIDs parses the comma-separated category scope from the
// request, dropping empty entries.
func splitCategoryIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func toLLMHistory(messages []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		if m.Role == store.RoleModel {
			role = llm.RoleModel
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// SwitchSession resets the conversation context: the old session is
// destroyed and the client gets a fresh id with an empty IDLE session.
func (s *chatService) SwitchSession(oldSessionID string) *dto.SwitchSessionResponse {
	if oldSessionID != "" {
		unlock := s.sessionRepo.Lock(oldSessionID)
		s.sessionRepo.Destroy(oldSessionID)
		unlock()
	}

	newID := uuid.NewString()
	unlock := s.sessionRepo.Lock(newID)
	defer unlock()

	sess := s.sessionRepo.GetOrCreate(newID)
	return &dto.SwitchSessionResponse{
		SessionID: sess.ID,
		State:     sess.State,
		Messages:  len(sess.History),
	}
}

// DocumentTree exposes the document catalog grouped by category for
// the selector UI.
func (s *chatService) DocumentTree() []catalog.TreeNode {
	return s.catalog.Tree()
}

// Prompts exposes the active system prompts for the admin screen.
func (s *chatService) Prompts() []dto.PromptInfoResponse {
	return []dto.PromptInfoResponse{
		{Name: "rag", Content: constant.RAGSystemPrompt},
		{Name: "grounding", Content: constant.GroundingSystemPrompt},
		{Name: "prescription", Content: constant.PrescriptionSystemPrompt},
		{Name: "general_chat", Content: constant.GeneralChatSystemPrompt},
		{Name: "query_expansion", Content: constant.QueryExpansionPrompt},
	}
}

func (s *chatService) SessionCount() int {
	return s.sessionRepo.Count()
}

// NewRAGLogger writes retrieval traces to a dedicated file so model
// behaviour can be inspected without digging through the app log.
func NewRAGLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "rag.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[RAG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
