package service

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prophet73/ai-chat-test/internal/dto"
	"github.com/Prophet73/ai-chat-test/internal/repository/memory"
	"github.com/Prophet73/ai-chat-test/pkg/catalog"
	"github.com/Prophet73/ai-chat-test/pkg/llm"
	"github.com/Prophet73/ai-chat-test/pkg/rag/flow"
	"github.com/Prophet73/ai-chat-test/pkg/rag/stream"
	"github.com/Prophet73/ai-chat-test/pkg/store"
)

type scriptedLLM struct {
	reply       string
	streamErr   error
	lastHistory []llm.Message
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (s *scriptedLLM) GenerateJSON(ctx context.Context, prompt string, schema llm.Schema, out any) error {
	return errors.New("not used")
}

func (s *scriptedLLM) Stream(ctx context.Context, history []llm.Message, systemPrompt string, options ...llm.Option) (<-chan llm.Chunk, error) {
	s.lastHistory = history
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	chunks := make(chan llm.Chunk, 2)
	chunks <- llm.Chunk{Text: s.reply}
	close(chunks)
	return chunks, nil
}

type stubRouter struct {
	ids       []string
	calls     int
	lastQuery string
}

func (s *stubRouter) Route(ctx context.Context, query string) []string {
	s.calls++
	s.lastQuery = query
	return s.ids
}

type stubRetriever struct {
	passages   []store.Passage
	context    string
	err        error
	calls      int
	lastDocIDs []string
}

func (s *stubRetriever) Retrieve(ctx context.Context, docIDs []string, query string, topK int, threshold float64) ([]store.Passage, string, error) {
	s.calls++
	s.lastDocIDs = docIDs
	if s.err != nil {
		return nil, "", s.err
	}
	return s.passages, s.context, nil
}

type stubDecider struct {
	newSearch bool
}

func (s *stubDecider) RequiresNewSearch(ctx context.Context, history []store.Message) bool {
	return s.newSearch
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	manifest := `[
		{"id": "0", "name": "Все документы", "category": "", "filename": "", "description": ""},
		{"id": "1", "name": "СП 70", "category": "Организация и общие работы", "filename": "sp70.txt", "description": "конструкции"}
	]`
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sp70.txt"), []byte("полный текст СП 70"), 0644))

	cat, err := catalog.Load(manifestPath, dir)
	require.NoError(t, err)
	return cat
}

type serviceFixture struct {
	service   IChatService
	sessions  *memory.SessionRepository
	router    *stubRouter
	retriever *stubRetriever
}

func newFixture(t *testing.T, llmProvider llm.Provider, router *stubRouter, retriever *stubRetriever, decider SearchDecider) *serviceFixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	sessions := memory.NewSessionRepository(time.Hour)
	machine := flow.NewMachine(router, retriever, 0.4, logger)

	svc := NewChatService(sessions, llmProvider, retriever, router, decider, machine, testCatalog(t), 8, 0.4, logger)
	return &serviceFixture{service: svc, sessions: sessions, router: router, retriever: retriever}
}

func collect(t *testing.T, events <-chan stream.Event) []stream.Event {
	t.Helper()
	var out []stream.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func eventsOfType(events []stream.Event, kind stream.EventType) []stream.Event {
	var out []stream.Event
	for _, ev := range events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestChatRoutingEmptyEmitsSingleError(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "не должен вызываться"},
		&stubRouter{},
		&stubRetriever{},
		&stubDecider{newSearch: true},
	)

	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "какой допуск у сварного шва?",
		DocID:     "0",
		SessionID: "s1",
	}))

	require.Len(t, eventsOfType(events, stream.EventError), 1)
	assert.Empty(t, eventsOfType(events, stream.EventContent))
	assert.Empty(t, eventsOfType(events, stream.EventSources))
	assert.Equal(t, 0, fx.retriever.calls)

	sess, found := fx.sessions.Get("s1")
	require.True(t, found)
	assert.Equal(t, store.StateIdle, sess.State)
	// The failed turn never records a model reply.
	require.Len(t, sess.History, 1)
	assert.Equal(t, store.RoleUser, sess.History[0].Role)
}

func TestChatRAGHappyPath(t *testing.T) {
	passages := []store.Passage{{Header: "5.1", Text: "превью", DocName: "СП 70", Similarity: 0.9}}
	fx := newFixture(t,
		&scriptedLLM{reply: "не менее 20 мм"},
		&stubRouter{ids: []string{"1"}},
		&stubRetriever{passages: passages, context: "контекст"},
		&stubDecider{newSearch: true},
	)

	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "какой защитный слой бетона?",
		DocID:     "0",
		SessionID: "s1",
	}))

	contents := eventsOfType(events, stream.EventContent)
	require.NotEmpty(t, contents)
	assert.Equal(t, "не менее 20 мм", contents[0].Data)
	require.Len(t, eventsOfType(events, stream.EventSources), 1)
	assert.Empty(t, eventsOfType(events, stream.EventError))

	sess, found := fx.sessions.Get("s1")
	require.True(t, found)
	require.Len(t, sess.History, 2)
	assert.Equal(t, "не менее 20 мм", sess.History[1].Content)
	assert.Equal(t, "контекст", sess.LastRAGContext)
	assert.Len(t, sess.LastRAGSources, 1)
}

func TestChatFollowUpReusesCachedContext(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "ответ"},
		&stubRouter{ids: []string{"1"}},
		&stubRetriever{passages: []store.Passage{{Header: "5.1"}}, context: "контекст"},
		&stubDecider{newSearch: false},
	)

	// First turn has no cached context, so it searches regardless of
	// the decider.
	collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "первый вопрос", DocID: "0", SessionID: "s1",
	}))
	require.Equal(t, 1, fx.retriever.calls)

	// Follow-up reuses the cache.
	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "расскажи подробнее", DocID: "0", SessionID: "s1",
	}))
	assert.Equal(t, 1, fx.retriever.calls)
	assert.Equal(t, 1, fx.router.calls)
	require.Len(t, eventsOfType(events, stream.EventSources), 1)
}

func TestChatCategoryScopeSkipsRouter(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "ответ"},
		&stubRouter{ids: []string{"1"}},
		&stubRetriever{passages: []store.Passage{{Header: "5.1"}}, context: "контекст"},
		&stubDecider{newSearch: true},
	)

	collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput:      "вопрос по категории",
		DocID:          "0",
		SessionID:      "s1",
		CategoryDocIDs: "1, 2",
	}))

	assert.Equal(t, 0, fx.router.calls)
	assert.Equal(t, 1, fx.retriever.calls)
	assert.Equal(t, []string{"1", "2"}, fx.retriever.lastDocIDs)
}

func TestChatGeneralChat(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "Здравствуйте! Чем могу помочь?"},
		&stubRouter{},
		&stubRetriever{},
		&stubDecider{newSearch: true},
	)

	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "привет", DocID: "0", SessionID: "s1",
	}))

	require.NotEmpty(t, eventsOfType(events, stream.EventContent))
	assert.Empty(t, eventsOfType(events, stream.EventSources))
	assert.Equal(t, 0, fx.retriever.calls)
}

func TestChatGroundedSingleDocument(t *testing.T) {
	model := &scriptedLLM{reply: "ответ по документу"}
	fx := newFixture(t,
		model,
		&stubRouter{},
		&stubRetriever{},
		&stubDecider{newSearch: true},
	)

	// Seed prior conversation in the same session.
	collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "привет", DocID: "0", SessionID: "s1",
	}))

	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "что сказано в разделе 5?", DocID: "1", SessionID: "s1",
	}))

	require.NotEmpty(t, eventsOfType(events, stream.EventContent))
	// Single-document grounding bypasses retrieval entirely.
	assert.Equal(t, 0, fx.retriever.calls)
	assert.Equal(t, 0, fx.router.calls)

	// The grounded turn is a standalone message: the full document plus
	// the question, with no prior history attached.
	require.Len(t, model.lastHistory, 1)
	assert.Contains(t, model.lastHistory[0].Content, "полный текст СП 70")
	assert.Contains(t, model.lastHistory[0].Content, "что сказано в разделе 5?")
}

func TestChatRoutingUsesConversationTranscript(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "ответ"},
		&stubRouter{ids: []string{"1"}},
		&stubRetriever{passages: []store.Passage{{Header: "5.1"}}, context: "контекст"},
		&stubDecider{newSearch: true},
	)

	collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "какой защитный слой бетона для стен?", DocID: "0", SessionID: "s1",
	}))

	// The follow-up names no topic on its own; routing still sees the
	// earlier turns.
	collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "а для фундаментов?", DocID: "0", SessionID: "s1",
	}))

	require.Equal(t, 2, fx.router.calls)
	assert.Contains(t, fx.router.lastQuery, "какой защитный слой бетона для стен?")
	assert.Contains(t, fx.router.lastQuery, "а для фундаментов?")
	assert.Contains(t, fx.router.lastQuery, store.RoleUser+": ")
	assert.Contains(t, fx.router.lastQuery, store.RoleModel+": ответ")
}

func TestSwitchSessionDestroysOldAndIssuesNewID(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "ответ"},
		&stubRouter{},
		&stubRetriever{},
		&stubDecider{newSearch: true},
	)

	collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "привет", DocID: "0", SessionID: "s1",
	}))
	_, found := fx.sessions.Get("s1")
	require.True(t, found)

	resp := fx.service.SwitchSession("s1")
	assert.NotEqual(t, "s1", resp.SessionID)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, store.StateIdle, resp.State)
	assert.Equal(t, 0, resp.Messages)

	_, found = fx.sessions.Get("s1")
	assert.False(t, found)
	_, found = fx.sessions.Get(resp.SessionID)
	assert.True(t, found)
}

func TestChatPrescriptionWorkflowOwnsFollowingTurns(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{reply: "список нарушений"},
		&stubRouter{ids: []string{"1"}},
		&stubRetriever{passages: []store.Passage{{Header: "5.1", DocName: "СП 70"}}, context: "контекст"},
		&stubDecider{newSearch: true},
	)

	// Turn 1: trigger alone asks for details.
	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "предписание", DocID: "0", SessionID: "s1",
	}))
	require.Len(t, eventsOfType(events, stream.EventMessage), 1)

	sess, _ := fx.sessions.Get("s1")
	assert.Equal(t, store.StateAwaitingDetails, sess.State)

	// Turn 2: a plain-looking answer is still routed to the workflow
	// because the session is mid-flow.
	events = collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "бетонные работы", DocID: "0", SessionID: "s1",
	}))
	require.NotEmpty(t, eventsOfType(events, stream.EventContent))

	sess, _ = fx.sessions.Get("s1")
	assert.Equal(t, store.StateAwaitingConfirmation, sess.State)
}

func TestChatStreamStartFailure(t *testing.T) {
	fx := newFixture(t,
		&scriptedLLM{streamErr: errors.New("connection refused")},
		&stubRouter{ids: []string{"1"}},
		&stubRetriever{passages: []store.Passage{{Header: "5.1"}}, context: "контекст"},
		&stubDecider{newSearch: true},
	)

	events := collect(t, fx.service.Chat(context.Background(), &dto.ChatRequest{
		UserInput: "вопрос", DocID: "0", SessionID: "s1",
	}))

	require.Len(t, eventsOfType(events, stream.EventError), 1)
	assert.Empty(t, eventsOfType(events, stream.EventSources))
}
