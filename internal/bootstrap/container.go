package bootstrap

import (
	"log"

	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/internal/controller"
	"github.com/Prophet73/ai-chat-test/internal/pkg/logger"
	"github.com/Prophet73/ai-chat-test/internal/repository/memory"
	"github.com/Prophet73/ai-chat-test/internal/service"
	"github.com/Prophet73/ai-chat-test/internal/websocket"
	"github.com/Prophet73/ai-chat-test/pkg/catalog"
	"github.com/Prophet73/ai-chat-test/pkg/embedding"
	"github.com/Prophet73/ai-chat-test/pkg/embedding/jina"
	"github.com/Prophet73/ai-chat-test/pkg/llm/factory"
	"github.com/Prophet73/ai-chat-test/pkg/rag"
	"github.com/Prophet73/ai-chat-test/pkg/rag/flow"
	"github.com/Prophet73/ai-chat-test/pkg/vectorstore"
)

type Container struct {
	AuthController  controller.IAuthController
	ChatController  controller.IChatController
	AdminController controller.IAdminController
	WsHandler       *websocket.Handler

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	var embeddingProvider embedding.Provider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaApiKey)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiApiKey, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: GEMINI (%s)", cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.GeminiApiKey,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	docCatalog, err := catalog.Load(cfg.Paths.ManifestPath, cfg.Paths.InstructionsDir)
	if err != nil {
		log.Fatalf("[FATAL] Failed to load document manifest: %v", err)
	}
	log.Printf("[INFO] Document catalog loaded: %d documents", len(docCatalog.All()))

	sessionRepo := memory.NewSessionRepository(cfg.App.SessionTTL)

	ragLogger := service.NewRAGLogger()
	reader := vectorstore.NewReader(cfg.Paths.VectorStoreDir)
	engine := rag.NewEngine(embeddingProvider, llmProvider, reader, ragLogger)
	docRouter := rag.NewRouter(llmProvider, docCatalog, ragLogger)
	decider := rag.NewDecider(llmProvider, ragLogger)
	machine := flow.NewMachine(docRouter, engine, cfg.Retrieval.SimilarityThreshold, ragLogger)

	chatService := service.NewChatService(
		sessionRepo,
		llmProvider,
		engine,
		docRouter,
		decider,
		machine,
		docCatalog,
		cfg.Retrieval.TopK,
		cfg.Retrieval.SimilarityThreshold,
		ragLogger,
	)
	authService := service.NewAuthService(cfg)

	return &Container{
		AuthController:  controller.NewAuthController(authService),
		ChatController:  controller.NewChatController(chatService, cfg),
		AdminController: controller.NewAdminController(chatService, sysLogger, cfg),
		WsHandler:       websocket.NewHandler(chatService),

		Logger: sysLogger,
	}
}
