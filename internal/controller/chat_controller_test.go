package controller

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/internal/dto"
	"github.com/Prophet73/ai-chat-test/pkg/catalog"
	"github.com/Prophet73/ai-chat-test/pkg/rag/stream"
)

type stubChatService struct{}

func (s *stubChatService) Chat(ctx context.Context, request *dto.ChatRequest) <-chan stream.Event {
	events := make(chan stream.Event)
	close(events)
	return events
}

func (s *stubChatService) SwitchSession(oldSessionID string) *dto.SwitchSessionResponse {
	return &dto.SwitchSessionResponse{SessionID: "new"}
}

func (s *stubChatService) DocumentTree() []catalog.TreeNode { return nil }

func (s *stubChatService) Prompts() []dto.PromptInfoResponse { return nil }

func (s *stubChatService) SessionCount() int { return 0 }

func newPdfApp(t *testing.T) (*fiber.App, string, string) {
	t.Helper()
	instrDir := t.TempDir()
	pdfDir := t.TempDir()

	cfg := &config.Config{}
	cfg.App.DevMode = true
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Paths.InstructionsDir = instrDir
	cfg.Paths.PdfDataDir = pdfDir

	app := fiber.New()
	NewChatController(&stubChatService{}, cfg).RegisterRoutes(app.Group("/api"))
	return app, instrDir, pdfDir
}

func TestServePdfPrefersInstructionsDir(t *testing.T) {
	app, instrDir, pdfDir := newPdfApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(instrDir, "sp70.txt"), []byte("текст инструкции"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "sp70.txt"), []byte("не этот файл"), 0644))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/pdf/sp70.txt", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "текст инструкции", string(body))
}

func TestServePdfFallsBackToPdfDir(t *testing.T) {
	app, _, pdfDir := newPdfApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "sp70.pdf"), []byte("pdf data"), 0644))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/pdf/sp70.pdf", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pdf data", string(body))
}

func TestServePdfRejectsTraversal(t *testing.T) {
	app, _, _ := newPdfApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/pdf/..%2Fsecret.txt", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
