package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/internal/dto"
	"github.com/Prophet73/ai-chat-test/internal/pkg/serverutils"
	"github.com/Prophet73/ai-chat-test/internal/service"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	NewSession(ctx *fiber.Ctx) error
	SwitchSession(ctx *fiber.Ctx) error
	Documents(ctx *fiber.Ctx) error
	Prompts(ctx *fiber.Ctx) error
	ServePdf(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	cfg         *config.Config
}

func NewChatController(chatService service.IChatService, cfg *config.Config) IChatController {
	return &chatController{
		chatService: chatService,
		cfg:         cfg,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/")
	h.Use(serverutils.JwtMiddleware(c.cfg.Auth.JWTSecret, c.cfg.App.DevMode))
	h.Post("chat", c.Chat)
	h.Post("session/new", c.NewSession)
	h.Post("session/switch", c.SwitchSession)
	h.Get("documents", c.Documents)
	h.Get("prompts", c.Prompts)
	h.Get("pdf/:filename", c.ServePdf)
}

// Chat runs one conversation turn and streams the answer back as
// server-sent events, one `data:` line per event.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var request dto.ChatRequest
	if err := ctx.BodyParser(&request); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&request); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber context is recycled once the handler returns, so the
	// stream writer works from its own context and a copy of the
	// request.
	streamCtx, cancel := context.WithCancel(context.Background())
	events := c.chatService.Chat(streamCtx, &request)

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for event := range events {
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

func (c *chatController) NewSession(ctx *fiber.Ctx) error {
	state := c.chatService.SwitchSession("")
	return ctx.JSON(serverutils.SuccessResponse("Session created", state))
}

func (c *chatController) SwitchSession(ctx *fiber.Ctx) error {
	var request dto.SwitchSessionRequest
	if err := ctx.BodyParser(&request); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&request); err != nil {
		return err
	}

	state := c.chatService.SwitchSession(request.SessionID)
	return ctx.JSON(serverutils.SuccessResponse("Session loaded", state))
}

func (c *chatController) Documents(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Document tree", c.chatService.DocumentTree()))
}

func (c *chatController) Prompts(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Active prompts", c.chatService.Prompts()))
}

// ServePdf returns the source normative document so the client can
// show the clause a passage was cited from.
func (c *chatController) ServePdf(ctx *fiber.Ctx) error {
	filename := ctx.Params("filename")
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}

	// Reject anything that could escape the data directory.
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid filename")
	}

	// Converted instruction texts live beside the source PDFs; try the
	// instructions directory first and fall back to the PDF directory.
	path := filepath.Join(c.cfg.Paths.InstructionsDir, filename)
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(c.cfg.Paths.PdfDataDir, filename)
	}
	return ctx.SendFile(path)
}
