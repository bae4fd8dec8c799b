package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Prophet73/ai-chat-test/internal/config"
	"github.com/Prophet73/ai-chat-test/internal/pkg/logger"
	"github.com/Prophet73/ai-chat-test/internal/pkg/serverutils"
	"github.com/Prophet73/ai-chat-test/internal/service"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	GetLogs(ctx *fiber.Ctx) error
	GetStats(ctx *fiber.Ctx) error
}

type adminController struct {
	chatService service.IChatService
	logger      logger.ILogger
	cfg         *config.Config
}

func NewAdminController(chatService service.IChatService, log logger.ILogger, cfg *config.Config) IAdminController {
	return &adminController{
		chatService: chatService,
		logger:      log,
		cfg:         cfg,
	}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(serverutils.JwtMiddleware(c.cfg.Auth.JWTSecret, c.cfg.App.DevMode))
	h.Get("logs", c.GetLogs)
	h.Get("stats", c.GetStats)
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	level := ctx.Query("level", "")

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	logs, err := c.logger.GetLogs(level, limit, offset)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read logs")
	}
	return ctx.JSON(serverutils.SuccessResponse("System logs", logs))
}

func (c *adminController) GetStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Service stats", fiber.Map{
		"active_sessions": c.chatService.SessionCount(),
	}))
}
