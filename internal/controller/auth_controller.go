package controller

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Prophet73/ai-chat-test/internal/pkg/serverutils"
	"github.com/Prophet73/ai-chat-test/internal/service"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Login(ctx *fiber.Ctx) error
	Callback(ctx *fiber.Ctx) error
	DevLogin(ctx *fiber.Ctx) error
}

type authController struct {
	authService service.IAuthService
}

func NewAuthController(authService service.IAuthService) IAuthController {
	return &authController{
		authService: authService,
	}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Get("login", c.Login)
	h.Get("callback", c.Callback)
	h.Post("dev-login", c.DevLogin)
}

// Login redirects the browser to the corporate OAuth hub.
func (c *authController) Login(ctx *fiber.Ctx) error {
	url, err := c.authService.GetLoginURL()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to build login URL")
	}
	return ctx.Redirect(url, fiber.StatusTemporaryRedirect)
}

// Callback completes the OAuth code exchange and returns this
// service's JWT.
func (c *authController) Callback(ctx *fiber.Ctx) error {
	code := ctx.Query("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing authorization code")
	}

	login, err := c.authService.HandleCallback(ctx.Context(), code)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Authentication failed")
	}
	return ctx.JSON(serverutils.SuccessResponse("Login successful", login))
}

// DevLogin issues a token without the hub. Enabled only when DEV_MODE
// is set.
func (c *authController) DevLogin(ctx *fiber.Ctx) error {
	login, err := c.authService.DevLogin()
	if err != nil {
		return fiber.NewError(fiber.StatusForbidden, "Dev login is disabled")
	}
	return ctx.JSON(serverutils.SuccessResponse("Login successful", login))
}
