package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/chat"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/ws"
)

// NewServer builds the Fiber app: REST chat routes behind bearer auth, the
// websocket upgrade path authenticated by query token, health and metrics.
func NewServer(svc *chat.Service, gateway *ws.Gateway, verifier *auth.Verifier, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "wellnest-chat",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h := NewHandler(svc, log)
	chatGrp := api.Group("/chat")

	// The websocket route authenticates during the upgrade, before bearer
	// middleware is attached below.
	chatGrp.Use("/ws", gateway.Upgrade)
	chatGrp.Get("/ws", websocket.New(gateway.Handle))

	chatGrp.Use(RequireAuth(verifier))
	chatGrp.Post("/create", h.CreateChat)
	chatGrp.Get("/my-chats", h.MyChats)
	chatGrp.Post("/send-message", h.SendMessage)
	chatGrp.Get("/appointment/:appointmentId/search", h.Search)
	chatGrp.Get("/appointment/:appointmentId", h.History)
	chatGrp.Get("/:chatId/messages", h.GetChatByID)
	chatGrp.Patch("/:chatId/mark-read", h.MarkRead)

	return app
}
