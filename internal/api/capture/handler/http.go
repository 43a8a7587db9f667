package captureHandler

import (
	captureService "FaceCam/internal/api/capture/service"
	"FaceCam/internal/middleware"
	"FaceCam/pkg/camera"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// ClientServer serves one remote capture client connection.
type ClientServer interface {
	Serve(conn camera.Conn) error
}

type CaptureHandler struct {
	log            *logrus.Logger
	middleware     middleware.Middleware
	captureService captureService.ICaptureService
	clients        ClientServer
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	cs captureService.ICaptureService,
	clients ClientServer,
) *CaptureHandler {
	return &CaptureHandler{
		log:            log,
		middleware:     middleware,
		captureService: cs,
		clients:        clients,
	}
}

func (h *CaptureHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	session := srv.Group("/session")
	session.Get("/status", h.GetStatus)
	session.Post("/permission", h.middleware.NewRateLimiter, h.RequestPermission)
	session.Post("/start", h.middleware.NewRateLimiter, h.StartSession)
	session.Post("/stop", h.StopSession)
	session.Use("/ws", wsMiddleware)
	session.Get("/ws", websocket.New(h.handleSessionWebSocket))

	if h.clients != nil {
		cam := srv.Group("/camera")
		cam.Use("/ws", wsMiddleware)
		cam.Get("/ws", websocket.New(h.handleCameraWebSocket))
	}
}
