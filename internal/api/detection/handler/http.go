package detectionHandler

import (
	detectionService "FaceCam/internal/api/detection/service"
	"FaceCam/internal/middleware"
	"FaceCam/pkg/overlay"
	"FaceCam/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	surface          *overlay.Surface
	utils            utils.IUtils
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	surface *overlay.Surface,
	utils utils.IUtils,
) *DetectionHandler {
	return &DetectionHandler{
		log:              log,
		middleware:       middleware,
		detectionService: ds,
		surface:          surface,
		utils:            utils,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	detection := srv.Group("/detection")
	detection.Get("/overlay.png", h.GetOverlay)
	detection.Get("/frame.jpg", h.GetFrame)
	detection.Get("/stats", h.GetStats)
}
