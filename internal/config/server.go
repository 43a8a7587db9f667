package config

import (
	"fmt"

	captureHandler "FaceCam/internal/api/capture/handler"
	captureService "FaceCam/internal/api/capture/service"
	detectionHandler "FaceCam/internal/api/detection/handler"
	detectionService "FaceCam/internal/api/detection/service"
	"FaceCam/internal/middleware"
	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	contextPkg "FaceCam/pkg/context"
	"FaceCam/pkg/faceapi"
	"FaceCam/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	settings   Settings
	handlers   []handler

	page     *page.Page
	capturer camera.Capturer
	hub      *camera.RemoteHub
	analyzer faceapi.Analyzer

	captureService   captureService.ICaptureService
	detectionService detectionService.IDetectionService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		page: page.New(),
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.capturer == nil {
		return nil, fmt.Errorf("camera is required")
	}
	if server.analyzer == nil {
		return nil, fmt.Errorf("face analyzer is required")
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log)
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithSettings(settings Settings) ServerOption {
	return func(s *Server) error {
		if s.validator != nil {
			if err := settings.Validate(s.validator); err != nil {
				return err
			}
		}
		s.settings = settings
		return nil
	}
}

// WithCamera picks the capture backend named in the settings.
func WithCamera() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before camera")
		}

		switch s.settings.CameraBackend {
		case CameraBackendLocal:
			s.capturer = camera.NewLocalCapturer(s.settings.CameraDevice, s.log)
		case CameraBackendRemote, "":
			s.hub = camera.NewRemoteHub(s.log)
			s.capturer = s.hub
		default:
			return fmt.Errorf("unknown camera backend %q", s.settings.CameraBackend)
		}
		return nil
	}
}

// WithCapturer installs a ready made capture backend.
func WithCapturer(capturer camera.Capturer) ServerOption {
	return func(s *Server) error {
		s.capturer = capturer
		if hub, ok := capturer.(*camera.RemoteHub); ok {
			s.hub = hub
		}
		return nil
	}
}

func WithFaceAnalyzer(analyzer faceapi.Analyzer) ServerOption {
	return func(s *Server) error {
		s.analyzer = analyzer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Detection
	s.detectionService = detectionService.NewDetectionService(s.log, s.page, s.analyzer)
	detectionHandlers := detectionHandler.New(s.log, s.middleware, s.detectionService, s.page.Surface(), s.utils)

	// Capture
	s.captureService = captureService.NewCaptureService(s.log, s.page, s.capturer, s.analyzer, s.detectionService)
	var clients captureHandler.ClientServer
	if s.hub != nil {
		clients = s.hub
		s.hub.OnConnect(func() {
			s.Boot(contextPkg.WithRequestID(context.Background(), "capture-client"))
		})
	}
	captureHandlers := captureHandler.New(s.log, s.middleware, s.captureService, clients)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, captureHandlers, detectionHandlers)
}

// Boot runs the page load sequence. Failures are reported on the page.
func (s *Server) Boot(ctx context.Context) {
	if s.captureService == nil {
		return
	}
	if err := s.captureService.Boot(ctx); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Boot sequence did not complete")
	}
}

// BootOnStart reports whether the page load sequence should run at startup.
// A remote camera boots when its capture client connects instead.
func (s *Server) BootOnStart() bool {
	return s.hub == nil
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := s.settings.Port
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown closes the analyzer first so an in-flight detection cannot hold
// up stopping the capture session, then stops the HTTP server.
func (s *Server) Shutdown() error {
	if s.analyzer != nil {
		s.analyzer.Close()
	}
	if s.captureService != nil {
		s.captureService.Stop()
	}
	return s.engine.Shutdown()
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
