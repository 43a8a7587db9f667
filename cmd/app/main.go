package main

import (
	"os"
	"os/signal"
	"syscall"

	"FaceCam/internal/config"
	contextPkg "FaceCam/pkg/context"
	"FaceCam/pkg/faceapi"
	"FaceCam/pkg/log"
	"github.com/joho/godotenv"
	"golang.org/x/net/context"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.NewLogger().Fatalf("Error loading .env file: %v", err)
	}
	logger := log.NewLogger()

	settings := config.LoadSettings()
	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	analyzer := faceapi.NewClient(logger, settings.FaceServiceURL, settings.ModelBaseURL)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithSettings(settings),
		config.WithCamera(),
		config.WithFaceAnalyzer(analyzer),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithField("camera_backend", settings.CameraBackend).Info("Server started successfully")

	if server.BootOnStart() {
		go server.Boot(contextPkg.WithRequestID(context.Background(), "startup"))
	}

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
