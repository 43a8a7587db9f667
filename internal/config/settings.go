package config

import (
	"fmt"
	"os"
	"strconv"

	"FaceCam/pkg/faceapi"
	"github.com/go-playground/validator/v10"
)

const (
	CameraBackendRemote = "remote"
	CameraBackendLocal  = "local"
)

// Settings are the deployment settings read from the environment. Capture
// geometry and detector parameters are fixed and not configurable here.
type Settings struct {
	AppEnv         string `validate:"required,oneof=development production test"`
	Port           string `validate:"required,numeric"`
	CameraBackend  string `validate:"required,oneof=remote local"`
	CameraDevice   int    `validate:"gte=0"`
	FaceServiceURL string `validate:"required,url"`
	ModelBaseURL   string `validate:"required,url"`
}

func LoadSettings() Settings {
	return Settings{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("APP_PORT", "3000"),
		CameraBackend:  getEnv("CAMERA_BACKEND", CameraBackendRemote),
		CameraDevice:   getEnvInt("CAMERA_DEVICE", 0),
		FaceServiceURL: getEnv("AI_FACE_DETECTION_URL", faceapi.DefaultServiceURL),
		ModelBaseURL:   getEnv("FACE_MODEL_BASE_URL", faceapi.DefaultModelBaseURL),
	}
}

func (s Settings) Validate(v *validator.Validate) error {
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
