package faceapi

import (
	"errors"
	"image"
	"strings"

	"FaceCam/internal/entity"
	"golang.org/x/net/context"
)

const (
	DefaultModelBaseURL = "https://cdn.jsdelivr.net/gh/cgarciagl/face-api.js/weights"
	DefaultServiceURL   = "ws://localhost:8000/api/v1/face/ws"

	TinyFaceDetector = "tiny_face_detector_model"
	FaceLandmark68   = "face_landmark_68_model"
	FaceExpression   = "face_expression_model"

	DefaultInputSize      = 512
	DefaultScoreThreshold = 0.5
)

// Models are the networks that must be loaded before any detection.
var Models = []string{TinyFaceDetector, FaceLandmark68, FaceExpression}

var (
	ErrNotLoaded        = errors.New("faceapi: models are not loaded")
	ErrModelUnavailable = errors.New("faceapi: model repository unavailable")
	ErrServiceRejected  = errors.New("faceapi: analysis service rejected the request")
)

type DetectOptions struct {
	InputSize      int     `json:"input_size"`
	ScoreThreshold float64 `json:"score_threshold"`
}

func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		InputSize:      DefaultInputSize,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// Analyzer finds faces with landmarks and expression scores in a frame.
// Load must succeed before Detect is used.
type Analyzer interface {
	Load(ctx context.Context) error
	Loaded() bool
	Detect(ctx context.Context, img image.Image, opts DetectOptions) (*entity.DetectionResult, error)
	Close()
}

func ManifestURL(baseURL, model string) string {
	return strings.TrimRight(baseURL, "/") + "/" + model + "-weights_manifest.json"
}
