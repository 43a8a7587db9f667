package detectionService

import (
	"image"
	"sync"
	"sync/atomic"

	"FaceCam/internal/api/detection"
	"FaceCam/internal/entity"
	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	"FaceCam/pkg/faceapi"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/time/rate"
)

type IDetectionService interface {
	Start(stream camera.Stream) error
	Stop()
	Running() bool
	Stats() detection.LoopStats
	LatestFrame() (camera.Frame, error)
}

// Detector runs face analysis on a single frame.
type Detector interface {
	Detect(ctx context.Context, img image.Image, opts faceapi.DetectOptions) (*entity.DetectionResult, error)
}

type detectionService struct {
	log      *logrus.Logger
	page     *page.Page
	detector Detector
	opts     faceapi.DetectOptions

	refresh          rate.Limit
	failureThreshold int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool

	statsMu sync.Mutex
	stats   detection.LoopStats
}

func NewDetectionService(log *logrus.Logger, pg *page.Page, detector Detector) IDetectionService {
	return &detectionService{
		log:              log,
		page:             pg,
		detector:         detector,
		opts:             faceapi.DefaultDetectOptions(),
		refresh:          rate.Limit(60),
		failureThreshold: 5,
	}
}
