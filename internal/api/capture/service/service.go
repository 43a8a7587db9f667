package captureService

import (
	"sync"
	"time"

	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ICaptureService interface {
	Boot(ctx context.Context) error
	CheckWebcamAvailability(ctx context.Context) error
	CheckAnalyzerAvailability(ctx context.Context) error
	StartWebcam(ctx context.Context) error
	StartApp(ctx context.Context) error
	RequestPermission(ctx context.Context) error
	Stop()
	Supported() bool
	Snapshot() page.Snapshot
	Subscribe() (<-chan page.Snapshot, func())
}

// ModelLoader loads the face analysis models.
type ModelLoader interface {
	Load(ctx context.Context) error
	Loaded() bool
}

// LoopRunner runs the detection loop over a bound stream.
type LoopRunner interface {
	Start(stream camera.Stream) error
	Stop()
	Running() bool
}

type captureService struct {
	log      *logrus.Logger
	page     *page.Page
	capturer camera.Capturer
	models   ModelLoader
	loop     LoopRunner

	firstFrameTimeout time.Duration
	modelLoadTimeout  time.Duration

	flowMu sync.Mutex
}

func NewCaptureService(
	log *logrus.Logger,
	pg *page.Page,
	capturer camera.Capturer,
	models ModelLoader,
	loop LoopRunner,
) ICaptureService {
	return &captureService{
		log:               log,
		page:              pg,
		capturer:          capturer,
		models:            models,
		loop:              loop,
		firstFrameTimeout: 10 * time.Second,
		modelLoadTimeout:  30 * time.Second,
	}
}
