package detectionService

import (
	"time"

	"FaceCam/internal/api/detection"
	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	"FaceCam/pkg/faceapi"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"golang.org/x/time/rate"
)

// Start launches the detection loop over stream. A loop that is already
// running is stopped first so only one ever runs.
func (s *detectionService) Start(stream camera.Stream) error {
	if stream == nil {
		return detection.ErrNoStream
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.statsMu.Lock()
	s.stats = detection.LoopStats{}
	s.statsMu.Unlock()

	s.running.Store(true)
	s.page.SetDetectionActive(true)

	s.log.WithFields(logrus.Fields{
		"stream_id": stream.ID(),
	}).Info("Detection loop started")

	go s.run(ctx, stream, done)
	return nil
}

// Stop cancels the loop and waits for the current iteration to finish.
func (s *detectionService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *detectionService) Running() bool {
	return s.running.Load()
}

func (s *detectionService) Stats() detection.LoopStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	stats := s.stats
	stats.Running = s.running.Load()
	return stats
}

func (s *detectionService) LatestFrame() (camera.Frame, error) {
	stream := s.page.Stream()
	if stream == nil {
		return camera.Frame{}, detection.ErrNoStream
	}

	frame, ok := stream.Latest()
	if !ok {
		return camera.Frame{}, detection.ErrNoFrame
	}
	return frame, nil
}

func (s *detectionService) stopLocked() {
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	if s.running.Swap(false) {
		s.log.Info("Detection loop stopped")
	}
	s.page.SetDetectionActive(false)
}

func (s *detectionService) run(ctx context.Context, stream camera.Stream, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(s.refresh, 1)
	var lastSeq uint64

	for {
		if ctx.Err() != nil {
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		select {
		case <-stream.Done():
			s.streamEnded(stream)
			return
		default:
		}

		frame, ok := stream.Latest()
		if !ok || frame.Seq == lastSeq {
			s.statsMu.Lock()
			s.stats.FramesSkipped++
			s.statsMu.Unlock()
			continue
		}
		lastSeq = frame.Seq

		s.tick(ctx, frame)
	}
}

// tick analyzes one frame, redraws the overlay and updates the indicators
// from the first face.
func (s *detectionService) tick(ctx context.Context, frame camera.Frame) {
	started := time.Now()

	result, err := s.detector.Detect(ctx, frame.Image, s.opts)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.detectionFailed(frame, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	surface := s.page.Surface()
	width, height := surface.Size()
	resized := faceapi.ResizeResults(result, width, height)

	surface.Render(resized)
	if face, ok := resized.First(); ok {
		s.page.SetIndicators(face.Expressions)
	}

	s.detectionSucceeded(time.Since(started), len(resized.Faces))
}

func (s *detectionService) detectionSucceeded(latency time.Duration, faces int) {
	s.statsMu.Lock()
	recovered := s.stats.ConsecutiveFailures >= s.failureThreshold
	s.stats.ConsecutiveFailures = 0
	s.stats.FramesAnalyzed++
	s.stats.LastLatencyMs = latency.Milliseconds()
	s.stats.LastFaces = faces
	s.stats.LastDetectionAt = time.Now()
	s.statsMu.Unlock()

	if recovered {
		s.log.Info("Detection recovered")
		s.page.SetStatus(page.StatusDetectionActive)
	}
}

func (s *detectionService) detectionFailed(frame camera.Frame, err error) {
	s.statsMu.Lock()
	s.stats.DetectionFailures++
	s.stats.ConsecutiveFailures++
	consecutive := s.stats.ConsecutiveFailures
	s.statsMu.Unlock()

	fields := logrus.Fields{
		"frame_seq":   frame.Seq,
		"consecutive": consecutive,
		"error":       err.Error(),
	}

	if consecutive == s.failureThreshold {
		s.log.WithFields(fields).Warn("Detection keeps failing")
		s.page.SetStatus(page.StatusDetectionInterrupted)
		return
	}
	s.log.WithFields(fields).Debug("Detection failed")
}

func (s *detectionService) streamEnded(stream camera.Stream) {
	s.log.WithFields(logrus.Fields{
		"stream_id": stream.ID(),
	}).Warn("Video stream ended, detection loop exiting")

	s.page.ReleaseStream(stream)
	s.page.SetDetectionActive(false)
	s.page.OfferRetry(true)
	s.page.SetStatus(page.StatusWebcamDisconnected)
	s.running.Store(false)
}
