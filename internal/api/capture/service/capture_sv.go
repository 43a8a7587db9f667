package captureService

import (
	"errors"
	"fmt"

	"FaceCam/internal/api/capture"
	"FaceCam/internal/entity"
	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	contextPkg "FaceCam/pkg/context"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func captureConstraints() camera.Constraints {
	return camera.Constraints{
		Width:      page.CaptureWidth,
		Height:     page.CaptureHeight,
		FacingMode: page.FacingMode,
	}
}

// Boot runs the page load sequence: availability check, model loading, then
// either the full app or live video only.
func (s *captureService) Boot(ctx context.Context) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	if err := s.checkWebcamAvailability(ctx); err != nil {
		return err
	}
	return s.launch(ctx)
}

func (s *captureService) CheckWebcamAvailability(ctx context.Context) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	return s.checkWebcamAvailability(ctx)
}

func (s *captureService) CheckAnalyzerAvailability(ctx context.Context) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	return s.checkAnalyzerAvailability(ctx)
}

func (s *captureService) StartWebcam(ctx context.Context) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	return s.startWebcam(ctx)
}

func (s *captureService) StartApp(ctx context.Context) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	return s.startApp(ctx)
}

// RequestPermission is the action behind the retry control.
func (s *captureService) RequestPermission(ctx context.Context) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	if !s.capturer.Supported() {
		return s.fail(ctx, camera.ErrNotSupported, "request_permission")
	}

	s.page.SetStatus(page.StatusRequestingPermission)

	probe, err := s.capturer.GetUserMedia(ctx, captureConstraints())
	if err != nil {
		return s.fail(ctx, err, "request_permission")
	}
	probe.Stop()

	s.page.SetPermission(entity.PermissionGranted)
	s.page.OfferRetry(false)
	s.page.SetStatus(page.StatusPermissionGranted)

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"stream_id":  probe.ID(),
	}).Info("Webcam permission granted")

	return s.launch(ctx)
}

func (s *captureService) Stop() {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	s.release()
	s.page.SetStatus(page.StatusStopped)
}

func (s *captureService) Supported() bool {
	return s.capturer.Supported()
}

func (s *captureService) Snapshot() page.Snapshot {
	return s.page.Snapshot()
}

func (s *captureService) Subscribe() (<-chan page.Snapshot, func()) {
	return s.page.Subscribe()
}

// launch starts detection when the models load and falls back to plain
// video otherwise. A missing analyzer does not fail the flow.
func (s *captureService) launch(ctx context.Context) error {
	if err := s.checkAnalyzerAvailability(ctx); err != nil {
		if err := s.startWebcam(ctx); err != nil {
			return err
		}
		s.page.SetStatus(page.StatusModelsUnavailable)
		return nil
	}
	return s.startApp(ctx)
}

func (s *captureService) checkWebcamAvailability(ctx context.Context) error {
	s.page.SetStatus(page.StatusCheckingWebcam)

	if !s.capturer.Supported() {
		return s.fail(ctx, camera.ErrNotSupported, "check_webcam")
	}

	devices, err := s.capturer.EnumerateDevices(ctx)
	if err != nil {
		return s.fail(ctx, err, "enumerate_devices")
	}
	if camera.CountVideoInputs(devices) == 0 {
		return s.fail(ctx, capture.ErrNoDeviceFound, "enumerate_devices")
	}

	// The probe only checks access; its stream is released right away.
	probe, err := s.capturer.GetUserMedia(ctx, camera.Constraints{})
	if err != nil {
		if capture.Classify(err) == capture.CategoryPermissionDenied {
			s.page.SetPermission(entity.PermissionDenied)
			s.page.SetStatus(page.StatusAllowAccess)
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"error":      err.Error(),
			}).Warn("Webcam permission not granted")
			return fmt.Errorf("%w: %w", capture.ErrPermissionDenied, err)
		}
		return s.fail(ctx, err, "probe_webcam")
	}
	probe.Stop()

	s.page.SetPermission(entity.PermissionGranted)
	s.page.OfferRetry(false)
	return nil
}

func (s *captureService) checkAnalyzerAvailability(ctx context.Context) error {
	if s.models.Loaded() {
		return nil
	}

	s.page.SetStatus(page.StatusLoadingModels)

	loadCtx, cancel := context.WithTimeout(ctx, s.modelLoadTimeout)
	defer cancel()

	if err := s.models.Load(loadCtx); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Face analysis models unavailable")
		s.page.SetStatus(page.StatusModelsUnavailable)
		return fmt.Errorf("%w: %w", capture.ErrAnalyzerUnavailable, err)
	}
	return nil
}

func (s *captureService) startWebcam(ctx context.Context) error {
	s.release()
	s.page.SetStatus(page.StatusAccessingWebcam)

	stream, err := s.capturer.GetUserMedia(ctx, captureConstraints())
	if err != nil {
		return s.fail(ctx, err, "get_user_media")
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.firstFrameTimeout)
	defer cancel()

	select {
	case <-stream.Ready():
	case <-stream.Done():
		return s.fail(ctx, &camera.MediaError{
			Name:    camera.ErrNameAbort,
			Message: "stream ended before the first frame",
		}, "wait_first_frame")
	case <-waitCtx.Done():
		stream.Stop()
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return s.fail(ctx, capture.ErrTimeout, "wait_first_frame")
		}
		return s.fail(ctx, waitCtx.Err(), "wait_first_frame")
	}

	s.page.BindStream(stream)
	s.page.SetPermission(entity.PermissionGranted)
	s.page.OfferRetry(false)
	s.page.SetStatus(page.StatusWebcamConnected)

	settings := stream.Settings()
	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"stream_id":  stream.ID(),
		"width":      settings.Width,
		"height":     settings.Height,
	}).Info("Webcam connected")

	return nil
}

func (s *captureService) startApp(ctx context.Context) error {
	if err := s.startWebcam(ctx); err != nil {
		return err
	}

	stream := s.page.Stream()
	settings := stream.Settings()
	if err := s.page.Surface().Resize(settings.Width, settings.Height); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"width":      settings.Width,
			"height":     settings.Height,
			"error":      err.Error(),
		}).Warn("Stream reported no usable size")
	}

	if err := s.loop.Start(stream); err != nil {
		return s.fail(ctx, err, "start_detection")
	}

	s.page.SetStatus(page.StatusDetectionActive)
	return nil
}

// release stops the detection loop and the bound stream, if any.
func (s *captureService) release() {
	s.loop.Stop()
	if stream := s.page.UnbindStream(); stream != nil {
		stream.Stop()
	}
}

// fail records an acquisition failure on the page and returns it wrapped in
// the sentinel of its category.
func (s *captureService) fail(ctx context.Context, err error, operation string) error {
	category := capture.Classify(err)

	if category == capture.CategoryPermissionDenied {
		s.page.SetPermission(entity.PermissionDenied)
	}
	s.page.OfferRetry(category.Recoverable())
	s.page.SetStatus(capture.StatusMessage(category, err))

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"category":   category.String(),
		"operation":  operation,
		"error":      err.Error(),
	}).Warn("Webcam acquisition failed")

	sentinel := category.Sentinel()
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
