package capture

import (
	"errors"
	"fmt"
	"net/http"

	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	"FaceCam/pkg/response"
	"golang.org/x/net/context"
)

var (
	ErrUnsupportedPlatform = response.NewError(http.StatusNotImplemented, "webcam capture is not supported on this platform")
	ErrNoDeviceFound       = response.NewError(http.StatusNotFound, "no webcam found")
	ErrPermissionDenied    = response.NewError(http.StatusForbidden, "webcam permission denied")
	ErrTimeout             = response.NewError(http.StatusGatewayTimeout, "webcam did not deliver video in time")
	ErrAcquisitionFailed   = response.NewError(http.StatusInternalServerError, "webcam acquisition failed")
	ErrAnalyzerUnavailable = response.NewError(http.StatusServiceUnavailable, "face analysis unavailable")
	ErrRetryNotOffered     = response.NewError(http.StatusConflict, "permission retry is not available")
)

type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryUnsupportedPlatform
	CategoryNoDeviceFound
	CategoryPermissionDenied
	CategoryTimeout
)

var categoryNames = map[Category]string{
	CategoryUnknown:             "unknown",
	CategoryUnsupportedPlatform: "unsupported-platform",
	CategoryNoDeviceFound:       "no-device-found",
	CategoryPermissionDenied:    "permission-denied",
	CategoryTimeout:             "timeout",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Recoverable reports whether a user retry can fix the failure.
func (c Category) Recoverable() bool {
	return c != CategoryUnsupportedPlatform
}

func (c Category) Sentinel() error {
	switch c {
	case CategoryUnsupportedPlatform:
		return ErrUnsupportedPlatform
	case CategoryNoDeviceFound:
		return ErrNoDeviceFound
	case CategoryPermissionDenied:
		return ErrPermissionDenied
	case CategoryTimeout:
		return ErrTimeout
	default:
		return ErrAcquisitionFailed
	}
}

// Classify sorts an acquisition failure into one of the capture categories.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	switch {
	case errors.Is(err, camera.ErrNotSupported), errors.Is(err, ErrUnsupportedPlatform):
		return CategoryUnsupportedPlatform
	case errors.Is(err, ErrNoDeviceFound):
		return CategoryNoDeviceFound
	case errors.Is(err, ErrPermissionDenied):
		return CategoryPermissionDenied
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	}

	var mediaErr *camera.MediaError
	if errors.As(err, &mediaErr) {
		switch mediaErr.Name {
		case camera.ErrNameNotAllowed, camera.ErrNamePermissionDenied, camera.ErrNameSecurity:
			return CategoryPermissionDenied
		case camera.ErrNameNotFound, camera.ErrNameDevicesNotFound:
			return CategoryNoDeviceFound
		}
	}

	return CategoryUnknown
}

// StatusMessage is the status line shown for a failure of category c.
func StatusMessage(c Category, err error) string {
	switch c {
	case CategoryUnsupportedPlatform:
		return page.StatusUnsupported
	case CategoryNoDeviceFound:
		return page.StatusNoWebcam
	case CategoryPermissionDenied:
		return "Webcam access was denied. " + page.StatusAllowAccess
	case CategoryTimeout:
		return "Timed out waiting for the webcam. Make sure no other application is using it and try again."
	default:
		reason := "unknown error"
		if err != nil {
			reason = err.Error()
		}
		return fmt.Sprintf("Error accessing webcam: %s. Check your privacy settings and try again.", reason)
	}
}
