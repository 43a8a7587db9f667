package camera

import (
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/net/context"
)

const (
	KindVideoInput = "videoinput"
	KindAudioInput = "audioinput"

	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Named failure reasons reported by capture backends.
const (
	ErrNameNotAllowed       = "NotAllowedError"
	ErrNamePermissionDenied = "PermissionDeniedError"
	ErrNameSecurity         = "SecurityError"
	ErrNameNotFound         = "NotFoundError"
	ErrNameDevicesNotFound  = "DevicesNotFoundError"
	ErrNameNotReadable      = "NotReadableError"
	ErrNameOverconstrained  = "OverconstrainedError"
	ErrNameAbort            = "AbortError"
)

var ErrNotSupported = errors.New("camera: media capture is not supported on this platform")

type MediaError struct {
	Name    string
	Message string
}

func (e *MediaError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

type Device struct {
	ID    string `json:"device_id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

type Constraints struct {
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FacingMode string `json:"facing_mode,omitempty"`
}

type Settings struct {
	DeviceID   string `json:"device_id,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FacingMode string `json:"facing_mode,omitempty"`
}

type Frame struct {
	Image      image.Image
	Seq        uint64
	CapturedAt time.Time
}

type Capturer interface {
	Supported() bool
	EnumerateDevices(ctx context.Context) ([]Device, error)
	GetUserMedia(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is a live capture session. Ready is closed once the first decoded
// frame is available and Done once the stream has ended for any reason.
// Stop releases the device and is safe to call twice.
type Stream interface {
	ID() string
	Settings() Settings
	Ready() <-chan struct{}
	Done() <-chan struct{}
	Latest() (Frame, bool)
	Stop()
}

func CountVideoInputs(devices []Device) int {
	n := 0
	for _, d := range devices {
		if d.Kind == KindVideoInput {
			n++
		}
	}
	return n
}
