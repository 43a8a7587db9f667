//go:build gocv

package camera

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/net/context"
)

// LocalCapturer reads frames from a webcam attached to this host.
type LocalCapturer struct {
	deviceID int
	log      *logrus.Logger
}

func NewLocalCapturer(deviceID int, log *logrus.Logger) *LocalCapturer {
	return &LocalCapturer{
		deviceID: deviceID,
		log:      log,
	}
}

func (c *LocalCapturer) Supported() bool {
	return true
}

func (c *LocalCapturer) EnumerateDevices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return []Device{}, nil
	}
	defer vc.Close()

	if !vc.IsOpened() {
		return []Device{}, nil
	}

	return []Device{{
		ID:    strconv.Itoa(c.deviceID),
		Kind:  KindVideoInput,
		Label: fmt.Sprintf("video%d", c.deviceID),
	}}, nil
}

func (c *LocalCapturer) GetUserMedia(ctx context.Context, constraints Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &MediaError{Name: ErrNameNotFound, Message: fmt.Sprintf("video device %d did not open", c.deviceID)}
	}

	if constraints.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(constraints.Width))
	}
	if constraints.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(constraints.Height))
	}

	buffer := newFrameBuffer(uuid.NewString(), Settings{
		DeviceID:   strconv.Itoa(c.deviceID),
		Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FacingMode: constraints.FacingMode,
	})
	mat := gocv.NewMat()
	release := func() {
		mat.Close()
		vc.Close()
	}

	return newDeviceStream(buffer, c.reader(buffer.id, vc, &mat), release, c.log), nil
}

// classifyOpenError maps an OpenCV open failure onto a named media error.
func classifyOpenError(err error) *MediaError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized"):
		return &MediaError{Name: ErrNameNotAllowed, Message: err.Error()}
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return &MediaError{Name: ErrNameNotReadable, Message: err.Error()}
	case strings.Contains(msg, "no such") || strings.Contains(msg, "not found"):
		return &MediaError{Name: ErrNameNotFound, Message: err.Error()}
	default:
		return &MediaError{Name: ErrNameAbort, Message: err.Error()}
	}
}

// reader adapts a VideoCapture to a deviceReader.
func (c *LocalCapturer) reader(streamID string, vc *gocv.VideoCapture, mat *gocv.Mat) deviceReader {
	return func() (image.Image, bool) {
		if ok := vc.Read(mat); !ok {
			return nil, false
		}
		if mat.Empty() {
			time.Sleep(10 * time.Millisecond)
			return nil, true
		}

		img, err := mat.ToImage()
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"stream_id": streamID,
				"error":     err.Error(),
			}).Debug("camera: dropping unconvertible frame")
			return nil, true
		}
		return img, true
	}
}
