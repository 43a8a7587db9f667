package camera

import (
	"image"

	"github.com/sirupsen/logrus"
)

// deviceReader pulls one frame from a blocking capture device. A nil image
// with ok set means the device had nothing yet; ok false means it is gone.
type deviceReader func() (img image.Image, ok bool)

// deviceStream pumps frames from a capture device into a frameBuffer. Stop
// returns once the device has been released.
type deviceStream struct {
	*frameBuffer
	read    deviceReader
	release func()
	log     *logrus.Logger

	exited chan struct{}
}

func newDeviceStream(buffer *frameBuffer, read deviceReader, release func(), log *logrus.Logger) *deviceStream {
	s := &deviceStream{
		frameBuffer: buffer,
		read:        read,
		release:     release,
		log:         log,
		exited:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *deviceStream) Stop() {
	s.finish()
	<-s.exited
}

func (s *deviceStream) run() {
	defer close(s.exited)
	defer s.release()

	for {
		select {
		case <-s.Done():
			return
		default:
		}

		img, ok := s.read()
		if !ok {
			s.log.WithFields(logrus.Fields{
				"stream_id": s.id,
			}).Warn("camera: local device stopped delivering frames")
			s.finish()
			return
		}
		if img != nil {
			s.push(img)
		}
	}
}
