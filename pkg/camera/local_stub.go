//go:build !gocv

package camera

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// LocalCapturer reports capture as unsupported unless the binary is built
// with the gocv tag.
type LocalCapturer struct {
	log *logrus.Logger
}

func NewLocalCapturer(deviceID int, log *logrus.Logger) *LocalCapturer {
	return &LocalCapturer{log: log}
}

func (c *LocalCapturer) Supported() bool {
	return false
}

func (c *LocalCapturer) EnumerateDevices(ctx context.Context) ([]Device, error) {
	return nil, ErrNotSupported
}

func (c *LocalCapturer) GetUserMedia(ctx context.Context, constraints Constraints) (Stream, error) {
	return nil, ErrNotSupported
}
