package utils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	EncodeJPEG(img image.Image, maxWidth, maxHeight int) ([]byte, error)
}

type utils struct {
	jpegQuality int
}

func New() IUtils {
	return &utils{
		jpegQuality: 85,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// EncodeJPEG encodes img, first shrinking it to fit maxWidth x maxHeight when
// either bound is positive and exceeded.
func (u *utils) EncodeJPEG(img image.Image, maxWidth, maxHeight int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("no image to encode")
	}

	bounds := img.Bounds()
	if (maxWidth > 0 && bounds.Dx() > maxWidth) || (maxHeight > 0 && bounds.Dy() > maxHeight) {
		w, h := maxWidth, maxHeight
		if w <= 0 {
			w = bounds.Dx()
		}
		if h <= 0 {
			h = bounds.Dy()
		}
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(u.jpegQuality)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
