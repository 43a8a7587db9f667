package utils

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULIDFromTimestamp(t *testing.T) {
	u := New()
	now := time.Now()

	id, err := u.NewULIDFromTimestamp(now)
	require.NoError(t, err)

	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}

func TestEncodeJPEG(t *testing.T) {
	u := New()

	data, err := u.EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 1920, 1080)), 1280, 960)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)

	data, err = u.EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 320, 240)), 1280, 960)
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)

	_, err = u.EncodeJPEG(nil, 0, 0)
	assert.Error(t, err)
}
