package page

import (
	"testing"
	"time"

	"FaceCam/internal/entity"
	"FaceCam/pkg/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	p := New()

	w, h := p.Surface().Size()
	assert.Equal(t, CaptureWidth, w)
	assert.Equal(t, CaptureHeight, h)
	assert.Equal(t, entity.PermissionUnknown, p.Permission())
	assert.False(t, p.RetryVisible())
	assert.Nil(t, p.Stream())

	indicators := p.Indicators()
	require.Len(t, indicators, len(entity.Expressions))
	for i, ind := range indicators {
		assert.Equal(t, entity.Expressions[i], ind.Label)
		assert.Equal(t, "0%", ind.Width)
	}
}

func TestSetIndicators(t *testing.T) {
	p := New()

	p.SetIndicators(map[entity.Expression]float64{
		entity.ExpressionHappy:     0.42,
		entity.ExpressionSad:       1.7,
		entity.ExpressionAngry:     -0.2,
		entity.ExpressionSurprised: 0.123456,
		"disgusted":                0.9,
	})

	byLabel := map[entity.Expression]Indicator{}
	for _, ind := range p.Indicators() {
		byLabel[ind.Label] = ind
	}

	assert.Len(t, byLabel, 5)
	assert.Equal(t, "42%", byLabel[entity.ExpressionHappy].Width)
	assert.Equal(t, "100%", byLabel[entity.ExpressionSad].Width)
	assert.Equal(t, "0%", byLabel[entity.ExpressionAngry].Width)
	assert.Equal(t, "12.35%", byLabel[entity.ExpressionSurprised].Width)
	assert.Equal(t, "0%", byLabel[entity.ExpressionNeutral].Width)

	// a partial update leaves the other labels alone
	p.SetIndicators(map[entity.Expression]float64{entity.ExpressionNeutral: 0.5})
	for _, ind := range p.Indicators() {
		if ind.Label == entity.ExpressionHappy {
			assert.Equal(t, 0.42, ind.Confidence)
		}
	}
}

func TestRetryVisible(t *testing.T) {
	p := New()

	p.SetPermission(entity.PermissionDenied)
	assert.True(t, p.RetryVisible())

	p.SetPermission(entity.PermissionGranted)
	assert.False(t, p.RetryVisible())

	p.OfferRetry(true)
	assert.True(t, p.RetryVisible())

	p.OfferRetry(false)
	p.SetPermission(entity.PermissionDenied)
	assert.True(t, p.RetryVisible(), "a denied permission always offers retry")
}

func TestSubscribe_DeliversNewestSnapshot(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	defer cancel()

	p.SetStatus("first")
	p.SetStatus("second")
	p.SetStatus(StatusDetectionActive)

	select {
	case snap := <-ch:
		assert.Equal(t, StatusDetectionActive, snap.Status)
		assert.Equal(t, CaptureWidth, snap.OverlayWidth)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	select {
	case snap := <-ch:
		t.Fatalf("unexpected extra snapshot %q", snap.Status)
	default:
	}
}

func TestSubscribe_Cancel(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	cancel()
	cancel()

	p.SetStatus("ignored")

	select {
	case <-ch:
		t.Fatal("cancelled subscriber received a snapshot")
	default:
	}
}

func TestSnapshot(t *testing.T) {
	p := New()
	p.SetStatus(StatusWebcamConnected)
	p.SetPermission(entity.PermissionDenied)
	p.SetDetectionActive(true)

	snap := p.Snapshot()

	assert.Equal(t, StatusWebcamConnected, snap.Status)
	assert.Equal(t, "denied", snap.Permission)
	assert.True(t, snap.RetryVisible)
	assert.True(t, snap.DetectionActive)
	assert.Empty(t, snap.StreamID)
	assert.Len(t, snap.Indicators, 5)
}

type idleStream struct{ id string }

func (s *idleStream) ID() string                   { return s.id }
func (s *idleStream) Settings() camera.Settings    { return camera.Settings{} }
func (s *idleStream) Ready() <-chan struct{}       { return nil }
func (s *idleStream) Done() <-chan struct{}        { return nil }
func (s *idleStream) Latest() (camera.Frame, bool) { return camera.Frame{}, false }
func (s *idleStream) Stop()                        {}

func TestReleaseStream(t *testing.T) {
	p := New()
	old := &idleStream{id: "old"}
	current := &idleStream{id: "current"}

	assert.False(t, p.ReleaseStream(old))

	p.BindStream(current)
	assert.False(t, p.ReleaseStream(old), "a replaced stream does not unbind its successor")
	assert.Equal(t, "current", p.Snapshot().StreamID)

	assert.True(t, p.ReleaseStream(current))
	assert.Nil(t, p.Stream())
	assert.Empty(t, p.Snapshot().StreamID)
}

func TestFormatWidth(t *testing.T) {
	assert.Equal(t, "0%", FormatWidth(0))
	assert.Equal(t, "100%", FormatWidth(1))
	assert.Equal(t, "87.5%", FormatWidth(0.875))
	assert.Equal(t, "33.33%", FormatWidth(1.0/3))
}
