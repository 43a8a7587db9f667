package page

import (
	"math"
	"strconv"
	"sync"
	"time"

	"FaceCam/internal/entity"
	"FaceCam/pkg/camera"
	"FaceCam/pkg/overlay"
)

// Default capture geometry. The overlay starts at this size and is resized
// to the stream's native dimensions once video flows.
const (
	CaptureWidth  = 640
	CaptureHeight = 480
	FacingMode    = camera.FacingUser
)

type Indicator struct {
	Label      entity.Expression `json:"label"`
	Confidence float64           `json:"confidence"`
	Width      string            `json:"width"`
}

type Snapshot struct {
	Status          string      `json:"status"`
	Permission      string      `json:"permission"`
	RetryVisible    bool        `json:"retry_visible"`
	DetectionActive bool        `json:"detection_active"`
	StreamID        string      `json:"stream_id,omitempty"`
	OverlayWidth    int         `json:"overlay_width"`
	OverlayHeight   int         `json:"overlay_height"`
	Indicators      []Indicator `json:"indicators"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Page is the state shared by the capture controller and the detection loop:
// status line, permission state, expression indicators, the overlay surface
// and the bound video stream.
type Page struct {
	mu         sync.RWMutex
	status     string
	permission entity.PermissionState
	retry      bool
	indicators map[entity.Expression]float64
	stream     camera.Stream
	active     bool
	updatedAt  time.Time

	surface *overlay.Surface

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

func New() *Page {
	indicators := make(map[entity.Expression]float64, len(entity.Expressions))
	for _, e := range entity.Expressions {
		indicators[e] = 0
	}

	return &Page{
		indicators: indicators,
		surface:    overlay.NewSurface(CaptureWidth, CaptureHeight),
		subs:       make(map[int]chan Snapshot),
		updatedAt:  time.Now(),
	}
}

func (p *Page) Surface() *overlay.Surface {
	return p.surface
}

func (p *Page) SetStatus(status string) {
	p.mu.Lock()
	p.status = status
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
}

func (p *Page) Status() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Page) SetPermission(state entity.PermissionState) {
	p.mu.Lock()
	p.permission = state
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
}

func (p *Page) Permission() entity.PermissionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.permission
}

// OfferRetry shows or hides the retry control for failures other than a
// permission denial. A denied permission always shows it.
func (p *Page) OfferRetry(offered bool) {
	p.mu.Lock()
	p.retry = offered
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
}

func (p *Page) RetryVisible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.retryVisibleLocked()
}

func (p *Page) retryVisibleLocked() bool {
	return p.retry || p.permission.RetryVisible()
}

// SetIndicators updates the known expression indicators from scores. Labels
// that are not displayed are ignored and labels missing from scores keep
// their value. Values are clamped to [0,1].
func (p *Page) SetIndicators(scores map[entity.Expression]float64) {
	if len(scores) == 0 {
		return
	}

	p.mu.Lock()
	for label, v := range scores {
		if !label.Known() {
			continue
		}
		p.indicators[label] = clampUnit(v)
	}
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
}

func (p *Page) Indicators() []Indicator {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indicatorsLocked()
}

func (p *Page) BindStream(stream camera.Stream) {
	p.mu.Lock()
	p.stream = stream
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
}

// UnbindStream clears the bound stream and returns it.
func (p *Page) UnbindStream() camera.Stream {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
	return stream
}

// ReleaseStream unbinds stream if it is still the bound one.
func (p *Page) ReleaseStream(stream camera.Stream) bool {
	p.mu.Lock()
	if p.stream == nil || p.stream != stream {
		p.mu.Unlock()
		return false
	}
	p.stream = nil
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
	return true
}

func (p *Page) Stream() camera.Stream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stream
}

func (p *Page) SetDetectionActive(active bool) {
	p.mu.Lock()
	p.active = active
	p.updatedAt = time.Now()
	p.mu.Unlock()
	p.publish()
}

func (p *Page) DetectionActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

func (p *Page) Snapshot() Snapshot {
	w, h := p.surface.Size()

	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := Snapshot{
		Status:          p.status,
		Permission:      p.permission.String(),
		RetryVisible:    p.retryVisibleLocked(),
		DetectionActive: p.active,
		OverlayWidth:    w,
		OverlayHeight:   h,
		Indicators:      p.indicatorsLocked(),
		UpdatedAt:       p.updatedAt,
	}
	if p.stream != nil {
		snap.StreamID = p.stream.ID()
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot after every change. Slow
// readers only see the newest snapshot. Call cancel to unsubscribe.
func (p *Page) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (p *Page) publish() {
	snap := p.Snapshot()

	p.subMu.Lock()
	defer p.subMu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// drop the stale snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (p *Page) indicatorsLocked() []Indicator {
	out := make([]Indicator, 0, len(entity.Expressions))
	for _, label := range entity.Expressions {
		v := p.indicators[label]
		out = append(out, Indicator{
			Label:      label,
			Confidence: v,
			Width:      FormatWidth(v),
		})
	}
	return out
}

// FormatWidth renders a confidence as an indicator width, e.g. 0.42 -> "42%".
// Percentages are rounded to two decimals.
func FormatWidth(confidence float64) string {
	pct := math.Round(confidence*10000) / 100
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
