package camera

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// frameBuffer keeps only the newest frame of a stream.
type frameBuffer struct {
	id string

	mu       sync.RWMutex
	settings Settings

	latest atomic.Pointer[Frame]
	seq    atomic.Uint64

	ready     chan struct{}
	readyOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
}

func newFrameBuffer(id string, settings Settings) *frameBuffer {
	return &frameBuffer{
		id:       id,
		settings: settings,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (b *frameBuffer) ID() string {
	return b.id
}

// Settings reports the dimensions of the most recent frame once one has
// arrived, otherwise the negotiated ones.
func (b *frameBuffer) Settings() Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

func (b *frameBuffer) Ready() <-chan struct{} {
	return b.ready
}

func (b *frameBuffer) Latest() (Frame, bool) {
	f := b.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

func (b *frameBuffer) Done() <-chan struct{} {
	return b.done
}

func (b *frameBuffer) push(img image.Image) bool {
	if img == nil || b.isDone() {
		return false
	}

	bounds := img.Bounds()
	b.mu.Lock()
	if b.settings.Width != bounds.Dx() || b.settings.Height != bounds.Dy() {
		b.settings.Width = bounds.Dx()
		b.settings.Height = bounds.Dy()
	}
	b.mu.Unlock()

	b.latest.Store(&Frame{
		Image:      img,
		Seq:        b.seq.Add(1),
		CapturedAt: time.Now(),
	})
	b.readyOnce.Do(func() { close(b.ready) })
	return true
}

// finish marks the buffer as ended and reports whether this call did it.
func (b *frameBuffer) finish() bool {
	first := false
	b.doneOnce.Do(func() {
		close(b.done)
		first = true
	})
	return first
}

func (b *frameBuffer) isDone() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
