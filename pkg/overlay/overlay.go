package overlay

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"sync"
	"time"

	"FaceCam/internal/entity"
	"github.com/fogleman/gg"
)

// landmark68Contours lists the index ranges joined when drawing a 68 point
// face landmark set. Closed contours connect their last point to the first.
var landmark68Contours = []struct {
	from, to int
	closed   bool
}{
	{0, 16, false},  // jaw
	{17, 21, false}, // left brow
	{22, 26, false}, // right brow
	{27, 30, false}, // nose bridge
	{30, 35, false}, // nose
	{36, 41, true},  // left eye
	{42, 47, true},  // right eye
	{48, 59, true},  // outer lip
	{60, 67, true},  // inner lip
}

type Style struct {
	BoxLineWidth      float64
	LandmarkLineWidth float64
	PointRadius       float64
	DrawScore         bool
}

func DefaultStyle() Style {
	return Style{
		BoxLineWidth:      2,
		LandmarkLineWidth: 1,
		PointRadius:       2,
		DrawScore:         true,
	}
}

// Surface is the drawing layer shown on top of the video.
type Surface struct {
	mu    sync.RWMutex
	dc    *gg.Context
	style Style
	faces int
	drawn time.Time
}

func NewSurface(width, height int) *Surface {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	return &Surface{
		dc:    gg.NewContext(width, height),
		style: DefaultStyle(),
	}
}

// Resize replaces the drawing buffer with a transparent one of the given size.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("overlay: invalid size %dx%d", width, height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dc = gg.NewContext(width, height)
	s.faces = 0
	return nil
}

func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dc.Width(), s.dc.Height()
}

func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.faces = 0
}

// Render clears the surface and draws every face in result. The result must
// already be in surface coordinates.
func (s *Surface) Render(result *entity.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	s.faces = 0
	s.drawn = time.Now()
	if result == nil {
		return
	}

	for _, face := range result.Faces {
		s.drawDetection(face)
		s.drawLandmarks(face.Landmarks)
	}
	s.faces = len(result.Faces)
}

// Faces reports how many faces the last Render drew.
func (s *Surface) Faces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faces
}

func (s *Surface) LastDrawn() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawn
}

func (s *Surface) EncodePNG(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dc.EncodePNG(w)
}

// Snapshot returns a copy of the current drawing.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func (s *Surface) clear() {
	s.dc.SetRGBA(0, 0, 0, 0)
	s.dc.Clear()
}

func (s *Surface) drawDetection(face entity.FaceDetection) {
	b := face.Box
	s.dc.SetRGBA(0, 0, 1, 1)
	s.dc.SetLineWidth(s.style.BoxLineWidth)
	s.dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
	s.dc.Stroke()

	if !s.style.DrawScore {
		return
	}

	label := fmt.Sprintf("%.2f", face.Score)
	tw, th := s.dc.MeasureString(label)
	y := b.Y + b.Height
	s.dc.SetRGBA(0, 0, 0, 0.5)
	s.dc.DrawRectangle(b.X, y, tw+8, th+6)
	s.dc.Fill()
	s.dc.SetRGB(1, 1, 1)
	s.dc.DrawStringAnchored(label, b.X+4, y+3, 0, 1)
}

func (s *Surface) drawLandmarks(points []entity.Point) {
	if len(points) == 0 {
		return
	}

	if len(points) == 68 {
		s.dc.SetRGBA(0, 1, 1, 1)
		s.dc.SetLineWidth(s.style.LandmarkLineWidth)
		for _, c := range landmark68Contours {
			s.dc.MoveTo(points[c.from].X, points[c.from].Y)
			for i := c.from + 1; i <= c.to; i++ {
				s.dc.LineTo(points[i].X, points[i].Y)
			}
			if c.closed {
				s.dc.ClosePath()
			}
			s.dc.Stroke()
		}
	}

	s.dc.SetRGBA(1, 0, 1, 1)
	for _, p := range points {
		s.dc.DrawCircle(p.X, p.Y, s.style.PointRadius)
		s.dc.Fill()
	}
}
