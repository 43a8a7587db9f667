package faceapi

import (
	"math"

	"FaceCam/internal/entity"
)

// ResizeResults maps a detection result onto a width x height surface. Every
// coordinate of the returned result lies within [0,width] x [0,height].
func ResizeResults(result *entity.DetectionResult, width, height int) *entity.DetectionResult {
	out := &entity.DetectionResult{
		Width:  width,
		Height: height,
		Faces:  []entity.FaceDetection{},
	}
	if result == nil || width <= 0 || height <= 0 {
		return out
	}

	sx, sy := 1.0, 1.0
	if result.Width > 0 && result.Height > 0 {
		sx = float64(width) / float64(result.Width)
		sy = float64(height) / float64(result.Height)
	}
	w, h := float64(width), float64(height)

	for _, face := range result.Faces {
		x0 := clamp(face.Box.X*sx, w)
		y0 := clamp(face.Box.Y*sy, h)
		x1 := clamp((face.Box.X+face.Box.Width)*sx, w)
		y1 := clamp((face.Box.Y+face.Box.Height)*sy, h)

		resized := entity.FaceDetection{
			Box: entity.Box{
				X:      x0,
				Y:      y0,
				Width:  math.Max(0, x1-x0),
				Height: math.Max(0, y1-y0),
			},
			Score: face.Score,
		}

		if len(face.Landmarks) > 0 {
			resized.Landmarks = make([]entity.Point, len(face.Landmarks))
			for i, p := range face.Landmarks {
				resized.Landmarks[i] = entity.Point{X: clamp(p.X*sx, w), Y: clamp(p.Y*sy, h)}
			}
		}

		if len(face.Expressions) > 0 {
			resized.Expressions = make(map[entity.Expression]float64, len(face.Expressions))
			for label, v := range face.Expressions {
				resized.Expressions[label] = v
			}
		}

		out.Faces = append(out.Faces, resized)
	}

	return out
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
