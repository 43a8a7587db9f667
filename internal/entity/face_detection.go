package entity

type Expression string

const (
	ExpressionHappy     Expression = "happy"
	ExpressionSad       Expression = "sad"
	ExpressionAngry     Expression = "angry"
	ExpressionSurprised Expression = "surprised"
	ExpressionNeutral   Expression = "neutral"
)

// Expressions lists the labels shown as indicators, in display order.
var Expressions = []Expression{
	ExpressionHappy,
	ExpressionSad,
	ExpressionAngry,
	ExpressionSurprised,
	ExpressionNeutral,
}

func (e Expression) Known() bool {
	for _, known := range Expressions {
		if e == known {
			return true
		}
	}
	return false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type FaceDetection struct {
	Box         Box                    `json:"box"`
	Score       float64                `json:"score"`
	Landmarks   []Point                `json:"landmarks,omitempty"`
	Expressions map[Expression]float64 `json:"expressions,omitempty"`
}

// DetectionResult holds every face found in one frame. Width and Height are
// the dimensions of the image the coordinates refer to.
type DetectionResult struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Faces  []FaceDetection `json:"faces"`
}

func (r *DetectionResult) First() (FaceDetection, bool) {
	if r == nil || len(r.Faces) == 0 {
		return FaceDetection{}, false
	}
	return r.Faces[0], true
}
