package detection

import "time"

type LoopStats struct {
	Running             bool      `json:"running"`
	FramesAnalyzed      uint64    `json:"frames_analyzed"`
	FramesSkipped       uint64    `json:"frames_skipped"`
	DetectionFailures   uint64    `json:"detection_failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastLatencyMs       int64     `json:"last_latency_ms"`
	LastFaces           int       `json:"last_faces"`
	LastDetectionAt     time.Time `json:"last_detection_at,omitempty"`
}

type StatsResponse struct {
	Data  LoopStats `json:"data"`
	Error string    `json:"error,omitempty"`
}
