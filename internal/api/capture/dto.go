package capture

import "FaceCam/internal/page"

type SessionResponse struct {
	Data  page.Snapshot `json:"data"`
	Error string        `json:"error,omitempty"`
}
