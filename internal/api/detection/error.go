package detection

import (
	"FaceCam/pkg/response"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrNoStream            = response.NewError(http.StatusConflict, "no video stream is bound")
	ErrNoFrame             = response.NewError(http.StatusNotFound, "no video frame available yet")
)
