package page

// Status lines shown to the user.
const (
	StatusCheckingWebcam       = "Checking webcam availability..."
	StatusUnsupported          = "Webcam access is not supported on this platform."
	StatusNoWebcam             = "No webcam found. Connect a webcam and reload the page."
	StatusAllowAccess          = "Click the button to allow webcam access."
	StatusLoadingModels        = "Loading face detection models..."
	StatusModelsUnavailable    = "Face detection is unavailable right now. Showing live video only."
	StatusAccessingWebcam      = "Accessing webcam..."
	StatusWebcamConnected      = "Webcam connected."
	StatusRequestingPermission = "Requesting webcam access..."
	StatusPermissionGranted    = "Permission granted! Starting..."
	StatusDetectionActive      = "Face detection and expressions active!"
	StatusDetectionInterrupted = "Face detection interrupted. Retrying..."
	StatusWebcamDisconnected   = "Webcam disconnected. Click the button to reconnect."
	StatusStopped              = "Webcam stopped."
)
