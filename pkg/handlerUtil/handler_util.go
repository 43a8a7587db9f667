package handlerUtil

import (
	"errors"

	"FaceCam/internal/api/capture"
	"FaceCam/internal/api/detection"
	"FaceCam/pkg/log"
	"FaceCam/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// domainCodes gives machine readable codes to the errors clients branch on.
var domainCodes = []struct {
	err  error
	code string
}{
	{capture.ErrUnsupportedPlatform, "UNSUPPORTED_PLATFORM"},
	{capture.ErrNoDeviceFound, "NO_DEVICE_FOUND"},
	{capture.ErrPermissionDenied, "PERMISSION_DENIED"},
	{capture.ErrTimeout, "CAPTURE_TIMEOUT"},
	{capture.ErrAcquisitionFailed, "ACQUISITION_FAILED"},
	{capture.ErrAnalyzerUnavailable, "ANALYZER_UNAVAILABLE"},
	{capture.ErrRetryNotOffered, "RETRY_NOT_OFFERED"},
	{detection.ErrNoStream, "NO_STREAM"},
	{detection.ErrNoFrame, "NO_FRAME"},
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	for _, d := range domainCodes {
		if !errors.Is(err, d.err) {
			continue
		}

		var respErr *response.Error
		errors.As(d.err, &respErr)

		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with domain error")
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error:   respErr.Error(),
			Code:    d.code,
			Details: err.Error(),
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	if errors.Is(err, detection.ErrInternalServerError) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Internal server error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":    "An unexpected error occurred",
		"trace_id": traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
