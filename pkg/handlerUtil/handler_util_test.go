package handlerUtil

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"FaceCam/internal/api/capture"
	"FaceCam/internal/api/detection"
	"FaceCam/pkg/response"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	h := New(logger)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return h.Handle(c, "req-9", err, c.Path(), "test")
	})

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, testErr)
	data, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)

	var body map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(data, &body))
	return resp.StatusCode, body
}

func TestHandle_DomainError(t *testing.T) {
	status, body := handle(t, fmt.Errorf("%w: NotFoundError", capture.ErrNoDeviceFound))

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NO_DEVICE_FOUND", body["code"])
	assert.Equal(t, capture.ErrNoDeviceFound.Error(), body["error"])
	assert.Contains(t, body["details"], "NotFoundError")
}

func TestHandle_DetectionError(t *testing.T) {
	status, body := handle(t, detection.ErrNoFrame)

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NO_FRAME", body["code"])
}

func TestHandle_GenericResponseError(t *testing.T) {
	status, body := handle(t, response.NewError(fiber.StatusTeapot, "short and stout"))

	assert.Equal(t, fiber.StatusTeapot, status)
	assert.Equal(t, "short and stout", body["error"])
}

func TestHandle_UnexpectedError(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	status, body := handle(t, errors.New("disk on fire"))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "req-9", body["trace_id"])
	assert.NotContains(t, body["error"], "disk")
}
