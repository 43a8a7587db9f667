package captureHandler

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FaceCam/internal/api/capture"
	"FaceCam/internal/middleware"
	"FaceCam/internal/page"
	"FaceCam/pkg/camera"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeCaptureService struct {
	snapshot    page.Snapshot
	supported   bool
	bootErr     error
	permErr     error
	bootCalls   int
	permCalls   int
	stopCalls   int
	lastCtxID   string
	afterAction func(*fakeCaptureService)
}

func (f *fakeCaptureService) Boot(ctx context.Context) error {
	f.bootCalls++
	f.lastCtxID, _ = ctx.Value("request_id").(string)
	if f.afterAction != nil {
		f.afterAction(f)
	}
	return f.bootErr
}

func (f *fakeCaptureService) CheckWebcamAvailability(ctx context.Context) error   { return nil }
func (f *fakeCaptureService) CheckAnalyzerAvailability(ctx context.Context) error { return nil }
func (f *fakeCaptureService) StartWebcam(ctx context.Context) error               { return nil }
func (f *fakeCaptureService) StartApp(ctx context.Context) error                  { return nil }

func (f *fakeCaptureService) RequestPermission(ctx context.Context) error {
	f.permCalls++
	if f.afterAction != nil {
		f.afterAction(f)
	}
	return f.permErr
}

func (f *fakeCaptureService) Stop() {
	f.stopCalls++
	f.snapshot.Status = page.StatusStopped
}

func (f *fakeCaptureService) Supported() bool         { return f.supported }
func (f *fakeCaptureService) Snapshot() page.Snapshot { return f.snapshot }

func (f *fakeCaptureService) Subscribe() (<-chan page.Snapshot, func()) {
	return make(chan page.Snapshot), func() {}
}

type fakeClients struct{}

func (fakeClients) Serve(conn camera.Conn) error { return nil }

func newTestApp(t *testing.T, cs *fakeCaptureService, clients ClientServer) *fiber.App {
	t.Helper()

	logger, _ := test.NewNullLogger()
	mw := middleware.New(logger)

	app := fiber.New()
	app.Use(mw.NewRequestIDMiddleware())
	h := New(logger, mw, cs, clients)
	h.Start(app.Group("/api/v1"))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.RequestIDKey, "req-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, jsoniter.Unmarshal(body, &decoded), string(body))
	}
	return resp, decoded
}

func TestGetStatus(t *testing.T) {
	cs := &fakeCaptureService{supported: true, snapshot: page.Snapshot{Status: page.StatusDetectionActive, Permission: "granted"}}
	app := newTestApp(t, cs, nil)

	resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/session/status")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, page.StatusDetectionActive, data["status"])
	assert.Equal(t, "granted", data["permission"])
}

func TestStartSession(t *testing.T) {
	cs := &fakeCaptureService{supported: true}
	cs.afterAction = func(f *fakeCaptureService) { f.snapshot.Status = page.StatusDetectionActive }
	app := newTestApp(t, cs, nil)

	resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/session/start")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, cs.bootCalls)
	assert.Equal(t, "req-123", cs.lastCtxID)
	assert.Equal(t, page.StatusDetectionActive, body["data"].(map[string]interface{})["status"])
}

func TestStartSession_DomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: NotAllowedError", capture.ErrPermissionDenied), fiber.StatusForbidden, "PERMISSION_DENIED"},
		{capture.ErrNoDeviceFound, fiber.StatusNotFound, "NO_DEVICE_FOUND"},
		{capture.ErrTimeout, fiber.StatusGatewayTimeout, "CAPTURE_TIMEOUT"},
		{capture.ErrUnsupportedPlatform, fiber.StatusNotImplemented, "UNSUPPORTED_PLATFORM"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			cs := &fakeCaptureService{supported: true, bootErr: tt.err}
			app := newTestApp(t, cs, nil)

			resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/session/start")

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestRequestPermission_RequiresRetryControl(t *testing.T) {
	cs := &fakeCaptureService{supported: true, snapshot: page.Snapshot{RetryVisible: false}}
	app := newTestApp(t, cs, nil)

	resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/session/permission")

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "RETRY_NOT_OFFERED", body["code"])
	assert.Equal(t, 0, cs.permCalls)
}

func TestRequestPermission_Unsupported(t *testing.T) {
	cs := &fakeCaptureService{supported: false, snapshot: page.Snapshot{RetryVisible: true}}
	app := newTestApp(t, cs, nil)

	resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/session/permission")

	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_PLATFORM", body["code"])
	assert.Equal(t, 0, cs.permCalls)
}

func TestRequestPermission_Granted(t *testing.T) {
	cs := &fakeCaptureService{supported: true, snapshot: page.Snapshot{RetryVisible: true, Permission: "denied"}}
	cs.afterAction = func(f *fakeCaptureService) {
		f.snapshot = page.Snapshot{Permission: "granted", Status: page.StatusDetectionActive}
	}
	app := newTestApp(t, cs, nil)

	resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/session/permission")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, cs.permCalls)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "granted", data["permission"])
	assert.Equal(t, false, data["retry_visible"])
}

func TestStopSession(t *testing.T) {
	cs := &fakeCaptureService{supported: true}
	app := newTestApp(t, cs, nil)

	resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/session/stop")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, cs.stopCalls)
	assert.Equal(t, page.StatusStopped, body["data"].(map[string]interface{})["status"])
}

func TestWebSocketRoutes_RequireUpgrade(t *testing.T) {
	cs := &fakeCaptureService{supported: true}

	app := newTestApp(t, cs, fakeClients{})
	resp, _ := doRequest(t, app, fiber.MethodGet, "/api/v1/session/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	resp, _ = doRequest(t, app, fiber.MethodGet, "/api/v1/camera/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	// without a remote camera there is no capture client endpoint
	app = newTestApp(t, cs, nil)
	resp, _ = doRequest(t, app, fiber.MethodGet, "/api/v1/camera/ws")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
