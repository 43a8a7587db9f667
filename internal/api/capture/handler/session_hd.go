package captureHandler

import (
	"time"

	"FaceCam/internal/api/capture"
	contextPkg "FaceCam/pkg/context"
	"FaceCam/pkg/handlerUtil"
	"FaceCam/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

const flowTimeout = 90 * time.Second

func (h *CaptureHandler) GetStatus(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, capture.SessionResponse{
		Data: h.captureService.Snapshot(),
	})
}

func (h *CaptureHandler) RequestPermission(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), flowTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if !h.captureService.Supported() {
		return errHandler.Handle(ctx, requestID, capture.ErrUnsupportedPlatform, ctx.Path(), "request_permission")
	}
	if !h.captureService.Snapshot().RetryVisible {
		return errHandler.Handle(ctx, requestID, capture.ErrRetryNotOffered, ctx.Path(), "request_permission")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing webcam permission request")

	if err := h.captureService.RequestPermission(c); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "request_permission")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		snapshot := h.captureService.Snapshot()
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"status":     snapshot.Status,
		}).Info("Webcam permission flow finished")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, capture.SessionResponse{
			Data: snapshot,
		})
	}
}

func (h *CaptureHandler) StartSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), flowTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if err := h.captureService.Boot(c); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, capture.SessionResponse{
			Data: h.captureService.Snapshot(),
		})
	}
}

func (h *CaptureHandler) StopSession(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	h.captureService.Stop()

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, capture.SessionResponse{
		Data: h.captureService.Snapshot(),
	})
}

// handleSessionWebSocket pushes a page snapshot on every change until the
// viewer goes away.
func (h *CaptureHandler) handleSessionWebSocket(c *websocket.Conn) {
	h.log.Debug("Session viewer connected")
	defer h.log.Debug("Session viewer disconnected")

	updates, unsubscribe := h.captureService.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := c.WriteJSON(h.captureService.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case snapshot := <-updates:
			if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := c.WriteJSON(snapshot); err != nil {
				h.log.Errorf("Error writing session snapshot: %v", err)
				return
			}
		}
	}
}

func (h *CaptureHandler) handleCameraWebSocket(c *websocket.Conn) {
	if err := h.clients.Serve(c); err != nil {
		h.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Warn("Capture client session ended with error")
	}
}
