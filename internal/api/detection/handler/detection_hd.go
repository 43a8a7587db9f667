package detectionHandler

import (
	"bytes"

	"FaceCam/internal/api/detection"
	"FaceCam/internal/page"
	"FaceCam/pkg/handlerUtil"
	"FaceCam/pkg/log"
	"github.com/gofiber/fiber/v2"
)

func (h *DetectionHandler) GetOverlay(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var buf bytes.Buffer
	if err := h.surface.EncodePNG(&buf); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "encode_overlay")
	}

	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Set(fiber.HeaderContentType, "image/png")
	return ctx.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *DetectionHandler) GetFrame(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	frame, err := h.detectionService.LatestFrame()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "latest_frame")
	}

	body, err := h.utils.EncodeJPEG(frame.Image, page.CaptureWidth*2, page.CaptureHeight*2)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "encode_frame")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"frame_seq":  frame.Seq,
		"bytes":      len(body),
	}).Debug("Serving video frame")

	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Set(fiber.HeaderContentType, "image/jpeg")
	return ctx.Status(fiber.StatusOK).Send(body)
}

func (h *DetectionHandler) GetStats(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.StatsResponse{
		Data: h.detectionService.Stats(),
	})
}
