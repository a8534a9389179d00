package api

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/triarqhealth/iam-portal/internal/notify"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

const streamHeartbeat = 30 * time.Second

// StreamHandler serves the server-sent-events feed browser sessions use to
// reload when data changes elsewhere.
type StreamHandler struct {
	hub *notify.Hub
}

func NewStreamHandler(hub *notify.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

func (h *StreamHandler) GetStream(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	client := h.hub.Register()
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unregister(client)

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case msg, ok := <-client.Receive():
				if !ok {
					return
				}
				if err := writeEvent(w, msg); err != nil {
					return
				}
			case <-heartbeat.C:
				// Comment line keeps proxies from closing an idle stream.
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, msg []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("data: ")
	buf.Write(msg)
	buf.WriteString("\n\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}
