package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightsend/crm/internal/pkg/logger"
	"github.com/brightsend/crm/internal/service/tracking"
)

// pixel is the 1x1 transparent PNG served for every open-tracking request.
var pixel = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

func requestMeta(r *http.Request) tracking.RequestMeta {
	return tracking.RequestMeta{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// TrackOpen serves the tracking pixel. The response is identical whether the
// token resolved, already fired, or was garbage: mail scanners probing pixel
// URLs learn nothing, and broken images never appear in the email body.
func (h *Handlers) TrackOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.tracking.RecordOpen(r.Context(), token, requestMeta(r)); err != nil && err != tracking.ErrUnknownToken {
		logger.Error("open tracking failed", "err", err)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixel)
}

// TrackClick records the click and redirects to the original destination.
// The destination rides in the `u` query parameter; without it there is
// nowhere to go, so the request is a 400. An unknown token still redirects:
// the recipient's link must keep working even if the job vanished.
func (h *Handlers) TrackClick(w http.ResponseWriter, r *http.Request) {
	dest := r.URL.Query().Get("u")
	if dest == "" {
		http.Error(w, "missing destination", http.StatusBadRequest)
		return
	}

	token := chi.URLParam(r, "token")
	if err := h.tracking.RecordClick(r.Context(), token, dest, requestMeta(r)); err != nil && err != tracking.ErrUnknownToken {
		logger.Error("click tracking failed", "err", err)
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

const unsubscribeConfirmHTML = `<!DOCTYPE html>
<html>
<head><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; max-width: 480px; margin: 80px auto; text-align: center;">
<h1>You're unsubscribed</h1>
<p>You will no longer receive emails from us.</p>
</body>
</html>`

const unsubscribeInvalidHTML = `<!DOCTYPE html>
<html>
<head><title>Invalid link</title></head>
<body style="font-family: sans-serif; max-width: 480px; margin: 80px auto; text-align: center;">
<h1>This link is no longer valid</h1>
<p>The unsubscribe link you followed could not be verified.</p>
</body>
</html>`

// Unsubscribe processes a one-click unsubscribe link and renders a
// confirmation page. The opt-out applies to every email subscription the
// client holds, not just the campaign the link came from.
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := h.tracking.RecordUnsubscribe(r.Context(), token, requestMeta(r))
	if err == tracking.ErrUnknownToken {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(unsubscribeInvalidHTML))
		return
	}
	if err != nil {
		logger.Error("unsubscribe failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(unsubscribeInvalidHTML))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(unsubscribeConfirmHTML))
}
