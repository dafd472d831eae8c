package tracking

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/email-tracker/internal/notify"
	"github.com/ignite/email-tracker/internal/pkg/httputil"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

const (
	serviceName    = "email-tracking-server"
	serviceVersion = "1.0.0"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Dispatcher forwards an engagement event without blocking the caller.
type Dispatcher interface {
	Notify(evt notify.Event)
}

// Handler serves the tracking endpoints and the composition-side API.
type Handler struct {
	publicBaseURL string // optional; request host is used when empty
	dispatcher    Dispatcher
}

// NewHandler creates a Handler. publicBaseURL, when non-empty, is the base
// for generated tracking links; otherwise links are built on the inbound
// request's host.
func NewHandler(publicBaseURL string, d Dispatcher) *Handler {
	return &Handler{publicBaseURL: publicBaseURL, dispatcher: d}
}

// Routes builds the service router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	r.Get("/test", h.HandleTest)
	r.Get(PixelPath, h.HandlePixel)
	r.Get(ClickPath, h.HandleClick)

	// Composition-side API, called from the campaign UI while building
	// messages. Tracking endpoints stay CORS-free: they are hit by mail
	// clients, not browsers running our frontend.
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Post("/generate-pixel", h.HandleGeneratePixel)
		r.Post("/wrap-links", h.HandleWrapLinks)
	})

	return r
}

// HandlePixel serves the open-tracking pixel. The image is returned with a
// 200 in every case — decode failure, dispatch failure — so mail clients
// never render a broken image, and the dispatch is never awaited.
func (h *Handler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	// Whatever goes wrong, the mail client gets its image.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("pixel: handler panic", "panic", fmt.Sprint(rec))
			h.servePixel(w)
		}
	}()

	tkn, err := DecodePixelToken(r.URL.Query())
	if err != nil {
		logger.Warn("pixel: token decode failed", "error", err.Error())
		h.servePixel(w)
		return
	}

	h.dispatcher.Notify(notify.Event{
		Kind:           notify.KindOpened,
		QueueID:        tkn.QueueID,
		CampaignID:     tkn.CampaignID,
		RecipientEmail: tkn.RecipientEmail,
		OccurredAt:     time.Now().UTC(),
		UserAgent:      r.UserAgent(),
		IPAddress:      clientIP(r),
	})

	logger.Info("open tracked",
		"queue_id", tkn.QueueID,
		"campaign_id", tkn.CampaignID,
		"recipient_email", tkn.RecipientEmail)
	h.servePixel(w)
}

// HandleClick redirects a wrapped link to its original target. A broken or
// tampered token gets a 404 — there is no safe fallback redirect target.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	tkn, err := DecodeClickToken(r.URL.Query())
	if err != nil {
		logger.Warn("click: token decode failed", "error", err.Error())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Link not found"))
		return
	}

	h.dispatcher.Notify(notify.Event{
		Kind:       notify.KindClicked,
		QueueID:    tkn.QueueID,
		CampaignID: tkn.CampaignID,
		TargetURL:  tkn.TargetURL,
		OccurredAt: time.Now().UTC(),
		UserAgent:  r.UserAgent(),
		IPAddress:  clientIP(r),
	})

	logger.Info("click tracked",
		"queue_id", tkn.QueueID,
		"campaign_id", tkn.CampaignID,
		"target_url", tkn.TargetURL)
	http.Redirect(w, r, tkn.TargetURL, http.StatusFound)
}

type generatePixelRequest struct {
	QueueID    string `json:"queueId"`
	CampaignID string `json:"campaignId"`
	Email      string `json:"email"`
}

// HandleGeneratePixel builds a pixel URL for one outbound message.
func (h *Handler) HandleGeneratePixel(w http.ResponseWriter, r *http.Request) {
	var req generatePixelRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	pixelURL, err := PixelURL(h.baseURL(r), req.QueueID, req.CampaignID, req.Email)
	if err != nil {
		httputil.BadRequest(w, "Missing required parameters: queueId, campaignId, email")
		return
	}

	httputil.OK(w, map[string]string{"pixelUrl": pixelURL})
}

type wrapLinksRequest struct {
	HTMLBody   string `json:"htmlBody"`
	QueueID    string `json:"queueId"`
	CampaignID string `json:"campaignId"`
	// Optional: when set, the wrapped HTML also gets an open pixel for
	// this recipient injected before </body>.
	Email string `json:"email,omitempty"`
}

// HandleWrapLinks rewrites trackable hyperlinks in an HTML message body.
func (h *Handler) HandleWrapLinks(w http.ResponseWriter, r *http.Request) {
	var req wrapLinksRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.HTMLBody == "" || req.QueueID == "" || req.CampaignID == "" {
		httputil.BadRequest(w, "Missing required parameters: htmlBody, queueId, campaignId")
		return
	}

	base := h.baseURL(r)
	wrapped := WrapLinks(base, req.HTMLBody, req.QueueID, req.CampaignID)

	resp := map[string]string{"wrappedHtml": wrapped}
	if req.Email != "" {
		pixelURL, err := PixelURL(base, req.QueueID, req.CampaignID, req.Email)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		resp["wrappedHtml"] = InjectOpenPixel(wrapped, pixelURL)
		resp["pixelUrl"] = pixelURL
	}

	httputil.OK(w, resp)
}

// HandleHealth returns the health status of the service.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
		"version":   serviceVersion,
	})
}

// HandleTest lists the available endpoints, for development.
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"message": "Email tracking server is running",
		"endpoints": map[string]string{
			"health":        "/health",
			"trackPixel":    PixelPath + "?q=QUEUE_ID&c=CAMPAIGN_ID&e=BASE64_EMAIL&t=TIMESTAMP",
			"trackClick":    ClickPath + "?q=QUEUE_ID&c=CAMPAIGN_ID&u=BASE64_URL&t=TIMESTAMP",
			"generatePixel": "POST /api/generate-pixel",
			"wrapLinks":     "POST /api/wrap-links",
		},
	})
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixelGIF)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// clientIP resolves the requester's address. middleware.RealIP has already
// folded X-Forwarded-For / X-Real-Ip into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
