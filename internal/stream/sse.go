// Package stream serves live satellite positions as Server-Sent Events.
// Clients connect via GET /api/v1/stream/live/{norad_id}?interval=5 and
// receive one snapshot per interval until they disconnect.
//
// SSE message format:
//
//	data: {"type":"snapshot","norad_id":25544,"time":"...","code":0,"geodetic":{...},"ecef":{...},"fallback":false}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","norad_id":25544,"name":"ISS (ZARYA)","tle_epoch":"...","interval_seconds":5}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval when no
// snapshot went out in between.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbitscan/internal/httputil"
	"github.com/star/orbitscan/internal/metrics"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/tle"
)

// MaxInterval bounds the interval query parameter.
const MaxInterval = time.Hour

// Resolver looks up element sets by catalog number. *tle.Catalog implements it.
type Resolver interface {
	Resolve(ctx context.Context, noradID int) (tle.Elements, error)
}

// Snapshotter produces a live position. *orbit.Sampler implements it.
type Snapshotter interface {
	Live(ctx context.Context, el tle.Elements) orbit.Snapshot
}

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int
	MaxTotal           int // 0 means 1000
	KeepaliveInterval  time.Duration
	DefaultInterval    time.Duration
	MinInterval        time.Duration
	TrustProxy         bool
}

// Handler manages SSE streaming connections.
type Handler struct {
	resolver Resolver
	live     Snapshotter
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(resolver Resolver, live Snapshotter, config Config, logger *slog.Logger) *Handler {
	if config.MaxTotal <= 0 {
		config.MaxTotal = 1000
	}
	if config.MinInterval <= 0 {
		config.MinInterval = time.Second
	}
	if config.DefaultInterval < config.MinInterval {
		config.DefaultInterval = config.MinInterval
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	return &Handler{
		resolver: resolver,
		live:     live,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:   logger,
	}
}

// parseInterval accepts plain seconds ("5", "0.5") or a Go duration ("500ms").
func parseInterval(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// HandleLive serves the SSE snapshot stream for one satellite.
// GET /api/v1/stream/live/{norad_id}?interval=5
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	noradID, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || noradID <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid norad_id")
		return
	}

	interval := h.config.DefaultInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		d, err := parseInterval(v)
		if err != nil || d < h.config.MinInterval || d > MaxInterval {
			httputil.WriteError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid interval parameter, must be between %s and %s", h.config.MinInterval, MaxInterval))
			return
		}
		interval = d
	}

	el, err := h.resolver.Resolve(r.Context(), noradID)
	if err != nil {
		if errors.Is(err, tle.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Warn("stream element lookup failed", "norad_id", noradID, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "element set unavailable")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if verdict := h.limiter.admit(ip); verdict != admitted {
		metrics.IncSSERejected(verdict.String())
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"limit", verdict.String(),
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.SSEStreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"norad_id", noradID,
		"interval", interval.String(),
		"active_streams", h.limiter.active(),
	)

	var sent int64
	defer func() {
		h.limiter.release(ip)
		metrics.SSEStreamClosed()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"norad_id", noradID,
			"snapshots", sent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		logger:  h.logger,
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(3000 + rand.Intn(4000)); err != nil {
		return
	}

	meta := metadataMessage{
		Type:            "metadata",
		NoradID:         el.NORADID,
		Name:            el.Name,
		TLEEpoch:        el.Epoch().UTC().Format(time.RFC3339),
		IntervalSeconds: interval.Seconds(),
	}
	if err := c.sendJSON(meta); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	send := func() error {
		msg := snapshotMessage{Type: "snapshot", NoradID: el.NORADID, Snapshot: h.live.Live(ctx, el)}
		if err := c.sendJSON(msg); err != nil {
			return err
		}
		sent++
		return nil
	}

	if err := send(); err != nil {
		h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := send(); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type            string  `json:"type"`
	NoradID         int     `json:"norad_id"`
	Name            string  `json:"name,omitempty"`
	TLEEpoch        string  `json:"tle_epoch"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

type snapshotMessage struct {
	Type    string `json:"type"`
	NoradID int    `json:"norad_id"`
	orbit.Snapshot
}
