package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/orbitscan/internal/metrics"
)

// writeTimeout bounds each individual write on a stream.
const writeTimeout = 30 * time.Second

// client manages a single SSE connection's write operations.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

func (c *client) write(format string, args ...any) error {
	c.extendDeadline()
	if _, err := fmt.Fprintf(c.w, format, args...); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// sendJSON marshals v and sends it as an SSE "data:" message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := c.write("data: %s\n\n", data); err != nil {
		return err
	}
	metrics.IncSSEEvent()
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(ms int) error {
	return c.write("retry: %d\n\n", ms)
}

// sendKeepalive sends an SSE comment line.
func (c *client) sendKeepalive() error {
	return c.write(":\n\n")
}
