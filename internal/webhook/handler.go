package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"medstaff/sync-service/internal/metrics"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// Handler adapts the Processor to an HTTP endpoint.
type Handler struct {
	processor *Processor
	metrics   *metrics.Collector
}

func NewHandler(processor *Processor, collector *metrics.Collector) *Handler {
	return &Handler{processor: processor, metrics: collector}
}

// Handle receives one webhook delivery. Signature first, parsing second:
// unauthenticated bodies are never parsed.
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := h.processor.VerifySignature(body, c.GetHeader(SignatureHeader)); err != nil {
		h.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		h.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	if err := h.processor.Process(c.Request.Context(), ev); err != nil {
		h.metrics.WebhookEvents.WithLabelValues("failed").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event not applied"})
		return
	}

	h.metrics.WebhookEvents.WithLabelValues("processed").Inc()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
