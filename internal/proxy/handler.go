package proxy

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler relays individual image fetches that pass the gate. Denials and
// upstream failures are explicit JSON errors, never silent empty responses.
type Handler struct {
	Gate   Gate
	Client *http.Client
	Log    zerolog.Logger
}

func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		Client: &http.Client{Timeout: 20 * time.Second},
		Log:    log,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/image", h.image) // GET /proxy/image?url=...
}

func (h *Handler) image(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url parameter"})
		return
	}

	if err := h.Gate.Check(raw); err != nil {
		h.Log.Warn().Err(err).Str("url", raw).Msg("image proxy denied")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, raw, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		h.Log.Warn().Err(err).Str("url", raw).Msg("image fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "upstream fetch failed",
			"status": resp.StatusCode,
		})
		return
	}

	c.Header("Content-Type", resp.Header.Get("Content-Type"))
	c.Header("Cache-Control", "public, max-age=3600")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.Log.Debug().Err(err).Str("url", raw).Msg("image relay interrupted")
	}
}
