package importer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Importer *Importer
}

func NewHandler(imp *Importer) *Handler {
	return &Handler{Importer: imp}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.trigger)      // POST /import
	rg.GET("/status", h.status) // GET /import/status
}

// trigger starts a run in the background and acknowledges immediately.
func (h *Handler) trigger(c *gin.Context) {
	if err := h.Importer.TriggerAsync(); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "import already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start import"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Importer.Status())
}
