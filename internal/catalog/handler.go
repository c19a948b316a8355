package catalog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mangasync/pkg/models"
)

// PageResolver resolves a fresh, ordered page list for a chapter's external
// id. Implemented by the mangadex client.
type PageResolver interface {
	ChapterPages(ctx context.Context, chapterSourceID string) ([]models.Page, error)
}

// Searcher runs a live text search against the external catalog.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]models.Manga, error)
}

type Handler struct {
	Repo     *Repo
	Resolver PageResolver
	Searcher Searcher
	Log      zerolog.Logger
}

func NewHandler(repo *Repo, resolver PageResolver, searcher Searcher, log zerolog.Logger) *Handler {
	return &Handler{Repo: repo, Resolver: resolver, Searcher: searcher, Log: log}
}

func (h *Handler) RegisterRoutes(manga, chapters *gin.RouterGroup) {
	manga.GET("", h.list)                      // GET /manga
	manga.GET("/:id", h.getByID)               // GET /manga/:id
	manga.GET("/:id/chapters", h.chapters)     // GET /manga/:id/chapters
	chapters.GET("/:id/pages", h.chapterPages) // GET /chapters/:id/pages
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}

	// genres=Action,Drama OR genres=Action&genres=Drama
	genres := c.QueryArray("genres")
	if len(genres) == 0 {
		if s := c.Query("genres"); s != "" {
			genres = strings.Split(s, ",")
		}
	}
	q.Genres = genres

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	m, err := h.Repo.GetManga(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) chapters(c *gin.Context) {
	id := c.Param("id")
	m, err := h.Repo.GetManga(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	chapters, err := h.Repo.ListChapters(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list chapters failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manga_id": id, "items": chapters})
}

// chapterPages serves a chapter's page list. Fresh resolution against the
// delivery network is authoritative; the import-time snapshot is served only
// when resolution fails, and a read only errors when neither is available.
func (h *Handler) chapterPages(c *gin.Context) {
	ch, err := h.Repo.GetChapter(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if ch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	source := "fresh"
	pages, err := h.Resolver.ChapterPages(c.Request.Context(), ch.SourceID)
	if err != nil {
		if len(ch.Pages) == 0 {
			h.Log.Error().Err(err).Str("chapter", ch.SourceID).
				Msg("page resolution failed and no snapshot stored")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pages unavailable"})
			return
		}
		h.Log.Warn().Err(err).Str("chapter", ch.SourceID).
			Msg("page resolution failed, serving import-time snapshot")
		pages = ch.Pages
		source = "snapshot"
	}

	meta := *ch
	meta.Pages = nil
	c.JSON(http.StatusOK, gin.H{
		"chapter": meta,
		"pages":   pages,
		"source":  source,
	})
}

// SearchLive proxies a text search straight to the external catalog. Results
// are normalized but never persisted.
func (h *Handler) SearchLive(c *gin.Context) {
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q parameter"})
		return
	}

	items, err := h.Searcher.Search(c.Request.Context(), text, parseInt(c.Query("limit"), 20))
	if err != nil {
		h.Log.Warn().Err(err).Str("q", text).Msg("live search failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
