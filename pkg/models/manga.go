package models

import (
	"strings"
	"time"
)

// Lifecycle status values. Stored lowercase; anything the source sends that
// we don't recognize normalizes to StatusOngoing.
const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusHiatus    = "hiatus"
	StatusCancelled = "cancelled"
)

// UnknownPerson is the sentinel for a missing author or artist.
const UnknownPerson = "Unknown"

// Manga is the normalized, internal form of one catalog title.
//
// The external source is mapped into this structure first, then we write to
// the DB from this representation. SourceID is the reconciliation key: there
// is exactly one Manga row per external source identifier.
type Manga struct {
	ID            string    `json:"id"`                   // internal id (uuid)
	SourceID      string    `json:"source_id"`            // external catalog id, immutable
	Title         string    `json:"title"`                // main title
	AltTitles     []string  `json:"alt_titles,omitempty"` // alternative titles
	Author        string    `json:"author"`
	Artist        string    `json:"artist"`
	Description   string    `json:"description"`
	Genres        []string  `json:"genres"`         // genre-group tags only
	Status        string    `json:"status"`         // see Status* constants
	CoverURL      string    `json:"cover_url"`      // stable cover endpoint, safe to persist
	Rating        float64   `json:"rating"`         // bounded to [0, 10]
	Year          int       `json:"year,omitempty"` // publication year, 0 = unknown
	TotalChapters int       `json:"total_chapters"` // count of local chapter rows
	LastSyncedAt  time.Time `json:"last_synced_at"`
}

// Chapter is one chapter of one Manga. A chapter row is created once per
// external chapter and never re-imported: an existing SourceID means the row
// is left untouched even if the source's data changed.
type Chapter struct {
	ID          string    `json:"id"`        // internal id (uuid)
	MangaID     string    `json:"manga_id"`  // owning Manga.ID
	SourceID    string    `json:"source_id"` // external chapter id, globally unique
	Number      float64   `json:"number"`    // fractional for side chapters ("10.5")
	Title       string    `json:"title,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	// Pages is the snapshot captured at import time. It is a degraded-mode
	// fallback only: the delivery network's page URLs expire, so readers get
	// fresh URLs resolved at read time and this list is served only when that
	// resolution fails.
	Pages []Page `json:"pages,omitempty"`
}

// Page is one page image: ordinal position plus its URL.
type Page struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// NormalizeStatus maps the source's status string onto our fixed set.
// Unrecognized or empty input defaults to ongoing rather than failing the
// record.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return StatusCompleted
	case "hiatus":
		return StatusHiatus
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusOngoing
	}
}

// ClampRating bounds a rating to the valid [0, 10] range.
func ClampRating(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 10 {
		return 10
	}
	return r
}
