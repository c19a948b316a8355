package mangadex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangasync/pkg/models"
)

type mangaListResponse struct {
	Result string      `json:"result"`
	Data   []mangaData `json:"data"`
	Total  int         `json:"total"`
}

type mangaData struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string   `json:"title"`
		AltTitles   []map[string]string `json:"altTitles"`
		Description map[string]string   `json:"description"`
		Status      string              `json:"status"`
		Year        int                 `json:"year"`
		Tags        []struct {
			Attributes struct {
				Name  map[string]string `json:"name"`
				Group string            `json:"group"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			Name     string `json:"name"`     // author / artist
			FileName string `json:"fileName"` // cover_art
		} `json:"attributes"`
	} `json:"relationships"`
}

type chapterFeedResponse struct {
	Result string `json:"result"`
	Data   []struct {
		ID         string `json:"id"`
		Attributes struct {
			Chapter   string    `json:"chapter"`
			Title     string    `json:"title"`
			Pages     int       `json:"pages"`
			PublishAt time.Time `json:"publishAt"`
		} `json:"attributes"`
	} `json:"data"`
}

// PopularTitles fetches up to limit titles ordered by follower count and
// returns them normalized.
func (c *Client) PopularTitles(ctx context.Context, limit int) ([]models.Manga, error) {
	q := listQuery(limit)
	q.Set("order[followedCount]", "desc")
	return c.listManga(ctx, q)
}

// Search fetches up to limit titles matching the given text.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]models.Manga, error) {
	q := listQuery(limit)
	q.Set("title", text)
	return c.listManga(ctx, q)
}

func listQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Add("contentRating[]", "safe")
	q.Add("contentRating[]", "suggestive")
	q.Add("includes[]", "author")
	q.Add("includes[]", "artist")
	q.Add("includes[]", "cover_art")
	return q
}

func (c *Client) listManga(ctx context.Context, q url.Values) ([]models.Manga, error) {
	var resp mangaListResponse
	if err := c.getJSON(ctx, "/manga", q, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Manga, 0, len(resp.Data))
	for _, item := range resp.Data {
		if item.ID == "" {
			continue
		}
		out = append(out, normalizeManga(item))
	}
	return out, nil
}

// TitleChapters fetches up to limit chapters for one title, requested
// pre-sorted ascending by chapter number so we never sort a multi-thousand
// chapter feed in process. Chapters with zero readable pages are dropped
// here: a chapter only exists for us if it has content.
func (c *Client) TitleChapters(ctx context.Context, titleSourceID string, limit int) ([]models.Chapter, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order[chapter]", "asc")
	q.Add("translatedLanguage[]", "en")
	q.Add("contentRating[]", "safe")
	q.Add("contentRating[]", "suggestive")

	var resp chapterFeedResponse
	if err := c.getJSON(ctx, "/manga/"+titleSourceID+"/feed", q, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Chapter, 0, len(resp.Data))
	for _, item := range resp.Data {
		if item.ID == "" || item.Attributes.Pages <= 0 {
			continue
		}
		out = append(out, models.Chapter{
			SourceID:    item.ID,
			Number:      parseChapterNumber(item.Attributes.Chapter),
			Title:       strings.TrimSpace(item.Attributes.Title),
			PublishedAt: item.Attributes.PublishAt,
		})
	}
	return out, nil
}

func normalizeManga(item mangaData) models.Manga {
	title := pickLocale(item.Attributes.Title)
	if title == "" {
		title = "Unknown"
	}

	altTitles := make([]string, 0, len(item.Attributes.AltTitles))
	for _, m := range item.Attributes.AltTitles {
		if at := pickLocale(m); at != "" && at != title {
			altTitles = appendIfMissing(altTitles, at)
		}
	}

	// Only tags in the "genre" grouping count as genres; themes, formats
	// and demographics are separate groupings upstream.
	genres := make([]string, 0, len(item.Attributes.Tags))
	for _, t := range item.Attributes.Tags {
		if t.Attributes.Group != "genre" {
			continue
		}
		if name := pickLocale(t.Attributes.Name); name != "" {
			genres = appendIfMissing(genres, name)
		}
	}

	author, artist, coverFile := "", "", ""
	for _, rel := range item.Relationships {
		switch rel.Type {
		case "author":
			if author == "" {
				author = strings.TrimSpace(rel.Attributes.Name)
			}
		case "artist":
			if artist == "" {
				artist = strings.TrimSpace(rel.Attributes.Name)
			}
		case "cover_art":
			if coverFile == "" {
				coverFile = rel.Attributes.FileName
			}
		}
	}
	if author == "" {
		author = models.UnknownPerson
	}
	if artist == "" {
		artist = models.UnknownPerson
	}

	coverURL := ""
	if coverFile != "" {
		coverURL = fmt.Sprintf("%s/%s/%s", coverBaseURL, item.ID, coverFile)
	}

	return models.Manga{
		SourceID:    item.ID,
		Title:       title,
		AltTitles:   altTitles,
		Author:      author,
		Artist:      artist,
		Description: pickLocale(item.Attributes.Description),
		Genres:      genres,
		Status:      models.NormalizeStatus(item.Attributes.Status),
		CoverURL:    coverURL,
		Year:        item.Attributes.Year,
	}
}

// pickLocale prefers English, then romanized Japanese, then whatever locale
// the source delivered first.
func pickLocale(m map[string]string) string {
	for _, lang := range []string{"en", "ja-ro"} {
		if v := strings.TrimSpace(m[lang]); v != "" {
			return v
		}
	}
	for _, v := range m {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseChapterNumber handles fractional numbers like "10.5" for side
// chapters. Oneshots come through with an empty chapter string and map to 0.
func parseChapterNumber(s string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}
