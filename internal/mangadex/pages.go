package mangadex

import (
	"context"
	"fmt"
	"strings"

	"mangasync/pkg/models"
)

type atHomeResponse struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash string   `json:"hash"`
		Data []string `json:"data"`
	} `json:"chapter"`
}

// ChapterPages asks the delivery network for a node serving the chapter and
// reconstructs the ordered page URLs as {baseUrl}/data/{hash}/{file}.
//
// The base URL embeds a session-scoped token tied to that node, so the
// result is only valid for a limited window. It must be resolved at read
// time and never stored as permanent; the import-time snapshot kept on the
// chapter row is a stale fallback, not a substitute for this call.
func (c *Client) ChapterPages(ctx context.Context, chapterSourceID string) ([]models.Page, error) {
	var resp atHomeResponse
	if err := c.getJSON(ctx, "/at-home/server/"+chapterSourceID, nil, &resp); err != nil {
		return nil, err
	}

	if resp.BaseURL == "" || resp.Chapter.Hash == "" {
		return nil, fmt.Errorf("mangadex: at-home response for %s missing baseUrl or hash", chapterSourceID)
	}

	base := strings.TrimRight(resp.BaseURL, "/")
	pages := make([]models.Page, 0, len(resp.Chapter.Data))
	for i, file := range resp.Chapter.Data {
		pages = append(pages, models.Page{
			Index: i,
			URL:   fmt.Sprintf("%s/data/%s/%s", base, resp.Chapter.Hash, file),
		})
	}
	return pages, nil
}
