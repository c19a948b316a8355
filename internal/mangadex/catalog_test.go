package mangadex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangasync/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop())
}

const mangaListBody = `{
	"result": "ok",
	"data": [
		{
			"id": "title-1",
			"attributes": {
				"title": {"ja-ro": "Shingeki no Kyojin"},
				"altTitles": [{"en": "Attack on Titan"}, {"ru": "Атака титанов"}],
				"description": {"en": "Humanity fights."},
				"status": "hiatus",
				"year": 2009,
				"tags": [
					{"attributes": {"name": {"en": "Action"}, "group": "genre"}},
					{"attributes": {"name": {"en": "Military"}, "group": "theme"}},
					{"attributes": {"name": {"en": "Drama"}, "group": "genre"}}
				]
			},
			"relationships": [
				{"type": "author", "attributes": {"name": "Isayama Hajime"}},
				{"type": "cover_art", "attributes": {"fileName": "cover.jpg"}}
			]
		},
		{
			"id": "title-2",
			"attributes": {
				"title": {},
				"altTitles": [],
				"description": {},
				"status": "something-new",
				"tags": []
			},
			"relationships": []
		}
	],
	"total": 2
}`

func TestPopularTitles_Normalization(t *testing.T) {
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/manga", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Write([]byte(mangaListBody))
	})

	titles, err := c.PopularTitles(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, titles, 2)

	assert.Equal(t, []string{"desc"}, gotQuery["order[followedCount]"])
	assert.Equal(t, []string{"100"}, gotQuery["limit"])
	assert.ElementsMatch(t, []string{"author", "artist", "cover_art"}, gotQuery["includes[]"])

	m := titles[0]
	assert.Equal(t, "title-1", m.SourceID)
	// no English title, so the romanized Japanese one wins
	assert.Equal(t, "Shingeki no Kyojin", m.Title)
	assert.Equal(t, []string{"Attack on Titan", "Атака титанов"}, m.AltTitles)
	assert.Equal(t, "Isayama Hajime", m.Author)
	assert.Equal(t, models.UnknownPerson, m.Artist)
	assert.Equal(t, "Humanity fights.", m.Description)
	// only the "genre" grouping counts
	assert.Equal(t, []string{"Action", "Drama"}, m.Genres)
	assert.Equal(t, models.StatusHiatus, m.Status)
	assert.Equal(t, "https://uploads.mangadex.org/covers/title-1/cover.jpg", m.CoverURL)
	assert.Equal(t, 2009, m.Year)

	// degenerate record: no locales at all, unrecognized status, no cover
	m2 := titles[1]
	assert.Equal(t, "Unknown", m2.Title)
	assert.Equal(t, models.UnknownPerson, m2.Author)
	assert.Equal(t, models.StatusOngoing, m2.Status)
	assert.Equal(t, "", m2.CoverURL)
}

func TestSearch_SetsTitleQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "one piece", r.URL.Query().Get("title"))
		w.Write([]byte(`{"result":"ok","data":[],"total":0}`))
	})

	out, err := c.Search(context.Background(), "one piece", 20)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTitleChapters_FiltersAndOrders(t *testing.T) {
	body := `{
		"result": "ok",
		"data": [
			{"id": "ch-1", "attributes": {"chapter": "1", "title": "Start", "pages": 40, "publishAt": "2020-01-01T00:00:00Z"}},
			{"id": "ch-2", "attributes": {"chapter": "1.5", "title": "", "pages": 0, "publishAt": "2020-02-01T00:00:00Z"}},
			{"id": "ch-3", "attributes": {"chapter": "10.5", "title": "Side story", "pages": 12, "publishAt": "2020-03-01T00:00:00Z"}},
			{"id": "ch-4", "attributes": {"chapter": "", "title": "Oneshot", "pages": 8, "publishAt": "2020-04-01T00:00:00Z"}}
		]
	}`
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/manga/title-1/feed", r.URL.Path)
		gotQuery = r.URL.Query()
		w.Write([]byte(body))
	})

	chapters, err := c.TitleChapters(context.Background(), "title-1", 50)
	require.NoError(t, err)

	// ordering is requested from the source, not sorted in process
	assert.Equal(t, []string{"asc"}, gotQuery["order[chapter]"])
	assert.Equal(t, []string{"en"}, gotQuery["translatedLanguage[]"])
	assert.Equal(t, []string{"50"}, gotQuery["limit"])

	// the zero-page chapter never becomes a record
	require.Len(t, chapters, 3)
	assert.Equal(t, "ch-1", chapters[0].SourceID)
	assert.Equal(t, 1.0, chapters[0].Number)
	assert.Equal(t, "ch-3", chapters[1].SourceID)
	assert.Equal(t, 10.5, chapters[1].Number)
	assert.Equal(t, "ch-4", chapters[2].SourceID)
	assert.Equal(t, 0.0, chapters[2].Number)
	assert.Equal(t, "Oneshot", chapters[2].Title)
}

func TestListManga_PropagatesStatusErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := c.PopularTitles(context.Background(), 10)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}
