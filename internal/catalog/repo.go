package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mangasync/pkg/models"
)

// Repo owns the titles and chapters collections. All reconciliation goes
// through the source_id unique keys, so concurrent writers degrade to
// last-write-wins on titles and "already imported" on chapters.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// UpsertManga inserts or updates one title keyed by its external source id
// and returns the internal id. The internal id and total_chapters survive
// updates; last_synced_at is refreshed on every call.
func (r *Repo) UpsertManga(ctx context.Context, m models.Manga) (string, error) {
	altJSON, err := json.Marshal(emptyIfNil(m.AltTitles))
	if err != nil {
		return "", fmt.Errorf("marshal alt titles for %s: %w", m.SourceID, err)
	}
	genresJSON, err := json.Marshal(emptyIfNil(m.Genres))
	if err != nil {
		return "", fmt.Errorf("marshal genres for %s: %w", m.SourceID, err)
	}

	syncedAt := m.LastSyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO manga (id, source_id, title, alt_titles, author, artist,
		                   description, genres, status, cover_url, rating, year,
		                   total_chapters, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(source_id) DO UPDATE SET
		  title = excluded.title,
		  alt_titles = excluded.alt_titles,
		  author = excluded.author,
		  artist = excluded.artist,
		  description = excluded.description,
		  genres = excluded.genres,
		  status = excluded.status,
		  cover_url = excluded.cover_url,
		  rating = excluded.rating,
		  year = excluded.year,
		  last_synced_at = excluded.last_synced_at
	`,
		uuid.NewString(), m.SourceID, m.Title, string(altJSON), m.Author, m.Artist,
		m.Description, string(genresJSON), m.Status, m.CoverURL,
		models.ClampRating(m.Rating), m.Year, syncedAt,
	)
	if err != nil {
		return "", fmt.Errorf("upsert manga %s: %w", m.SourceID, err)
	}

	var id string
	row := r.DB.QueryRowContext(ctx, `SELECT id FROM manga WHERE source_id = ?`, m.SourceID)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("read back manga id for %s: %w", m.SourceID, err)
	}
	return id, nil
}

// ChapterExists reports whether a chapter with the given external id was
// imported before. Existence only; chapters are never diffed or re-imported.
func (r *Repo) ChapterExists(ctx context.Context, sourceID string) (bool, error) {
	var one int
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM chapters WHERE source_id = ?`, sourceID)
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("chapter exists %s: %w", sourceID, err)
	}
	return true, nil
}

// InsertChapter stores a newly imported chapter. A duplicate external id is
// a benign race with another run and is silently ignored.
func (r *Repo) InsertChapter(ctx context.Context, ch models.Chapter) error {
	pagesJSON, err := json.Marshal(emptyIfNil(ch.Pages))
	if err != nil {
		return fmt.Errorf("marshal pages for %s: %w", ch.SourceID, err)
	}

	id := ch.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO chapters (id, manga_id, source_id, number, title, published_at, pages)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO NOTHING
	`, id, ch.MangaID, ch.SourceID, ch.Number, ch.Title, ch.PublishedAt, string(pagesJSON))
	if err != nil {
		return fmt.Errorf("insert chapter %s: %w", ch.SourceID, err)
	}
	return nil
}

// RefreshTotalChapters recomputes a title's chapter count from local rows.
// The source's self-reported count includes locales we never import, so the
// local count is authoritative.
func (r *Repo) RefreshTotalChapters(ctx context.Context, mangaID string) (int, error) {
	var n int
	row := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters WHERE manga_id = ?`, mangaID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count chapters for %s: %w", mangaID, err)
	}

	if _, err := r.DB.ExecContext(ctx,
		`UPDATE manga SET total_chapters = ? WHERE id = ?`, n, mangaID); err != nil {
		return 0, fmt.Errorf("update total chapters for %s: %w", mangaID, err)
	}
	return n, nil
}

const mangaColumns = `id, source_id, title, alt_titles, author, artist,
	description, genres, status, cover_url, rating, year, total_chapters, last_synced_at`

func (r *Repo) GetManga(ctx context.Context, id string) (*models.Manga, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+mangaColumns+` FROM manga WHERE id = ?`, id)
	m, err := scanManga(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan manga %s: %w", id, err)
	}
	return m, nil
}

type ListQuery struct {
	Q      string   // keyword search in title/author
	Genres []string // any-match
	Status string
	Limit  int
	Offset int
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Manga, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Manga, 0, q.Limit)
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// GetChapter loads one chapter by internal id, including the import-time
// page snapshot.
func (r *Repo) GetChapter(ctx context.Context, id string) (*models.Chapter, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, manga_id, source_id, number, title, published_at, pages
		FROM chapters WHERE id = ?
	`, id)

	ch, err := scanChapter(row, true)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chapter %s: %w", id, err)
	}
	return ch, nil
}

// ListChapters returns a title's chapters in ascending chapter-number order.
// Page snapshots are omitted; readers resolve pages per chapter.
func (r *Repo) ListChapters(ctx context.Context, mangaID string) ([]models.Chapter, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, manga_id, source_id, number, title, published_at, '[]'
		FROM chapters WHERE manga_id = ?
		ORDER BY number ASC
	`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []models.Chapter
	for rows.Next() {
		ch, err := scanChapter(rows, false)
		if err != nil {
			return nil, fmt.Errorf("list chapters scan: %w", err)
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManga(row rowScanner) (*models.Manga, error) {
	var (
		m          models.Manga
		altJSON    string
		genresJSON string
		year       sql.NullInt64
		syncedAt   sql.NullTime
	)

	if err := row.Scan(
		&m.ID, &m.SourceID, &m.Title, &altJSON, &m.Author, &m.Artist,
		&m.Description, &genresJSON, &m.Status, &m.CoverURL, &m.Rating,
		&year, &m.TotalChapters, &syncedAt,
	); err != nil {
		return nil, err
	}

	if year.Valid {
		m.Year = int(year.Int64)
	}
	if syncedAt.Valid {
		m.LastSyncedAt = syncedAt.Time
	}
	_ = json.Unmarshal([]byte(altJSON), &m.AltTitles)
	_ = json.Unmarshal([]byte(genresJSON), &m.Genres)
	return &m, nil
}

func scanChapter(row rowScanner, withPages bool) (*models.Chapter, error) {
	var (
		ch          models.Chapter
		publishedAt sql.NullTime
		pagesJSON   string
	)

	if err := row.Scan(
		&ch.ID, &ch.MangaID, &ch.SourceID, &ch.Number, &ch.Title, &publishedAt, &pagesJSON,
	); err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		ch.PublishedAt = publishedAt.Time
	}
	if withPages {
		_ = json.Unmarshal([]byte(pagesJSON), &ch.Pages)
	}
	return &ch, nil
}

// buildListSQL builds either COUNT(*) or SELECT list.
// genres filter is "any-match" by doing LIKE searches inside stored JSON text.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + mangaColumns + ` FROM manga`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM manga`
	}

	var where []string
	var args []any

	if strings.TrimSpace(q.Q) != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)")
		kw := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		args = append(args, kw, kw)
	}

	if strings.TrimSpace(q.Status) != "" {
		where = append(where, "LOWER(status) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Status)))
	}

	if len(q.Genres) > 0 {
		var genreOr []string
		for _, g := range q.Genres {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			genreOr = append(genreOr, "LOWER(genres) LIKE ?")
			args = append(args, `%`+strings.ToLower(g)+`%`)
		}
		if len(genreOr) > 0 {
			where = append(where, "("+strings.Join(genreOr, " OR ")+")")
		}
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY title ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
