package news

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockagent/internal/storage"
)

// ErrNotFound is returned when no news item has the requested id.
var ErrNotFound = errors.New("news item not found")

// Store persists matched news items.
type Store struct {
	db *storage.DB
}

func NewStore(db *storage.DB) *Store { return &Store{db: db} }

// Insert stores item unless its link is already known. Returns true when
// a row was written.
func (s *Store) Insert(ctx context.Context, item Item) (bool, error) {
	var exists int
	err := s.db.SQL.QueryRowContext(ctx,
		"SELECT 1 FROM news_items WHERE link = $1", item.Link).Scan(&exists)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("check news link: %w", err)
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO news_items
		(title, description, link, published_date, source, keywords_matched, is_relevant, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.db.SQL.ExecContext(ctx, q,
		truncate(item.Title, 500), truncate(item.Description, 2000), truncate(item.Link, 500),
		item.PublishedDate, item.Source, item.KeywordsMatched, item.IsRelevant, item.CreatedAt); err != nil {
		// A concurrent fetch may have won the unique-link race; treat
		// that as a duplicate, not a failure.
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return false, nil
		}
		return false, fmt.Errorf("insert news: %w", err)
	}
	return true, nil
}

// List returns relevant items newest first plus the unpaginated total.
func (s *Store) List(ctx context.Context, f Filter) ([]Item, int, error) {
	where := []string{"is_relevant = $1"}
	args := []any{true}
	if f.Source != "" {
		args = append(args, "%"+f.Source+"%")
		where = append(where, fmt.Sprintf("LOWER(source) LIKE LOWER($%d)", len(args)))
	}
	for _, kw := range f.Keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		args = append(args, "%"+kw+"%")
		where = append(where, fmt.Sprintf("UPPER(keywords_matched) LIKE $%d", len(args)))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.db.SQL.QueryRowContext(ctx, "SELECT COUNT(*) FROM news_items"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	q := selectItem + cond + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0, limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	row := s.db.SQL.QueryRowContext(ctx, selectItem+" WHERE id = $1", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// Sources lists the distinct feed names present in the store.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.SQL.QueryContext(ctx,
		"SELECT DISTINCT source FROM news_items WHERE source <> '' ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

const selectItem = `SELECT id, title, description, link, published_date,
	source, keywords_matched, is_relevant, created_at FROM news_items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var it Item
	var desc, source, keywords sql.NullString
	var published sql.NullTime
	err := row.Scan(&it.ID, &it.Title, &desc, &it.Link, &published,
		&source, &keywords, &it.IsRelevant, &it.CreatedAt)
	if err != nil {
		return Item{}, err
	}
	it.Description = desc.String
	it.Source = source.String
	it.KeywordsMatched = keywords.String
	if published.Valid {
		t := published.Time.UTC()
		it.PublishedDate = &t
	}
	return it, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
