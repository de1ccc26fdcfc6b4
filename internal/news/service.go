package news

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"stockagent/internal/alert"
)

// Service polls RSS feeds and stores items matching active alerts.
type Service struct {
	feeds  []FeedConfig
	alerts *alert.Store
	store  *Store
	parser *gofeed.Parser
}

func NewService(feeds []FeedConfig, alerts *alert.Store, store *Store) *Service {
	if len(feeds) == 0 {
		feeds = DefaultFeeds()
	}
	return &Service{feeds: feeds, alerts: alerts, store: store, parser: gofeed.NewParser()}
}

// FetchAll processes every enabled feed and returns how many new items
// were stored. Feed failures are logged and skipped; one broken feed
// never stops the others.
func (s *Service) FetchAll(ctx context.Context) int {
	keywords, err := s.alertKeywords(ctx)
	if err != nil {
		log.Error().Err(err).Msg("news: loading alert keywords")
		return 0
	}
	if len(keywords) == 0 {
		log.Info().Msg("news: no active alert keywords, skipping fetch")
		return 0
	}

	total := 0
	for _, feed := range s.feeds {
		if !feed.Enabled {
			continue
		}
		n, err := s.processFeed(ctx, feed, keywords)
		if err != nil {
			log.Error().Err(err).Str("feed", feed.Name).Msg("news: feed fetch failed")
			continue
		}
		total += n
	}
	log.Info().Int("stored", total).Msg("news: fetch complete")
	return total
}

// Run polls feeds on interval until ctx is canceled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FetchAll(ctx)
		}
	}
}

func (s *Service) processFeed(ctx context.Context, feed FeedConfig, keywords map[string]struct{}) (int, error) {
	parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, entry := range parsed.Items {
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		matched := MatchKeywords(title, entry.Description, keywords)
		if len(matched) == 0 {
			continue
		}

		item := Item{
			Title:           title,
			Description:     entry.Description,
			Link:            link,
			Source:          feed.Name,
			KeywordsMatched: strings.Join(matched, ","),
			IsRelevant:      true,
		}
		if entry.PublishedParsed != nil {
			t := entry.PublishedParsed.UTC()
			item.PublishedDate = &t
		}

		ok, err := s.store.Insert(ctx, item)
		if err != nil {
			log.Error().Err(err).Str("link", link).Msg("news: storing item")
			continue
		}
		if ok {
			stored++
			log.Debug().Str("title", truncate(title, 100)).Strs("matched", matched).Msg("news: stored")
		}
	}
	return stored, nil
}

// stopwords are message words too generic to be useful as news filters.
var stopwords = map[string]struct{}{
	"ALERT": {}, "PRICE": {}, "ABOVE": {}, "BELOW": {}, "WHEN": {}, "STOCK": {},
}

// alertKeywords collects symbols plus meaningful message words from
// active alerts.
func (s *Service) alertKeywords(ctx context.Context) (map[string]struct{}, error) {
	alerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	keywords := make(map[string]struct{})
	for _, a := range alerts {
		if a.Symbol != "" {
			keywords[a.Symbol] = struct{}{}
		}
		for _, word := range strings.Fields(a.Message) {
			w := strings.ToUpper(strings.Trim(word, ".,;:!?\"'()"))
			if len(w) <= 3 {
				continue
			}
			if _, skip := stopwords[w]; skip {
				continue
			}
			keywords[w] = struct{}{}
		}
	}
	log.Debug().Int("keywords", len(keywords)).Int("alerts", len(alerts)).Msg("news: keyword set built")
	return keywords, nil
}

// MatchKeywords returns the sorted subset of keywords present in the
// title or description, case-insensitively.
func MatchKeywords(title, description string, keywords map[string]struct{}) []string {
	text := strings.ToUpper(title + " " + description)
	var matched []string
	for kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	sort.Strings(matched)
	return matched
}
