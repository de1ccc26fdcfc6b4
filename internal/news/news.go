package news

import "time"

// Item is a stored news headline that matched at least one alert keyword.
type Item struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Link            string     `json:"link"`
	PublishedDate   *time.Time `json:"published_date,omitempty"`
	Source          string     `json:"source,omitempty"`
	KeywordsMatched string     `json:"keywords_matched,omitempty"`
	IsRelevant      bool       `json:"is_relevant"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	Source   string
	Keywords []string
	Offset   int
	Limit    int
}

// FeedConfig describes one RSS feed to poll.
type FeedConfig struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// DefaultFeeds is the stock feed set polled when none are configured.
func DefaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: "Yahoo Finance", URL: "https://feeds.finance.yahoo.com/rss/2.0/headline", Enabled: true},
		{Name: "MarketWatch", URL: "https://feeds.marketwatch.com/marketwatch/marketpulse/", Enabled: true},
		{Name: "Reuters Business", URL: "https://www.reutersagency.com/feed/?best-topics=business-finance&post_type=best", Enabled: true},
	}
}
