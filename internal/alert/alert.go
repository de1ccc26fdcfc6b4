package alert

import "time"

// Alert is a user-configured trigger on a stock symbol.
type Alert struct {
	ID             int64      `json:"id"`
	Symbol         string     `json:"symbol"`
	AlertType      string     `json:"alert_type"` // price, volume, news
	Condition      string     `json:"condition"`  // above, below, equals
	ThresholdValue *float64   `json:"threshold_value,omitempty"`
	Message        string     `json:"message,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// CreateInput carries the fields accepted when creating an alert.
type CreateInput struct {
	Symbol         string   `json:"symbol"`
	AlertType      string   `json:"alert_type"`
	Condition      string   `json:"condition"`
	ThresholdValue *float64 `json:"threshold_value"`
	Message        string   `json:"message"`
	IsActive       *bool    `json:"is_active"`
}

// UpdateInput carries a partial update; nil fields stay untouched.
type UpdateInput struct {
	Symbol         *string  `json:"symbol"`
	AlertType      *string  `json:"alert_type"`
	Condition      *string  `json:"condition"`
	ThresholdValue *float64 `json:"threshold_value"`
	Message        *string  `json:"message"`
	IsActive       *bool    `json:"is_active"`
}

// Filter narrows List results.
type Filter struct {
	Symbol   string
	IsActive *bool
	Offset   int
	Limit    int
}
