package models

import (
	"encoding/json"
	"time"
)

// ScraperType selects the fetch strategy for a web source
type ScraperType string

const (
	ScraperTypeHTTP    ScraperType = "http"
	ScraperTypeBrowser ScraperType = "browser"
	ScraperTypeHybrid  ScraperType = "hybrid"
)

// AuthType identifies how requests to a web source are authenticated
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeCookie AuthType = "cookie"
	AuthTypeHeader AuthType = "header"
	AuthTypeBasic  AuthType = "basic"
)

// WebSource describes a scrape target: base URL (or an ordered URL list),
// fetch mode, auth, rate limits and pagination behavior.
type WebSource struct {
	ID               string      `json:"id" badgerhold:"key"`
	Name             string      `json:"name"`
	BaseURL          string      `json:"base_url" validate:"required,url"`
	IsListMode       bool        `json:"is_list_mode"`
	URLList          []string    `json:"url_list,omitempty"`
	ScraperType      ScraperType `json:"scraper_type" validate:"oneof=http browser hybrid"`
	AuthType         AuthType    `json:"auth_type" validate:"oneof=none cookie header basic"`
	AuthConfig       string      `json:"auth_config,omitempty"` // opaque JSON, shape depends on AuthType
	RequestDelay     int         `json:"request_delay" validate:"gte=0"` // milliseconds between fetch starts
	MaxConcurrent    int         `json:"max_concurrent" validate:"gte=1,lte=10"`
	TimeoutSeconds   int         `json:"timeout_seconds,omitempty"`
	PaginationType   PaginationType `json:"pagination_type"`
	PaginationConfig string      `json:"pagination_config,omitempty"` // serialized PaginationConfig
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// AuthCredentials is the decoded shape of WebSource.AuthConfig
type AuthCredentials struct {
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Cookies  map[string]string `json:"cookies,omitempty"`
}

// GetAuthCredentials decodes AuthConfig. Returns an empty value when unset.
func (w *WebSource) GetAuthCredentials() (*AuthCredentials, error) {
	if w.AuthConfig == "" {
		return &AuthCredentials{}, nil
	}
	var creds AuthCredentials
	if err := json.Unmarshal([]byte(w.AuthConfig), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// GetPaginationConfig decodes PaginationConfig. Returns nil when unset.
func (w *WebSource) GetPaginationConfig() (*PaginationConfig, error) {
	if w.PaginationConfig == "" {
		return nil, nil
	}
	var cfg PaginationConfig
	if err := json.Unmarshal([]byte(w.PaginationConfig), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
