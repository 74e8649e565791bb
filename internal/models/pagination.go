package models

// PaginationType identifies how a listing site enumerates pages
type PaginationType string

const (
	PaginationTypeNone       PaginationType = "none"
	PaginationTypeQueryParam PaginationType = "query_param"
	PaginationTypePath       PaginationType = "path"
	PaginationTypeNextButton PaginationType = "next_button"
)

// DefaultMaxPages caps pagination expansion when a config does not set one
const DefaultMaxPages = 100

// PaginationConfig declares how to enumerate pages of a listing site
type PaginationConfig struct {
	Type       PaginationType `json:"type"`
	ParamName  string         `json:"param_name,omitempty"`  // query_param: page|p|offset|start etc.
	Selector   string         `json:"selector,omitempty"`    // next_button: CSS selector of the next link
	URLPattern string         `json:"url_pattern,omitempty"` // path: matched numeric segment pattern
	MaxPages   int            `json:"max_pages,omitempty"`
	StartPage  int            `json:"start_page,omitempty"`
}

// EffectiveMaxPages returns MaxPages or the default cap
func (c *PaginationConfig) EffectiveMaxPages() int {
	if c.MaxPages > 0 {
		return c.MaxPages
	}
	return DefaultMaxPages
}

// EffectiveStartPage returns StartPage or 1
func (c *PaginationConfig) EffectiveStartPage() int {
	if c.StartPage > 0 {
		return c.StartPage
	}
	return 1
}
