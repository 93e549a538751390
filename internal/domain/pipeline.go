package domain

// PipelineResult is the output of the URL pipeline: a raw user-supplied URL
// normalized, optionally resolved through redirects, classified, and keyed
// for the result cache.
type PipelineResult struct {
	InputURL      string   `json:"input_url"`
	NormalizedURL string   `json:"normalized_url"`
	ResolvedURL   string   `json:"resolved_url"`
	Platform      string   `json:"platform"`
	ContentType   string   `json:"content_type"`
	ContentID     string   `json:"content_id,omitempty"`
	WasResolved   bool     `json:"was_resolved"`
	RedirectChain []string `json:"redirect_chain,omitempty"`
	CacheKey      string   `json:"cache_key"`

	// MayRequireCookie flags URL shapes that usually need an authenticated
	// cookie (stories, group posts) so the orchestrator can lease one up front.
	MayRequireCookie bool `json:"may_require_cookie"`
}
