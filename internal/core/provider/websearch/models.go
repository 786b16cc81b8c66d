package websearch

// searchResponse mirrors the custom-search API reply.
type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Mime    string `json:"mime"`
}

// source is a scored search hit before conversion into a citation.
type source struct {
	URL       string
	Title     string
	Snippet   string
	Relevance float64
}
