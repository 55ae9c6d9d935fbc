package client

// Book is the minimal catalog record.
type Book struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	CoverURL string `json:"cover_url,omitempty"`
}

// BookDetail is the enriched detail payload. Fields beyond Book are
// best-effort: degraded fallback endpoints leave them empty.
type BookDetail struct {
	Book

	PublishYear int      `json:"publish_year,omitempty"`
	Publishers  []string `json:"publishers,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Summary is an AI-generated book summary.
type Summary struct {
	ISBN          string `json:"isbn"`
	Summary       string `json:"summary"`
	GeneratedAt   string `json:"generated_at,omitempty"`
	SummaryLength int    `json:"summary_length,omitempty"`
}

// Stats are catalog-wide aggregates.
type Stats struct {
	TotalBooks    int `json:"total_books"`
	UniqueAuthors int `json:"unique_authors"`
}

// BookUpdate carries the mutable book fields for UpdateBook. Nil fields
// are left unchanged.
type BookUpdate struct {
	Title  *string `json:"title,omitempty"`
	Author *string `json:"author,omitempty"`
}
