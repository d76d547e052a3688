package types

import "time"

// SearchQuery holds the parameters of a dictionary search
type SearchQuery struct {
	Query    string   `json:"query"`
	FromLang string   `json:"from_lang"`
	ToLang   string   `json:"to_lang"`
	Types    []string `json:"types"`
	Tags     []string `json:"tags"`
	Status   string   `json:"status"`

	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"offset"`
	Limit   int `json:"limit"`

	// MaxRelations caps relations per type per entry. 0 defers to the configured limit.
	MaxRelations int `json:"max_relations"`
	// MaxContentItems truncates related entries' content. 0 defers to the configured limit.
	MaxContentItems int `json:"max_content_items"`
}

// RelationsQuery filters the relations loaded for a set of root entries
type RelationsQuery struct {
	ToLang          string
	Types           []string
	Tags            []string
	Status          string
	MaxPerType      int
	MaxContentItems int
}

// SearchResults is a page of search results
type SearchResults struct {
	Entries    []Entry `json:"entries"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// Suggestion is an autocomplete result
type Suggestion struct {
	Content Strings `json:"content"`
}

// GlossaryWord is a headword listed in a glossary page
type GlossaryWord struct {
	ID      int64   `db:"id" json:"id"`
	GUID    string  `db:"guid" json:"guid"`
	Content Strings `db:"content" json:"content"`
	Total   int     `db:"total" json:"-"`
}

// GlossaryResults is a page of glossary words for one initial
type GlossaryResults struct {
	Words      []GlossaryWord `json:"words"`
	Initial    string         `json:"initial"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// Comment is a user suggestion attached to an entry pair
type Comment struct {
	ID        int64     `db:"id" json:"id"`
	FromGUID  string    `db:"from_guid" json:"from_guid"`
	ToGUID    string    `db:"to_guid" json:"to_guid"`
	Comments  string    `db:"comments" json:"comments"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Stats summarizes the dictionary contents
type Stats struct {
	Entries   int            `json:"entries"`
	Relations int            `json:"relations"`
	Pending   int            `json:"pending"`
	Languages map[string]int `json:"languages"`
}
