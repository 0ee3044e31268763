package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultLevel  ResultType = "level"
	ResultLayout ResultType = "layout"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	List      string     `json:"list,omitempty"`
	Placement int        `json:"placement,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	FilterList string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexLevel(lv LevelRecord) error
	IndexLayout(l LayoutRecord) error
	DeleteLevel(id string) error
	DeleteLayout(id string) error
}

// LevelRecord is the data we index for a level.
type LevelRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Creator     string `json:"creator"`
	Verifier    string `json:"verifier"`
	Description string `json:"description"`
	List        string `json:"list"`
	Placement   int    `json:"placement"`
}

// LayoutRecord is the data we index for a workshop layout.
type LayoutRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Status      string `json:"status"`
}
