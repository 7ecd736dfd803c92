package entity

// Action tells what the expiry policy did with a submitted URL.
type Action string

const (
	// ActionCreated means no record existed and a new one was stored.
	ActionCreated Action = "created"
	// ActionRefreshed means the record was active; its window was moved to now.
	ActionRefreshed Action = "refreshed"
	// ActionRotated means the record had expired and got a new short code.
	ActionRotated Action = "rotated"
	// ActionUpdated is the batch form of ActionRefreshed and ActionRotated.
	ActionUpdated Action = "updated"
)

// ShortenResult is the outcome of shortening a single URL.
type ShortenResult struct {
	URL    *URL
	Action Action
}

// BatchResult is the outcome for one element of a batch submission.
type BatchResult struct {
	OriginalURL string
	ShortCode   string
	Action      Action
}

// DateCount is the number of active URLs created on one UTC calendar date.
type DateCount struct {
	Date  string // YYYY-MM-DD
	Count int
}

// ActiveStats summarizes the currently active URLs.
type ActiveStats struct {
	Total   int
	Groups  []DateCount
	Records []*URL
}
