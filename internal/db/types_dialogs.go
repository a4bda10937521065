package db

// Opener is a conversation starter with weighted follow-up options
type Opener struct {
	ID              int64            `json:"id"`
	Text            string           `json:"text"`
	Context         string           `json:"context"`
	ContinueOptions []ContinueOption `json:"continue_options"`
}

// ContinueOption is a weighted reply that can follow an opener
type ContinueOption struct {
	ID       int64   `json:"id"`
	Text     string  `json:"text"`
	Weight   float64 `json:"weight"`
	OpenerID int64   `json:"opener_id"`
}
