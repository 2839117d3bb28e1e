package httpdto

// CreatePollRequest is used for POST /v1/polls
type CreatePollRequest struct {
	Title   string   `json:"title" binding:"required"`
	Options []string `json:"options" binding:"required"`
}

// CastVoteRequest is used for PUT /v1/polls/:id/vote
type CastVoteRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}
