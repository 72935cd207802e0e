package models

import (
	"fmt"
	"time"
)

// Rating bounds for feedback.
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is a user rating of an agent response.
type Feedback struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the rating range and that prompt and response are present.
func (f *Feedback) Validate() error {
	if f.Prompt == "" || f.Response == "" {
		return fmt.Errorf("%w: prompt and response are required", ErrValidation)
	}
	if f.Rating < MinRating || f.Rating > MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, MinRating, MaxRating)
	}
	return nil
}
