package reporting

import (
	"autodialer/internal/calls"
	"autodialer/internal/numbers"
)

// Summary is the dashboard view of the number set and call history.
type Summary struct {
	Numbers numbers.Counts     `json:"numbers"`
	Calls   calls.StatusCounts `json:"calls"`

	// Finished is the number of calls in a terminal status.
	Finished int `json:"finished"`
	// CompletionRate is completed / finished, 0 when nothing finished yet.
	CompletionRate float64 `json:"completion_rate"`
}
