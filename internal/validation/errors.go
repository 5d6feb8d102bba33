package validation

import "fmt"

// ValidationFailure is returned when an artifact's quality score falls
// below the configured threshold. It does not halt execution by itself.
type ValidationFailure struct {
	TaskID    string
	Quality   float64
	Threshold float64
	Issues    int
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed for task %s: quality %.1f below threshold %.1f (%d issues)",
		e.TaskID, e.Quality, e.Threshold, e.Issues)
}
