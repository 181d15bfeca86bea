package analytics

import "errors"

var (
	// ErrInvalidFilter marks malformed date ranges or unsupported model
	// names. Filters are validated before any aggregation runs.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrDataUnavailable marks a failed or timed-out store query. An empty
	// but valid result set is not this error.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrPartialAggregation marks a report in which at least one
	// sub-analysis failed while others succeeded. The report's Degraded
	// list names the failed sections.
	ErrPartialAggregation = errors.New("partial aggregation")
)
