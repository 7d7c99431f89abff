package catalog

import "errors"

var (
	// ErrNoFetcher is returned when a Cache is refreshed without a Fetcher.
	ErrNoFetcher = errors.New("catalog: no fetcher configured")

	// ErrInvalidSchedule is returned for an unparseable refresh schedule.
	ErrInvalidSchedule = errors.New("catalog: invalid refresh schedule")
)
