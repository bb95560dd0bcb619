package stats

import "errors"

// ErrInvalidRange is returned when a date range ends before it starts.
var ErrInvalidRange = errors.New("invalid date range")
