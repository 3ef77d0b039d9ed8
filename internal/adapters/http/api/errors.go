package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrRender      = errors.New("dashboard render failed")
	ErrUnavailable = errors.New("dashboard unavailable")
)
