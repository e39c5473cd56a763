package domain

import (
	"errors"
	"fmt"
)

// Extraction failures. Wrap with fmt.Errorf("%w: ...", domain.ErrXxx) and
// classify with errors.Is.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("map not found")
	ErrStatsNotFound  = errors.New("player count data not found")
	ErrTimeout        = errors.New("timeout")
	ErrNetworkFailure = errors.New("network failure")
	ErrUnknown        = errors.New("scrape failed")
)

var (
	ErrMapCodeRequired = fmt.Errorf("%w: map code is required", ErrInvalidInput)
	ErrInvalidMapCode  = fmt.Errorf("%w: expected format XXXX-XXXX-XXXX", ErrInvalidInput)
)
