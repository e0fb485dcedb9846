package kalman

import "errors"

var (
	// ErrFilterNotInitialized is returned by Update before Initialize
	// has succeeded.
	ErrFilterNotInitialized = errors.New("filter not initialized")
	// ErrEmptyTemplate is returned by Initialize when the template
	// carries no features to derive a state layout from.
	ErrEmptyTemplate = errors.New("feature template must contain at least one feature")
)
