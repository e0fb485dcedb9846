package track

import "errors"

// ErrGroupNotTracked is returned when an operation names a group id
// with no initialized filter behind it.
var ErrGroupNotTracked = errors.New("group not tracked")
