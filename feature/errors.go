package feature

import "errors"

// Sentinel errors returned by Vector operations. Call sites wrap these
// with context; match with errors.Is.
var (
	ErrDuplicateFeature = errors.New("feature already exists")
	ErrFeatureNotFound  = errors.New("feature not found")
	ErrIndexOutOfRange  = errors.New("feature index out of range")
	ErrSizeMismatch     = errors.New("feature size mismatch")
	ErrEmptyFeature     = errors.New("feature values must not be empty")
)
