package buildconf

import "errors"

var (
	// ErrUnknownMode indicates a build mode other than development or production
	ErrUnknownMode = errors.New("unknown build mode")
	// ErrMissingSection indicates a resolved configuration left a required section undefined
	ErrMissingSection = errors.New("missing configuration section")
	// ErrInvalidConfiguration indicates the resolved tree could not be decoded or is inconsistent
	ErrInvalidConfiguration = errors.New("invalid build configuration")
)
