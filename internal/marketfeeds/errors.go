package marketfeeds

import "errors"

var (
	// ErrInvalidArgument is returned for nil or otherwise unusable inputs
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidConfiguration is returned when the feed configuration is inconsistent
	ErrInvalidConfiguration = errors.New("invalid mock feed configuration")
)
