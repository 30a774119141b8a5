package trainer

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid trainer config")
	ErrNilRoom       = errors.New("room is required")
)
