package agent

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid agent configuration")
	ErrNilRoom       = errors.New("agent requires a room")
	ErrNilBody       = errors.New("agent requires a body")
	ErrNilTarget     = errors.New("agent requires goal and obstacle objects")
)
