package sim

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrEpisodeOver   = errors.New("episode is over, reset required")
	ErrBadPayload    = errors.New("unexpected collision payload")
)
