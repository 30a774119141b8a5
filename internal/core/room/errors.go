package room

import "errors"

var (
	ErrInvalidBounds = errors.New("invalid room bounds")
	ErrDegenerate    = errors.New("room diagonal too small to normalize distances")
)
