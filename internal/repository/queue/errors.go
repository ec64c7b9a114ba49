package queue

import "errors"

var (
	ErrTrackNotFound = errors.New("track not found")
)
