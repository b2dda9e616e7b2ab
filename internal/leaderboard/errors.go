package leaderboard

import "errors"

// ErrNotFound is returned when the referenced participant does not exist
var ErrNotFound = errors.New("participant not found")

// ErrEmptyName is returned when a registration carries a blank display name
var ErrEmptyName = errors.New("name is required")
