package app

import "errors"

var (
	// ErrSessionNotFound indicates a referenced reading session is absent.
	ErrSessionNotFound = errors.New("session not found")
	// ErrValidation indicates missing or malformed caller input.
	ErrValidation = errors.New("invalid input")
)
