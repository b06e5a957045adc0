package model

import "errors"

// Sentinel kinds shared by the domain packages and mapped to HTTP statuses by the API.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInactiveParticipant = errors.New("participant is inactive")
	ErrConflict            = errors.New("conflict")
)
