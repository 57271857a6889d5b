package store

import "errors"

var (
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrTokenNotFound     = errors.New("token not found")
	ErrQueueEmpty        = errors.New("no waiting tokens")
	ErrInvalidTransition = errors.New("invalid token transition")
)
