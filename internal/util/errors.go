package util

import "errors"

var (
	ErrStudentNotFound     = errors.New("student not found in cache")
	ErrUpstreamUnavailable = errors.New("LMS source query failed")
	ErrRefreshTimeout      = errors.New("refresh time allowance exceeded")
	ErrRefreshFailed       = errors.New("failed to refresh student cache")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailRegistered     = errors.New("email already registered")
	ErrAccountDisabled     = errors.New("account disabled")
)
