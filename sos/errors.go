package sos

import "errors"

var (
	// ErrCaseNotFound is returned when no case exists with the given id.
	ErrCaseNotFound = errors.New("case not found")
	// ErrCaseClosed is returned by guarded transitions on a completed or cancelled case.
	ErrCaseClosed = errors.New("case closed")
	// ErrServiceClosed is returned once Close has been called.
	ErrServiceClosed = errors.New("sos service closed")
)
