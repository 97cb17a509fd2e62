package iperf

import "errors"

var (
	// ErrEmptyOutput indicates the captured output has no content.
	ErrEmptyOutput = errors.New("raw output is empty")
	// ErrUnrecognizedInput indicates input that is neither text nor JSON.
	ErrUnrecognizedInput = errors.New("raw output is neither delimited text nor JSON")
	// ErrMalformedStructured indicates unparsable JSON or a missing interval
	// list. It is not fatal: the stream contributes zero samples.
	ErrMalformedStructured = errors.New("malformed structured output")
	// ErrUnknownFormat indicates an unsupported format selector.
	ErrUnknownFormat = errors.New("unknown output format")

	errNonFinite = errors.New("value is not finite")
)
