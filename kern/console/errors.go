package console

import "errors"

var (
	// ErrLineTooLong is returned by ReadLine when the line does not fit.
	ErrLineTooLong = errors.New("console: line too long")
)
