package conn

import "errors"

var (
	errBadRequest     = errors.New("conn: malformed request")
	errLengthRequired = errors.New("conn: Content-Length required")
	errHeaderTooLarge = errors.New("conn: header block too large")
)

// StatusFor maps a parse error to the HTTP status code spec.md §4.5 requires.
func StatusFor(err error) int {
	switch err {
	case errLengthRequired:
		return 411
	case errHeaderTooLarge:
		return 431
	case errBadRequest:
		return 400
	default:
		return 400
	}
}
